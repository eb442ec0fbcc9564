package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/webtracker/internal/domain"
	"github.com/avolkov/webtracker/internal/probe"
	"github.com/avolkov/webtracker/internal/repo/memory"
	"github.com/avolkov/webtracker/internal/retry"
	"github.com/avolkov/webtracker/internal/schedule"
)

// --- fakes ---

type fakeProber struct {
	mu    sync.Mutex
	out   probe.Outcome
	err   error
	calls int
	last  domain.Resource
}

func (f *fakeProber) Execute(ctx context.Context, r domain.Resource) (probe.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = r
	return f.out, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.err
}

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestTracker(t *testing.T, p *fakeProber, n *fakeNotifier) (*Tracker, *memory.Store, *schedule.Registry) {
	t.Helper()
	store := memory.New()
	reg := schedule.NewRegistry(zap.NewNop())
	t.Cleanup(reg.StopAll)
	tr := New(zap.NewNop(), store, store, reg, p, n, []string{"admin-1"})
	return tr, store, reg
}

func siteA() domain.Resource {
	return domain.Resource{
		Name:     "site-a",
		URL:      "https://example.com",
		Type:     domain.ProbeStatic,
		Interval: 5,
		UserID:   "100",
	}
}

// --- lifecycle tests ---

func TestAddResource_PersistsAndSchedules(t *testing.T) {
	n := &fakeNotifier{}
	tr, _, reg := newTestTracker(t, &fakeProber{}, n)

	res, err := tr.AddResource(context.Background(), siteA())
	if err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	if res.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if res.Interval != 5 {
		t.Fatalf("interval mangled: %d", res.Interval)
	}
	if !reg.Exists(res.ID) {
		t.Fatalf("registry missing %s", schedule.Key(res.ID))
	}
	if iv, _ := reg.Interval(res.ID); iv != 5*time.Minute {
		t.Fatalf("want 5m interval, got %v", iv)
	}
	if len(n.messages()) != 1 || !strings.Contains(n.messages()[0], "site-a") {
		t.Fatalf("expected confirmation notice, got %v", n.messages())
	}
}

func TestAddResource_InvalidType(t *testing.T) {
	tr, _, reg := newTestTracker(t, &fakeProber{}, &fakeNotifier{})

	r := siteA()
	r.Type = domain.ProbeType("gopher")
	if _, err := tr.AddResource(context.Background(), r); !errors.Is(err, domain.ErrInvalidResourceType) {
		t.Fatalf("want ErrInvalidResourceType, got %v", err)
	}
	if reg.Exists(1) {
		t.Fatal("nothing should have been scheduled")
	}
}

func TestAddResource_DuplicateName(t *testing.T) {
	tr, _, _ := newTestTracker(t, &fakeProber{}, &fakeNotifier{})

	if _, err := tr.AddResource(context.Background(), siteA()); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := tr.AddResource(context.Background(), siteA()); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("want duplicate-name error, got %v", err)
	}
}

func TestAddResource_BadInterval(t *testing.T) {
	tr, _, _ := newTestTracker(t, &fakeProber{}, &fakeNotifier{})
	r := siteA()
	r.Interval = 0
	if _, err := tr.AddResource(context.Background(), r); err == nil {
		t.Fatal("want interval validation error")
	}
}

func TestUpdateResource_MergesAndReschedules(t *testing.T) {
	tr, store, reg := newTestTracker(t, &fakeProber{}, &fakeNotifier{})
	res, _ := tr.AddResource(context.Background(), siteA())

	newInterval := 10
	updated, err := tr.UpdateResource(context.Background(), res.ID, Patch{Interval: &newInterval}, "100")
	if err != nil {
		t.Fatalf("UpdateResource: %v", err)
	}
	if updated.Interval != 10 || updated.Name != "site-a" || updated.URL != "https://example.com" {
		t.Fatalf("merge broke unchanged fields: %+v", updated)
	}
	if iv, _ := reg.Interval(res.ID); iv != 10*time.Minute {
		t.Fatalf("stale timer interval %v after update", iv)
	}

	stored, _ := store.GetByID(context.Background(), res.ID)
	if stored.Interval != 10 {
		t.Fatalf("update not persisted: %+v", stored)
	}
}

func TestUpdateResource_ForbiddenForStranger(t *testing.T) {
	tr, _, _ := newTestTracker(t, &fakeProber{}, &fakeNotifier{})
	res, _ := tr.AddResource(context.Background(), siteA())

	name := "hijacked"
	_, err := tr.UpdateResource(context.Background(), res.ID, Patch{Name: &name}, "999")
	if !errors.Is(err, domain.ErrNotFoundOrForbidden) {
		t.Fatalf("want ErrNotFoundOrForbidden, got %v", err)
	}
}

func TestUpdateResource_AdminBypassesOwnership(t *testing.T) {
	tr, _, _ := newTestTracker(t, &fakeProber{}, &fakeNotifier{})
	res, _ := tr.AddResource(context.Background(), siteA())

	name := "renamed"
	updated, err := tr.UpdateResource(context.Background(), res.ID, Patch{Name: &name}, "admin-1")
	if err != nil {
		t.Fatalf("admin update refused: %v", err)
	}
	if updated.Name != "renamed" {
		t.Fatalf("unexpected name: %q", updated.Name)
	}
}

func TestUpdateResource_Missing(t *testing.T) {
	tr, _, _ := newTestTracker(t, &fakeProber{}, &fakeNotifier{})
	if _, err := tr.UpdateResource(context.Background(), 12345, Patch{}, "100"); !errors.Is(err, domain.ErrNotFoundOrForbidden) {
		t.Fatalf("want ErrNotFoundOrForbidden, got %v", err)
	}
}

func TestDeleteResource_CascadesAndUnschedules(t *testing.T) {
	p := &fakeProber{out: probe.Outcome{Status: domain.StatusSuccess, Result: true, StatusCode: 200}}
	tr, store, reg := newTestTracker(t, p, &fakeNotifier{})
	res, _ := tr.AddResource(context.Background(), siteA())

	tr.CheckResource(context.Background(), *res)
	tr.CheckResource(context.Background(), *res)
	if logs, _ := store.ListByResource(context.Background(), res.ID, 0); len(logs) != 2 {
		t.Fatalf("setup: want 2 logs, got %d", len(logs))
	}

	if err := tr.DeleteResource(context.Background(), res.ID, "100"); err != nil {
		t.Fatalf("DeleteResource: %v", err)
	}
	if reg.Exists(res.ID) {
		t.Fatal("timer survived delete")
	}
	if logs, _ := store.ListByResource(context.Background(), res.ID, 0); len(logs) != 0 {
		t.Fatalf("logs survived delete: %d", len(logs))
	}
	if r, _ := store.GetByID(context.Background(), res.ID); r != nil {
		t.Fatal("resource survived delete")
	}
}

func TestDeleteResource_ForbiddenKeepsEverything(t *testing.T) {
	p := &fakeProber{out: probe.Outcome{Status: domain.StatusSuccess, Result: true}}
	tr, store, reg := newTestTracker(t, p, &fakeNotifier{})
	res, _ := tr.AddResource(context.Background(), siteA())
	tr.CheckResource(context.Background(), *res)

	if err := tr.DeleteResource(context.Background(), res.ID, "999"); !errors.Is(err, domain.ErrNotFoundOrForbidden) {
		t.Fatalf("want ErrNotFoundOrForbidden, got %v", err)
	}
	if !reg.Exists(res.ID) {
		t.Fatal("timer should remain")
	}
	if logs, _ := store.ListByResource(context.Background(), res.ID, 0); len(logs) != 1 {
		t.Fatal("logs should remain intact")
	}
	if r, _ := store.GetByID(context.Background(), res.ID); r == nil {
		t.Fatal("resource should remain")
	}
}

// --- check pipeline tests ---

func TestCheckResource_SuccessWritesOneLogNoAlert(t *testing.T) {
	p := &fakeProber{out: probe.Outcome{
		Status:     domain.StatusSuccess,
		Response:   "<html>...",
		StatusCode: 200,
		Result:     true,
	}}
	n := &fakeNotifier{}
	tr, store, _ := newTestTracker(t, p, n)
	res, _ := tr.AddResource(context.Background(), siteA())
	n.mu.Lock()
	n.sent = nil // drop the add confirmation
	n.mu.Unlock()

	tr.CheckResource(context.Background(), *res)

	logs, _ := store.ListByResource(context.Background(), res.ID, 0)
	if len(logs) != 1 {
		t.Fatalf("want exactly one log, got %d", len(logs))
	}
	l := logs[0]
	if l.Status != domain.StatusSuccess || !l.Result || l.Endpoint != res.URL || l.DurationMS < 0 {
		t.Fatalf("unexpected log: %+v", l)
	}
	if len(n.messages()) != 0 {
		t.Fatalf("no alert expected on success, got %v", n.messages())
	}
}

func TestCheckResource_FailureAlerts(t *testing.T) {
	p := &fakeProber{out: probe.Outcome{
		Status:     domain.StatusError,
		Response:   "service unavailable",
		StatusCode: 503,
		Result:     false,
	}}
	n := &fakeNotifier{}
	tr, store, _ := newTestTracker(t, p, n)
	res, _ := tr.AddResource(context.Background(), siteA())
	n.mu.Lock()
	n.sent = nil
	n.mu.Unlock()

	tr.CheckResource(context.Background(), *res)

	logs, _ := store.ListByResource(context.Background(), res.ID, 0)
	if len(logs) != 1 || logs[0].Status != domain.StatusError || logs[0].Result {
		t.Fatalf("unexpected logs: %+v", logs)
	}
	msgs := n.messages()
	if len(msgs) != 1 {
		t.Fatalf("want one alert, got %d", len(msgs))
	}
	for _, want := range []string{"site-a", "https://example.com", "static", "503", "/logs"} {
		if !strings.Contains(msgs[0], want) {
			t.Fatalf("alert missing %q:\n%s", want, msgs[0])
		}
	}
}

func TestCheckResource_ProbeErrorStillWritesOneLog(t *testing.T) {
	p := &fakeProber{err: &probe.TransportError{
		URL: "https://example.com",
		Err: errors.New("connection refused"),
	}}
	n := &fakeNotifier{}
	tr, store, _ := newTestTracker(t, p, n)
	res, _ := tr.AddResource(context.Background(), siteA())
	n.mu.Lock()
	n.sent = nil
	n.mu.Unlock()

	tr.CheckResource(context.Background(), *res)

	logs, _ := store.ListByResource(context.Background(), res.ID, 0)
	if len(logs) != 1 {
		t.Fatalf("want exactly one log even when the probe errors, got %d", len(logs))
	}
	if logs[0].Status != domain.StatusError || logs[0].Result {
		t.Fatalf("unexpected log: %+v", logs[0])
	}
	if !strings.Contains(logs[0].Response, "connection refused") {
		t.Fatalf("log should carry the error text: %q", logs[0].Response)
	}
	if len(n.messages()) != 1 {
		t.Fatalf("want one alert, got %d", len(n.messages()))
	}
}

func TestCheckResource_StructuredDescriptionPreferred(t *testing.T) {
	p := &fakeProber{err: &probe.MailerStepError{
		Step: "verify",
		Err: &probe.TransportError{
			URL:         "https://mail.example.com/verify",
			Err:         errors.New("unexpected status 502"),
			StatusCode:  502,
			Description: "relay exploded",
		},
	}}
	n := &fakeNotifier{}
	tr, store, _ := newTestTracker(t, p, n)
	res, _ := tr.AddResource(context.Background(), siteA())
	n.mu.Lock()
	n.sent = nil
	n.mu.Unlock()

	tr.CheckResource(context.Background(), *res)

	logs, _ := store.ListByResource(context.Background(), res.ID, 0)
	if len(logs) != 1 || logs[0].Response != "relay exploded" {
		t.Fatalf("want structured description in log, got %+v", logs)
	}
	if msgs := n.messages(); len(msgs) != 1 || !strings.Contains(msgs[0], "502") {
		t.Fatalf("alert should carry the partial-response status: %v", msgs)
	}
}

func TestCheckResource_AlertFailureIsSwallowed(t *testing.T) {
	p := &fakeProber{out: probe.Outcome{Status: domain.StatusError, Result: false}}
	n := &fakeNotifier{err: errors.New("telegram down")}
	tr, store, _ := newTestTracker(t, p, n)
	res, _ := tr.AddResource(context.Background(), siteA())

	// must not panic or error out
	tr.CheckResource(context.Background(), *res)
	if logs, _ := store.ListByResource(context.Background(), res.ID, 0); len(logs) != 1 {
		t.Fatalf("log write must not be rolled back: %d", len(logs))
	}
}

func TestScheduleAll_RegistersEveryResource(t *testing.T) {
	tr, store, reg := newTestTracker(t, &fakeProber{}, &fakeNotifier{})

	for _, name := range []string{"a", "b", "c"} {
		r := siteA()
		r.Name = name
		if err := store.Create(context.Background(), &r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if err := tr.ScheduleAll(context.Background()); err != nil {
		t.Fatalf("ScheduleAll: %v", err)
	}
	for id := int64(1); id <= 3; id++ {
		if !reg.Exists(id) {
			t.Fatalf("resource %d not scheduled", id)
		}
	}
}

func TestResourcesByUser_AdminSeesAll(t *testing.T) {
	tr, _, _ := newTestTracker(t, &fakeProber{}, &fakeNotifier{})

	a := siteA()
	if _, err := tr.AddResource(context.Background(), a); err != nil {
		t.Fatalf("add: %v", err)
	}
	b := siteA()
	b.Name = "site-b"
	b.UserID = "200"
	if _, err := tr.AddResource(context.Background(), b); err != nil {
		t.Fatalf("add: %v", err)
	}

	own, err := tr.ResourcesByUser(context.Background(), "100")
	if err != nil || len(own) != 1 {
		t.Fatalf("owner list: %v %d", err, len(own))
	}
	all, err := tr.ResourcesByUser(context.Background(), "admin-1")
	if err != nil || len(all) != 2 {
		t.Fatalf("admin list: %v %d", err, len(all))
	}
}

func TestLogs_NewestFirstAndCapped(t *testing.T) {
	p := &fakeProber{out: probe.Outcome{Status: domain.StatusSuccess, Result: true}}
	tr, _, _ := newTestTracker(t, p, &fakeNotifier{})
	res, _ := tr.AddResource(context.Background(), siteA())

	for i := 0; i < 7; i++ {
		tr.CheckResource(context.Background(), *res)
	}

	logs, err := tr.Logs(context.Background(), res.ID, 5)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 5 {
		t.Fatalf("want capped page of 5, got %d", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].CreatedAt.After(logs[i-1].CreatedAt) {
			t.Fatal("logs not in reverse-chronological order")
		}
	}
}

// flakyLogStore fails the first n list calls before delegating.
type flakyLogStore struct {
	*memory.Store
	mu       sync.Mutex
	failures int
}

func (f *flakyLogStore) ListByResource(ctx context.Context, resourceID int64, limit int) ([]domain.Log, error) {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return nil, errors.New("transient store error")
	}
	return f.Store.ListByResource(ctx, resourceID, limit)
}

func TestLogs_RetriesTransientReadFailure(t *testing.T) {
	store := memory.New()
	flaky := &flakyLogStore{Store: store, failures: 2}
	reg := schedule.NewRegistry(zap.NewNop())
	t.Cleanup(reg.StopAll)

	p := &fakeProber{out: probe.Outcome{Status: domain.StatusSuccess, Result: true}}
	tr := New(zap.NewNop(), store, flaky, reg, p, nil, nil)
	tr.readRetry = retry.Policy{Attempts: 3, Backoff: retry.Linear(time.Millisecond)}

	res, err := tr.AddResource(context.Background(), siteA())
	if err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	tr.CheckResource(context.Background(), *res)

	logs, err := tr.Logs(context.Background(), res.ID, 10)
	if err != nil {
		t.Fatalf("Logs should survive two transient failures: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("want 1 log, got %d", len(logs))
	}

	flaky.failures = 3
	if _, err := tr.Logs(context.Background(), res.ID, 10); err == nil {
		t.Fatal("want error once attempts are exhausted")
	}
}
