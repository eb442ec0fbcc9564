package tracker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/webtracker/internal/domain"
	"github.com/avolkov/webtracker/internal/notify"
	"github.com/avolkov/webtracker/internal/probe"
	"github.com/avolkov/webtracker/internal/repo"
	"github.com/avolkov/webtracker/internal/retry"
	"github.com/avolkov/webtracker/internal/schedule"
)

// Tracker orchestrates the resource lifecycle: it owns the mapping
// between persisted resources and their recurring check timers, runs
// the check pipeline on every fire, and raises alerts on failures.
type Tracker struct {
	log       *zap.Logger
	resources repo.ResourceStore
	logs      repo.LogStore
	registry  *schedule.Registry
	prober    probe.Prober
	notifier  notify.Notifier
	adminIDs  map[string]bool
	readRetry retry.Policy
}

func New(
	log *zap.Logger,
	resources repo.ResourceStore,
	logs repo.LogStore,
	registry *schedule.Registry,
	prober probe.Prober,
	notifier notify.Notifier,
	adminUserIDs []string,
) *Tracker {
	admins := make(map[string]bool, len(adminUserIDs))
	for _, id := range adminUserIDs {
		if id != "" {
			admins[id] = true
		}
	}
	return &Tracker{
		log:       log,
		resources: resources,
		logs:      logs,
		registry:  registry,
		prober:    prober,
		notifier:  notifier,
		adminIDs:  admins,
		readRetry: retry.Policy{
			Attempts: 3,
			Backoff:  retry.Linear(time.Second),
		},
	}
}

func (t *Tracker) isAdmin(userID string) bool { return t.adminIDs[userID] }

// ScheduleAll registers a timer for every persisted resource. Called
// once at startup so checks survive restarts.
func (t *Tracker) ScheduleAll(ctx context.Context) error {
	all, err := t.resources.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list resources: %w", err)
	}
	for _, r := range all {
		t.scheduleResource(r)
	}
	t.log.Info("all_resources_scheduled", zap.Int("count", len(all)))
	return nil
}

// scheduleResource binds the check pipeline to a timer against an
// immutable snapshot of the resource. Register replaces any existing
// timer for the id, so updates never leave two timers live.
func (t *Tracker) scheduleResource(r domain.Resource) {
	snap := r
	if r.Headers != nil {
		snap.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			snap.Headers[k] = v
		}
	}
	t.registry.Register(r.ID, time.Duration(r.Interval)*time.Minute, func() {
		t.CheckResource(context.Background(), snap)
	})
}

// AddResource validates, persists, and schedules a new resource, then
// sends a best-effort confirmation.
func (t *Tracker) AddResource(ctx context.Context, r domain.Resource) (*domain.Resource, error) {
	if !r.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidResourceType, r.Type)
	}
	if r.Interval < 1 {
		return nil, fmt.Errorf("interval must be at least 1 minute, got %d", r.Interval)
	}
	if existing, err := t.resources.GetByName(ctx, r.Name); err != nil {
		return nil, fmt.Errorf("lookup name: %w", err)
	} else if existing != nil {
		return nil, fmt.Errorf("resource name %q already exists", r.Name)
	}

	r.CreatedAt = time.Now().UTC()
	if err := t.resources.Create(ctx, &r); err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	t.scheduleResource(r)
	t.log.Info("resource_added",
		zap.Int64("id", r.ID),
		zap.String("name", r.Name),
		zap.String("url", r.URL),
		zap.Int("interval_min", r.Interval),
	)

	t.sendNotice(ctx, notify.AddedMessage(r))
	return &r, nil
}

// Patch holds the fields an update may change; nil fields keep their
// previous values.
type Patch struct {
	Name      *string
	URL       *string
	Type      *domain.ProbeType
	Interval  *int
	Headers   map[string]string
	Frequency *int
	Period    *string
}

// UpdateResource merges the patch into the stored resource and
// re-registers its timer against the updated snapshot. A requesting
// user that is neither the owner nor an admin is refused.
func (t *Tracker) UpdateResource(ctx context.Context, id int64, p Patch, requestingUserID string) (*domain.Resource, error) {
	r, err := t.authorize(ctx, id, requestingUserID)
	if err != nil {
		return nil, err
	}
	if p.Type != nil && !p.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidResourceType, *p.Type)
	}
	if p.Interval != nil && *p.Interval < 1 {
		return nil, fmt.Errorf("interval must be at least 1 minute, got %d", *p.Interval)
	}

	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.URL != nil {
		r.URL = *p.URL
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Interval != nil {
		r.Interval = *p.Interval
	}
	if p.Headers != nil {
		r.Headers = p.Headers
	}
	if p.Frequency != nil {
		r.Frequency = p.Frequency
	}
	if p.Period != nil {
		r.Period = *p.Period
	}

	if err := t.resources.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("update resource: %w", err)
	}

	t.registry.Unregister(id)
	t.scheduleResource(*r)
	t.log.Info("resource_updated",
		zap.Int64("id", r.ID),
		zap.String("url", r.URL),
		zap.Int("interval_min", r.Interval),
	)
	return r, nil
}

// DeleteResource cancels the timer, cascades the log deletion, removes
// the resource, and sends a best-effort confirmation.
func (t *Tracker) DeleteResource(ctx context.Context, id int64, requestingUserID string) error {
	if _, err := t.authorize(ctx, id, requestingUserID); err != nil {
		return err
	}

	t.registry.Unregister(id)
	if err := t.logs.DeleteByResource(ctx, id); err != nil {
		return fmt.Errorf("delete logs: %w", err)
	}
	if err := t.resources.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	t.log.Info("resource_deleted", zap.Int64("id", id))

	t.sendNotice(ctx, notify.DeletedMessage(id))
	return nil
}

// authorize loads the resource and enforces the owner/admin rule. An
// empty requesting user skips the ownership check (internal callers).
func (t *Tracker) authorize(ctx context.Context, id int64, requestingUserID string) (*domain.Resource, error) {
	r, err := t.resources.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	if r == nil {
		return nil, domain.ErrNotFoundOrForbidden
	}
	if requestingUserID != "" && requestingUserID != r.UserID && !t.isAdmin(requestingUserID) {
		return nil, domain.ErrNotFoundOrForbidden
	}
	return r, nil
}

// ResourcesByUser lists a user's resources; admins see everything.
// The store read is retried because it runs on chat-command paths
// where a transient DB hiccup would otherwise surface to the user.
func (t *Tracker) ResourcesByUser(ctx context.Context, userID string) ([]domain.Resource, error) {
	var out []domain.Resource
	err := retry.Do(ctx, t.readRetry, nil, func(ctx context.Context) error {
		var err error
		if t.isAdmin(userID) {
			out, err = t.resources.ListAll(ctx)
		} else {
			out, err = t.resources.ListByUser(ctx, userID)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return out, nil
}

// Logs returns a resource's most recent log entries, newest first.
// Retried like ResourcesByUser; both reads serve chat-command paths.
func (t *Tracker) Logs(ctx context.Context, resourceID int64, limit int) ([]domain.Log, error) {
	var out []domain.Log
	err := retry.Do(ctx, t.readRetry, nil, func(ctx context.Context) error {
		var err error
		out, err = t.logs.ListByResource(ctx, resourceID, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return out, nil
}

func (t *Tracker) sendNotice(ctx context.Context, text string) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Send(ctx, text); err != nil {
		t.log.Warn("notice_send_failed", zap.Error(err))
	}
}
