package probe

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/webtracker/internal/domain"
)

// MaxResponseChars bounds the response text carried in outcomes and logs.
const MaxResponseChars = 1000

const (
	checkTimeout  = 20 * time.Second
	mailerTimeout = 60 * time.Second
)

// Outcome is the structured result of one probe execution.
type Outcome struct {
	Status     string // domain.StatusSuccess or domain.StatusError
	Response   string // response body, truncated to MaxResponseChars
	StatusCode int
	Result     bool
	// EndpointType marks which mailer sub-endpoint produced the terminal
	// result ("verify" or "sendadmin"); empty for other probe types.
	EndpointType string
}

// Prober runs a single verification attempt against a resource.
type Prober interface {
	Execute(ctx context.Context, r domain.Resource) (Outcome, error)
}

// MailerConfig carries the fixed payload values for mailer probes.
type MailerConfig struct {
	TestEmail  string
	AdminEmail string
	// Code is the pre-shared encrypted verification code the mail
	// endpoints expect.
	Code string
	// VerifySiteURL and AdminSiteURL are the site_url values sent on the
	// verify and sendadmin steps; the endpoints distinguish the two.
	VerifySiteURL string
	AdminSiteURL  string
}

// Executor dispatches on the resource's probe type. Expected failure
// modes (transport, content, mailer-step errors) come back as typed
// errors; the caller converts them into error outcomes.
type Executor struct {
	log        *zap.Logger
	client     *http.Client
	mailClient *http.Client
	mailer     MailerConfig
}

func NewExecutor(log *zap.Logger, mailer MailerConfig) *Executor {
	return &Executor{
		log:        log,
		client:     &http.Client{Timeout: checkTimeout},
		mailClient: &http.Client{Timeout: mailerTimeout},
		mailer:     mailer,
	}
}

func (e *Executor) Execute(ctx context.Context, r domain.Resource) (Outcome, error) {
	switch r.Type {
	case domain.ProbeStatic:
		return e.checkStatic(ctx, r)
	case domain.ProbeTelegram:
		return e.checkTelegram(ctx, r)
	case domain.ProbeMailer:
		return e.checkMailer(ctx, r)
	default:
		return Outcome{}, &UnknownTypeError{Type: r.Type}
	}
}

// Truncate bounds s to MaxResponseChars characters.
func Truncate(s string) string {
	rs := []rune(s)
	if len(rs) <= MaxResponseChars {
		return s
	}
	return string(rs[:MaxResponseChars])
}

func statusLabel(code int) string {
	if code >= 200 && code < 300 {
		return domain.StatusSuccess
	}
	return domain.StatusError
}
