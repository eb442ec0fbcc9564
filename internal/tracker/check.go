package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/webtracker/internal/domain"
	"github.com/avolkov/webtracker/internal/notify"
	"github.com/avolkov/webtracker/internal/probe"
)

// CheckResource is the pipeline run on every timer fire: probe, append
// exactly one log entry, and alert when the outcome is a failure. It
// never returns an error — a broken endpoint must not destabilize the
// scheduler or skip a future check.
func (t *Tracker) CheckResource(ctx context.Context, r domain.Resource) {
	start := time.Now()
	out, err := t.prober.Execute(ctx, r)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		msg := probe.ErrorText(err)
		t.appendLog(ctx, &domain.Log{
			ResourceID: r.ID,
			Status:     domain.StatusError,
			Response:   probe.Truncate(msg),
			Endpoint:   r.URL,
			DurationMS: duration,
			Result:     false,
			CreatedAt:  time.Now().UTC(),
		})
		t.alert(ctx, r, msg, probe.ErrorStatusCode(err))
		t.log.Error("check_failed",
			zap.Int64("resource_id", r.ID),
			zap.String("url", r.URL),
			zap.String("error", msg),
			zap.Int64("duration_ms", duration),
		)
		return
	}

	t.appendLog(ctx, &domain.Log{
		ResourceID: r.ID,
		Status:     out.Status,
		Response:   out.Response,
		Endpoint:   r.URL,
		DurationMS: duration,
		Result:     out.Result,
		CreatedAt:  time.Now().UTC(),
	})

	if !out.Result {
		t.alert(ctx, r, out.Response, out.StatusCode)
	}

	t.log.Info("resource_checked",
		zap.Int64("resource_id", r.ID),
		zap.String("url", r.URL),
		zap.String("status", out.Status),
		zap.Bool("result", out.Result),
		zap.Int64("duration_ms", duration),
	)
}

func (t *Tracker) appendLog(ctx context.Context, l *domain.Log) {
	if err := t.logs.Append(ctx, l); err != nil {
		t.log.Warn("log_append_failed",
			zap.Int64("resource_id", l.ResourceID),
			zap.Error(err),
		)
	}
}

// alert is best effort: a delivery failure is logged and swallowed,
// never rolled back into the check.
func (t *Tracker) alert(ctx context.Context, r domain.Resource, errText string, statusCode int) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Send(ctx, notify.FailureMessage(r, errText, statusCode)); err != nil {
		t.log.Warn("alert_send_failed",
			zap.Int64("resource_id", r.ID),
			zap.Error(err),
		)
	}
}
