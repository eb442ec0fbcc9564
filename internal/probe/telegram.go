package probe

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/avolkov/webtracker/internal/domain"
)

var telegramDefaultHeaders = map[string]string{
	"Accept": "application/json",
}

// checkTelegram probes a JSON API that reports recent bot activity.
// The endpoint is healthy when it answers 2xx with a non-empty array.
func (e *Executor) checkTelegram(ctx context.Context, r domain.Resource) (Outcome, error) {
	body, status, err := e.get(ctx, r.URL, headersOr(r.Headers, telegramDefaultHeaders), false)
	if err != nil {
		return Outcome{}, err
	}

	var items []json.RawMessage
	nonEmptyList := json.Unmarshal(body, &items) == nil && len(items) > 0

	result := status >= 200 && status < 300 && nonEmptyList

	e.log.Debug("telegram_checked",
		zap.String("url", r.URL),
		zap.Int("status", status),
		zap.Int("items", len(items)),
		zap.Bool("result", result),
	)

	out := Outcome{
		Status:     domain.StatusError,
		Response:   Truncate(string(body)),
		StatusCode: status,
		Result:     result,
	}
	if result {
		out.Status = domain.StatusSuccess
	}
	return out, nil
}
