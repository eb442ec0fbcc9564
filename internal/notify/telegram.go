package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/avolkov/webtracker/internal/retry"
)

// Telegram messages are capped at 4096 characters; longer alerts are
// split into consecutive chunks.
const telegramMaxMessage = 4096

// Telegram posts messages to a set of chat ids through the Bot API.
// Transient delivery failures (429, 5xx, connection errors) are retried
// per the configured policy.
type Telegram struct {
	Token   string
	ChatIDs []string
	Client  *http.Client
	Policy  retry.Policy

	apiBase string
	log     *zap.Logger
}

func NewTelegram(token string, chatIDs []string, policy retry.Policy, log *zap.Logger) *Telegram {
	if token == "" || len(chatIDs) == 0 {
		return nil
	}
	if policy.Attempts < 1 {
		policy = retry.Policy{
			Attempts: 3,
			Backoff:  retry.Linear(time.Second),
		}
	}
	return &Telegram{
		Token:   token,
		ChatIDs: chatIDs,
		Client:  &http.Client{Timeout: 15 * time.Second},
		Policy:  policy,
		apiBase: "https://api.telegram.org",
		log:     log,
	}
}

// statusError marks a non-2xx Bot API reply so retryability can be
// decided from the code.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("telegram status %d: %s", e.Status, e.Body)
}

func retryableSend(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	// transport-level failure (timeout, reset, DNS)
	return true
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	if t == nil || t.Token == "" {
		return fmt.Errorf("telegram disabled")
	}

	var err error
	for _, chatID := range t.ChatIDs {
		for _, chunk := range chunks(text, telegramMaxMessage) {
			sendErr := retry.Do(ctx, t.Policy, retryableSend, func(ctx context.Context) error {
				return t.sendMessage(ctx, chatID, chunk)
			})
			if sendErr != nil {
				t.log.Warn("telegram_send_failed",
					zap.String("chat_id", chatID),
					zap.Error(sendErr),
				)
			}
			err = multierr.Append(err, sendErr)
		}
	}
	return err
}

func (t *Telegram) sendMessage(ctx context.Context, chatID, text string) error {
	payload, _ := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	u := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode/100 != 2 {
		return &statusError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func chunks(s string, size int) []string {
	rs := []rune(s)
	if len(rs) <= size {
		return []string{s}
	}
	var out []string
	for len(rs) > 0 {
		n := size
		if n > len(rs) {
			n = len(rs)
		}
		out = append(out, string(rs[:n]))
		rs = rs[n:]
	}
	return out
}
