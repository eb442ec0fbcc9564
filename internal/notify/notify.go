package notify

import (
	"context"

	"go.uber.org/multierr"
)

// Notifier delivers one text message to its destination(s).
// Delivery is best effort; callers log and swallow errors.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Multi fans a message out to several notifiers and aggregates their
// failures, so one broken channel never hides the others' errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, text))
	}
	return err
}
