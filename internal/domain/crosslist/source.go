package crosslist

import (
	"context"
	"iter"
)

// NotificationSource supplies sold notifications for one platform.
type NotificationSource interface {
	// SoldMessages returns a lazy sequence of the platform's unhandled
	// sold notifications. Advancing past a yielded message acknowledges it
	// as handled exactly once, so a later call does not re-yield it;
	// breaking out of the sequence leaves the current message
	// unacknowledged. A non-nil error terminates the sequence.
	SoldMessages(ctx context.Context, p Platform) iter.Seq2[Message, error]
}
