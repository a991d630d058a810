package crosslist

import (
	"context"
	"time"
)

// Session is one browser automation session. Sessions are single-owner and
// strictly sequential: callers never share one across goroutines, and the
// marketplace login state living in the session belongs to that owner.
type Session interface {
	// Navigate loads url in the session's tab.
	Navigate(ctx context.Context, url string) error

	// Location returns the tab's current URL.
	Location(ctx context.Context) (string, error)

	// WaitLocation blocks until the current URL starts with prefix,
	// returning nil. When timeout elapses first it returns ErrWaitTimeout.
	WaitLocation(ctx context.Context, prefix string, timeout time.Duration) error

	// Click locates an element by XPath and clicks it. Returns
	// ErrElementNotFound when the element does not appear within timeout.
	Click(ctx context.Context, xpath string, timeout time.Duration) error

	// WaitVisible blocks until the element located by XPath is visible,
	// or returns ErrWaitTimeout.
	WaitVisible(ctx context.Context, xpath string, timeout time.Duration) error
}

// Canceller ends a listing on its marketplace through a browser session.
// The reconciliation pipeline never calls it: the driving caller does,
// once per item the pipeline yields. Each attempt is independent and not
// retried.
type Canceller interface {
	// Cancel takes the listing behind item off its marketplace. Failures
	// wrap ErrItemNotCanceled.
	Cancel(ctx context.Context, sess Session, item Item, timeout time.Duration) error
}
