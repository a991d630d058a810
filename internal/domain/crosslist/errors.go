package crosslist

import "errors"

// Error kinds surfaced by the pipeline. Producers wrap them with
// fmt.Errorf("%w: ...") for context; callers match with errors.Is.
var (
	// ErrItemIDNotFound indicates a sold-notification body did not contain
	// the platform's item identifier.
	ErrItemIDNotFound = errors.New("crosslist: item id not found in message body")

	// ErrUnsupportedPlatform indicates a platform that is not registered
	// in the mapping configuration or the marketplace registry.
	ErrUnsupportedPlatform = errors.New("crosslist: unsupported platform")

	// ErrEmptyCrostoreID indicates a mutation was attempted with an
	// unresolved item, one whose canonical identifier is still empty.
	ErrEmptyCrostoreID = errors.New("crosslist: empty crostore id")

	// ErrCrostoreIDNotFound indicates the item's canonical identifier is
	// absent from the mapping store.
	ErrCrostoreIDNotFound = errors.New("crosslist: crostore id not found")

	// ErrItemNotCanceled is the cancellation-failure condition signaled by
	// Canceller implementations.
	ErrItemNotCanceled = errors.New("crosslist: item not canceled")

	// ErrWaitTimeout is returned by Session waits that ran out of time
	// before their condition held.
	ErrWaitTimeout = errors.New("crosslist: wait timed out")

	// ErrElementNotFound is returned by Session.Click when the target
	// element does not appear within the timeout.
	ErrElementNotFound = errors.New("crosslist: element not found")
)
