// Package crosslist implements the cross-platform listing reconciliation
// pipeline: it turns sale notifications from one marketplace into the
// sibling listings that must be canceled on every other marketplace where
// the same physical item was cross-posted, with a tabular mapping store as
// the source of truth.
//
// The package owns the platform capability model, the identifier mapping
// resolver, and the cancellation orchestrator. Marketplace variants,
// notification sources, mapping backends, and browser sessions plug in
// through the interfaces defined here; the pipeline never branches on a
// concrete type.
package crosslist

import (
	"context"
	"regexp"
	"time"
)

// Platform is the capability contract every marketplace satisfies. The
// implementer set is closed: supporting a new marketplace means adding one
// more variant, never adding identity checks elsewhere.
//
// Platform values are immutable and shared. Two values designate the same
// marketplace exactly when their codes are equal.
type Platform interface {
	// Name returns the marketplace's display name.
	Name() string

	// Code returns the stable ASCII identifier of the marketplace. Codes
	// are unique across all registered platforms and never empty.
	Code() string

	// Email returns the sender address of the marketplace's sale
	// notifications.
	Email() string

	// HomeURL returns the marketplace's home page.
	HomeURL() string

	// ItemIDPattern returns the fixed pattern that extracts the
	// platform-local item identifier from a sold-notification body. The
	// pattern carries exactly one capture group and is compiled once, at
	// variant construction.
	ItemIDPattern() *regexp.Regexp

	// IsAccessibleToUserpage probes whether the session is currently
	// authenticated on the marketplace. A normal "not logged in" outcome
	// is (false, nil); errors are reserved for infrastructure failures.
	//
	// The probe navigates to a page that requires a login and watches for
	// a redirect to the login form. Seeing the redirect within timeout
	// means the account is not accessible; a wait timeout means the user
	// page held and the session is authenticated.
	IsAccessibleToUserpage(ctx context.Context, sess Session, timeout time.Duration) (bool, error)

	// CreateItem constructs a well-formed Item on this platform. Pure, no
	// I/O.
	CreateItem(itemID, crostoreID string) Item

	// CreateMessage constructs a well-formed Message from this platform.
	// Pure, no I/O.
	CreateMessage(subject, body string) Message
}
