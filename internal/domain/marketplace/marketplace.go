// Package marketplace carries the closed set of marketplaces the pipeline
// reconciles across. Each variant is a zero-size value implementing the
// crosslist capability contract plus its cancellation flow; everything
// marketplace-specific (sender addresses, URLs, extraction patterns,
// button locations) lives here as variant data.
package marketplace

import (
	"fmt"

	"github.com/crostore/backend/internal/domain/crosslist"
)

// variant is the full surface a marketplace provides: the capability
// contract the pipeline consumes plus the cancellation flow the driving
// caller invokes.
type variant interface {
	crosslist.Platform
	crosslist.Canceller
}

// registry lists every supported marketplace. Order is stable and is the
// order All returns.
var registry = []variant{
	Mercari{},
	YahooAuction{},
}

// All returns every supported platform in registry order.
func All() []crosslist.Platform {
	platforms := make([]crosslist.Platform, len(registry))
	for i, v := range registry {
		platforms[i] = v
	}
	return platforms
}

// ByCode resolves a platform from its stable code.
func ByCode(code string) (crosslist.Platform, error) {
	for _, v := range registry {
		if v.Code() == code {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", crosslist.ErrUnsupportedPlatform, code)
}

// CancellerFor returns the cancellation flow of p's marketplace.
func CancellerFor(p crosslist.Platform) (crosslist.Canceller, error) {
	for _, v := range registry {
		if v.Code() == p.Code() {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", crosslist.ErrUnsupportedPlatform, p.Code())
}
