package crosslist

import "fmt"

// Item is one listing of a product on one marketplace. (Platform, ItemID)
// identifies the listing. Items are values: comparable, structurally
// equal, safe to copy.
type Item struct {
	// Platform is the marketplace the listing lives on. Shared, never
	// owned by the item.
	Platform Platform

	// ItemID is the platform-assigned listing identifier.
	ItemID string

	// CrostoreID is the canonical identifier linking the same physical
	// sale across platforms. It stays empty until resolved from the
	// mapping store; an item with an empty CrostoreID must not be passed
	// to MappingStore.Update or Delete.
	CrostoreID string
}

// Resolved reports whether the item carries its canonical identifier.
func (i Item) Resolved() bool { return i.CrostoreID != "" }

// String renders the item for logs and error context.
func (i Item) String() string {
	code := "<nil>"
	if i.Platform != nil {
		code = i.Platform.Code()
	}
	return fmt.Sprintf("%s/%s (crostore id %q)", code, i.ItemID, i.CrostoreID)
}
