package crosslist

import (
	"context"
	"iter"
)

// MappingStore resolves and mutates the records tying the same physical
// sale together across marketplaces: one row per canonical identifier,
// one column per platform.
type MappingStore interface {
	// Siblings yields, for a sold item, the listing of the same physical
	// sale on every other registered platform, canonical id populated. An
	// item whose platform is not registered yields ErrUnsupportedPlatform;
	// an item not recorded in the store yields nothing at all.
	Siblings(ctx context.Context, item Item) iter.Seq2[Item, error]

	// Update writes item.ItemID into the item platform's column on the row
	// keyed by item.CrostoreID. Fails with ErrEmptyCrostoreID when the
	// item is unresolved and ErrCrostoreIDNotFound when no row matches.
	Update(ctx context.Context, item Item) error

	// Delete clears the item platform's cell on the row keyed by
	// item.CrostoreID, keeping the row. Same failure conditions as Update.
	Delete(ctx context.Context, item Item) error
}

// ColumnStore is a tabular backend addressable by (column, row). Rows are
// 0-based positions inside a column; backends translate them into their
// own addressing.
type ColumnStore interface {
	// Column reads one column top to bottom. Backends may omit trailing
	// empty cells.
	Column(ctx context.Context, column string) ([]string, error)

	// WriteCell sets the value of a single cell.
	WriteCell(ctx context.Context, column string, row int, value string) error

	// ClearCell empties a single cell.
	ClearCell(ctx context.Context, column string, row int) error
}
