package crosslist

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"
)

// DefaultIDColumn is the canonical-identifier column a Resolver uses when
// configured without one.
const DefaultIDColumn = "A"

// PlatformColumn binds one platform to the column holding its item
// identifiers. Registration order is the order Siblings yields in.
type PlatformColumn struct {
	Platform Platform
	Column   string
}

// Resolver implements MappingStore over a ColumnStore that keeps one row
// per canonical identifier.
//
// Columns are read one by one and matched by position. The reads are not
// an atomic snapshot: a writer editing rows between two reads can misalign
// them. The store is assumed single-writer while a resolution runs; the
// risk is accepted, not mitigated.
type Resolver struct {
	cells    ColumnStore
	idColumn string
	columns  []PlatformColumn
	log      *zap.Logger
}

var _ MappingStore = (*Resolver)(nil)

// NewResolver builds a Resolver over cells. idColumn falls back to
// DefaultIDColumn when empty; columns must carry every supported platform,
// in the order siblings should come out in.
func NewResolver(cells ColumnStore, idColumn string, columns []PlatformColumn, log *zap.Logger) *Resolver {
	if idColumn == "" {
		idColumn = DefaultIDColumn
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		cells:    cells,
		idColumn: idColumn,
		columns:  columns,
		log:      log,
	}
}

// Siblings locates the first row whose source-platform cell equals
// item.ItemID and yields the other platforms' listings recorded on it, in
// registration order. An item absent from its platform's column is not an
// error: it is logged and yields nothing. The source platform itself is
// never yielded.
func (r *Resolver) Siblings(ctx context.Context, item Item) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		if _, ok := r.columnFor(item.Platform); !ok {
			yield(Item{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, item.Platform.Code()))
			return
		}
		ids, err := r.cells.Column(ctx, r.idColumn)
		if err != nil {
			yield(Item{}, err)
			return
		}
		values := make(map[string][]string, len(r.columns))
		for _, pc := range r.columns {
			column, err := r.cells.Column(ctx, pc.Column)
			if err != nil {
				yield(Item{}, err)
				return
			}
			values[pc.Platform.Code()] = column
		}
		row := indexOf(values[item.Platform.Code()], item.ItemID)
		if row < 0 {
			r.log.Warn("sold item is not registered in the mapping store",
				zap.String("platform", item.Platform.Code()),
				zap.String("item_id", item.ItemID),
			)
			return
		}
		for _, pc := range r.columns {
			if pc.Platform.Code() == item.Platform.Code() {
				continue
			}
			sibling := pc.Platform.CreateItem(cellAt(values[pc.Platform.Code()], row), cellAt(ids, row))
			if !yield(sibling, nil) {
				return
			}
		}
	}
}

// Update records item.ItemID on the row keyed by the item's crostore id.
func (r *Resolver) Update(ctx context.Context, item Item) error {
	column, row, err := r.locate(ctx, item)
	if err != nil {
		return err
	}
	return r.cells.WriteCell(ctx, column, row, item.ItemID)
}

// Delete clears the item platform's cell on the row keyed by the item's
// crostore id. The row itself stays.
func (r *Resolver) Delete(ctx context.Context, item Item) error {
	column, row, err := r.locate(ctx, item)
	if err != nil {
		return err
	}
	return r.cells.ClearCell(ctx, column, row)
}

// locate resolves the mutation target: the item platform's column and the
// first row whose canonical cell equals the item's crostore id.
func (r *Resolver) locate(ctx context.Context, item Item) (string, int, error) {
	if !item.Resolved() {
		return "", 0, fmt.Errorf("%w: %s", ErrEmptyCrostoreID, item)
	}
	column, ok := r.columnFor(item.Platform)
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, item.Platform.Code())
	}
	ids, err := r.cells.Column(ctx, r.idColumn)
	if err != nil {
		return "", 0, err
	}
	row := indexOf(ids, item.CrostoreID)
	if row < 0 {
		return "", 0, fmt.Errorf("%w: %s in column %s", ErrCrostoreIDNotFound, item.CrostoreID, r.idColumn)
	}
	return column, row, nil
}

func (r *Resolver) columnFor(p Platform) (string, bool) {
	for _, pc := range r.columns {
		if pc.Platform.Code() == p.Code() {
			return pc.Column, true
		}
	}
	return "", false
}

// indexOf returns the first position of want, -1 when absent. First match
// wins: duplicate identifiers are a data-integrity violation the resolver
// does not detect.
func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}

// cellAt reads a positional cell, tolerating columns returned without
// their trailing empty cells.
func cellAt(values []string, row int) string {
	if row < 0 || row >= len(values) {
		return ""
	}
	return values[row]
}
