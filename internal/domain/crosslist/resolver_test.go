package crosslist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *fakeColumnStore {
	return &fakeColumnStore{
		columns: map[string][]string{
			"A": {"c00007", "c00008", "c00009"},
			"B": {"A007", "A008", "A009"},
			"C": {"B007", "B008", "B009"},
		},
	}
}

func newTestResolver(store *fakeColumnStore) *Resolver {
	return NewResolver(store, "A", []PlatformColumn{
		{Platform: alpha, Column: "B"},
		{Platform: beta, Column: "C"},
	}, nil)
}

func collectSiblings(t *testing.T, r *Resolver, item Item) ([]Item, error) {
	t.Helper()
	var items []Item
	for sibling, err := range r.Siblings(context.Background(), item) {
		if err != nil {
			return items, err
		}
		items = append(items, sibling)
	}
	return items, nil
}

func TestResolverSiblings(t *testing.T) {
	t.Run("round trip resolves the sibling listing", func(t *testing.T) {
		r := newTestResolver(newTestStore())

		items, err := collectSiblings(t, r, alpha.CreateItem("A007", ""))
		require.NoError(t, err)

		require.Len(t, items, 1)
		assert.Equal(t, Item{Platform: beta, ItemID: "B007", CrostoreID: "c00007"}, items[0])
	})

	t.Run("unsupported platform fails with no partial output", func(t *testing.T) {
		r := newTestResolver(newTestStore())

		items, err := collectSiblings(t, r, gamma.CreateItem("G001", ""))
		assert.ErrorIs(t, err, ErrUnsupportedPlatform)
		assert.Empty(t, items)
	})

	t.Run("unregistered item yields nothing", func(t *testing.T) {
		store := newTestStore()
		r := newTestResolver(store)

		items, err := collectSiblings(t, r, alpha.CreateItem("A999", ""))
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.Equal(t, 3, store.reads)
	})

	t.Run("never yields the source platform", func(t *testing.T) {
		r := newTestResolver(newTestStore())

		items, err := collectSiblings(t, r, beta.CreateItem("B008", ""))
		require.NoError(t, err)

		require.Len(t, items, 1)
		assert.Equal(t, alpha, items[0].Platform)
		assert.Equal(t, "A008", items[0].ItemID)
		assert.Equal(t, "c00008", items[0].CrostoreID)
	})

	t.Run("first matching row wins", func(t *testing.T) {
		store := newTestStore()
		store.columns["B"] = []string{"A007", "A007", "A009"}
		r := newTestResolver(store)

		items, err := collectSiblings(t, r, alpha.CreateItem("A007", ""))
		require.NoError(t, err)

		require.Len(t, items, 1)
		assert.Equal(t, "B007", items[0].ItemID)
		assert.Equal(t, "c00007", items[0].CrostoreID)
	})

	t.Run("a short sibling column reads as an empty cell", func(t *testing.T) {
		store := newTestStore()
		store.columns["C"] = []string{"B007"}
		r := newTestResolver(store)

		items, err := collectSiblings(t, r, alpha.CreateItem("A009", ""))
		require.NoError(t, err)

		require.Len(t, items, 1)
		assert.Equal(t, Item{Platform: beta, ItemID: "", CrostoreID: "c00009"}, items[0])
	})

	t.Run("resolving twice yields equal results", func(t *testing.T) {
		r := newTestResolver(newTestStore())
		item := alpha.CreateItem("A008", "")

		first, err := collectSiblings(t, r, item)
		require.NoError(t, err)
		second, err := collectSiblings(t, r, item)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("column read failures propagate", func(t *testing.T) {
		store := newTestStore()
		store.failColumn = "C"
		store.readErr = errors.New("spreadsheet unavailable")
		r := newTestResolver(store)

		_, err := collectSiblings(t, r, alpha.CreateItem("A007", ""))
		require.Error(t, err)
		assert.Equal(t, store.readErr, err)
	})

	t.Run("consumer can stop early", func(t *testing.T) {
		store := newTestStore()
		r := NewResolver(store, "A", []PlatformColumn{
			{Platform: alpha, Column: "B"},
			{Platform: beta, Column: "C"},
			{Platform: gamma, Column: "D"},
		}, nil)
		store.columns["D"] = []string{"G007", "G008", "G009"}

		var got []Item
		for sibling, err := range r.Siblings(context.Background(), alpha.CreateItem("A007", "")) {
			require.NoError(t, err)
			got = append(got, sibling)
			break
		}

		require.Len(t, got, 1)
		assert.Equal(t, beta, got[0].Platform)
	})
}

func TestResolverUpdate(t *testing.T) {
	t.Run("writes the item id into the platform column", func(t *testing.T) {
		store := newTestStore()
		r := newTestResolver(store)

		err := r.Update(context.Background(), beta.CreateItem("B208", "c00008"))
		require.NoError(t, err)

		require.Len(t, store.writes, 1)
		assert.Equal(t, fakeCell{column: "C", row: 1, value: "B208"}, store.writes[0])
	})

	t.Run("empty crostore id is rejected", func(t *testing.T) {
		store := newTestStore()
		r := newTestResolver(store)

		err := r.Update(context.Background(), beta.CreateItem("B208", ""))
		assert.ErrorIs(t, err, ErrEmptyCrostoreID)
		assert.Empty(t, store.writes)
	})

	t.Run("unknown crostore id is rejected", func(t *testing.T) {
		r := newTestResolver(newTestStore())

		err := r.Update(context.Background(), beta.CreateItem("B208", "c99999"))
		assert.ErrorIs(t, err, ErrCrostoreIDNotFound)
	})

	t.Run("unsupported platform is rejected", func(t *testing.T) {
		r := newTestResolver(newTestStore())

		err := r.Update(context.Background(), gamma.CreateItem("G001", "c00007"))
		assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	})
}

func TestResolverDelete(t *testing.T) {
	t.Run("clears the platform cell and keeps the row", func(t *testing.T) {
		store := newTestStore()
		r := newTestResolver(store)

		err := r.Delete(context.Background(), alpha.CreateItem("A009", "c00009"))
		require.NoError(t, err)

		require.Len(t, store.clears, 1)
		assert.Equal(t, "B", store.clears[0].column)
		assert.Equal(t, 2, store.clears[0].row)
		assert.Empty(t, store.writes)
	})

	t.Run("empty crostore id is rejected", func(t *testing.T) {
		r := newTestResolver(newTestStore())

		err := r.Delete(context.Background(), alpha.CreateItem("A009", ""))
		assert.ErrorIs(t, err, ErrEmptyCrostoreID)
	})

	t.Run("unknown crostore id is rejected", func(t *testing.T) {
		r := newTestResolver(newTestStore())

		err := r.Delete(context.Background(), alpha.CreateItem("A009", "c12345"))
		assert.ErrorIs(t, err, ErrCrostoreIDNotFound)
	})
}

func TestResolverDefaults(t *testing.T) {
	store := newTestStore()
	r := NewResolver(store, "", []PlatformColumn{{Platform: alpha, Column: "B"}}, nil)

	err := r.Update(context.Background(), alpha.CreateItem("A101", "c00007"))
	require.NoError(t, err)

	require.Len(t, store.writes, 1)
	assert.Equal(t, fakeCell{column: "B", row: 0, value: "A101"}, store.writes[0])
}
