package crosslist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectItems(t *testing.T, r *Reconciler, p Platform) ([]Item, error) {
	t.Helper()
	var items []Item
	for item, err := range r.ItemsToCancel(context.Background(), p) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

func TestReconcilerItemsToCancel(t *testing.T) {
	t.Run("skips unparseable messages and keeps going", func(t *testing.T) {
		source := &fakeSource{messages: []Message{
			alpha.CreateMessage("sold 1", "item id: A007"),
			alpha.CreateMessage("digest", "no identifier in here"),
			alpha.CreateMessage("sold 3", "item id: A009"),
		}}
		r := NewReconciler(source, newTestResolver(newTestStore()), nil)

		items, err := collectItems(t, r, alpha)
		require.NoError(t, err)

		require.Len(t, items, 2)
		assert.Equal(t, Item{Platform: beta, ItemID: "B007", CrostoreID: "c00007"}, items[0])
		assert.Equal(t, Item{Platform: beta, ItemID: "B009", CrostoreID: "c00009"}, items[1])
		assert.Equal(t, 3, source.served)
		assert.Equal(t, 3, source.acked)
	})

	t.Run("yields nothing for an empty mailbox", func(t *testing.T) {
		r := NewReconciler(&fakeSource{}, newTestResolver(newTestStore()), nil)

		items, err := collectItems(t, r, alpha)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("unregistered sold items contribute nothing", func(t *testing.T) {
		source := &fakeSource{messages: []Message{
			alpha.CreateMessage("sold", "item id: A777"),
			alpha.CreateMessage("sold", "item id: A008"),
		}}
		r := NewReconciler(source, newTestResolver(newTestStore()), nil)

		items, err := collectItems(t, r, alpha)
		require.NoError(t, err)

		require.Len(t, items, 1)
		assert.Equal(t, "B008", items[0].ItemID)
	})

	t.Run("is lazy until the caller advances it", func(t *testing.T) {
		source := &fakeSource{messages: []Message{
			alpha.CreateMessage("sold", "item id: A007"),
		}}
		store := newTestStore()
		r := NewReconciler(source, newTestResolver(store), nil)

		seq := r.ItemsToCancel(context.Background(), alpha)
		assert.Equal(t, 0, source.served)
		assert.Equal(t, 0, store.reads)

		for range seq {
			break
		}
		assert.Equal(t, 1, source.served)
	})

	t.Run("stopping early leaves upstream unconsumed", func(t *testing.T) {
		source := &fakeSource{messages: []Message{
			alpha.CreateMessage("sold 1", "item id: A007"),
			alpha.CreateMessage("sold 2", "item id: A008"),
			alpha.CreateMessage("sold 3", "item id: A009"),
		}}
		store := newTestStore()
		r := NewReconciler(source, newTestResolver(store), nil)

		var got []Item
		for item, err := range r.ItemsToCancel(context.Background(), alpha) {
			require.NoError(t, err)
			got = append(got, item)
			if len(got) == 1 {
				break
			}
		}

		require.Len(t, got, 1)
		assert.Equal(t, 1, source.served)
		assert.Equal(t, 0, source.acked)
		assert.Equal(t, 3, store.reads)
	})

	t.Run("source errors propagate unmodified", func(t *testing.T) {
		sourceErr := errors.New("mailbox unavailable")
		source := &fakeSource{
			messages: []Message{alpha.CreateMessage("sold", "item id: A007")},
			err:      sourceErr,
		}
		r := NewReconciler(source, newTestResolver(newTestStore()), nil)

		items, err := collectItems(t, r, alpha)
		assert.ErrorIs(t, err, sourceErr)
		require.Len(t, items, 1)
	})

	t.Run("resolver errors propagate and stop the run", func(t *testing.T) {
		source := &fakeSource{messages: []Message{
			gamma.CreateMessage("sold", "listing id: G001"),
			gamma.CreateMessage("sold", "listing id: G002"),
		}}
		r := NewReconciler(source, newTestResolver(newTestStore()), nil)

		items, err := collectItems(t, r, gamma)
		assert.ErrorIs(t, err, ErrUnsupportedPlatform)
		assert.Empty(t, items)
		assert.Equal(t, 1, source.served)
	})

	t.Run("store read failures propagate unmodified", func(t *testing.T) {
		store := newTestStore()
		store.failColumn = "A"
		store.readErr = errors.New("spreadsheet unavailable")
		source := &fakeSource{messages: []Message{
			alpha.CreateMessage("sold", "item id: A007"),
		}}
		r := NewReconciler(source, newTestResolver(store), nil)

		_, err := collectItems(t, r, alpha)
		assert.Equal(t, store.readErr, err)
	})
}
