package crosslist

import (
	"context"
	"iter"

	"go.uber.org/zap"
)

// Reconciler ties notification retrieval, parsing, and sibling resolution
// into the one pipeline callers drive.
type Reconciler struct {
	source   NotificationSource
	mappings MappingStore
	log      *zap.Logger
}

// NewReconciler wires the pipeline's collaborators. A nil logger is
// replaced with a no-op one.
func NewReconciler(source NotificationSource, mappings MappingStore, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		source:   source,
		mappings: mappings,
		log:      log,
	}
}

// ItemsToCancel yields every listing that must be canceled because the
// same physical item sold on p. The sequence is lazy: no mail or store
// access happens until the caller advances it, each stage holds at most
// one element in flight, and breaking early leaves the remaining
// notifications unfetched and unacknowledged.
//
// A notification whose body yields no item identifier is logged and
// skipped; one bad message never aborts the batch. Errors from the
// notification source or the mapping store are yielded unmodified and
// terminate the sequence; retry policy belongs to those collaborators,
// not here.
func (r *Reconciler) ItemsToCancel(ctx context.Context, p Platform) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for msg, err := range r.source.SoldMessages(ctx, p) {
			if err != nil {
				yield(Item{}, err)
				return
			}
			sold, err := msg.ToItem()
			if err != nil {
				r.log.Error("cannot convert message to item",
					zap.String("platform", p.Code()),
					zap.String("subject", msg.Subject),
					zap.Error(err),
				)
				continue
			}
			for sibling, err := range r.mappings.Siblings(ctx, sold) {
				if !yield(sibling, err) {
					return
				}
				if err != nil {
					return
				}
			}
		}
	}
}
