package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/nanahara/auction-sheet-extractor/internal/record"
	"github.com/nanahara/auction-sheet-extractor/internal/store"
)

// attemptTransition re-fetches the document, verifies it is still in the
// expected "from" status, applies the transition, and persists it — the
// same "read current state, attempt the change, fail loudly on a mismatch"
// shape as the teacher's auction bid OCC update, generalized from a
// version column to the status field itself, since only one stage worker
// is ever expected to hold a given document at a time.
func attemptTransition(ctx context.Context, rs store.RecordStore, id uuid.UUID, from, to record.DocumentStatus, mutate func(*record.Document)) (*record.Document, error) {
	doc, err := rs.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != from {
		return nil, ErrVersionConflict
	}
	if !doc.Transition(to) {
		return nil, ErrIllegalTransition
	}
	if mutate != nil {
		mutate(doc)
	}
	doc.Status = to
	if err := rs.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
