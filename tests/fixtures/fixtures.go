package fixtures

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nanahara/auction-sheet-extractor/internal/record"
)

// NewTestDocument builds a minimal queued Document for use in unit and
// integration tests.
func NewTestDocument() *record.Document {
	now := time.Now()
	return &record.Document{
		ID:              uuid.New(),
		Status:          record.StatusQueued,
		OriginalPath:    "uploads/" + uuid.NewString() + ".jpg",
		ModelVersion:    "test",
		ContentHash:     uuid.NewString(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CleanupTestData removes all rows inserted by pipeline integration tests.
// Deletion order respects the documents -> auction_records foreign key.
func CleanupTestData(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	tables := []string{"auction_records", "documents"}

	for _, table := range tables {
		if _, err := db.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Logf("cleanup: failed to clear %s: %v", table, err)
		}
	}
}
