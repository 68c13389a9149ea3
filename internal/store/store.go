// Package store defines the persistence contracts the pipeline depends on
// (record store + object store) and a pgx-backed RecordStore, grounded on
// the teacher's transaction/OCC idioms in its own storage layer. Object
// storage is external to this port's scope beyond the interface itself;
// only an in-memory ObjectStore is provided, and an in-memory RecordStore
// is provided for tests and for running without Postgres.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nanahara/auction-sheet-extractor/internal/record"
)

// ErrNotFound is returned by RecordStore/ObjectStore lookups that miss.
var ErrNotFound = fmt.Errorf("not found")

// ErrDuplicateContentHash is returned by CreateDocument when a document
// with the same content hash already exists (upload dedup, SPEC_FULL.md
// §5 and §8 scenario 8).
var ErrDuplicateContentHash = fmt.Errorf("duplicate content hash")

// RecordStore persists Documents and AuctionRecords.
type RecordStore interface {
	CreateDocument(ctx context.Context, doc *record.Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*record.Document, error)
	FindDocumentByContentHash(ctx context.Context, hash string) (*record.Document, error)
	UpdateDocument(ctx context.Context, doc *record.Document) error
	ListStuckDocuments(ctx context.Context, status record.DocumentStatus, olderThanSeconds int64) ([]*record.Document, error)

	UpsertAuctionRecord(ctx context.Context, rec *record.AuctionRecord) error
	GetAuctionRecordByDocument(ctx context.Context, documentID uuid.UUID) (*record.AuctionRecord, error)
}

// ObjectStore is a minimal blob interface: head/put/get/copy by key.
type ObjectStore interface {
	Head(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
}
