package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nanahara/auction-sheet-extractor/internal/record"
)

// MemoryRecordStore is an in-process RecordStore used by tests and by the
// pipeline when no Postgres DSN is configured.
type MemoryRecordStore struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]*record.Document
	byHash    map[string]uuid.UUID
	records   map[uuid.UUID]*record.AuctionRecord // keyed by document id
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		documents: make(map[uuid.UUID]*record.Document),
		byHash:    make(map[string]uuid.UUID),
		records:   make(map[uuid.UUID]*record.AuctionRecord),
	}
}

func (s *MemoryRecordStore) CreateDocument(ctx context.Context, doc *record.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ContentHash != "" {
		if _, exists := s.byHash[doc.ContentHash]; exists {
			return ErrDuplicateContentHash
		}
		s.byHash[doc.ContentHash] = doc.ID
	}
	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

func (s *MemoryRecordStore) GetDocument(ctx context.Context, id uuid.UUID) (*record.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryRecordStore) FindDocumentByContentHash(ctx context.Context, hash string) (*record.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.documents[id]
	return &cp, nil
}

func (s *MemoryRecordStore) UpdateDocument(ctx context.Context, doc *record.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[doc.ID]; !ok {
		return ErrNotFound
	}
	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

func (s *MemoryRecordStore) ListStuckDocuments(ctx context.Context, status record.DocumentStatus, olderThanSeconds int64) ([]*record.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)
	var out []*record.Document
	for _, d := range s.documents {
		if d.Status != status || d.ProcessingStartedAt == nil {
			continue
		}
		if d.ProcessingStartedAt.After(cutoff) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryRecordStore) UpsertAuctionRecord(ctx context.Context, rec *record.AuctionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.DocumentID] = &cp
	return nil
}

func (s *MemoryRecordStore) GetAuctionRecordByDocument(ctx context.Context, documentID uuid.UUID) (*record.AuctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// MemoryObjectStore is an in-process ObjectStore used by tests and as the
// nil-client fallback pattern mirrored from the teacher's VIN decoder
// (object store absent -> degrade gracefully, not crash).
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string][]byte)}
}

func (s *MemoryObjectStore) Head(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *MemoryObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

func (s *MemoryObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemoryObjectStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[srcKey]
	if !ok {
		return ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[dstKey] = cp
	return nil
}
