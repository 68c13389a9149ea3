package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nanahara/auction-sheet-extractor/internal/pipeline"
	"github.com/nanahara/auction-sheet-extractor/internal/record"
	"github.com/nanahara/auction-sheet-extractor/internal/store"
)

// IngestHandler implements SPEC_FULL.md's single upload entry point,
// `POST /ingest`: store the raw bytes, hand the document to the
// orchestrator, and let the pipeline take it from there. Everything past
// acceptance (listing, overrides, export) is out of scope per spec §1.
type IngestHandler struct {
	orchestrator   *pipeline.Orchestrator
	objects        store.ObjectStore
	records        store.RecordStore
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewIngestHandler(orchestrator *pipeline.Orchestrator, objects store.ObjectStore, records store.RecordStore, logger *slog.Logger, uploadMaxSizeMB int) *IngestHandler {
	return &IngestHandler{
		orchestrator:   orchestrator,
		objects:        objects,
		records:        records,
		logger:         logger,
		maxUploadBytes: int64(uploadMaxSizeMB) * 1024 * 1024,
	}
}

// IngestResponse reports the document an upload resolved to, whether newly
// created or already present under the same content hash.
type IngestResponse struct {
	DocumentID string                `json:"document_id"`
	Status     record.DocumentStatus `json:"status"`
	Duplicate  bool                  `json:"duplicate"`
}

func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		h.jsonError(w, "request body too large or unreadable", http.StatusRequestEntityTooLarge)
		return
	}
	if len(data) == 0 {
		h.jsonError(w, "empty request body", http.StatusBadRequest)
		return
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if existing, err := h.records.FindDocumentByContentHash(ctx, hash); err == nil {
		h.respond(w, IngestResponse{DocumentID: existing.ID.String(), Status: existing.Status, Duplicate: true})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("ingest_lookup_error", slog.String("error", err.Error()))
		h.jsonError(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	contentType := http.DetectContentType(data)
	key := "documents/" + hash + extensionFor(contentType)
	if err := h.objects.Put(ctx, key, data, contentType); err != nil {
		h.logger.Error("ingest_store_error", slog.String("error", err.Error()))
		h.jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	doc, err := h.orchestrator.Enqueue(ctx, key, hash)
	if errors.Is(err, store.ErrDuplicateContentHash) {
		existing, getErr := h.records.FindDocumentByContentHash(ctx, hash)
		if getErr != nil {
			h.logger.Error("ingest_duplicate_lookup_error", slog.String("error", getErr.Error()))
			h.jsonError(w, "duplicate lookup failed", http.StatusInternalServerError)
			return
		}
		h.respond(w, IngestResponse{DocumentID: existing.ID.String(), Status: existing.Status, Duplicate: true})
		return
	}
	if err != nil {
		h.logger.Error("ingest_enqueue_error", slog.String("error", err.Error()))
		h.jsonError(w, "failed to enqueue document", http.StatusInternalServerError)
		return
	}

	h.respondStatus(w, http.StatusAccepted, IngestResponse{DocumentID: doc.ID.String(), Status: doc.Status, Duplicate: false})
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}

func (h *IngestHandler) respond(w http.ResponseWriter, resp IngestResponse) {
	h.respondStatus(w, http.StatusOK, resp)
}

func (h *IngestHandler) respondStatus(w http.ResponseWriter, status int, resp IngestResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (h *IngestHandler) jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
