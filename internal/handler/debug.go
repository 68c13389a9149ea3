package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nanahara/auction-sheet-extractor/internal/pipeline"
)

// DebugHandler exposes pipeline introspection endpoints, grounded on the
// teacher's stats-dump style (`BidEngineStats`/`SSEStats`/`AllStats`)
// repointed at the orchestrator's stage queues and the status-event
// notifier instead of the bid engine and SSE broker.
type DebugHandler struct {
	orchestrator *pipeline.Orchestrator
	notifier     *pipeline.Notifier
	logger       *slog.Logger
}

func NewDebugHandler(orchestrator *pipeline.Orchestrator, notifier *pipeline.Notifier, logger *slog.Logger) *DebugHandler {
	return &DebugHandler{
		orchestrator: orchestrator,
		notifier:     notifier,
		logger:       logger,
	}
}

// PipelineStats returns the orchestrator's per-stage queue depths and
// aggregate processed/failed/retry counters.
func (h *DebugHandler) PipelineStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.orchestrator.Stats())
}

// Stream opens a server-sent-events connection that relays document status
// changes as they happen, the same fan-out shape as the teacher's SSE
// auction stream, now keyed by document id instead of auction id.
func (h *DebugHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := &pipeline.Subscriber{
		ID:       r.RemoteAddr,
		Messages: make(chan []byte, 32),
		Done:     make(chan struct{}),
	}
	h.notifier.Subscribe(sub)
	defer h.notifier.Unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.Messages:
			if _, err := w.Write(msg); err != nil {
				h.logger.Warn("debug_stream_write_error", slog.String("error", err.Error()))
				return
			}
			flusher.Flush()
		}
	}
}
