package pipeline

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nanahara/auction-sheet-extractor/internal/metrics"
	"github.com/nanahara/auction-sheet-extractor/internal/record"
)

// StatusEvent is one document status change, broadcast to debug/stream
// subscribers the same way the teacher's realtime.Broker fans out
// domain.BidEvent to SSE clients — repurposed here from "bid accepted on
// auction N" to "document N moved to status S".
type StatusEvent struct {
	DocumentID uuid.UUID            `json:"document_id"`
	Status     record.DocumentStatus `json:"status"`
	Reason     string               `json:"reason,omitempty"`
	At         time.Time            `json:"at"`
}

// Subscriber is a single debug/stream client connection.
type Subscriber struct {
	ID       string
	Messages chan []byte
	Done     chan struct{}
}

// Notifier fans status events out to debug/stream subscribers, grounded on
// the teacher's realtime.Broker (subscriber set + buffered event channel +
// single broadcast loop). Every event goes to every subscriber; there is no
// per-document filtering.
type Notifier struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}

	events chan StatusEvent
	done   chan struct{}
}

func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger:      logger,
		subscribers: make(map[*Subscriber]struct{}),
		events:      make(chan StatusEvent, 1000),
		done:        make(chan struct{}),
	}
}

func (n *Notifier) Start() {
	go n.broadcastLoop()
}

func (n *Notifier) Stop() {
	close(n.done)
}

// Subscribe registers a debug/stream client.
func (n *Notifier) Subscribe(sub *Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribers[sub] = struct{}{}
	metrics.SSEConnectionsActive.Inc()
}

// Unsubscribe removes a debug/stream client.
func (n *Notifier) Unsubscribe(sub *Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subscribers[sub]; ok {
		delete(n.subscribers, sub)
		metrics.SSEConnectionsActive.Dec()
	}
}

// Broadcast queues an event for the broadcast loop, dropping it if the
// event buffer is full rather than blocking the calling stage worker.
func (n *Notifier) Broadcast(event StatusEvent) {
	select {
	case n.events <- event:
	default:
		n.logger.Warn("pipeline_event_dropped_queue_full", slog.String("document_id", event.DocumentID.String()))
	}
}

func (n *Notifier) broadcastLoop() {
	for {
		select {
		case <-n.done:
			return
		case event := <-n.events:
			n.deliver(event)
		}
	}
}

func (n *Notifier) deliver(event StatusEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.subscribers) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("pipeline_event_marshal_error", slog.String("error", err.Error()))
		return
	}
	message := formatSSE(string(event.Status), data)

	for sub := range n.subscribers {
		select {
		case sub.Messages <- message:
		default:
		}
	}
	metrics.SSEMessagesSent.WithLabelValues(string(event.Status)).Inc()
}

func formatSSE(eventType string, data []byte) []byte {
	out := make([]byte, 0, len(eventType)+len(data)+20)
	out = append(out, "event: "...)
	out = append(out, eventType...)
	out = append(out, '\n')
	out = append(out, "data: "...)
	out = append(out, data...)
	out = append(out, '\n', '\n')
	return out
}
