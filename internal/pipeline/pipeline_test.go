package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanahara/auction-sheet-extractor/internal/config"
	"github.com/nanahara/auction-sheet-extractor/internal/ocrengine"
	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
	"github.com/nanahara/auction-sheet-extractor/internal/record"
	"github.com/nanahara/auction-sheet-extractor/internal/store"
)

// fakeEngine returns a fixed token set regardless of the image it's handed,
// standing in for the real VL/line-OCR adapters so these tests exercise the
// orchestrator's wiring rather than the OCR HTTP round trip.
type fakeEngine struct {
	name   string
	tokens []ocrtypes.Token
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Run(ctx context.Context, img *image.RGBA, lang string) (ocrtypes.OCRResult, error) {
	return ocrtypes.OCRResult{Engine: f.name, Tokens: f.tokens}, nil
}

func sheetSignalTokens() []ocrtypes.Token {
	tokens := make([]ocrtypes.Token, 0, 16)
	for i := 0; i < 16; i++ {
		tokens = append(tokens, ocrtypes.Token{Text: "A1B2C3", Confidence: 0.9})
	}
	return tokens
}

func headerTokens() []ocrtypes.Token {
	return []ocrtypes.Token{
		{Text: "出品番号12345", Confidence: 0.95},
		{Text: "開催日2024-05-01", Confidence: 0.95},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		PipelineVersion:      "test",
		OCRLanguage:          "jpn+eng",
		WorkersPreprocess:    1,
		WorkersOCR:           1,
		WorkersExtract:       1,
		WorkersValidate:      1,
		StageQueueDepth:      10,
		RetryMaxPreprocess:   1,
		RetryMaxOCR:          1,
		RetryMaxExtract:      1,
		RetryMaxValidate:     1,
		WatchdogPollInterval: time.Hour,
	}
}

func testImagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newTestOrchestrator wires an Orchestrator against in-memory stores and a
// deterministic fake OCR router, in sync mode so a single Enqueue call
// drives a document through every stage on the calling goroutine.
func newTestOrchestrator(t *testing.T) (*Orchestrator, store.ObjectStore) {
	t.Helper()
	records := store.NewMemoryRecordStore()
	objects := store.NewMemoryObjectStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	vl := &fakeEngine{name: "vl", tokens: append(headerTokens(), sheetSignalTokens()...)}
	router := ocrengine.NewRouter(vl, vl)

	o := New(testConfig(), records, objects, logger, WithSyncMode(true), WithRouter(router))
	return o, objects
}

func TestOrchestrator_Enqueue_SyncMode_ReachesTerminalStatus(t *testing.T) {
	o, objects := newTestOrchestrator(t)
	ctx := context.Background()

	key := "uploads/test.png"
	require.NoError(t, objects.Put(ctx, key, testImagePNG(t), "image/png"))

	doc, err := o.Enqueue(ctx, key, "hash-1")
	require.NoError(t, err)

	final, err := o.records.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, []record.DocumentStatus{record.StatusDone, record.StatusReview}, final.Status)
	assert.Equal(t, 0, final.RetryCount)

	rec, err := o.records.GetAuctionRecordByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, rec.DocumentID)
	assert.Equal(t, "test", rec.PipelineVersion)
}

func TestOrchestrator_Enqueue_DuplicateContentHash(t *testing.T) {
	o, objects := newTestOrchestrator(t)
	ctx := context.Background()

	key := "uploads/dup.png"
	require.NoError(t, objects.Put(ctx, key, testImagePNG(t), "image/png"))

	_, err := o.Enqueue(ctx, key, "same-hash")
	require.NoError(t, err)

	_, err = o.Enqueue(ctx, key, "same-hash")
	assert.ErrorIs(t, err, store.ErrDuplicateContentHash)
}

func TestOrchestrator_Stats_ReflectsProcessedCount(t *testing.T) {
	o, objects := newTestOrchestrator(t)
	ctx := context.Background()

	key := "uploads/stats.png"
	require.NoError(t, objects.Put(ctx, key, testImagePNG(t), "image/png"))

	_, err := o.Enqueue(ctx, key, "hash-stats")
	require.NoError(t, err)

	stats := o.Stats()
	assert.Equal(t, int64(1), stats.TotalProcessed)
	assert.Len(t, stats.Stages, 4)
}

func TestAttemptTransition_ConflictOnStatusMismatch(t *testing.T) {
	records := store.NewMemoryRecordStore()
	ctx := context.Background()

	doc := &record.Document{ID: uuid.New(), Status: record.StatusQueued, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, records.CreateDocument(ctx, doc))

	_, err := attemptTransition(ctx, records, doc.ID, record.StatusOCR, record.StatusExtracting, nil)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestAttemptTransition_IllegalTransition(t *testing.T) {
	records := store.NewMemoryRecordStore()
	ctx := context.Background()

	doc := &record.Document{ID: uuid.New(), Status: record.StatusQueued, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, records.CreateDocument(ctx, doc))

	_, err := attemptTransition(ctx, records, doc.ID, record.StatusQueued, record.StatusDone, nil)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestAttemptTransition_AppliesMutateAndPersists(t *testing.T) {
	records := store.NewMemoryRecordStore()
	ctx := context.Background()

	doc := &record.Document{ID: uuid.New(), Status: record.StatusQueued, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, records.CreateDocument(ctx, doc))

	updated, err := attemptTransition(ctx, records, doc.ID, record.StatusQueued, record.StatusPreprocessing, func(d *record.Document) {
		d.ErrorMessage = "started"
	})
	require.NoError(t, err)
	assert.Equal(t, record.StatusPreprocessing, updated.Status)
	assert.Equal(t, "started", updated.ErrorMessage)

	stored, err := records.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusPreprocessing, stored.Status)
}

func TestNotifier_SubscribeBroadcastUnsubscribe(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := NewNotifier(logger)
	n.Start()
	defer n.Stop()

	sub := &Subscriber{ID: "client-1", Messages: make(chan []byte, 4), Done: make(chan struct{})}
	n.Subscribe(sub)

	event := StatusEvent{DocumentID: uuid.New(), Status: record.StatusDone, At: time.Now()}
	n.Broadcast(event)

	select {
	case msg := <-sub.Messages:
		assert.Contains(t, string(msg), "event: done")
		assert.Contains(t, string(msg), event.DocumentID.String())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast message")
	}

	n.Unsubscribe(sub)
	n.Broadcast(event)
	select {
	case <-sub.Messages:
		t.Fatal("unsubscribed subscriber should not receive further messages")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSweepStuckDocuments_ForcesReview(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	started := time.Now().Add(-2 * time.Hour)
	doc := &record.Document{
		ID:                  uuid.New(),
		Status:              record.StatusOCR,
		ProcessingStartedAt: &started,
		CreatedAt:           started,
		UpdatedAt:           started,
	}
	require.NoError(t, o.records.CreateDocument(ctx, doc))

	o.sweepStuckDocuments(ctx)

	updated, err := o.records.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusReview, updated.Status)
	assert.Contains(t, updated.ErrorMessage, "Stuck in ocr")
}
