// Package pipeline orchestrates the document state machine described in
// SPEC_FULL.md §4.8/§5: a queued document moves through preprocessing, ocr,
// extracting, and validating stages, each backed by its own worker pool so
// CPU-bound and GPU-bound work isolate onto distinct queues, the same way
// original_source/backend/worker/tasks/{preprocess,ocr,extract,validate,
// watchdog}.py and worker/celery_app.py isolate queues per hardware
// profile. The worker-pool shape itself is generalized from the teacher's
// bidengine (engine.go + worker.go: functional options, atomic counters,
// channel queues, one worker-per-key) — here "key" is the pipeline stage
// rather than an auction id, since every document visits every stage in
// the same fixed order instead of routing to a long-lived per-entity
// worker.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nanahara/auction-sheet-extractor/internal/config"
	"github.com/nanahara/auction-sheet-extractor/internal/metrics"
	"github.com/nanahara/auction-sheet-extractor/internal/ocrengine"
	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
	"github.com/nanahara/auction-sheet-extractor/internal/preprocess"
	"github.com/nanahara/auction-sheet-extractor/internal/record"
	"github.com/nanahara/auction-sheet-extractor/internal/roi"
	"github.com/nanahara/auction-sheet-extractor/internal/store"
	"github.com/nanahara/auction-sheet-extractor/internal/tracing"
)

// ocrBundle carries one document's OCR output from the ocr stage to the
// extracting stage. Nothing about it is durable: it lives only as long as
// the document is in flight, matching §4.8's framing of preprocessing/ocr/
// extracting as a single logical pass whose intermediate artifacts are not
// part of the persisted schema.
type ocrBundle struct {
	headerTokens     []ocrtypes.Token
	headerTableCells map[string]string
	headerEngine     string
	sheetTokens      []ocrtypes.Token
	sheetEngine      string
}

// extractBundle carries the assembled (but not yet reviewed) record from
// extracting to validating.
type extractBundle struct {
	rec record.AuctionRecord
}

// Orchestrator owns the per-stage queues and worker pools that drive a
// Document through the pipeline.
type Orchestrator struct {
	cfg      *config.Config
	records  store.RecordStore
	objects  store.ObjectStore
	preproc  *preprocess.Preprocessor
	detector *roi.Detector
	router   *ocrengine.Router
	notifier *Notifier
	logger   *slog.Logger

	queues map[record.DocumentStatus]chan uuid.UUID

	ocrCacheMu sync.Mutex
	ocrCache   map[uuid.UUID]ocrBundle

	extractCacheMu sync.Mutex
	extractCache   map[uuid.UUID]extractBundle

	totalProcessed atomic.Int64
	totalFailed    atomic.Int64
	totalRetries   atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	syncMode bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSyncMode runs every stage inline on the calling goroutine instead of
// through queues and worker pools, for deterministic tests.
func WithSyncMode(sync bool) Option {
	return func(o *Orchestrator) { o.syncMode = sync }
}

// WithNotifier overrides the default Notifier (e.g. to share one across an
// orchestrator and its debug/stream handler).
func WithNotifier(n *Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithRouter overrides the default VL/line-OCR router built from cfg, for
// tests that substitute deterministic fake engines for the real HTTP
// adapters.
func WithRouter(r *ocrengine.Router) Option {
	return func(o *Orchestrator) { o.router = r }
}

// New builds an Orchestrator. Call Start to begin processing.
func New(cfg *config.Config, records store.RecordStore, objects store.ObjectStore, logger *slog.Logger, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		cfg:          cfg,
		records:      records,
		objects:      objects,
		preproc:      preprocess.New(),
		detector:     roi.New(),
		router:       newRouter(cfg),
		logger:       logger,
		ocrCache:     make(map[uuid.UUID]ocrBundle),
		extractCache: make(map[uuid.UUID]extractBundle),
		ctx:          ctx,
		cancel:       cancel,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.notifier == nil {
		o.notifier = NewNotifier(logger)
	}

	o.queues = map[record.DocumentStatus]chan uuid.UUID{
		record.StatusPreprocessing: make(chan uuid.UUID, cfg.StageQueueDepth),
		record.StatusOCR:           make(chan uuid.UUID, cfg.StageQueueDepth),
		record.StatusExtracting:    make(chan uuid.UUID, cfg.StageQueueDepth),
		record.StatusValidating:    make(chan uuid.UUID, cfg.StageQueueDepth),
	}

	return o
}

// Notifier returns the orchestrator's status-event broadcaster, for
// wiring a debug/stream HTTP handler.
func (o *Orchestrator) Notifier() *Notifier {
	return o.notifier
}

func newRouter(cfg *config.Config) *ocrengine.Router {
	vl := ocrengine.NewVLEngine(cfg.VLEndpoint, cfg.VLMaxNewTokens, cfg.VLMaxPixels, nil)
	line := ocrengine.NewLineEngine(cfg.LineOCREndpoint, nil)
	return ocrengine.NewRouter(vl, line)
}

// Start launches the notifier, the watchdog, and one worker pool per
// stage. In sync mode it only starts the notifier, since stages run
// inline from Enqueue.
func (o *Orchestrator) Start() {
	o.notifier.Start()

	if o.syncMode {
		o.logger.Info("pipeline_started", slog.Bool("sync_mode", true))
		return
	}

	o.startStage(string(record.StatusPreprocessing), o.queues[record.StatusPreprocessing], o.cfg.WorkersPreprocess, o.cfg.RetryMaxPreprocess, o.stagePreprocess)
	o.startStage(string(record.StatusOCR), o.queues[record.StatusOCR], o.cfg.WorkersOCR, o.cfg.RetryMaxOCR, o.stageOCR)
	o.startStage(string(record.StatusExtracting), o.queues[record.StatusExtracting], o.cfg.WorkersExtract, o.cfg.RetryMaxExtract, o.stageExtract)
	o.startStage(string(record.StatusValidating), o.queues[record.StatusValidating], o.cfg.WorkersValidate, o.cfg.RetryMaxValidate, o.stageValidate)

	o.wg.Add(1)
	go o.watchdogLoop()

	o.logger.Info("pipeline_started",
		slog.Int("workers_preprocess", o.cfg.WorkersPreprocess),
		slog.Int("workers_ocr", o.cfg.WorkersOCR),
		slog.Int("workers_extract", o.cfg.WorkersExtract),
		slog.Int("workers_validate", o.cfg.WorkersValidate),
	)
}

// Stop cancels every worker and waits for them to exit.
func (o *Orchestrator) Stop() {
	o.logger.Info("pipeline_stopping")
	o.cancel()
	o.wg.Wait()
	o.notifier.Stop()
	o.logger.Info("pipeline_stopped", slog.Int64("total_processed", o.totalProcessed.Load()))
}

// Enqueue registers a freshly uploaded document and, unless syncMode is
// set, schedules it onto the preprocessing queue. The document is created
// in the queued state and immediately transitioned to preprocessing, since
// nothing in this pipeline holds documents in queued state on purpose.
func (o *Orchestrator) Enqueue(ctx context.Context, originalPath, contentHash string) (*record.Document, error) {
	now := time.Now()
	doc := &record.Document{
		ID:           uuid.New(),
		Status:       record.StatusQueued,
		OriginalPath: originalPath,
		ContentHash:  contentHash,
		ModelVersion: o.cfg.PipelineVersion,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.records.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	started := now
	doc, err := attemptTransition(ctx, o.records, doc.ID, record.StatusQueued, record.StatusPreprocessing, func(d *record.Document) {
		d.ProcessingStartedAt = &started
		d.UpdatedAt = time.Now()
	})
	if err != nil {
		return nil, err
	}

	metrics.DocumentsTotal.WithLabelValues(string(record.StatusQueued)).Inc()
	o.notifier.Broadcast(StatusEvent{DocumentID: doc.ID, Status: doc.Status, At: time.Now()})

	if o.syncMode {
		o.stagePreprocess(ctx, doc.ID)
		return o.records.GetDocument(ctx, doc.ID)
	}

	if err := o.push(record.StatusPreprocessing, doc.ID); err != nil {
		return nil, err
	}
	return doc, nil
}

func (o *Orchestrator) push(stage record.DocumentStatus, id uuid.UUID) error {
	select {
	case o.queues[stage] <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

func (o *Orchestrator) startStage(name string, queue chan uuid.UUID, workers, maxRetries int, fn stageFunc) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			metrics.StageWorkersActive.WithLabelValues(name).Inc()
			defer metrics.StageWorkersActive.WithLabelValues(name).Dec()
			for {
				select {
				case <-o.ctx.Done():
					return
				case id := <-queue:
					metrics.StageQueueDepth.WithLabelValues(name).Set(float64(len(queue)))
					o.runStage(name, maxRetries, id, fn)
				}
			}
		}()
	}
}

// stageFunc processes one document for a single stage.
type stageFunc func(ctx context.Context, id uuid.UUID) error

// runStage times one stage attempt, and on failure either requeues the
// document (incrementing its retry count) or, past the stage's retry
// budget, forces it into the failed state.
func (o *Orchestrator) runStage(name string, maxRetries int, id uuid.UUID, fn stageFunc) {
	start := time.Now()
	ctx, span := tracing.StartSpan(o.ctx, fmt.Sprintf("pipeline.%s", name))
	defer span.End()

	err := fn(ctx, id)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err == nil {
		return
	}

	tracing.RecordError(ctx, err)
	metrics.StageFailuresTotal.WithLabelValues(name, reasonOf(err)).Inc()

	doc, getErr := o.records.GetDocument(ctx, id)
	if getErr != nil {
		o.logger.Error("pipeline_stage_document_missing", slog.String("stage", name), slog.String("document_id", id.String()))
		return
	}

	doc.RetryCount++
	doc.ErrorMessage = err.Error()
	doc.UpdatedAt = time.Now()

	if doc.RetryCount > maxRetries {
		o.totalFailed.Add(1)
		doc.Status = record.StatusFailed
		if updErr := o.records.UpdateDocument(ctx, doc); updErr != nil {
			o.logger.Error("pipeline_mark_failed_error", slog.String("document_id", id.String()), slog.String("error", updErr.Error()))
			return
		}
		o.notifier.Broadcast(StatusEvent{DocumentID: id, Status: record.StatusFailed, At: time.Now(), Reason: err.Error()})
		o.logger.Error("pipeline_stage_failed_permanently",
			slog.String("stage", name), slog.String("document_id", id.String()), slog.String("error", err.Error()))
		return
	}

	o.totalRetries.Add(1)
	if updErr := o.records.UpdateDocument(ctx, doc); updErr != nil {
		o.logger.Error("pipeline_retry_update_error", slog.String("document_id", id.String()), slog.String("error", updErr.Error()))
		return
	}
	o.logger.Warn("pipeline_stage_retry",
		slog.String("stage", name), slog.String("document_id", id.String()), slog.Int("retry_count", doc.RetryCount), slog.String("error", err.Error()))

	if pushErr := o.push(doc.Status, id); pushErr != nil {
		o.logger.Error("pipeline_requeue_failed", slog.String("stage", name), slog.String("document_id", id.String()))
	}
}

func reasonOf(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T", err)
}

// Stats reports aggregate orchestrator counters and per-stage queue depths,
// for the debug introspection endpoint.
type Stats struct {
	TotalProcessed int64       `json:"total_processed"`
	TotalFailed    int64       `json:"total_failed"`
	TotalRetries   int64       `json:"total_retries"`
	Stages         []StageStat `json:"stages"`
}

// StageStat is one stage's queue depth, for the debug endpoint.
type StageStat struct {
	Stage      string `json:"stage"`
	QueueDepth int    `json:"queue_depth"`
}

func (o *Orchestrator) Stats() Stats {
	stats := Stats{
		TotalProcessed: o.totalProcessed.Load(),
		TotalFailed:    o.totalFailed.Load(),
		TotalRetries:   o.totalRetries.Load(),
	}
	for _, stage := range []record.DocumentStatus{record.StatusPreprocessing, record.StatusOCR, record.StatusExtracting, record.StatusValidating} {
		stats.Stages = append(stats.Stages, StageStat{Stage: string(stage), QueueDepth: len(o.queues[stage])})
	}
	return stats
}
