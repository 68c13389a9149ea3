package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ==========================================================================
	// HTTP Metrics
	// ==========================================================================
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// ==========================================================================
	// Database Metrics
	// ==========================================================================
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_total",
			Help: "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// ==========================================================================
	// Pipeline / Document Metrics
	// ==========================================================================
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_total",
			Help: "Total number of documents ingested",
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	StageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_failures_total",
			Help: "Total number of stage failures",
		},
		[]string{"stage", "reason"},
	)

	StageQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_stage_queue_depth",
			Help: "Current depth of each stage's queue",
		},
		[]string{"stage"},
	)

	StageWorkersActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_stage_workers_active",
			Help: "Number of active workers per stage",
		},
		[]string{"stage"},
	)

	DocumentsStuckTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_watchdog_stuck_total",
			Help: "Documents the watchdog forced into review",
		},
		[]string{"stuck_state"},
	)

	// ==========================================================================
	// OCR Engine Metrics
	// ==========================================================================
	OCREngineCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_engine_calls_total",
			Help: "Total OCR engine invocations",
		},
		[]string{"engine", "crop", "outcome"}, // outcome: ok, error
	)

	OCREngineLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_engine_latency_seconds",
			Help:    "OCR engine call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"engine", "crop"},
	)

	OCRFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_fallbacks_total",
			Help: "Total times the OCR router fell back past the primary engine",
		},
		[]string{"crop", "fallback"},
	)

	// ==========================================================================
	// Review Metrics
	// ==========================================================================
	ReviewFlaggedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_flagged_total",
			Help: "Total records flagged for review by reason",
		},
		[]string{"reason"},
	)

	OverallConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "record_overall_confidence",
			Help:    "Distribution of assembled record overall confidence",
			Buckets: []float64{0, .1, .2, .3, .4, .5, .6, .7, .8, .9, 1},
		},
	)

	// ==========================================================================
	// Object Storage Metrics
	// ==========================================================================
	StorageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_ops_total",
			Help: "Total object storage operations",
		},
		[]string{"op", "status"},
	)

	// ==========================================================================
	// SSE / Notify Metrics
	// ==========================================================================
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	SSEMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_messages_sent_total",
			Help: "Total SSE messages sent",
		},
		[]string{"event_type"},
	)

	// ==========================================================================
	// External API Metrics
	// ==========================================================================
	ExternalAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_api_calls_total",
			Help: "Total external API calls",
		},
		[]string{"service", "endpoint", "status"},
	)

	ExternalAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_api_latency_seconds",
			Help:    "External API call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "endpoint"},
	)
)
