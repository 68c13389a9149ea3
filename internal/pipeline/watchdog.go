package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nanahara/auction-sheet-extractor/internal/config"
	"github.com/nanahara/auction-sheet-extractor/internal/metrics"
	"github.com/nanahara/auction-sheet-extractor/internal/record"
)

// watchdogStates are the statuses the watchdog scans; review/done/failed/
// queued are resting states with no stuck-document risk.
var watchdogStates = []record.DocumentStatus{
	record.StatusPreprocessing,
	record.StatusOCR,
	record.StatusExtracting,
	record.StatusValidating,
}

// watchdogLoop implements original_source's watchdog task: on each tick,
// scan every in-flight status for documents whose processing_started_at is
// older than that state's threshold and force them into review, the same
// ticker-driven shape as the teacher's broker.broadcastLoop but authored
// fresh since no teacher file already does a polling scan.
func (o *Orchestrator) watchdogLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.WatchdogPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.sweepStuckDocuments(o.ctx)
		}
	}
}

func (o *Orchestrator) sweepStuckDocuments(ctx context.Context) {
	for _, status := range watchdogStates {
		threshold, ok := config.WatchdogThresholds[string(status)]
		if !ok {
			continue
		}

		stuck, err := o.records.ListStuckDocuments(ctx, status, int64(threshold.Seconds()))
		if err != nil {
			o.logger.Error("pipeline_watchdog_scan_error", slog.String("status", string(status)), slog.String("error", err.Error()))
			continue
		}

		for _, doc := range stuck {
			o.forceReview(ctx, doc, status)
		}
	}
}

func (o *Orchestrator) forceReview(ctx context.Context, doc *record.Document, stuckState record.DocumentStatus) {
	reason := "Stuck in " + string(stuckState)
	_, err := attemptTransition(ctx, o.records, doc.ID, stuckState, record.StatusReview, func(d *record.Document) {
		d.ErrorMessage = reason
		d.UpdatedAt = time.Now()
	})
	if err != nil {
		o.logger.Error("pipeline_watchdog_force_review_error",
			slog.String("document_id", doc.ID.String()), slog.String("error", err.Error()))
		return
	}

	metrics.DocumentsStuckTotal.WithLabelValues(string(stuckState)).Inc()
	o.notifier.Broadcast(StatusEvent{DocumentID: doc.ID, Status: record.StatusReview, At: time.Now(), Reason: reason})
	o.logger.Warn("pipeline_watchdog_forced_review", slog.String("document_id", doc.ID.String()), slog.String("stuck_state", string(stuckState)))
}
