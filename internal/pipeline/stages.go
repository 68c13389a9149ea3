package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nanahara/auction-sheet-extractor/internal/assemble"
	"github.com/nanahara/auction-sheet-extractor/internal/fieldmerge"
	"github.com/nanahara/auction-sheet-extractor/internal/fieldparse"
	"github.com/nanahara/auction-sheet-extractor/internal/metrics"
	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
	"github.com/nanahara/auction-sheet-extractor/internal/pipelineerr"
	"github.com/nanahara/auction-sheet-extractor/internal/preprocess"
	"github.com/nanahara/auction-sheet-extractor/internal/record"
	"github.com/nanahara/auction-sheet-extractor/internal/review"
	"github.com/nanahara/auction-sheet-extractor/internal/roi"
)

// stagePreprocess implements original_source's preprocess task: decode the
// raw upload, run the normalization pipeline, detect ROI geometry, and
// persist both the normalized image and the ROI before handing the
// document to the ocr stage.
func (o *Orchestrator) stagePreprocess(ctx context.Context, id uuid.UUID) error {
	doc, err := o.records.GetDocument(ctx, id)
	if err != nil {
		return &pipelineerr.RecordStoreError{Op: "get_document", Cause: err}
	}

	raw, err := o.objects.Get(ctx, doc.OriginalPath)
	if err != nil {
		return &pipelineerr.StorageError{Op: "get", Key: doc.OriginalPath, Cause: err}
	}

	img, err := o.preproc.Run(raw)
	if err != nil {
		return err
	}

	geometry, roiErr := o.detector.Detect(img)
	if roiErr != nil {
		o.logger.Warn("pipeline_roi_fallback", slog.String("document_id", id.String()), slog.String("reason", roiErr.Error()))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode preprocessed image: %w", err)
	}
	preprocessedPath := doc.OriginalPath + ".preprocessed.png"
	if err := o.objects.Put(ctx, preprocessedPath, buf.Bytes(), "image/png"); err != nil {
		return &pipelineerr.StorageError{Op: "put", Key: preprocessedPath, Cause: err}
	}

	_, err = attemptTransition(ctx, o.records, id, record.StatusPreprocessing, record.StatusOCR, func(d *record.Document) {
		d.PreprocessedPath = preprocessedPath
		d.ROI = geometry
		d.UpdatedAt = time.Now()
	})
	if err != nil {
		return err
	}

	o.notifier.Broadcast(StatusEvent{DocumentID: id, Status: record.StatusOCR, At: time.Now()})
	return o.advance(record.StatusOCR, id, o.stageOCR)
}

// stageOCR implements the ocr task: crop the header and sheet regions out
// of the preprocessed image and run them through the two-stage VL/line-OCR
// router. The raw tokens are cached in-process for the extracting stage —
// they are a transient intermediate, not part of the persisted schema.
func (o *Orchestrator) stageOCR(ctx context.Context, id uuid.UUID) error {
	doc, err := o.records.GetDocument(ctx, id)
	if err != nil {
		return &pipelineerr.RecordStoreError{Op: "get_document", Cause: err}
	}
	if doc.ROI == nil {
		return &pipelineerr.RoiError{Reason: "document has no ROI geometry"}
	}

	raw, err := o.objects.Get(ctx, doc.PreprocessedPath)
	if err != nil {
		return &pipelineerr.StorageError{Op: "get", Key: doc.PreprocessedPath, Cause: err}
	}
	img, err := preprocess.Decode(raw)
	if err != nil {
		return err
	}

	lang := o.cfg.OCRLanguage
	headerCrop := roi.Crop(img, doc.ROI.HeaderBBox)
	sheetCrop := roi.Crop(img, doc.ROI.SheetBBox)

	headerRes, err := o.router.RunHeader(ctx, headerCrop, lang, bboxOf(doc.ROI.HeaderBBox))
	if err != nil {
		return err
	}
	sheetRes, err := o.router.RunSheet(ctx, sheetCrop, lang, bboxOf(doc.ROI.SheetBBox))
	if err != nil {
		return err
	}

	o.ocrCacheMu.Lock()
	o.ocrCache[id] = ocrBundle{
		headerTokens:     headerRes.Tokens,
		headerTableCells: headerRes.Meta.TableCells,
		headerEngine:     headerRes.Engine,
		sheetTokens:      sheetRes.Tokens,
		sheetEngine:      sheetRes.Engine,
	}
	o.ocrCacheMu.Unlock()

	_, err = attemptTransition(ctx, o.records, id, record.StatusOCR, record.StatusExtracting, func(d *record.Document) {
		d.UpdatedAt = time.Now()
	})
	if err != nil {
		return err
	}

	o.notifier.Broadcast(StatusEvent{DocumentID: id, Status: record.StatusExtracting, At: time.Now()})
	return o.advance(record.StatusExtracting, id, o.stageExtract)
}

func bboxOf(b [4]float64) ocrtypes.BBox {
	return ocrtypes.BBox{X0: b[0], Y0: b[1], X1: b[2], Y1: b[3]}
}

// stageExtract implements the extract task: run every header sub-parser,
// merge their hypotheses per §4.5, parse the sheet, and assemble the
// content fields of an AuctionRecord. The merged FieldSets are converted
// into the record's Evidence audit trail so the validating stage's review
// policy can read per-field confidence.
func (o *Orchestrator) stageExtract(ctx context.Context, id uuid.UUID) error {
	o.ocrCacheMu.Lock()
	bundle, ok := o.ocrCache[id]
	o.ocrCacheMu.Unlock()
	if !ok {
		return fmt.Errorf("pipeline: no cached ocr bundle for document %s", id)
	}

	doc, err := o.records.GetDocument(ctx, id)
	if err != nil {
		return &pipelineerr.RecordStoreError{Op: "get_document", Cause: err}
	}

	tableFields := fieldparse.ParseHeaderTableCells(bundle.headerTableCells)
	labelFields := fieldparse.ParseHeaderLabelNeighborhood(bundle.headerTokens)
	combinedFields := fieldparse.ParseHeaderCombinedToken(bundle.headerTokens)
	patternFields := fieldparse.ParseHeaderPatternScan(bundle.headerTokens)

	merged := fieldmerge.Merge(tableFields, labelFields, combinedFields)
	merged = fieldmerge.OverlayPatternScan(merged, patternFields)

	sheetFields := fieldparse.ParseSheet(bundle.sheetTokens)

	rec := assemble.BuildFields(merged, sheetFields)
	rec.ID = uuid.New()
	rec.DocumentID = id
	rec.PipelineVersion = o.cfg.PipelineVersion
	rec.ContentHash = doc.ContentHash
	rec.OverallConfidence = assemble.OverallConfidence(merged)

	evidence := assemble.BuildEvidence(merged, "header")
	for k, v := range assemble.BuildEvidence(sheetFields, "sheet") {
		if _, exists := evidence[k]; !exists {
			evidence[k] = v
		}
	}
	rec.Evidence = evidence

	sheetMileageKm, sheetMileageRaw := assemble.SheetMileage(sheetFields)
	rec.EvidenceMeta = record.EvidenceMeta{
		HeaderEngine:    bundle.headerEngine,
		SheetEngine:     bundle.sheetEngine,
		SheetMileageKm:  sheetMileageKm,
		SheetMileageRaw: sheetMileageRaw,
	}

	o.extractCacheMu.Lock()
	o.extractCache[id] = extractBundle{rec: rec}
	o.extractCacheMu.Unlock()

	o.ocrCacheMu.Lock()
	delete(o.ocrCache, id)
	o.ocrCacheMu.Unlock()

	_, err = attemptTransition(ctx, o.records, id, record.StatusExtracting, record.StatusValidating, func(d *record.Document) {
		d.UpdatedAt = time.Now()
	})
	if err != nil {
		return err
	}

	o.notifier.Broadcast(StatusEvent{DocumentID: id, Status: record.StatusValidating, At: time.Now()})
	return o.advance(record.StatusValidating, id, o.stageValidate)
}

// stageValidate implements the validate task: apply the review policy,
// persist the assembled record, and land the document in review or done.
func (o *Orchestrator) stageValidate(ctx context.Context, id uuid.UUID) error {
	o.extractCacheMu.Lock()
	bundle, ok := o.extractCache[id]
	o.extractCacheMu.Unlock()
	if !ok {
		return fmt.Errorf("pipeline: no cached extraction for document %s", id)
	}

	rec := bundle.rec
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	review.Apply(&rec)

	if err := o.records.UpsertAuctionRecord(ctx, &rec); err != nil {
		return &pipelineerr.RecordStoreError{Op: "upsert_auction_record", Cause: err}
	}

	finalStatus := record.StatusDone
	if rec.NeedsReview {
		finalStatus = record.StatusReview
		metrics.ReviewFlaggedTotal.WithLabelValues(reviewReasonCategory(rec.ReviewReason)).Inc()
	}
	metrics.OverallConfidence.Observe(rec.OverallConfidence)

	completed := now
	_, err := attemptTransition(ctx, o.records, id, record.StatusValidating, finalStatus, func(d *record.Document) {
		d.ProcessingCompletedAt = &completed
		d.UpdatedAt = now
	})
	if err != nil {
		return err
	}

	o.extractCacheMu.Lock()
	delete(o.extractCache, id)
	o.extractCacheMu.Unlock()

	o.totalProcessed.Add(1)
	metrics.DocumentsTotal.WithLabelValues(string(finalStatus)).Inc()
	o.notifier.Broadcast(StatusEvent{DocumentID: id, Status: finalStatus, At: now})
	return nil
}

// reviewReasonCategory collapses review.Apply's free-text reason down to
// the fixed rule name that produced it, so it stays a low-cardinality
// metric label instead of one series per distinct missing-field list.
func reviewReasonCategory(reason string) string {
	switch {
	case strings.HasPrefix(reason, "Missing P0 fields"):
		return "missing_p0"
	case strings.HasPrefix(reason, "Low confidence"):
		return "low_confidence_p0"
	case strings.HasPrefix(reason, "Domain range violation"):
		return "domain_range"
	case strings.HasPrefix(reason, "Mileage"):
		return "mileage_cross_check"
	default:
		return "other"
	}
}

// advance runs the next stage inline in sync mode, or otherwise pushes the
// document onto the next stage's queue for the worker pool.
func (o *Orchestrator) advance(stage record.DocumentStatus, id uuid.UUID, fn stageFunc) error {
	if !o.syncMode {
		return o.push(stage, id)
	}
	return fn(o.ctx, id)
}
