package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nanahara/auction-sheet-extractor/internal/metrics"
	"github.com/nanahara/auction-sheet-extractor/internal/record"
	"github.com/nanahara/auction-sheet-extractor/internal/tracing"
)

// PgxRecordStore is the Postgres-backed RecordStore, grounded on the
// teacher's pgxpool transaction usage (processor.go's tx.Begin / Rollback /
// Commit / RETURNING pattern).
type PgxRecordStore struct {
	db *pgxpool.Pool
}

func NewPgxRecordStore(db *pgxpool.Pool) *PgxRecordStore {
	return &PgxRecordStore{db: db}
}

func (s *PgxRecordStore) CreateDocument(ctx context.Context, doc *record.Document) error {
	ctx, span := tracing.StartSpan(ctx, "db.document.create")
	defer span.End()
	start := time.Now()
	defer func() { metrics.DBQueryDuration.WithLabelValues("insert", "documents").Observe(time.Since(start).Seconds()) }()

	roiJSON, err := marshalROI(doc.ROI)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (
			id, status, original_path, preprocessed_path, roi, model_version,
			content_hash, error_message, retry_count, processing_started_at,
			processing_completed_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		doc.ID, doc.Status, doc.OriginalPath, doc.PreprocessedPath, roiJSON,
		doc.ModelVersion, doc.ContentHash, doc.ErrorMessage, doc.RetryCount,
		doc.ProcessingStartedAt, doc.ProcessingCompletedAt, doc.CreatedAt, doc.UpdatedAt,
	)
	metrics.DBQueryTotal.WithLabelValues("insert", "documents").Inc()
	if isUniqueViolation(err) {
		return ErrDuplicateContentHash
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

func (s *PgxRecordStore) GetDocument(ctx context.Context, id uuid.UUID) (*record.Document, error) {
	ctx, span := tracing.StartSpan(ctx, "db.document.get")
	defer span.End()

	row := s.db.QueryRow(ctx, `
		SELECT id, status, original_path, preprocessed_path, roi, model_version,
		       content_hash, error_message, retry_count, processing_started_at,
		       processing_completed_at, created_at, updated_at
		FROM documents WHERE id = $1
	`, id)
	metrics.DBQueryTotal.WithLabelValues("select", "documents").Inc()

	doc, err := scanDocument(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return doc, nil
}

func (s *PgxRecordStore) FindDocumentByContentHash(ctx context.Context, hash string) (*record.Document, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, status, original_path, preprocessed_path, roi, model_version,
		       content_hash, error_message, retry_count, processing_started_at,
		       processing_completed_at, created_at, updated_at
		FROM documents WHERE content_hash = $1
	`, hash)
	doc, err := scanDocument(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return doc, err
}

func (s *PgxRecordStore) UpdateDocument(ctx context.Context, doc *record.Document) error {
	ctx, span := tracing.StartSpan(ctx, "db.document.update")
	defer span.End()

	roiJSON, err := marshalROI(doc.ROI)
	if err != nil {
		return err
	}

	doc.UpdatedAt = time.Now()
	tag, err := s.db.Exec(ctx, `
		UPDATE documents SET
			status = $1, preprocessed_path = $2, roi = $3, error_message = $4,
			retry_count = $5, processing_started_at = $6, processing_completed_at = $7,
			updated_at = $8
		WHERE id = $9
	`,
		doc.Status, doc.PreprocessedPath, roiJSON, doc.ErrorMessage, doc.RetryCount,
		doc.ProcessingStartedAt, doc.ProcessingCompletedAt, doc.UpdatedAt, doc.ID,
	)
	metrics.DBQueryTotal.WithLabelValues("update", "documents").Inc()
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgxRecordStore) ListStuckDocuments(ctx context.Context, status record.DocumentStatus, olderThanSeconds int64) ([]*record.Document, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, status, original_path, preprocessed_path, roi, model_version,
		       content_hash, error_message, retry_count, processing_started_at,
		       processing_completed_at, created_at, updated_at
		FROM documents
		WHERE status = $1 AND processing_started_at < now() - make_interval(secs => $2)
	`, status, olderThanSeconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*record.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PgxRecordStore) UpsertAuctionRecord(ctx context.Context, rec *record.AuctionRecord) error {
	ctx, span := tracing.StartSpan(ctx, "db.auction_record.upsert")
	defer span.End()

	evidenceJSON, err := json.Marshal(rec.Evidence)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(rec.EvidenceMeta)
	if err != nil {
		return err
	}
	equipJSON, err := json.Marshal(rec.EquipmentCodes)
	if err != nil {
		return err
	}
	damageJSON, err := json.Marshal(rec.DamageLocations)
	if err != nil {
		return err
	}
	notesJSON, err := json.Marshal(rec.InspectorNotes)
	if err != nil {
		return err
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.UpdatedAt = time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO auction_records (
			id, document_id, auction_date, auction_venue, auction_venue_round, lot_no,
			make, model, make_model, grade, model_code, chassis_no,
			make_ja, make_en, model_ja, model_en,
			year, model_year_reiwa, model_year_gregorian,
			inspection_expiry_raw, inspection_expiry_month,
			engine_cc, transmission, mileage_km, mileage_multiplier, mileage_raw,
			mileage_inference_conf, score, score_numeric, color, result,
			starting_bid_yen, final_bid_yen, lane_type, equipment_codes,
			notes_text, options_text, full_text, inspector_notes, damage_locations,
			evidence, evidence_meta, needs_review, review_reason, overall_confidence,
			pipeline_version, content_hash, created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,
			$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36,$37,$38,$39,$40,
			$41,$42,$43,$44,$45,$46,$47,$48,$49
		)
		ON CONFLICT (document_id) DO UPDATE SET
			auction_date = EXCLUDED.auction_date,
			auction_venue = EXCLUDED.auction_venue,
			auction_venue_round = EXCLUDED.auction_venue_round,
			lot_no = EXCLUDED.lot_no,
			needs_review = EXCLUDED.needs_review,
			review_reason = EXCLUDED.review_reason,
			overall_confidence = EXCLUDED.overall_confidence,
			evidence = EXCLUDED.evidence,
			evidence_meta = EXCLUDED.evidence_meta,
			updated_at = EXCLUDED.updated_at
	`,
		rec.ID, rec.DocumentID, rec.AuctionDate, rec.AuctionVenue, rec.AuctionVenueRound, rec.LotNo,
		rec.Make, rec.Model, rec.MakeModel, rec.Grade, rec.ModelCode, rec.ChassisNo,
		rec.MakeJA, rec.MakeEN, rec.ModelJA, rec.ModelEN,
		rec.Year, rec.ModelYearReiwa, rec.ModelYearGregorian,
		rec.InspectionExpiryRaw, rec.InspectionExpiryMonth,
		rec.EngineCC, string(rec.Transmission), rec.MileageKm, rec.MileageMultiplier, rec.MileageRaw,
		rec.MileageInferenceConf, rec.Score, rec.ScoreNumeric, rec.Color, string(rec.Result),
		rec.StartingBidYen, rec.FinalBidYen, rec.LaneType, equipJSON,
		rec.NotesText, rec.OptionsText, rec.FullText, notesJSON, damageJSON,
		evidenceJSON, metaJSON, rec.NeedsReview, rec.ReviewReason, rec.OverallConfidence,
		rec.PipelineVersion, rec.ContentHash, rec.CreatedAt, rec.UpdatedAt,
	)
	metrics.DBQueryTotal.WithLabelValues("upsert", "auction_records").Inc()
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

func (s *PgxRecordStore) GetAuctionRecordByDocument(ctx context.Context, documentID uuid.UUID) (*record.AuctionRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, document_id, auction_venue, lot_no, needs_review, review_reason, overall_confidence
		FROM auction_records WHERE document_id = $1
	`, documentID)

	var rec record.AuctionRecord
	err := row.Scan(&rec.ID, &rec.DocumentID, &rec.AuctionVenue, &rec.LotNo, &rec.NeedsReview, &rec.ReviewReason, &rec.OverallConfidence)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*record.Document, error) {
	var doc record.Document
	var roiJSON []byte
	if err := row.Scan(
		&doc.ID, &doc.Status, &doc.OriginalPath, &doc.PreprocessedPath, &roiJSON,
		&doc.ModelVersion, &doc.ContentHash, &doc.ErrorMessage, &doc.RetryCount,
		&doc.ProcessingStartedAt, &doc.ProcessingCompletedAt, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	roi, err := unmarshalROI(roiJSON)
	if err != nil {
		return nil, err
	}
	doc.ROI = roi
	return &doc, nil
}

func marshalROI(roi *record.ROI) ([]byte, error) {
	if roi == nil {
		return []byte("null"), nil
	}
	return json.Marshal(roi)
}

func unmarshalROI(data []byte) (*record.ROI, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var roi record.ROI
	if err := json.Unmarshal(data, &roi); err != nil {
		return nil, err
	}
	return &roi, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	type sqlStater interface{ SQLState() string }
	if pgErr, ok := err.(sqlStater); ok {
		return pgErr.SQLState() == "23505"
	}
	return false
}
