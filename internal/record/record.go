// Package record defines the persisted shapes this pipeline produces: the
// per-document orchestration unit and the assembled AuctionRecord.
package record

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the pipeline state machine's closed set of states.
type DocumentStatus string

const (
	StatusQueued        DocumentStatus = "queued"
	StatusPreprocessing DocumentStatus = "preprocessing"
	StatusOCR           DocumentStatus = "ocr"
	StatusExtracting    DocumentStatus = "extracting"
	StatusValidating    DocumentStatus = "validating"
	StatusReview        DocumentStatus = "review"
	StatusDone          DocumentStatus = "done"
	StatusFailed        DocumentStatus = "failed"
)

// ROI is the cached region-of-interest geometry for a document, computed
// once during the preprocessing stage and reused on reprocessing.
type ROI struct {
	HeaderBBox [4]float64 `json:"header_bbox"`
	SheetBBox  [4]float64 `json:"sheet_bbox"`
	PhotosBBox [4]float64 `json:"photos_bbox"`
	Version    int        `json:"roi_version"`
}

// Document is the orchestration unit tracked by the pipeline's state
// machine, distinct from the AuctionRecord it eventually produces.
type Document struct {
	ID                   uuid.UUID
	Status               DocumentStatus
	OriginalPath         string
	PreprocessedPath     string
	ROI                  *ROI
	ModelVersion         string
	ContentHash          string
	ErrorMessage         string
	RetryCount           int
	ProcessingStartedAt  *time.Time
	ProcessingCompletedAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Transition reports whether moving from the document's current status to
// `to` is a legal state-machine edge (see SPEC_FULL.md §4.8).
func (d *Document) Transition(to DocumentStatus) bool {
	legal := map[DocumentStatus][]DocumentStatus{
		StatusQueued:        {StatusPreprocessing, StatusFailed},
		StatusPreprocessing: {StatusOCR, StatusFailed, StatusReview},
		StatusOCR:           {StatusExtracting, StatusFailed, StatusReview},
		StatusExtracting:    {StatusValidating, StatusFailed, StatusReview},
		StatusValidating:    {StatusReview, StatusDone, StatusFailed},
		StatusReview:        {StatusQueued},
		StatusDone:          {StatusQueued},
		StatusFailed:        {StatusQueued},
	}
	for _, s := range legal[d.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// Transmission is the closed set of transmission codes the shift/engine
// splitter can recognize.
type Transmission string

const (
	TransmissionAT   Transmission = "AT"
	TransmissionMT   Transmission = "MT"
	TransmissionCVT  Transmission = "CVT"
	TransmissionFA   Transmission = "FA"
	TransmissionCA   Transmission = "CA"
	TransmissionNone Transmission = ""
)

// Result is the closed set of auction outcomes.
type Result string

const (
	ResultSold   Result = "sold"
	ResultUnsold Result = "unsold"
	ResultOther  Result = "other"
)

// DamageLocation is one damage code observed in notes or inspector_report,
// e.g. "A1", "RP2".
type DamageLocation struct {
	Code string `json:"code"`
}

// Evidence is the audit trail for a single derived field: which parser
// produced it, at what confidence, from what image region.
type Evidence struct {
	Value      string   `json:"value"`
	Confidence float64  `json:"confidence"`
	BBox       *[4]float64 `json:"bbox,omitempty"`
	CropPath   string   `json:"crop_path,omitempty"`
	Source     string   `json:"source"`
}

// EvidenceMeta carries cross-field bookkeeping the review policy consults,
// e.g. the sheet-observed mileage used for the header/sheet cross-check.
type EvidenceMeta struct {
	HeaderEngine      string `json:"header_engine,omitempty"`
	SheetEngine       string `json:"sheet_engine,omitempty"`
	SheetMileageKm    *int64 `json:"sheet_mileage_km,omitempty"`
	SheetMileageRaw   string `json:"sheet_mileage_raw,omitempty"`
}

// InspectorNotes groups the free-text sheet fields that accompany a record.
type InspectorNotes struct {
	InspectorReport string `json:"inspector_report,omitempty"`
	RecycleFeeYen   *int64 `json:"recycle_fee_yen,omitempty"`
}

// AuctionRecord is the final, assembled output of the extraction pipeline
// for one document.
type AuctionRecord struct {
	ID         uuid.UUID
	DocumentID uuid.UUID

	AuctionDate       *time.Time
	AuctionVenue      string
	AuctionVenueRound string
	LotNo             string

	Make     string
	Model    string
	MakeModel string
	Grade    string
	ModelCode string
	ChassisNo string

	MakeJA, MakeEN   string
	ModelJA, ModelEN string

	Year                  *int
	ModelYearReiwa        string
	ModelYearGregorian    *int
	InspectionExpiryRaw   string
	InspectionExpiryMonth *time.Time

	EngineCC     *int
	Transmission Transmission

	MileageKm           *int64
	MileageMultiplier   int
	MileageRaw          string
	MileageInferenceConf float64

	Score        string
	ScoreNumeric *float64

	Color  string
	Result Result

	StartingBidYen *int64
	FinalBidYen    *int64
	// StartingBidMan/FinalBidMan mirror the source schema's generated
	// columns (value / 10000); computed on read, never stored.

	LaneType        string
	EquipmentCodes  []string
	NotesText       string
	OptionsText     string
	FullText        string
	InspectorNotes  InspectorNotes
	DamageLocations []DamageLocation

	Evidence          map[string]Evidence
	EvidenceMeta      EvidenceMeta
	NeedsReview       bool
	ReviewReason      string
	OverallConfidence float64

	PipelineVersion string
	ContentHash     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StartingBidMan returns StartingBidYen/10000, mirroring the computed
// `starting_bid_man` column of the reference schema.
func (r *AuctionRecord) StartingBidMan() *int64 {
	return manOf(r.StartingBidYen)
}

// FinalBidMan returns FinalBidYen/10000, mirroring `final_bid_man`.
func (r *AuctionRecord) FinalBidMan() *int64 {
	return manOf(r.FinalBidYen)
}

func manOf(yen *int64) *int64 {
	if yen == nil {
		return nil
	}
	v := *yen / 10000
	return &v
}

// SearchText concatenates the fields the reference schema indexes for
// full-text search (fts_vector_en / search_text) into one string. Building
// an actual tsvector is the record store's job (Postgres `to_tsvector`);
// this is the plain-text input to that computation.
func (r *AuctionRecord) SearchText() string {
	parts := []string{r.LotNo, r.AuctionVenue, r.MakeModel, r.Grade, r.ModelCode, r.ChassisNo, r.ModelEN, r.MakeEN, r.FullText}
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}
