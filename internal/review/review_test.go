package review

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
	"github.com/nanahara/auction-sheet-extractor/internal/record"
)

func fullyConfidentRecord() *record.AuctionRecord {
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	score := 4.5
	finalBid := int64(850_000)
	mileage := int64(62_000)

	rec := &record.AuctionRecord{
		ID:           uuid.New(),
		DocumentID:   uuid.New(),
		AuctionDate:  &date,
		AuctionVenue: "USS Tokyo",
		LotNo:        "12345",
		Score:        "4.5",
		ScoreNumeric: &score,
		FinalBidYen:  &finalBid,
		MileageKm:    &mileage,
		Evidence: map[string]record.Evidence{
			string(ocrtypes.KeyLotNo):        {Confidence: 0.95},
			string(ocrtypes.KeyAuctionDate):  {Confidence: 0.95},
			string(ocrtypes.KeyAuctionVenue): {Confidence: 0.95},
			string(ocrtypes.KeyScore):        {Confidence: 0.95},
			string(ocrtypes.KeyFinalBid):     {Confidence: 0.95},
		},
		EvidenceMeta: record.EvidenceMeta{SheetMileageKm: &mileage},
	}
	return rec
}

func TestApply_CleanRecord_NotFlagged(t *testing.T) {
	rec := fullyConfidentRecord()
	Apply(rec)
	assert.False(t, rec.NeedsReview)
	assert.Empty(t, rec.ReviewReason)
}

func TestApply_MissingP0Field_Flagged(t *testing.T) {
	rec := fullyConfidentRecord()
	rec.LotNo = ""
	delete(rec.Evidence, string(ocrtypes.KeyLotNo))

	Apply(rec)
	assert.True(t, rec.NeedsReview)
	assert.Contains(t, rec.ReviewReason, "Missing P0 fields")
	assert.Contains(t, rec.ReviewReason, string(ocrtypes.KeyLotNo))
}

func TestApply_MissingP0Fields_ListsAllMissing(t *testing.T) {
	rec := fullyConfidentRecord()
	rec.AuctionVenue = ""
	rec.Score = ""
	rec.FinalBidYen = nil

	Apply(rec)
	assert.True(t, rec.NeedsReview)
	assert.Contains(t, rec.ReviewReason, string(ocrtypes.KeyAuctionVenue))
	assert.Contains(t, rec.ReviewReason, string(ocrtypes.KeyScore))
	assert.Contains(t, rec.ReviewReason, string(ocrtypes.KeyFinalBid))
}

func TestApply_LowConfidenceP0_Flagged(t *testing.T) {
	rec := fullyConfidentRecord()
	rec.Evidence[string(ocrtypes.KeyAuctionVenue)] = record.Evidence{Confidence: 0.5}

	Apply(rec)
	assert.True(t, rec.NeedsReview)
	assert.Equal(t, "Low confidence on auction_venue", rec.ReviewReason)
}

func TestApply_FinalBidConfidence_FallsBackToBidStart(t *testing.T) {
	rec := fullyConfidentRecord()
	// final_bid confidence itself is low, but bid_start is high enough to cover it.
	rec.Evidence[string(ocrtypes.KeyFinalBid)] = record.Evidence{Confidence: 0.2}
	rec.Evidence[string(ocrtypes.KeyBidStart)] = record.Evidence{Confidence: 0.95}

	Apply(rec)
	assert.False(t, rec.NeedsReview)
}

func TestApply_DomainRangeViolation_AuctionDateTooOld(t *testing.T) {
	rec := fullyConfidentRecord()
	early := time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC)
	rec.AuctionDate = &early

	Apply(rec)
	assert.True(t, rec.NeedsReview)
	assert.Contains(t, rec.ReviewReason, "auction_date out of bounds")
}

func TestApply_DomainRangeViolation_FinalBidOutOfRange(t *testing.T) {
	rec := fullyConfidentRecord()
	zero := int64(0)
	rec.FinalBidYen = &zero

	Apply(rec)
	assert.True(t, rec.NeedsReview)
	assert.Contains(t, rec.ReviewReason, "final_bid_yen out of bounds")
}

func TestApply_DomainRangeViolation_ScoreOutOfRange(t *testing.T) {
	rec := fullyConfidentRecord()
	tooHigh := 7.0
	rec.ScoreNumeric = &tooHigh

	Apply(rec)
	assert.True(t, rec.NeedsReview)
	assert.Contains(t, rec.ReviewReason, "score_numeric out of bounds")
}

func TestApply_DomainRangeViolation_LotNoWithoutDigit(t *testing.T) {
	rec := fullyConfidentRecord()
	rec.LotNo = "ABCDE"

	Apply(rec)
	assert.True(t, rec.NeedsReview)
	assert.Contains(t, rec.ReviewReason, "lot_no has no digit")
}

func TestApply_MileageCrossCheck_DiscrepancyOverThreshold(t *testing.T) {
	rec := fullyConfidentRecord()
	sheetMileage := *rec.MileageKm + 1001

	rec.EvidenceMeta.SheetMileageKm = &sheetMileage

	Apply(rec)
	assert.True(t, rec.NeedsReview)
	assert.Equal(t, "Mileage discrepancy", rec.ReviewReason)
}

func TestApply_MileageCrossCheck_ExactlyAtThreshold_NotFlagged(t *testing.T) {
	rec := fullyConfidentRecord()
	sheetMileage := *rec.MileageKm + mileageDiscrepancyThreshold

	rec.EvidenceMeta.SheetMileageKm = &sheetMileage

	Apply(rec)
	assert.False(t, rec.NeedsReview)
}

func TestApply_MileageCrossCheck_MissingSheetMileageLowConfidence(t *testing.T) {
	rec := fullyConfidentRecord()
	rec.EvidenceMeta.SheetMileageKm = nil
	rec.MileageInferenceConf = 0.5

	Apply(rec)
	assert.True(t, rec.NeedsReview)
	assert.Equal(t, "Mileage requires sheet confirmation", rec.ReviewReason)
}

func TestApply_MileageCrossCheck_MissingSheetMileageHighConfidence_NotFlagged(t *testing.T) {
	rec := fullyConfidentRecord()
	rec.EvidenceMeta.SheetMileageKm = nil
	rec.MileageInferenceConf = 0.95

	Apply(rec)
	assert.False(t, rec.NeedsReview)
}

func TestApply_RuleOrder_MissingTakesPrecedenceOverDomainViolation(t *testing.T) {
	rec := fullyConfidentRecord()
	rec.LotNo = ""
	delete(rec.Evidence, string(ocrtypes.KeyLotNo))
	zero := int64(0)
	rec.FinalBidYen = &zero

	Apply(rec)
	assert.Contains(t, rec.ReviewReason, "Missing P0 fields")
}
