// Package review applies the four-rule review policy (SPEC_FULL.md §4.7)
// to an assembled AuctionRecord: missing P0 fields, low P0 confidence,
// domain-range violations, and a header/sheet mileage cross-check.
package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
	"github.com/nanahara/auction-sheet-extractor/internal/record"
)

const lowConfidenceThreshold = 0.9

// mileageDiscrepancyThreshold resolves spec §9 Open Question 1: the
// authoritative cross-check threshold is 1000, not the legacy tool's 500
// (a delta of exactly 1000 is NOT a discrepancy; 1001 is).
const mileageDiscrepancyThreshold = 1000

// p0Fields is the closed set the missing/low-confidence rules scan, in
// the order the spec lists them (also the order reported in rule 1's
// comma-joined message).
var p0Fields = []string{
	string(ocrtypes.KeyLotNo),
	string(ocrtypes.KeyAuctionDate),
	string(ocrtypes.KeyAuctionVenue),
	string(ocrtypes.KeyScore),
	string(ocrtypes.KeyFinalBid),
}

// Apply runs the rule chain and sets rec.NeedsReview/ReviewReason from the
// first rule that fires; it leaves both false/empty if none do.
func Apply(rec *record.AuctionRecord) {
	if reason, ok := missingP0Fields(rec); ok {
		flag(rec, reason)
		return
	}
	if reason, ok := lowConfidenceP0(rec); ok {
		flag(rec, reason)
		return
	}
	if reason, ok := domainRangeViolation(rec); ok {
		flag(rec, reason)
		return
	}
	if reason, ok := mileageCrossCheck(rec); ok {
		flag(rec, reason)
		return
	}
	rec.NeedsReview = false
	rec.ReviewReason = ""
}

func flag(rec *record.AuctionRecord, reason string) {
	rec.NeedsReview = true
	rec.ReviewReason = reason
}

func missingP0Fields(rec *record.AuctionRecord) (string, bool) {
	var missing []string
	if rec.LotNo == "" {
		missing = append(missing, string(ocrtypes.KeyLotNo))
	}
	if rec.AuctionDate == nil {
		missing = append(missing, string(ocrtypes.KeyAuctionDate))
	}
	if rec.AuctionVenue == "" {
		missing = append(missing, string(ocrtypes.KeyAuctionVenue))
	}
	if rec.Score == "" {
		missing = append(missing, string(ocrtypes.KeyScore))
	}
	if rec.FinalBidYen == nil {
		missing = append(missing, string(ocrtypes.KeyFinalBid))
	}
	if len(missing) == 0 {
		return "", false
	}
	return fmt.Sprintf("Missing P0 fields: %s", strings.Join(missing, ", ")), true
}

func lowConfidenceP0(rec *record.AuctionRecord) (string, bool) {
	for _, key := range p0Fields {
		conf := fieldConfidence(rec, key)
		if conf < lowConfidenceThreshold {
			return fmt.Sprintf("Low confidence on %s", key), true
		}
	}
	return "", false
}

// fieldConfidence looks up an evidence confidence by field key; final_bid
// uses max(final_bid.confidence, bid_start.confidence) per the resolved
// Open Question 2.
func fieldConfidence(rec *record.AuctionRecord, key string) float64 {
	if key == string(ocrtypes.KeyFinalBid) {
		finalConf := evidenceConfidence(rec, string(ocrtypes.KeyFinalBid))
		bidStartConf := evidenceConfidence(rec, string(ocrtypes.KeyBidStart))
		if bidStartConf > finalConf {
			return bidStartConf
		}
		return finalConf
	}
	return evidenceConfidence(rec, key)
}

func evidenceConfidence(rec *record.AuctionRecord, key string) float64 {
	if rec.Evidence == nil {
		return 0
	}
	ev, ok := rec.Evidence[key]
	if !ok {
		return 0
	}
	return ev.Confidence
}

func domainRangeViolation(rec *record.AuctionRecord) (string, bool) {
	if rec.AuctionDate != nil {
		year := rec.AuctionDate.Year()
		if year < 1990 || year > time.Now().Year()+1 {
			return "Domain range violation: auction_date out of bounds", true
		}
	}
	if rec.FinalBidYen != nil {
		v := *rec.FinalBidYen
		if v <= 0 || v > 1_000_000_000 {
			return "Domain range violation: final_bid_yen out of bounds", true
		}
	}
	if rec.ScoreNumeric != nil {
		v := *rec.ScoreNumeric
		if v < 0 || v > 6 {
			return "Domain range violation: score_numeric out of bounds", true
		}
	}
	if rec.LotNo != "" && !containsDigit(rec.LotNo) {
		return "Domain range violation: lot_no has no digit", true
	}
	return "", false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func mileageCrossCheck(rec *record.AuctionRecord) (string, bool) {
	headerMileage := rec.MileageKm
	sheetMileage := rec.EvidenceMeta.SheetMileageKm
	if headerMileage != nil && sheetMileage != nil {
		diff := *headerMileage - *sheetMileage
		if diff < 0 {
			diff = -diff
		}
		if diff > mileageDiscrepancyThreshold {
			return "Mileage discrepancy", true
		}
		return "", false
	}
	if headerMileage != nil && sheetMileage == nil && rec.MileageInferenceConf < lowConfidenceThreshold {
		return "Mileage requires sheet confirmation", true
	}
	return "", false
}
