// Package assemble projects a merged FieldSet (header + sheet) onto
// record.AuctionRecord, grounded on
// original_source/backend/worker/ocr/parsing.py's build_record_fields and
// date_parsing.py's Reiwa conversions.
package assemble

import (
	"time"

	"github.com/nanahara/auction-sheet-extractor/internal/fieldparse"
	"github.com/nanahara/auction-sheet-extractor/internal/record"
)

func text(set fieldparse.FieldSet, key string) string {
	f, ok := set.Get(key)
	if !ok {
		return ""
	}
	return f.Value.String()
}

// BuildFields implements build_record_fields: derives every content field
// of an AuctionRecord from the merged header FieldSet and the sheet
// FieldSet. Identity fields (ID, DocumentID, timestamps, PipelineVersion,
// ContentHash) are the pipeline orchestrator's responsibility, set after
// this call returns.
func BuildFields(header, sheet fieldparse.FieldSet) record.AuctionRecord {
	rec := record.AuctionRecord{}

	rec.AuctionDate = parseAuctionDate(text(header, "auction_date"))

	venueRaw := text(header, "auction_venue")
	if venueRaw != "" {
		if v, r, ok := splitVenueRound(venueRaw); ok {
			rec.AuctionVenue = v
			rec.AuctionVenueRound = r
		} else {
			rec.AuctionVenue = venueRaw
		}
	}
	if vr := text(header, "auction_venue_round"); vr != "" {
		rec.AuctionVenueRound = vr
	}

	rec.LotNo = text(header, "lot_no")

	lotGuess, venueGuess, roundGuess := parseLotVenueRound(firstNonEmpty(rec.LotNo, venueRaw, rec.AuctionVenueRound))
	if lotGuess != "" && (rec.LotNo == "" || !isAllDigits(rec.LotNo)) {
		rec.LotNo = lotGuess
	}
	if venueGuess != "" && (rec.AuctionVenue == "" || containsDigit(rec.AuctionVenue)) {
		rec.AuctionVenue = venueGuess
	}
	if roundGuess != "" && (rec.AuctionVenueRound == "" || !isCleanRound(rec.AuctionVenueRound)) {
		rec.AuctionVenueRound = roundGuess
	}

	rec.MakeModel = text(header, "make_model")
	rec.Grade = text(header, "grade")

	rec.ModelYearReiwa = text(header, "model_year")
	rec.ModelYearGregorian = parseReiwaYear(rec.ModelYearReiwa)

	rec.InspectionExpiryRaw = text(header, "inspection")
	rec.InspectionExpiryMonth = parseReiwaYearMonth(rec.InspectionExpiryRaw)

	trans, engineCC := parseShiftEngine(text(header, "shift_engine"))
	rec.Transmission = trans
	rec.EngineCC = engineCC

	mileageText := text(header, "mileage")
	mileageKm, multiplier, conf, raw := parseMileageHeader(mileageText)
	if mileageKm == nil {
		if sheetMileage := text(sheet, "mileage"); sheetMileage != "" {
			mileageKm, multiplier, raw = parseMileage(sheetMileage)
			conf = 0
		}
	}
	rec.MileageKm = mileageKm
	rec.MileageMultiplier = multiplier
	rec.MileageRaw = raw
	rec.MileageInferenceConf = conf

	score, scoreNumeric := parseScore(text(header, "score"))
	rec.Score = score
	rec.ScoreNumeric = scoreNumeric

	rec.Color = text(header, "color")
	rec.ModelCode = text(header, "model_code")

	resultText := text(header, "result")
	switch {
	case containsAny(resultText, "落札"):
		rec.Result = record.ResultSold
	case containsAny(resultText, "流札"):
		rec.Result = record.ResultUnsold
	default:
		if resultText != "" {
			rec.Result = record.ResultOther
		}
	}

	finalBid := parseYen(text(header, "final_bid"))
	startingBid := parseYen(text(header, "starting_bid"))
	if finalBid == nil || startingBid == nil {
		finalPair, startPair := parsePricePair(text(header, "bid_start"))
		if finalBid == nil {
			finalBid = finalPair
		}
		if startingBid == nil {
			startingBid = startPair
		}
	}
	rec.FinalBidYen = finalBid
	rec.StartingBidYen = startingBid

	equipment := fieldparse.ParseEquipment(rec.MakeModel)

	if chassis := text(sheet, "chassis"); chassis != "" {
		rec.ChassisNo = chassis
	}
	if notes := text(sheet, "notes"); notes != "" {
		rec.NotesText = notes
	}
	if options := text(sheet, "options"); options != "" {
		rec.OptionsText = options
	}
	if lane := text(sheet, "lane_type"); lane != "" {
		rec.LaneType = lane
	}
	if sheetEquip := text(sheet, "equipment_codes"); sheetEquip != "" && equipment == "" {
		equipment = sheetEquip
	}
	rec.EquipmentCodes = splitEquipment(equipment)

	var inspectorReport string
	var recycleFeeYen *int64
	if ir := text(sheet, "inspector_report"); ir != "" {
		inspectorReport = ir
	}
	if rf := text(sheet, "recycle_fee"); rf != "" {
		recycleFeeYen = parseYen(rf)
	}
	rec.InspectorNotes = record.InspectorNotes{InspectorReport: inspectorReport, RecycleFeeYen: recycleFeeYen}

	damageText := joinNonEmpty(rec.NotesText, inspectorReport)
	for _, code := range fieldparse.ExtractDamageCodes(damageText) {
		rec.DamageLocations = append(rec.DamageLocations, record.DamageLocation{Code: code})
	}

	return rec
}

// SheetMileage independently resolves the sheet's own mileage reading
// (sheet FieldSet only), for the EvidenceMeta cross-check review.Apply
// reads — distinct from BuildFields' MileageKm, which may have already
// preferred the header's reading.
func SheetMileage(sheet fieldparse.FieldSet) (*int64, string) {
	sheetMileage := text(sheet, "mileage")
	if sheetMileage == "" {
		return nil, ""
	}
	km, _, raw := parseMileage(sheetMileage)
	return km, raw
}

// BuildEvidence converts a FieldSet into the record.Evidence audit trail,
// tagging every entry with which OCR pass it came from.
func BuildEvidence(set fieldparse.FieldSet, source string) map[string]record.Evidence {
	out := make(map[string]record.Evidence, len(set))
	for k, v := range set {
		ev := record.Evidence{
			Value:      v.Value.String(),
			Confidence: v.Confidence,
			Source:     source,
		}
		if v.BBox != nil {
			bbox := [4]float64{v.BBox.X0, v.BBox.Y0, v.BBox.X1, v.BBox.Y1}
			ev.BBox = &bbox
		}
		out[string(k)] = ev
	}
	return out
}

// OverallConfidence is the mean of the header FieldSet's ParsedField
// confidences (SPEC_FULL.md §4.6), computed before the sheet-only fields
// are folded in since those carry no comparable per-token confidence.
func OverallConfidence(header fieldparse.FieldSet) float64 {
	if len(header) == 0 {
		return 0
	}
	var sum float64
	for _, v := range header {
		sum += v.Confidence
	}
	return sum / float64(len(header))
}

func parseAuctionDate(text string) *time.Time {
	if text == "" {
		return nil
	}
	m := auctionDateRe.FindStringSubmatch(fieldparse.NormalizeText(text))
	if m == nil {
		return nil
	}
	year := atoi(m[1])
	if year < 100 {
		year += 2000
	}
	month := atoi(m[2])
	day := atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}
