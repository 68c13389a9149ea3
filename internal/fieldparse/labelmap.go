package fieldparse

import "regexp"

// parserKey names the intermediate header/sheet field keys this package
// produces. The assembler (internal/assemble) maps these onto
// ocrtypes.FieldKey / record.AuctionRecord fields.
type parserKey string

const (
	keyAuctionDate       parserKey = "auction_date"
	keyAuctionVenue      parserKey = "auction_venue"
	keyAuctionVenueRound parserKey = "auction_venue_round"
	keyLotNo             parserKey = "lot_no"
	keyMakeModel         parserKey = "make_model"
	keyGrade             parserKey = "grade"
	keyModelYear         parserKey = "model_year"
	keyShiftEngine       parserKey = "shift_engine"
	keyMileage           parserKey = "mileage"
	keyInspection        parserKey = "inspection"
	keyColor             parserKey = "color"
	keyModelCode         parserKey = "model_code"
	keyResult            parserKey = "result"
	keyStartingBid       parserKey = "starting_bid"
	keyFinalBid          parserKey = "final_bid"
	keyBidStart          parserKey = "bid_start"
	keyScore             parserKey = "score"

	keyChassis         parserKey = "chassis"
	keyRecycleFee      parserKey = "recycle_fee"
	keyInspectorReport parserKey = "inspector_report"
	keyNotes           parserKey = "notes"
	keyOptions         parserKey = "options"
	keyEquipmentCodes  parserKey = "equipment_codes"
	keyLaneType        parserKey = "lane_type"
)

// labelMap mirrors parsing.py's LABEL_MAP: parser key -> label regexes.
var labelMap = map[parserKey][]*regexp.Regexp{
	keyAuctionDate:       {regexp.MustCompile(`開催日`)},
	keyAuctionVenue:      {regexp.MustCompile(`会場`)},
	keyAuctionVenueRound: {regexp.MustCompile(`開催回`)},
	keyLotNo:             {regexp.MustCompile(`出品番号`)},
	keyMakeModel:         {regexp.MustCompile(`車種名`), regexp.MustCompile(`車種名/グレード`)},
	keyGrade:             {regexp.MustCompile(`グレード`)},
	keyModelYear:         {regexp.MustCompile(`年式`)},
	keyShiftEngine:       {regexp.MustCompile(`シフト/排気量`)},
	keyMileage:           {regexp.MustCompile(`走行`)},
	keyInspection:        {regexp.MustCompile(`車検`)},
	keyColor:             {regexp.MustCompile(`色`)},
	keyModelCode:         {regexp.MustCompile(`型式`)},
	keyResult:            {regexp.MustCompile(`セリ結果`)},
	keyStartingBid:       {regexp.MustCompile(`応札額`), regexp.MustCompile(`スタート金額`), regexp.MustCompile(`スタート`)},
	keyFinalBid:          {regexp.MustCompile(`落札`)},
	keyBidStart:          {regexp.MustCompile(`応札額`), regexp.MustCompile(`スタート金額`)},
	keyScore:             {regexp.MustCompile(`評価点`)},
}

// equipmentVocabulary is the fixed equipment-code presence-scan set.
var equipmentVocabulary = []string{"AAC", "ナビ", "SR", "AW", "革", "PS", "PW", "DR"}
