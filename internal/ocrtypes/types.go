// Package ocrtypes holds the data types shared by every stage of the
// extraction pipeline: OCR tokens, parsed field values, and the field map
// that parsers populate and the merger arbitrates over.
package ocrtypes

// BBox is a pixel-space bounding box in full-image coordinates.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns x1-x0.
func (b BBox) Width() float64 { return b.X1 - b.X0 }

// Height returns y1-y0.
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// Contains reports whether b fully contains o.
func (b BBox) Contains(o BBox) bool {
	return o.X0 >= b.X0 && o.Y0 >= b.Y0 && o.X1 <= b.X1 && o.Y1 <= b.Y1
}

// Token is a single recognized text span with its confidence and location.
type Token struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// OCRResultMeta carries engine-specific metadata about how an OCRResult was
// produced: table decomposition, rotation search, and fallback bookkeeping.
type OCRResultMeta struct {
	TableCells     map[string]string `json:"table_cells,omitempty"`
	TableCellCount int               `json:"table_cell_count,omitempty"`
	Rotation       int               `json:"rotation,omitempty"`
	Fallback       string            `json:"fallback,omitempty"`
	FallbackEngine string            `json:"fallback_engine,omitempty"`
	VLTokenCount   int               `json:"vl_token_count,omitempty"`
	VLLowSignal    bool              `json:"vl_low_signal,omitempty"`
	Method         string            `json:"method,omitempty"`
}

// OCRResult is the output of running one engine (or the router's fallback
// chain) over a single crop.
type OCRResult struct {
	Engine string        `json:"engine"`
	Tokens []Token       `json:"tokens"`
	BBox   BBox          `json:"bbox"`
	Meta   OCRResultMeta `json:"meta"`
}

// FieldValueKind discriminates the dynamic value carried by a ParsedField.
// The original extraction tool stores value as text|int|float|None; this
// port makes the union explicit instead of branching on interface{}.
type FieldValueKind int

const (
	FieldValueNone FieldValueKind = iota
	FieldValueText
	FieldValueInt
	FieldValueDecimal
)

// FieldValue is a tagged union over the possible ParsedField payloads.
type FieldValue struct {
	Kind FieldValueKind
	Text string
	Int  int64
	Dec  float64 // decimal values that don't need arbitrary precision (score, conf)
}

// IsZero reports whether the value is unset.
func (v FieldValue) IsZero() bool { return v.Kind == FieldValueNone }

func TextValue(s string) FieldValue {
	if s == "" {
		return FieldValue{}
	}
	return FieldValue{Kind: FieldValueText, Text: s}
}

func IntValue(n int64) FieldValue {
	return FieldValue{Kind: FieldValueInt, Int: n}
}

func DecValue(f float64) FieldValue {
	return FieldValue{Kind: FieldValueDecimal, Dec: f}
}

// String renders the value for logging/merging comparisons.
func (v FieldValue) String() string {
	switch v.Kind {
	case FieldValueText:
		return v.Text
	case FieldValueInt:
		return itoa(v.Int)
	case FieldValueDecimal:
		return ftoa(v.Dec)
	default:
		return ""
	}
}

// ParsedField is one parser's hypothesis for one canonical key.
type ParsedField struct {
	Value      FieldValue `json:"value"`
	Confidence float64    `json:"confidence"`
	BBox       *BBox      `json:"bbox,omitempty"`
	Raw        string     `json:"raw,omitempty"`
}

// Empty reports whether the field carries no observed value.
func (p ParsedField) Empty() bool {
	return p.Value.IsZero()
}

// FieldKey enumerates the closed set of canonical parser keys.
type FieldKey string

const (
	KeyAuctionDate       FieldKey = "auction_date"
	KeyAuctionVenue      FieldKey = "auction_venue"
	KeyAuctionVenueRound FieldKey = "auction_venue_round"
	KeyLotNo             FieldKey = "lot_no"
	KeyMakeModel         FieldKey = "make_model"
	KeyGrade             FieldKey = "grade"
	KeyModelYear         FieldKey = "model_year"
	KeyShiftEngine       FieldKey = "shift_engine"
	KeyMileage           FieldKey = "mileage"
	KeyInspection        FieldKey = "inspection"
	KeyColor             FieldKey = "color"
	KeyModelCode         FieldKey = "model_code"
	KeyResult            FieldKey = "result"
	KeyStartingBid       FieldKey = "starting_bid"
	KeyFinalBid          FieldKey = "final_bid"
	KeyBidStart          FieldKey = "bid_start"
	KeyScore             FieldKey = "score"
	KeyChassis           FieldKey = "chassis"
	KeyNotes             FieldKey = "notes"
	KeyOptions           FieldKey = "options"
	KeyInspectorReport   FieldKey = "inspector_report"
	KeyRecycleFee        FieldKey = "recycle_fee"
	KeyEquipmentCodes    FieldKey = "equipment_codes"
	KeyLaneType          FieldKey = "lane_type"
)

// AllKeys is the closed set of canonical parser keys, in the order the
// label map originally declared them.
var AllKeys = []FieldKey{
	KeyAuctionDate, KeyAuctionVenue, KeyAuctionVenueRound, KeyLotNo,
	KeyMakeModel, KeyGrade, KeyModelYear, KeyShiftEngine, KeyMileage,
	KeyInspection, KeyColor, KeyModelCode, KeyResult, KeyStartingBid,
	KeyFinalBid, KeyBidStart, KeyScore, KeyChassis, KeyNotes, KeyOptions,
	KeyInspectorReport, KeyRecycleFee, KeyEquipmentCodes, KeyLaneType,
}

// FieldMap maps canonical keys to a parser's hypothesis for that key.
// Keys absent from the map are treated identically to a present-but-empty
// ParsedField.
type FieldMap map[FieldKey]ParsedField

// Get returns the field for key, or a zero ParsedField if absent.
func (f FieldMap) Get(key FieldKey) ParsedField {
	return f[key]
}

// Clone returns a shallow copy safe for independent mutation of the map
// itself (ParsedField values are copied by value).
func (f FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func ftoa(f float64) string {
	// Sufficient precision for confidence/score values (0-6 range, 2 decimals).
	neg := f < 0
	if neg {
		f = -f
	}
	scaled := int64(f*100 + 0.5)
	whole := scaled / 100
	frac := scaled % 100
	s := itoa(whole) + "." + itoa(frac/10) + itoa(frac%10)
	if neg {
		return "-" + s
	}
	return s
}
