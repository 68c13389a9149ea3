package assemble

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nanahara/auction-sheet-extractor/internal/fieldparse"
	"github.com/nanahara/auction-sheet-extractor/internal/record"
)

var auctionDateRe = regexp.MustCompile(`(\d{2,4})[./\-](\d{1,2})[./\-](\d{1,2})`)

// parseReiwaYear implements parse_reiwa_year: Reiwa n -> Gregorian n+2018.
func parseReiwaYear(text string) *int {
	if text == "" {
		return nil
	}
	m := reiwaYearRe.FindStringSubmatch(fieldparse.NormalizeText(text))
	if m == nil {
		return nil
	}
	n := atoi(m[1])
	year := n + 2018
	return &year
}

var reiwaYearRe = regexp.MustCompile(`R?(\d{1,2})`)

// parseReiwaYearMonth implements parse_reiwa_year_month.
func parseReiwaYearMonth(text string) *time.Time {
	if text == "" {
		return nil
	}
	m := reiwaYearMonthRe.FindStringSubmatch(fieldparse.NormalizeText(text))
	if m == nil {
		return nil
	}
	year := atoi(m[1]) + 2018
	month := atoi(m[2])
	if month < 1 || month > 12 {
		return nil
	}
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return &t
}

var reiwaYearMonthRe = regexp.MustCompile(`R?(\d{1,2})[年/.\-](\d{1,2})`)

// parseShiftEngine implements parse_shift_engine (distinct from
// fieldparse's splitShiftEngine, which operates on unparsed combined
// text; this one runs on an already-extracted header field value).
func parseShiftEngine(text string) (record.Transmission, *int) {
	if text == "" {
		return "", nil
	}
	cleaned := fieldparse.NormalizeText(text)
	trans := record.Transmission("")
	if m := shiftTransPatternRe.FindStringSubmatch(cleaned); m != nil {
		trans = record.Transmission(strings.ToUpper(m[1]))
	}
	var engine *int
	if m := shiftEnginePatternRe.FindStringSubmatch(cleaned); m != nil {
		n := atoi(m[1])
		engine = &n
	}
	return trans, engine
}

var (
	shiftTransPatternRe  = regexp.MustCompile(`(?i)(AT|FA|CA|CVT)`)
	shiftEnginePatternRe = regexp.MustCompile(`(\d{3,4})`)
)

// parseMileageHeader implements parse_mileage_header.
func parseMileageHeader(text string) (*int64, int, float64, string) {
	if text == "" {
		return nil, 0, 0, ""
	}
	cleaned := fieldparse.NormalizeText(text)
	digits := normalizeDigitsOnly(cleaned)
	if digits == "" {
		return nil, 0, 0, text
	}
	if strings.Contains(cleaned, ",") || len(digits) >= 4 {
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return nil, 0, 0, text
		}
		return &v, 1, 0.95, text
	}
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil, 0, 0, text
	}
	if value >= 0 && value <= 300 {
		v := value * 1000
		return &v, 1000, 0.7, text
	}
	return &value, 1, 0.3, text
}

// parseMileage implements parse_mileage (the sheet-value fallback path).
func parseMileage(text string) (*int64, int, string) {
	if text == "" {
		return nil, 0, ""
	}
	cleaned := fieldparse.NormalizeText(text)
	m := mileageNumberRe.FindString(cleaned)
	if m == "" {
		digits := normalizeDigitsOnly(cleaned)
		if digits == "" {
			return nil, 0, text
		}
		m = digits
	}
	raw := m
	value, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return nil, 0, raw
	}
	multiplier := 1
	if value < 1000 {
		multiplier = 1000
	}
	km := int64(value * float64(multiplier))
	return &km, multiplier, raw
}

var mileageNumberRe = regexp.MustCompile(`\d+(?:,\d{3})*(?:\.\d+)?`)

// parseScore implements the module-level parse_score (operates on an
// already-extracted header score field, distinct from fieldparse's
// extractScoreValue which runs during combined-token extraction).
func parseScore(text string) (string, *float64) {
	if text == "" {
		return "", nil
	}
	cleaned := fieldparse.NormalizeText(text)
	upper := strings.ToUpper(cleaned)
	if strings.Contains(upper, "RA") {
		return "RA", nil
	}
	if strings.Contains(upper, "R") {
		return "R", nil
	}
	m := scoreDigitRe.FindString(cleaned)
	if m == "" {
		return cleaned, nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return m, nil
	}
	return m, &f
}

var scoreDigitRe = regexp.MustCompile(`\d(?:\.\d)?`)

// parseYen implements parse_yen: values under 100000 are assumed to be
// stated in man-yen (万円) and scaled by 10000.
func parseYen(text string) *int64 {
	if text == "" {
		return nil
	}
	cleaned := fieldparse.NormalizeText(text)
	if m := yenNumberRe.FindString(cleaned); m != "" {
		v, err := strconv.ParseInt(strings.ReplaceAll(m, ",", ""), 10, 64)
		if err != nil {
			return nil
		}
		return scaleMan(v)
	}
	digits := normalizeDigitsOnly(cleaned)
	if digits == "" {
		return nil
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return scaleMan(v)
}

var yenNumberRe = regexp.MustCompile(`\d+(?:,\d{3})*`)

func scaleMan(v int64) *int64 {
	if v < 100000 {
		v *= 10000
	}
	return &v
}

// parsePricePair implements parse_price_pair: the bid_start field
// sometimes carries both final and starting bid as two numbers.
func parsePricePair(text string) (*int64, *int64) {
	if text == "" {
		return nil, nil
	}
	cleaned := fieldparse.NormalizeText(text)
	numbers := yenNumberRe.FindAllString(cleaned, -1)
	if len(numbers) == 0 {
		return nil, nil
	}
	values := make([]int64, 0, len(numbers))
	for _, n := range numbers {
		v, err := strconv.ParseInt(strings.ReplaceAll(n, ",", ""), 10, 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, nil
	}
	final := scaleMan(values[0])
	var start *int64
	if len(values) > 1 {
		start = scaleMan(values[1])
	}
	return final, start
}

var digitsOnlyRe = regexp.MustCompile(`\D`)

func normalizeDigitsOnly(s string) string {
	return digitsOnlyRe.ReplaceAllString(s, "")
}

// splitVenueRound implements the venue-round split from build_record_fields:
// a trailing \d+回 separates venue text from the round.
func splitVenueRound(venue string) (string, string, bool) {
	m := venueRoundRe.FindStringSubmatch(venue)
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), m[2], true
}

var venueRoundRe = regexp.MustCompile(`(.+?)(\d+回)`)

// parseLotVenueRound implements _parse_lot_venue_round.
func parseLotVenueRound(text string) (string, string, string) {
	if text == "" {
		return "", "", ""
	}
	cleaned := fieldparse.NormalizeText(text)
	m := lotVenueRoundRe.FindStringSubmatch(cleaned)
	if m == nil {
		return "", "", ""
	}
	lot := m[1]
	venue := strings.TrimSpace(m[2])
	venue = strings.ReplaceAll(venue, "会場", "")
	venue = strings.ReplaceAll(venue, "開催回", "")
	venue = strings.TrimSpace(venue)
	round := m[3]
	return lot, venue, round
}

var lotVenueRoundRe = regexp.MustCompile(`^(\d{3,8})?([^\d]+)?(\d+回)?`)

// isCleanRound implements _is_clean_round.
func isCleanRound(value string) bool {
	text := fieldparse.NormalizeText(value)
	return cleanRoundRe.MatchString(text)
}

var cleanRoundRe = regexp.MustCompile(`^\d+回$`)

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func splitEquipment(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
