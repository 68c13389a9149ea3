package fieldparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
)

// FieldSet is an intermediate key->ParsedField map produced by each
// sub-parser, before internal/fieldmerge.Merge combines them and
// internal/assemble maps parser keys onto record.AuctionRecord fields.
type FieldSet map[parserKey]ocrtypes.ParsedField

// Get looks up a field by its string key name (e.g. "auction_date"),
// letting internal/assemble and internal/fieldmerge address keys without
// importing the unexported parserKey type.
func (s FieldSet) Get(key string) (ocrtypes.ParsedField, bool) {
	f, ok := s[parserKey(key)]
	return f, ok
}

// ParseHeaderLabelNeighborhood implements sub-parser (a): row-group tokens,
// scan left-to-right for a label match, take an inline value or the
// nearest right-neighbor token.
func ParseHeaderLabelNeighborhood(tokens []ocrtypes.Token) FieldSet {
	results := FieldSet{}
	rows := groupTokensByRow(tokens)
	for key, patterns := range labelMap {
		field, ok := findValueForLabel(rows, patterns)
		if ok {
			results[key] = field
		}
	}
	return results
}

func findValueForLabel(rows [][]ocrtypes.Token, patterns []*regexp.Regexp) (ocrtypes.ParsedField, bool) {
	for _, r := range rows {
		sorted := sortRowByX(r)
		for idx, tok := range sorted {
			textNorm := normalizeText(tok.Text)
			matched := false
			for _, pat := range patterns {
				if pat.MatchString(textNorm) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			value := stripAnyPattern(textNorm, patterns)
			value = strings.Trim(value, ":/ ")
			if value != "" {
				bb := tok.BBox
				return ocrtypes.ParsedField{Value: ocrtypes.TextValue(value), Confidence: tok.Confidence, BBox: &bb, Raw: tok.Text}, true
			}
			for _, cand := range sorted[idx+1:] {
				if cand.BBox.X0 > tok.BBox.X0 {
					bb := cand.BBox
					return ocrtypes.ParsedField{Value: ocrtypes.TextValue(cand.Text), Confidence: cand.Confidence, BBox: &bb, Raw: cand.Text}, true
				}
			}
		}
	}
	return ocrtypes.ParsedField{}, false
}

func stripAnyPattern(s string, patterns []*regexp.Regexp) string {
	out := s
	for _, pat := range patterns {
		out = pat.ReplaceAllString(out, "")
	}
	return out
}

// ParseHeaderCombinedToken implements sub-parser (b): per-token label+value
// extraction, plus a whole-text pattern scan filling any remaining keys.
func ParseHeaderCombinedToken(tokens []ocrtypes.Token) FieldSet {
	results := FieldSet{}
	for _, tok := range tokens {
		textNorm := normalizeText(tok.Text)
		extracted := extractFromCombinedToken(textNorm, tok)
		for k, v := range extracted {
			if _, exists := results[k]; !exists {
				results[k] = v
			}
		}
	}

	var all strings.Builder
	for i, t := range tokens {
		if i > 0 {
			all.WriteByte(' ')
		}
		all.WriteString(t.Text)
	}
	for k, v := range extractHeaderByPatterns(all.String()) {
		if _, exists := results[k]; !exists {
			results[k] = v
		}
	}
	return results
}

var (
	combinedDateRe      = regexp.MustCompile(`開催日\s*[:\s]*(\d{2,4}[/.\-]\d{1,2}[/.\-]\d{1,2})`)
	standaloneDateRe    = regexp.MustCompile(`^(\d{2,4}[/.\-]\d{1,2}[/.\-]\d{1,2})`)
	combinedLotRe       = regexp.MustCompile(`出品番号\s*[:\s]*(\d{3,8})`)
	standaloneLotRe     = regexp.MustCompile(`^(\d{4,6})\b`)
	combinedVenueRe     = regexp.MustCompile(`会場\s*[:\s]*([\p{Han}]+)`)
	combinedRoundRe     = regexp.MustCompile(`開催回?\s*[:\s]*(\d+回?)`)
	combinedYearRe      = regexp.MustCompile(`年式\s*[:\s]*(R?\d{1,2})`)
	combinedColorRe     = regexp.MustCompile(`(パール|ホワイト|ブラック|クロ|グレー|シルバー|レッド|ブルー|ゴールド|ベージュ)`)
	combinedNumbersRe   = regexp.MustCompile(`\d[\d,]*`)
)

func extractFromCombinedToken(textNorm string, tok ocrtypes.Token) FieldSet {
	results := FieldSet{}
	bb := tok.BBox

	set := func(k parserKey, val string, conf float64) {
		if _, exists := results[k]; !exists {
			results[k] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(val), Confidence: conf, BBox: &bb, Raw: tok.Text}
		}
	}

	if m := combinedDateRe.FindStringSubmatch(textNorm); m != nil {
		set(keyAuctionDate, m[1], 0.9)
	} else if !strings.Contains(textNorm, "開催日") {
		if m := standaloneDateRe.FindStringSubmatch(textNorm); m != nil {
			set(keyAuctionDate, m[1], 0.7)
		}
	}

	if m := combinedLotRe.FindStringSubmatch(textNorm); m != nil {
		set(keyLotNo, m[1], 0.9)
	} else if _, exists := results[keyLotNo]; !exists && !strings.Contains(textNorm, "出品番号") {
		if m := standaloneLotRe.FindStringSubmatch(textNorm); m != nil {
			set(keyLotNo, m[1], 0.6)
		}
	}

	if m := combinedVenueRe.FindStringSubmatch(textNorm); m != nil {
		set(keyAuctionVenue, m[1], 0.9)
	}

	if m := combinedRoundRe.FindStringSubmatch(textNorm); m != nil {
		v := m[1]
		if !strings.HasSuffix(v, "回") {
			v += "回"
		}
		set(keyAuctionVenueRound, v, 0.9)
	}

	if m := combinedYearRe.FindStringSubmatch(textNorm); m != nil {
		v := m[1]
		if !strings.HasPrefix(v, "R") {
			v = "R" + v
		}
		set(keyModelYear, v, 0.9)
	}

	if strings.Contains(textNorm, "車種名") || strings.Contains(textNorm, "グレード") {
		value := strings.TrimSpace(regexp.MustCompile(`車種名|グレード|/`).ReplaceAllString(textNorm, " "))
		if value != "" {
			makeModel, grade := splitMakeModelGrade(value)
			if makeModel != "" {
				set(keyMakeModel, makeModel, 0.85)
			}
			if grade != "" {
				set(keyGrade, grade, 0.85)
			}
		}
	}

	if strings.Contains(textNorm, "シフト") || strings.Contains(textNorm, "排気量") || strings.Contains(textNorm, "ミッション") {
		value := strings.TrimSpace(regexp.MustCompile(`シフト|排気量|ミッション|/`).ReplaceAllString(textNorm, " "))
		if value != "" {
			trans, engine := splitShiftEngine(value)
			if trans != "" || engine != "" {
				set(keyShiftEngine, strings.TrimSpace(trans+" "+engine), 0.85)
			}
		}
	}

	if strings.Contains(textNorm, "走行") {
		value := strings.TrimSpace(regexp.MustCompile(`(?i)走行|車検|/|距離|km|㎞`).ReplaceAllString(textNorm, " "))
		if value != "" {
			mileage, inspection := splitMileageInspection(value)
			if mileage != "" {
				set(keyMileage, mileage, 0.85)
			}
			if inspection != "" {
				set(keyInspection, inspection, 0.85)
			}
		}
	}

	if strings.Contains(textNorm, "色") && len([]rune(textNorm)) > 1 {
		value := strings.TrimSpace(regexp.MustCompile(`色|カラー`).ReplaceAllString(textNorm, " "))
		if m := combinedColorRe.FindStringSubmatch(value); m != nil {
			set(keyColor, m[1], 0.85)
		} else if value != "" && !strings.Contains(value, "型式") && !strings.Contains(value, "装備") && !strings.Contains(value, "エアコン") {
			first := firstWord(value)
			if first != "" && len([]rune(first)) <= 8 {
				set(keyColor, first, 0.7)
			}
		}
	}

	if strings.Contains(textNorm, "型式") {
		value := strings.TrimSpace(regexp.MustCompile(`型式|エアコン|装備|/`).ReplaceAllString(textNorm, " "))
		if value != "" {
			modelCode, _ := splitModelEquipment(value)
			if modelCode != "" {
				set(keyModelCode, modelCode, 0.85)
			}
		}
	}

	if strings.Contains(textNorm, "セリ結果") || strings.Contains(textNorm, "結果") {
		if strings.Contains(textNorm, "落札") {
			set(keyResult, "落札", 0.9)
		} else if strings.Contains(textNorm, "流札") {
			set(keyResult, "流札", 0.9)
		}
	}

	if (strings.Contains(textNorm, "応札") || strings.Contains(textNorm, "スタート")) && strings.Contains(textNorm, "金額") {
		value := strings.TrimSpace(regexp.MustCompile(`応札額?|スタート金額|/|万円|円`).ReplaceAllString(textNorm, " "))
		numbers := combinedNumbersRe.FindAllString(value, -1)
		if len(numbers) >= 2 {
			set(keyFinalBid, numbers[0], 0.85)
			set(keyStartingBid, numbers[1], 0.85)
		} else if len(numbers) == 1 {
			set(keyFinalBid, numbers[0], 0.7)
		}
	}

	if strings.Contains(textNorm, "評価") || strings.Contains(textNorm, "点") {
		value := strings.TrimSpace(regexp.MustCompile(`評価点?|瑕疵`).ReplaceAllString(textNorm, " "))
		if score := extractScoreValue(value); score != "" {
			set(keyScore, score, 0.85)
		}
	}

	return results
}

var venueList = []string{"東京", "名古屋", "大阪", "福岡", "札幌", "仙台", "広島"}
var colorList = []string{"パール", "ホワイト", "ブラック", "クロ", "グレー", "シルバー", "レッド", "ブルー", "ゴールド", "ベージュ", "ブラウン"}

var (
	patDate       = regexp.MustCompile(`\b(\d{2,4}[/.\-]\d{1,2}[/.\-]\d{1,2})\b`)
	patRound      = regexp.MustCompile(`(\d{3,4})回`)
	patLotLabeled = regexp.MustCompile(`(?:出品番号|No\.?)\s*[:\s]*(\d{4,6})`)
	patLotStand   = regexp.MustCompile(`\b(\d{4,6})\b`)
	patYear       = regexp.MustCompile(`\bR\s*(\d{1,2})(回|\d)?`)
	patTrans      = regexp.MustCompile(`(?i)\b(AT|FA|CA|CVT|MT)\b`)
	patEngine     = regexp.MustCompile(`(?i)(\d{3,4})\s*(?:cc)?`)
	patScoreRA    = regexp.MustCompile(`\b(RA?)\b`)
	patScoreNum   = regexp.MustCompile(`\b([1-5](?:\.[05])?)\b`)
	patBidMan     = regexp.MustCompile(`(\d{1,4}(?:,\d{3})*)万`)
	patBidLarge   = regexp.MustCompile(`(\d{7,9})`)
	patMileage    = regexp.MustCompile(`(?i)(\d{2,6})(?:,\d{3})*\s*(?:km|㎞|ｋｍ)`)
	patInspection = regexp.MustCompile(`R\s*(\d{1,2})[./](\d{1,2})`)
	patModelCode1 = regexp.MustCompile(`\b([A-Z]{2,4}\d{1,3}[A-Z]?)\b`)
	patModelCode2 = regexp.MustCompile(`\b(\d{5,6}[A-Z])\b`)
	patModelCode3 = regexp.MustCompile(`\b([A-Z]\d[A-Z]{2})\b`)
)

// ParseHeaderPatternScan exports sub-parser (d) standalone, so the field
// merger can overlay it as its own priority source per SPEC_FULL.md §4.5,
// in addition to the copy ParseHeaderCombinedToken folds into its own
// result as a same-pass fallback.
func ParseHeaderPatternScan(tokens []ocrtypes.Token) FieldSet {
	var all strings.Builder
	for i, t := range tokens {
		if i > 0 {
			all.WriteByte(' ')
		}
		all.WriteString(t.Text)
	}
	return extractHeaderByPatterns(all.String())
}

// extractHeaderByPatterns implements sub-parser (d): the whole-text
// pattern-scan fallback.
func extractHeaderByPatterns(text string) FieldSet {
	results := FieldSet{}
	textNorm := normalizeText(text)

	if m := patDate.FindStringSubmatch(textNorm); m != nil {
		results[keyAuctionDate] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(m[1]), Confidence: 0.7, Raw: m[0]}
	}

	for _, v := range venueList {
		if strings.Contains(text, v) {
			results[keyAuctionVenue] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(v), Confidence: 0.8, Raw: v}
			break
		}
	}

	if m := patRound.FindStringSubmatch(textNorm); m != nil {
		results[keyAuctionVenueRound] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(m[0]), Confidence: 0.8, Raw: m[0]}
	}

	if m := patLotLabeled.FindStringSubmatch(textNorm); m != nil {
		results[keyLotNo] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(m[1]), Confidence: 0.8, Raw: m[0]}
	} else {
		for _, cand := range patLotStand.FindAllString(textNorm, -1) {
			if strings.Contains(textNorm, cand+"回") {
				continue
			}
			results[keyLotNo] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(cand), Confidence: 0.6, Raw: cand}
			break
		}
	}

	if m := patYear.FindStringSubmatch(textNorm); m != nil && m[2] != "回" {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 10 {
			results[keyModelYear] = ocrtypes.ParsedField{Value: ocrtypes.TextValue("R" + zfill(m[1], 2)), Confidence: 0.8, Raw: m[0]}
		}
	}

	if m := patTrans.FindStringSubmatch(textNorm); m != nil {
		engineVal := ""
		if em := patEngine.FindStringSubmatch(textNorm); em != nil {
			engineVal = em[1]
		}
		combined := strings.TrimSpace(strings.ToUpper(m[1]) + " " + engineVal)
		results[keyShiftEngine] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(combined), Confidence: 0.7, Raw: combined}
	}

	if m := patScoreRA.FindStringSubmatch(textNorm); m != nil && strings.Contains(textNorm, "評価") {
		results[keyScore] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(m[1]), Confidence: 0.7, Raw: m[0]}
	} else if m := patScoreNum.FindStringSubmatch(textNorm); m != nil {
		results[keyScore] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(m[1]), Confidence: 0.6, Raw: m[0]}
	}

	if strings.Contains(text, "落札") {
		results[keyResult] = ocrtypes.ParsedField{Value: ocrtypes.TextValue("落札"), Confidence: 0.9, Raw: "落札"}
	} else if strings.Contains(text, "流札") {
		results[keyResult] = ocrtypes.ParsedField{Value: ocrtypes.TextValue("流札"), Confidence: 0.9, Raw: "流札"}
	}

	if m := patBidMan.FindStringSubmatch(textNorm); m != nil {
		results[keyFinalBid] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(strings.ReplaceAll(m[1], ",", "")), Confidence: 0.7, Raw: m[0]}
	} else if m := patBidLarge.FindStringSubmatch(textNorm); m != nil {
		results[keyFinalBid] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(m[1]), Confidence: 0.5, Raw: m[0]}
	}

	for _, c := range colorList {
		if strings.Contains(text, c) {
			results[keyColor] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(c), Confidence: 0.8, Raw: c}
			break
		}
	}

	if m := patMileage.FindStringSubmatch(textNorm); m != nil {
		results[keyMileage] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(m[1]), Confidence: 0.7, Raw: m[0]}
	}

	if m := patInspection.FindStringSubmatch(textNorm); m != nil {
		results[keyInspection] = ocrtypes.ParsedField{Value: ocrtypes.TextValue("R" + zfill(m[1], 2) + "." + zfill(m[2], 2)), Confidence: 0.7, Raw: m[0]}
	}

	for _, pat := range []*regexp.Regexp{patModelCode1, patModelCode2, patModelCode3} {
		if m := pat.FindStringSubmatch(textNorm); m != nil && len(m[1]) <= 10 {
			results[keyModelCode] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(m[1]), Confidence: 0.6, Raw: m[0]}
			break
		}
	}

	return results
}

func zfill(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func firstWord(s string) string {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
