package fieldparse

import (
	"regexp"
	"strings"

	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
)

// ParseSheet implements parse_sheet: chassis number, mileage, recycle fee,
// inspector report, notes, options, equipment codes, and lane type, all
// read off the inspection-sheet crop's row layout.
func ParseSheet(tokens []ocrtypes.Token) FieldSet {
	results := FieldSet{}
	if len(tokens) == 0 {
		return results
	}

	rows := buildRows(tokens)
	var fullText strings.Builder
	for _, r := range rows {
		if r.text == "" {
			continue
		}
		if fullText.Len() > 0 {
			fullText.WriteByte('\n')
		}
		fullText.WriteString(r.text)
	}
	full := fullText.String()

	if f, ok := findChassis(rows, full); ok {
		results[keyChassis] = f
	}
	if f, ok := findMileage(rows, full); ok {
		results[keyMileage] = f
	}
	if f, ok := findRegexField(full, recycleFeeRe); ok {
		results[keyRecycleFee] = f
	}
	if f, ok := extractBlock(rows, inspectorReportLabels, inspectorReportStops); ok {
		results[keyInspectorReport] = f
	}
	if f, ok := extractBlock(rows, notesLabels, notesStops); ok {
		results[keyNotes] = f
	}
	if f, ok := extractBlock(rows, optionsLabels, optionsStops); ok {
		results[keyOptions] = f
	}
	if codes := parseEquipment(full); codes != "" {
		results[keyEquipmentCodes] = ocrtypes.ParsedField{Value: ocrtypes.TextValue(codes), Confidence: 0.6, Raw: codes}
	}
	if f, ok := extractLaneType(rows); ok {
		results[keyLaneType] = f
	}

	return results
}

var (
	chassisLabelRe  = regexp.MustCompile(`車台|車体|車台No|車台番号|車両No|車体番号`)
	chassisValueRe  = regexp.MustCompile(`[A-HJ-NPR-Z0-9=-]{8,20}`)
	chassisLabelCap = regexp.MustCompile(`(?:車台|車体)[:\s]*([A-HJ-NPR-Z0-9=-]{8,20})`)
	chassisBareRe   = regexp.MustCompile(`\b([A-HJ-NPR-Z0-9=-]{8,20})\b`)

	mileageLabelRe  = regexp.MustCompile(`走行|走行距離|走行km|走行Ｋｍ|走行㎞`)
	mileageValueRe  = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	mileageLabelCap = regexp.MustCompile(`走行[:\s]*([0-9,]+)\s*(?:km|㎞|ｋｍ|KM)?`)
	mileageSuffixRe = regexp.MustCompile(`(?i)(\d{2,6})(?:km|kふ|㎞|ｋｍ)`)

	recycleFeeRe = regexp.MustCompile(`リサイクル[:\s]*([0-9,]+)\s*円`)

	vinPatternRe      = regexp.MustCompile(`(?i)[A-HJ-NPR-Z0-9]{17}`)
	jpModelPatternRe  = regexp.MustCompile(`(?i)([A-Z]{2,6}\d{1,3}[A-Z]?)[-=]?(\d{5,8})`)
	shortPatternRe    = regexp.MustCompile(`(?i)([A-Z]{2,4}\d?)[-=]?(\d{5,7})`)
	euroPatternRe     = regexp.MustCompile(`(?i)W[A-Z0-9]{2}[A-Z0-9]{11,14}`)
	porschePatternRe  = regexp.MustCompile(`(?i)WP0[A-Z0-9]{14}`)

	inspectorReportLabels = []*regexp.Regexp{regexp.MustCompile(`検査員報告`), regexp.MustCompile(`検査報告`), regexp.MustCompile(`検査員コメント`)}
	inspectorReportStops  = []*regexp.Regexp{regexp.MustCompile(`車台`), regexp.MustCompile(`走行`), regexp.MustCompile(`注意`), regexp.MustCompile(`備考`), regexp.MustCompile(`装備`), regexp.MustCompile(`オプション`), regexp.MustCompile(`リサイクル`)}

	notesLabels = []*regexp.Regexp{regexp.MustCompile(`注意事項`), regexp.MustCompile(`注意`), regexp.MustCompile(`特記事項`), regexp.MustCompile(`備考`)}
	notesStops  = []*regexp.Regexp{regexp.MustCompile(`車台`), regexp.MustCompile(`走行`), regexp.MustCompile(`検査員報告`), regexp.MustCompile(`装備`), regexp.MustCompile(`オプション`), regexp.MustCompile(`リサイクル`)}

	optionsLabels = []*regexp.Regexp{regexp.MustCompile(`装備`), regexp.MustCompile(`オプション`), regexp.MustCompile(`OP`), regexp.MustCompile(`セールスポイント`)}
	optionsStops  = []*regexp.Regexp{regexp.MustCompile(`車台`), regexp.MustCompile(`走行`), regexp.MustCompile(`注意`), regexp.MustCompile(`検査員報告`), regexp.MustCompile(`リサイクル`)}

	laneKeywords = []string{"輸入車", "国産", "外車", "ディーラー", "業販", "評価点"}
)

func findChassis(rows []row, full string) (ocrtypes.ParsedField, bool) {
	if f, ok := findLabeledValue(rows, chassisLabelRe, chassisValueRe); ok {
		return normalizeChassisField(f), true
	}
	if f, ok := findRegexField(full, chassisLabelCap); ok {
		return normalizeChassisField(f), true
	}
	if candidates := findChassisPatterns(full); len(candidates) > 0 {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if len(c) > len(best) {
				best = c
			}
		}
		f := ocrtypes.ParsedField{Value: ocrtypes.TextValue(best), Confidence: 0.6, Raw: best}
		return normalizeChassisField(f), true
	}
	if f, ok := findRegexField(full, chassisBareRe); ok {
		return normalizeChassisField(f), true
	}
	return ocrtypes.ParsedField{}, false
}

func normalizeChassisField(f ocrtypes.ParsedField) ocrtypes.ParsedField {
	normalized := normalizeChassisValue(f.Value.String())
	if normalized == "" {
		return f
	}
	f.Value = ocrtypes.TextValue(normalized)
	return f
}

func normalizeChassisValue(value string) string {
	if value == "" {
		return ""
	}
	text := strings.ToUpper(value)
	text = strings.ReplaceAll(text, "=", "-")
	text = strings.ReplaceAll(text, "_", "-")
	text = strings.ReplaceAll(text, " ", "")

	normalized := normalizeAlnum(text)
	if normalized == "" {
		return ""
	}
	normalized = strings.NewReplacer("I", "1", "O", "0", "Q", "0").Replace(normalized)
	if len([]rune(normalized)) < 6 {
		return ""
	}
	return normalized
}

func findChassisPatterns(text string) []string {
	var results []string
	textNorm := normalizeText(text)

	results = append(results, vinPatternRe.FindAllString(textNorm, -1)...)

	for _, m := range jpModelPatternRe.FindAllStringSubmatch(textNorm, -1) {
		results = append(results, m[1]+"-"+m[2])
	}

	seen := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r] = true
	}
	for _, m := range shortPatternRe.FindAllStringSubmatch(textNorm, -1) {
		combined := m[1] + "-" + m[2]
		if !seen[combined] {
			results = append(results, combined)
			seen[combined] = true
		}
	}

	results = append(results, euroPatternRe.FindAllString(textNorm, -1)...)
	results = append(results, porschePatternRe.FindAllString(textNorm, -1)...)

	return results
}

func findMileage(rows []row, full string) (ocrtypes.ParsedField, bool) {
	if f, ok := findLabeledValue(rows, mileageLabelRe, mileageValueRe); ok {
		return f, true
	}
	if f, ok := findRegexField(full, mileageLabelCap); ok {
		return f, true
	}
	if m := mileageSuffixRe.FindStringSubmatch(normalizeText(full)); m != nil {
		return ocrtypes.ParsedField{Value: ocrtypes.TextValue(m[1]), Confidence: 0.7, Raw: m[0]}, true
	}
	return ocrtypes.ParsedField{}, false
}

// findLabeledValue implements _find_labeled_value: scan rows for a label
// token, take the remainder of that row (or the whole next row if empty)
// as the value, optionally narrowed by valueRe.
func findLabeledValue(rows []row, labelPat *regexp.Regexp, valueRe *regexp.Regexp) (ocrtypes.ParsedField, bool) {
	for idx, r := range rows {
		for tokenIdx, tok := range r.tokens {
			tokNorm := normalizeText(tok.Text)
			if !labelPat.MatchString(tokNorm) {
				continue
			}
			valueTokens := r.tokens[tokenIdx+1:]
			valueText := strings.TrimSpace(rowText(valueTokens))
			var valueBBox *ocrtypes.BBox
			if len(valueTokens) > 0 {
				valueBBox = rowBBox(valueTokens)
			}
			if valueText == "" && idx+1 < len(rows) {
				next := rows[idx+1]
				valueText = strings.TrimSpace(rowText(next.tokens))
				valueBBox = rowBBox(next.tokens)
			}
			if valueRe != nil && valueText != "" {
				if m := valueRe.FindString(normalizeText(valueText)); m != "" {
					valueText = m
				}
			}
			if valueText != "" {
				return ocrtypes.ParsedField{Value: ocrtypes.TextValue(valueText), Confidence: tok.Confidence, BBox: valueBBox, Raw: valueText}, true
			}
		}
	}
	return ocrtypes.ParsedField{}, false
}

// findRegexField implements _find_regex_field: first capture group if any,
// else the whole match.
func findRegexField(text string, pattern *regexp.Regexp) (ocrtypes.ParsedField, bool) {
	if text == "" {
		return ocrtypes.ParsedField{}, false
	}
	m := pattern.FindStringSubmatch(normalizeText(text))
	if m == nil {
		return ocrtypes.ParsedField{}, false
	}
	value := m[0]
	if len(m) > 1 && m[1] != "" {
		value = m[1]
	}
	return ocrtypes.ParsedField{Value: ocrtypes.TextValue(value), Confidence: 0.5, Raw: value}, true
}

// extractBlock implements _extract_block: a labeled row plus up to 6
// following rows, stopping at the first row matching a stop pattern.
func extractBlock(rows []row, patterns []*regexp.Regexp, stops []*regexp.Regexp) (ocrtypes.ParsedField, bool) {
	const maxRows = 6
	for idx, r := range rows {
		matched := false
		for _, pat := range patterns {
			if pat.MatchString(r.norm) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		var lines []string
		bbox := r.bbox
		rowTxt := r.text
		if rowTxt != "" {
			for _, pat := range patterns {
				rowTxt = pat.ReplaceAllString(rowTxt, "")
			}
			rowTxt = strings.Trim(rowTxt, " :：")
			if rowTxt != "" {
				lines = append(lines, rowTxt)
			}
		}

		for offset := 1; offset <= maxRows; offset++ {
			nextIdx := idx + offset
			if nextIdx >= len(rows) {
				break
			}
			next := rows[nextIdx]
			stopped := false
			for _, pat := range stops {
				if pat.MatchString(next.norm) {
					stopped = true
					break
				}
			}
			if stopped {
				break
			}
			if next.text != "" {
				lines = append(lines, next.text)
			}
			if bbox != nil && next.bbox != nil {
				merged := *bbox
				if next.bbox.X0 < merged.X0 {
					merged.X0 = next.bbox.X0
				}
				if next.bbox.Y0 < merged.Y0 {
					merged.Y0 = next.bbox.Y0
				}
				if next.bbox.X1 > merged.X1 {
					merged.X1 = next.bbox.X1
				}
				if next.bbox.Y1 > merged.Y1 {
					merged.Y1 = next.bbox.Y1
				}
				bbox = &merged
			}
		}

		joined := strings.Join(lines, " / ")
		if joined != "" {
			return ocrtypes.ParsedField{Value: ocrtypes.TextValue(joined), Confidence: 0.55, BBox: bbox, Raw: joined}, true
		}
	}
	return ocrtypes.ParsedField{}, false
}

func extractLaneType(rows []row) (ocrtypes.ParsedField, bool) {
	limit := len(rows)
	if limit > 3 {
		limit = 3
	}
	for _, r := range rows[:limit] {
		if r.text == "" {
			continue
		}
		for _, kw := range laneKeywords {
			if strings.Contains(r.text, kw) {
				return ocrtypes.ParsedField{Value: ocrtypes.TextValue(kw), Confidence: 0.6, BBox: r.bbox, Raw: r.text}, true
			}
		}
	}
	return ocrtypes.ParsedField{}, false
}

// ParseEquipment exports parseEquipment for internal/assemble, which reruns
// the same presence scan over the header's make_model text first and uses
// the sheet parser's equipment_codes only when that scan finds nothing.
func ParseEquipment(text string) string { return parseEquipment(text) }

// parseEquipment implements parse_equipment: a closed-vocabulary presence
// scan, joined with spaces in vocabulary order.
func parseEquipment(text string) string {
	if text == "" {
		return ""
	}
	normalized := normalizeText(text)
	var found []string
	for _, code := range equipmentVocabulary {
		if strings.Contains(normalized, code) {
			found = append(found, code)
		}
	}
	return strings.Join(found, " ")
}

// ExtractDamageCodes exports extractDamageCodes for internal/assemble.
func ExtractDamageCodes(text string) []string { return extractDamageCodes(text) }

// extractDamageCodes implements _extract_damage_codes: distinct
// letter(s)+digit damage-location codes in first-seen order.
func extractDamageCodes(text string) []string {
	if text == "" {
		return nil
	}
	matches := damageCodeRe.FindAllString(normalizeAlnum(text), -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

var damageCodeRe = regexp.MustCompile(`[A-Z]{1,2}\d`)
