package fieldparse

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
)

// ocrtypesTextField builds a ParsedField from a table cell with no token
// bbox available; cells carry their source block's coordinates separately.
func ocrtypesTextField(value string, confidence float64) ocrtypes.ParsedField {
	return ocrtypes.ParsedField{Value: ocrtypes.TextValue(value), Confidence: confidence, Raw: value}
}

func withRawField(f ocrtypes.ParsedField, raw string) ocrtypes.ParsedField {
	f.Raw = raw
	return f
}

// ParseHeaderTableCells implements sub-parser (c): parse_header_cells /
// _parse_compound_cell. Compound labels like 車種名/グレード are split into
// two keys; simple labels fall back to labelMap matching.
func ParseHeaderTableCells(cells map[string]string) FieldSet {
	results := FieldSet{}
	for label, value := range cells {
		labelNorm := normalizeText(label)
		valueNorm := normalizeText(value)

		parsed := parseCompoundCell(labelNorm, valueNorm, value)
		for k, v := range parsed {
			if _, exists := results[k]; !exists {
				results[k] = v
			}
		}

		if len(parsed) == 0 {
			for key, patterns := range labelMap {
				matched := false
				for _, pat := range patterns {
					if pat.MatchString(labelNorm) {
						matched = true
						break
					}
				}
				if matched {
					if _, exists := results[key]; !exists {
						results[key] = ocrtypesTextField(value, 0.97)
					}
				}
			}
		}
	}
	return results
}

func parseCompoundCell(label, valueNorm, rawValue string) FieldSet {
	results := FieldSet{}

	switch {
	case strings.Contains(label, "車種名") && strings.Contains(label, "グレード"):
		makeModel, grade := splitMakeModelGrade(strings.TrimSpace(norm.NFKC.String(rawValue)))
		if makeModel != "" {
			results[keyMakeModel] = withRawField(ocrtypesTextField(makeModel, 0.95), rawValue)
		}
		if grade != "" {
			results[keyGrade] = withRawField(ocrtypesTextField(grade, 0.95), rawValue)
		}
		return results

	case strings.Contains(label, "車種名"):
		results[keyMakeModel] = ocrtypesTextField(rawValue, 0.97)
		return results

	case strings.Contains(label, "グレード"):
		results[keyGrade] = ocrtypesTextField(rawValue, 0.97)
		return results

	case (strings.Contains(label, "シフト") || strings.Contains(label, "ミッション")) && strings.Contains(label, "排気量"):
		trans, engine := splitShiftEngine(valueNorm)
		if trans != "" {
			results[keyShiftEngine] = withRawField(ocrtypesTextField(strings.TrimSpace(trans+" "+engine), 0.95), rawValue)
		}
		return results

	case strings.Contains(label, "走行") && strings.Contains(label, "車検"):
		mileage, inspection := splitMileageInspection(valueNorm)
		if mileage != "" {
			results[keyMileage] = withRawField(ocrtypesTextField(mileage, 0.95), rawValue)
		}
		if inspection != "" {
			results[keyInspection] = withRawField(ocrtypesTextField(inspection, 0.95), rawValue)
		}
		return results

	case strings.Contains(label, "走行"):
		results[keyMileage] = ocrtypesTextField(rawValue, 0.97)
		return results

	case strings.Contains(label, "車検"):
		results[keyInspection] = ocrtypesTextField(rawValue, 0.97)
		return results

	case strings.Contains(label, "型式"):
		modelCode, _ := splitModelEquipment(valueNorm)
		if modelCode != "" {
			results[keyModelCode] = withRawField(ocrtypesTextField(modelCode, 0.95), rawValue)
		}
		return results

	case (strings.Contains(label, "応札") || strings.Contains(label, "落札")) && strings.Contains(label, "スタート"):
		final, start := splitBids(valueNorm)
		if final != "" {
			results[keyFinalBid] = withRawField(ocrtypesTextField(final, 0.95), rawValue)
		}
		if start != "" {
			results[keyStartingBid] = withRawField(ocrtypesTextField(start, 0.95), rawValue)
		}
		return results

	case strings.Contains(label, "落札") || strings.Contains(label, "応札額"):
		results[keyFinalBid] = ocrtypesTextField(rawValue, 0.97)
		return results

	case strings.Contains(label, "スタート"):
		results[keyStartingBid] = ocrtypesTextField(rawValue, 0.97)
		return results

	case strings.Contains(label, "セリ結果") || strings.Contains(label, "結果"):
		results[keyResult] = ocrtypesTextField(rawValue, 0.97)
		return results

	case strings.Contains(label, "評価") || strings.Contains(label, "点"):
		if score := extractScoreValue(valueNorm); score != "" {
			results[keyScore] = withRawField(ocrtypesTextField(score, 0.95), rawValue)
		}
		return results

	case strings.Contains(label, "色"):
		results[keyColor] = ocrtypesTextField(rawValue, 0.97)
		return results
	}

	return results
}

func splitBids(value string) (string, string) {
	numbers := combinedNumbersRe.FindAllString(value, -1)
	if len(numbers) == 0 {
		return "", ""
	}
	if len(numbers) == 1 {
		return numbers[0], ""
	}
	return numbers[0], numbers[1]
}
