// Package fieldmerge combines the hypotheses produced by fieldparse's
// sub-parsers into one FieldSet per spec §4.5, grounded on
// original_source/backend/worker/ocr/parsing.py's merge_fields/_values_match.
package fieldmerge

import (
	"strings"

	"github.com/nanahara/auction-sheet-extractor/internal/fieldparse"
	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
)

// Merge folds a priority-ordered list of FieldSets left to right: the
// first argument is the highest-priority source. The pipeline calls it with
// table-cells, then label-neighborhood, then combined-token; the
// pattern-scan fallback is applied afterwards by OverlayPatternScan, not by
// Merge.
func Merge(priority ...fieldparse.FieldSet) fieldparse.FieldSet {
	merged := fieldparse.FieldSet{}
	for i, set := range priority {
		if i == 0 {
			for k, v := range set {
				merged[k] = v
			}
			continue
		}
		merged = mergeTwo(merged, set)
	}
	return merged
}

// mergeTwo implements merge_fields for a single pair: primary wins the
// value, confidence is the max of both, and bbox prefers the secondary's
// box when the two values textually overlap (the secondary crop is
// usually tighter around the matched span). Keys are never named
// explicitly here since fieldparse.FieldSet's key type is unexported;
// ranging over the maps is enough to carry it through.
func mergeTwo(primary, secondary fieldparse.FieldSet) fieldparse.FieldSet {
	merged := make(fieldparse.FieldSet, len(primary)+len(secondary))
	for k, first := range primary {
		if second, ok := secondary[k]; ok {
			merged[k] = combine(first, second)
		} else {
			merged[k] = first
		}
	}
	for k, second := range secondary {
		if _, ok := primary[k]; !ok {
			merged[k] = second
		}
	}
	return merged
}

// OverlayPatternScan applies the fourth composition step (§4.5): the
// whole-text pattern-scan fallback only fills keys the first three stages
// left missing or invalid, and only when its own confidence clears 0.7.
func OverlayPatternScan(merged, patternScan fieldparse.FieldSet) fieldparse.FieldSet {
	out := make(fieldparse.FieldSet, len(merged))
	for k, v := range merged {
		out[k] = v
	}
	for k, candidate := range patternScan {
		if candidate.Confidence < 0.7 {
			continue
		}
		current, exists := out[k]
		if !exists || current.Empty() || !isValidValue(current) {
			out[k] = candidate
		}
	}
	return out
}

// isValidValue rejects a value that is literally a label token that leaked
// through OCR noise (e.g. the field labeled 開催回 carrying "開催回" as its
// own value instead of an actual round number).
func isValidValue(f ocrtypes.ParsedField) bool {
	if f.Empty() {
		return false
	}
	text := fieldparse.NormalizeText(f.Value.String())
	for _, label := range knownLabelTokens {
		if text == label {
			return false
		}
	}
	return true
}

var knownLabelTokens = []string{
	"開催日", "会場", "開催回", "出品番号", "車種名", "グレード", "年式",
	"シフト", "排気量", "走行", "車検", "色", "型式", "セリ結果",
	"応札額", "スタート金額", "スタート", "落札", "評価点",
}

func combine(first, second ocrtypes.ParsedField) ocrtypes.ParsedField {
	value := first.Value
	if value.IsZero() {
		value = second.Value
	}
	confidence := first.Confidence
	if second.Confidence > confidence {
		confidence = second.Confidence
	}
	raw := first.Raw
	if raw == "" {
		raw = second.Raw
	}
	bbox := first.BBox
	if bbox == nil {
		bbox = second.BBox
	}
	if valuesMatch(first.Value, second.Value) && second.BBox != nil {
		bbox = second.BBox
	}
	return ocrtypes.ParsedField{Value: value, Confidence: confidence, BBox: bbox, Raw: raw}
}

// valuesMatch implements _values_match: neither side empty, and one
// normalized string contains the other.
func valuesMatch(left, right ocrtypes.FieldValue) bool {
	if left.IsZero() || right.IsZero() {
		return false
	}
	l := fieldparse.NormalizeText(left.String())
	r := fieldparse.NormalizeText(right.String())
	if l == "" || r == "" {
		return false
	}
	return strings.Contains(l, r) || strings.Contains(r, l)
}
