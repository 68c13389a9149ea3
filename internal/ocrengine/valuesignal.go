package ocrengine

import (
	"unicode"

	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
)

// hasValueSignal implements the sheet-OCR quality gate from
// SPEC_FULL.md §4.3: at least max(3, 10%*n) tokens must look like a value
// (contain a digit, an uppercase run of length >= 2, or be length >= 6), or
// any single token must contain an 8-17 char VIN-like run.
func hasValueSignal(tokens []ocrtypes.Token) bool {
	if len(tokens) == 0 {
		return false
	}
	threshold := len(tokens) / 10
	if threshold < 3 {
		threshold = 3
	}

	signalCount := 0
	for _, t := range tokens {
		if looksLikeValue(t.Text) {
			signalCount++
		}
		if containsVINLikeRun(t.Text) {
			return true
		}
	}
	return signalCount >= threshold
}

func looksLikeValue(s string) bool {
	if len([]rune(s)) >= 6 {
		return true
	}
	hasDigit := false
	upperRun := 0
	maxUpperRun := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			hasDigit = true
		}
		if unicode.IsUpper(r) && r <= unicode.MaxASCII {
			upperRun++
			if upperRun > maxUpperRun {
				maxUpperRun = upperRun
			}
		} else {
			upperRun = 0
		}
	}
	return hasDigit || maxUpperRun >= 2
}

// containsVINLikeRun reports whether s contains an 8-17 char run of
// alphanumeric ASCII characters, a loose proxy for a VIN/chassis fragment.
func containsVINLikeRun(s string) bool {
	return hasRunInRange(s, 8, 17)
}

func isAlnumASCII(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func hasRunInRange(s string, lo, hi int) bool {
	run := 0
	for _, r := range s {
		if isAlnumASCII(r) {
			run++
			if run >= lo && run <= hi {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}
