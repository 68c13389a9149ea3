// Package fieldparse extracts ParsedFields from OCR tokens, grounded on
// original_source/backend/worker/ocr/parsing.py. It runs four sub-parsers
// over header tokens (label-neighborhood, combined-token, table-cell,
// pattern-scan) and one parser over sheet tokens (chassis, mileage,
// recycle fee, inspector report, notes, options, equipment codes, lane
// type), all normalizing Japanese full-width punctuation the same way the
// original implementation does before running any regex.
package fieldparse

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// normalizeText applies NFKC and folds full-width punctuation to ASCII
// equivalents, mirroring parsing.py's normalize_text.
func normalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	replacer := strings.NewReplacer(
		" ", "", "　", "",
		"：", ":", "／", "/",
		"‐", "-", "－", "-", "−", "-",
		"，", ",", "．", ".",
	)
	return replacer.Replace(s)
}

var nonAlnumRe = regexp.MustCompile(`[^0-9A-Z]`)

// normalizeAlnum upper-cases and strips everything but ASCII digits and
// letters, mirroring normalize_alnum.
func normalizeAlnum(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "　", "")
	return nonAlnumRe.ReplaceAllString(s, "")
}

var nonDigitRe = regexp.MustCompile(`\D`)

var digitConfusions = map[rune]rune{
	'O': '0', 'o': '0', 'I': '1', 'l': '1', '|': '1', '!': '1', 'S': '5', 'B': '8',
}

// normalizeDigits maps common OCR digit confusions and strips non-digits,
// mirroring normalize_digits.
func normalizeDigits(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	var b strings.Builder
	for _, r := range s {
		if fix, ok := digitConfusions[r]; ok {
			b.WriteRune(fix)
		} else {
			b.WriteRune(r)
		}
	}
	return nonDigitRe.ReplaceAllString(b.String(), "")
}

func isJapanese(r rune) bool {
	return unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han)
}

// NormalizeText exports normalizeText for use by internal/fieldmerge and
// internal/assemble, which need the same full-width folding when comparing
// or re-parsing already-extracted field values.
func NormalizeText(s string) string { return normalizeText(s) }
