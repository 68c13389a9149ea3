package fieldparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText_FoldsFullWidthPunctuation(t *testing.T) {
	assert.Equal(t, "2024/05-01", normalizeText("2024／05－01"))
	assert.Equal(t, "開催日:2024/05/01", normalizeText("開催日　：2024／05／01"))
}

func TestNormalizeText_Empty(t *testing.T) {
	assert.Equal(t, "", normalizeText(""))
}

func TestNormalizeAlnum_UppercasesAndStripsNonAlnum(t *testing.T) {
	assert.Equal(t, "ABC123", normalizeAlnum("abc-123"))
	assert.Equal(t, "", normalizeAlnum(""))
}

func TestNormalizeDigits_FixesOCRConfusionsAndStripsLetters(t *testing.T) {
	assert.Equal(t, "10518", normalizeDigits("IO5l8"))
	assert.Equal(t, "", normalizeDigits(""))
}

func TestNormalizeDigits_LeavesPlainDigitsAlone(t *testing.T) {
	assert.Equal(t, "123456", normalizeDigits("123456"))
}
