package fieldparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitMakeModelGrade_SplitsOnModelCode(t *testing.T) {
	makeModel, grade := splitMakeModelGrade("プリウス S")
	assert.Equal(t, "プリウス", makeModel)
	assert.Equal(t, "S", grade)
}

func TestSplitMakeModelGrade_Empty(t *testing.T) {
	makeModel, grade := splitMakeModelGrade("")
	assert.Equal(t, "", makeModel)
	assert.Equal(t, "", grade)
}

func TestSplitShiftEngine_ExtractsTransmissionAndCC(t *testing.T) {
	trans, engine := splitShiftEngine("AT 1800")
	assert.Equal(t, "AT", trans)
	assert.Equal(t, "1800", engine)
}

func TestSplitShiftEngine_EVHasNoEngineCC(t *testing.T) {
	trans, engine := splitShiftEngine("AT EV")
	assert.Equal(t, "AT", trans)
	assert.Equal(t, "", engine)
}

func TestSplitShiftEngine_Empty(t *testing.T) {
	trans, engine := splitShiftEngine("")
	assert.Equal(t, "", trans)
	assert.Equal(t, "", engine)
}

func TestSplitMileageInspection_ExtractsBoth(t *testing.T) {
	mileage, inspection := splitMileageInspection("62,000 R6.5")
	assert.Equal(t, "62,000", mileage)
	assert.Equal(t, "R6.5", inspection)
}

func TestSplitModelEquipment_PrefixMatch(t *testing.T) {
	modelCode, remainder := splitModelEquipment("ZVW30 ナビ AW")
	assert.Equal(t, "ZVW30", modelCode)
	assert.Equal(t, "ナビ AW", remainder)
}

func TestExtractScoreValue_RAPriorityOverNumeric(t *testing.T) {
	assert.Equal(t, "RA", extractScoreValue("RA 4.5"))
}

func TestExtractScoreValue_NumericScore(t *testing.T) {
	assert.Equal(t, "4.5", extractScoreValue("4.5"))
}

func TestExtractScoreValue_Empty(t *testing.T) {
	assert.Equal(t, "", extractScoreValue(""))
}

func TestParseScore_RA(t *testing.T) {
	score, numeric, ok := parseScore("RA")
	assert.Equal(t, "RA", score)
	assert.Equal(t, float64(0), numeric)
	assert.False(t, ok)
}

func TestParseScore_Numeric(t *testing.T) {
	score, numeric, ok := parseScore("4.5")
	assert.Equal(t, "4.5", score)
	assert.Equal(t, 4.5, numeric)
	assert.True(t, ok)
}

func TestParseScore_Empty(t *testing.T) {
	score, numeric, ok := parseScore("")
	assert.Equal(t, "", score)
	assert.Equal(t, float64(0), numeric)
	assert.False(t, ok)
}
