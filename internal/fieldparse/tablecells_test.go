package fieldparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The compound-cell value reaches splitMakeModelGrade with its spaces kept,
// so a space-separated cell value splits into make_model and grade.
func TestParseHeaderTableCells_CompoundMakeModelGrade_SplitsOnSpace(t *testing.T) {
	cells := map[string]string{
		"車種名/グレード": "プリウス S",
	}
	fields := ParseHeaderTableCells(cells)

	mm, ok := fields.Get("make_model")
	require.True(t, ok)
	assert.Equal(t, "プリウス", mm.Value.String())

	g, ok := fields.Get("grade")
	require.True(t, ok)
	assert.Equal(t, "S", g.Value.String())
}

func TestParseHeaderTableCells_SimpleLabelFallsBackToLabelMap(t *testing.T) {
	cells := map[string]string{
		"会場": "東京",
	}
	fields := ParseHeaderTableCells(cells)
	f, ok := fields.Get("auction_venue")
	require.True(t, ok)
	assert.Equal(t, "東京", f.Value.String())
	assert.InDelta(t, 0.97, f.Confidence, 0.001)
}

func TestParseHeaderTableCells_ShiftEngineCompound(t *testing.T) {
	cells := map[string]string{
		"シフト/排気量": "AT 1800",
	}
	fields := ParseHeaderTableCells(cells)
	f, ok := fields.Get("shift_engine")
	require.True(t, ok)
	assert.Equal(t, "AT 1800", f.Value.String())
}

func TestParseHeaderTableCells_MileageInspectionCompound(t *testing.T) {
	cells := map[string]string{
		"走行/車検": "62,000 R6.5",
	}
	fields := ParseHeaderTableCells(cells)

	mileage, ok := fields.Get("mileage")
	require.True(t, ok)
	assert.Equal(t, "62,000", mileage.Value.String())

	inspection, ok := fields.Get("inspection")
	require.True(t, ok)
	assert.Equal(t, "R6.5", inspection.Value.String())
}

func TestParseHeaderTableCells_BidCompound(t *testing.T) {
	cells := map[string]string{
		"応札額/スタート金額": "850,000/700,000",
	}
	fields := ParseHeaderTableCells(cells)

	final, ok := fields.Get("final_bid")
	require.True(t, ok)
	assert.Equal(t, "850,000", final.Value.String())

	starting, ok := fields.Get("starting_bid")
	require.True(t, ok)
	assert.Equal(t, "700,000", starting.Value.String())
}

func TestParseHeaderTableCells_UnrecognizedLabelIgnored(t *testing.T) {
	cells := map[string]string{
		"謎のラベル": "謎の値",
	}
	fields := ParseHeaderTableCells(cells)
	_, ok := fields.Get("make_model")
	assert.False(t, ok)
}
