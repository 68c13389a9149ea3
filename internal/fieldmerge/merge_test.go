package fieldmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanahara/auction-sheet-extractor/internal/fieldparse"
	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
)

func tok(text string, x0, y0, x1, y1 float64) ocrtypes.Token {
	return ocrtypes.Token{Text: text, Confidence: 0.9, BBox: ocrtypes.BBox{X0: x0, Y0: y0, X1: x1, Y1: y1}}
}

func TestMerge_CombinesDistinctKeysAcrossSources(t *testing.T) {
	tableCells := fieldparse.ParseHeaderTableCells(map[string]string{"会場": "東京"})
	labelNeighborhood := fieldparse.ParseHeaderLabelNeighborhood([]ocrtypes.Token{
		tok("開催日:2024/05/01", 0, 0, 150, 10),
	})
	combinedToken := fieldparse.ParseHeaderCombinedToken([]ocrtypes.Token{
		tok("出品番号12345", 0, 20, 150, 30),
	})

	merged := Merge(tableCells, labelNeighborhood, combinedToken)

	venue, ok := merged.Get("auction_venue")
	require.True(t, ok)
	assert.Equal(t, "東京", venue.Value.String())

	date, ok := merged.Get("auction_date")
	require.True(t, ok)
	assert.Equal(t, "2024/05/01", date.Value.String())

	lot, ok := merged.Get("lot_no")
	require.True(t, ok)
	assert.Equal(t, "12345", lot.Value.String())
}

func TestMerge_PrimaryValueWinsOnKeyCollision(t *testing.T) {
	primary := fieldparse.ParseHeaderTableCells(map[string]string{"会場": "東京"})
	secondary := fieldparse.ParseHeaderPatternScan([]ocrtypes.Token{
		tok("大阪にて開催", 0, 0, 100, 10),
	})

	merged := Merge(primary, secondary)

	venue, ok := merged.Get("auction_venue")
	require.True(t, ok)
	assert.Equal(t, "東京", venue.Value.String())
	// confidence is the max of both sources even though primary's value wins.
	assert.InDelta(t, 0.97, venue.Confidence, 0.001)
}

func TestMerge_SecondaryFillsKeyPrimaryLacks(t *testing.T) {
	primary := fieldparse.ParseHeaderTableCells(map[string]string{"会場": "東京"})
	secondary := fieldparse.ParseHeaderPatternScan([]ocrtypes.Token{
		tok("落札", 0, 0, 50, 10),
	})

	merged := Merge(primary, secondary)
	result, ok := merged.Get("result")
	require.True(t, ok)
	assert.Equal(t, "落札", result.Value.String())
}

func TestOverlayPatternScan_FillsMissingKey(t *testing.T) {
	merged := fieldparse.ParseHeaderTableCells(map[string]string{"会場": "東京"})
	patternScan := fieldparse.ParseHeaderPatternScan([]ocrtypes.Token{
		tok("落札", 0, 0, 50, 10),
	})

	out := OverlayPatternScan(merged, patternScan)
	result, ok := out.Get("result")
	require.True(t, ok)
	assert.Equal(t, "落札", result.Value.String())
}

func TestOverlayPatternScan_DoesNotOverrideValidExistingValue(t *testing.T) {
	merged := fieldparse.ParseHeaderTableCells(map[string]string{"会場": "東京"})
	patternScan := fieldparse.ParseHeaderPatternScan([]ocrtypes.Token{
		tok("大阪にて開催", 0, 0, 100, 10),
	})

	out := OverlayPatternScan(merged, patternScan)
	venue, ok := out.Get("auction_venue")
	require.True(t, ok)
	assert.Equal(t, "東京", venue.Value.String())
}

func TestOverlayPatternScan_ReplacesLabelLeakedValue(t *testing.T) {
	// The table-cell fallback path stores the raw cell value verbatim; if
	// OCR confused a cell's own label for its value, that leaks through as
	// e.g. auction_venue_round == "開催回" rather than an actual round number.
	merged := fieldparse.ParseHeaderTableCells(map[string]string{"開催回": "開催回"})
	leaked, ok := merged.Get("auction_venue_round")
	require.True(t, ok)
	assert.Equal(t, "開催回", leaked.Value.String())

	patternScan := fieldparse.ParseHeaderPatternScan([]ocrtypes.Token{
		tok("120回", 0, 0, 50, 10),
	})

	out := OverlayPatternScan(merged, patternScan)
	round, ok := out.Get("auction_venue_round")
	require.True(t, ok)
	assert.Equal(t, "120回", round.Value.String())
}

func TestOverlayPatternScan_SkipsLowConfidenceCandidate(t *testing.T) {
	merged := fieldparse.FieldSet{}
	patternScan := fieldparse.ParseHeaderPatternScan([]ocrtypes.Token{
		tok("3.5", 0, 0, 50, 10),
	})
	scoreCandidate, ok := patternScan.Get("score")
	require.True(t, ok)
	require.Less(t, scoreCandidate.Confidence, 0.7)

	out := OverlayPatternScan(merged, patternScan)
	_, ok = out.Get("score")
	assert.False(t, ok)
}
