package fieldparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
)

func tok(text string, x0, y0, x1, y1 float64) ocrtypes.Token {
	return ocrtypes.Token{Text: text, Confidence: 0.9, BBox: ocrtypes.BBox{X0: x0, Y0: y0, X1: x1, Y1: y1}}
}

func TestParseHeaderLabelNeighborhood_InlineValue(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("開催日:2024/05/01", 0, 0, 100, 10),
	}
	fields := ParseHeaderLabelNeighborhood(tokens)
	f, ok := fields.Get("auction_date")
	require.True(t, ok)
	assert.Equal(t, "2024/05/01", f.Value.String())
}

func TestParseHeaderLabelNeighborhood_NeighborValue(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("出品番号", 0, 0, 50, 10),
		tok("12345", 60, 0, 100, 10),
	}
	fields := ParseHeaderLabelNeighborhood(tokens)
	f, ok := fields.Get("lot_no")
	require.True(t, ok)
	assert.Equal(t, "12345", f.Value.String())
}

func TestParseHeaderLabelNeighborhood_NoMatch(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("無関係なテキスト", 0, 0, 100, 10),
	}
	fields := ParseHeaderLabelNeighborhood(tokens)
	_, ok := fields.Get("lot_no")
	assert.False(t, ok)
}

func TestParseHeaderCombinedToken_DateAndLot(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("開催日2024/05/01", 0, 0, 100, 10),
		tok("出品番号12345", 0, 20, 100, 30),
	}
	fields := ParseHeaderCombinedToken(tokens)

	date, ok := fields.Get("auction_date")
	require.True(t, ok)
	assert.Equal(t, "2024/05/01", date.Value.String())
	assert.InDelta(t, 0.9, date.Confidence, 0.001)

	lot, ok := fields.Get("lot_no")
	require.True(t, ok)
	assert.Equal(t, "12345", lot.Value.String())
}

func TestParseHeaderCombinedToken_MakeModelGrade(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("車種名プリウス/S", 0, 0, 100, 10),
	}
	fields := ParseHeaderCombinedToken(tokens)
	mm, ok := fields.Get("make_model")
	require.True(t, ok)
	assert.Equal(t, "プリウス", mm.Value.String())
	grade, ok := fields.Get("grade")
	require.True(t, ok)
	assert.Equal(t, "S", grade.Value.String())
}

func TestParseHeaderCombinedToken_Result(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("セリ結果落札", 0, 0, 100, 10),
	}
	fields := ParseHeaderCombinedToken(tokens)
	f, ok := fields.Get("result")
	require.True(t, ok)
	assert.Equal(t, "落札", f.Value.String())
}

func TestParseHeaderCombinedToken_DoesNotOverwriteExistingKey(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("開催日2024/05/01", 0, 0, 100, 10),
		tok("開催日2099/12/31", 0, 20, 100, 30),
	}
	fields := ParseHeaderCombinedToken(tokens)
	date, ok := fields.Get("auction_date")
	require.True(t, ok)
	assert.Equal(t, "2024/05/01", date.Value.String())
}

func TestParseHeaderPatternScan_VenueAndResult(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("東京会場にて落札", 0, 0, 100, 10),
	}
	fields := ParseHeaderPatternScan(tokens)

	venue, ok := fields.Get("auction_venue")
	require.True(t, ok)
	assert.Equal(t, "東京", venue.Value.String())

	result, ok := fields.Get("result")
	require.True(t, ok)
	assert.Equal(t, "落札", result.Value.String())
}

func TestParseHeaderPatternScan_DateFallback(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("2024/05/01", 0, 0, 100, 10),
	}
	fields := ParseHeaderPatternScan(tokens)
	date, ok := fields.Get("auction_date")
	require.True(t, ok)
	assert.Equal(t, "2024/05/01", date.Value.String())
}

func TestParseHeaderPatternScan_NoMatchReturnsEmptySet(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("無関係", 0, 0, 100, 10),
	}
	fields := ParseHeaderPatternScan(tokens)
	_, ok := fields.Get("auction_date")
	assert.False(t, ok)
	_, ok = fields.Get("lot_no")
	assert.False(t, ok)
}
