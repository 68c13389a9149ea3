package fieldparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
)

func TestParseSheet_EmptyTokens(t *testing.T) {
	fields := ParseSheet(nil)
	assert.Empty(t, fields)
}

func TestParseSheet_ChassisFromVINPattern(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("1HGCM82633A004352", 0, 0, 200, 10),
	}
	fields := ParseSheet(tokens)
	f, ok := fields.Get("chassis")
	require.True(t, ok)
	assert.Equal(t, "1HGCM82633A004352", f.Value.String())
}

func TestParseSheet_MileageLabeledValue(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("走行", 0, 0, 30, 10),
		tok("62,000km", 40, 0, 140, 10),
	}
	fields := ParseSheet(tokens)
	f, ok := fields.Get("mileage")
	require.True(t, ok)
	assert.Equal(t, "62,000", f.Value.String())
}

func TestParseSheet_RecycleFee(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("リサイクル:10,000円", 0, 0, 150, 10),
	}
	fields := ParseSheet(tokens)
	f, ok := fields.Get("recycle_fee")
	require.True(t, ok)
	assert.Equal(t, "10,000", f.Value.String())
}

func TestParseSheet_EquipmentCodes(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("ナビAW装備", 0, 0, 100, 10),
	}
	fields := ParseSheet(tokens)
	f, ok := fields.Get("equipment_codes")
	require.True(t, ok)
	assert.Equal(t, "ナビ AW", f.Value.String())
}

func TestParseSheet_LaneType(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("輸入車", 0, 0, 60, 10),
	}
	fields := ParseSheet(tokens)
	f, ok := fields.Get("lane_type")
	require.True(t, ok)
	assert.Equal(t, "輸入車", f.Value.String())
}

func TestParseSheet_InspectorReportBlock(t *testing.T) {
	tokens := []ocrtypes.Token{
		tok("検査員報告", 0, 0, 80, 10),
		tok("フロントバンパーに傷あり", 0, 20, 200, 30),
		tok("車台番号1HGCM82633A004352", 0, 40, 300, 50),
	}
	fields := ParseSheet(tokens)
	f, ok := fields.Get("inspector_report")
	require.True(t, ok)
	assert.Contains(t, f.Value.String(), "フロントバンパーに傷あり")
}

func TestParseEquipment_JoinsInVocabularyOrder(t *testing.T) {
	assert.Equal(t, "ナビ AW", ParseEquipment("装備AWナビ"))
}

func TestParseEquipment_Empty(t *testing.T) {
	assert.Equal(t, "", ParseEquipment(""))
}

func TestExtractDamageCodes_DedupesPreservingOrder(t *testing.T) {
	codes := ExtractDamageCodes("A1 RP2 A1 B3")
	assert.Equal(t, []string{"A1", "RP2", "B3"}, codes)
}
