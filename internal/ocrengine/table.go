package ocrengine

import (
	"regexp"
	"strings"
)

// labelHints are the closed set of terms from SPEC_FULL.md §4.3 that mark a
// table's first row as a label row rather than a data row.
var labelHints = []string{
	"開催日", "出品番号", "会場", "開催回", "年式", "車種名", "グレード",
	"シフト", "排気量", "走行", "車検", "色", "型式", "セリ結果", "応札",
	"スタート", "評価点",
}

var (
	rowRe  = regexp.MustCompile(`(?s)<tr[^>]*>(.*?)</tr>`)
	cellRe = regexp.MustCompile(`(?s)<t[dh][^>]*>(.*?)</t[dh]>`)
	tagRe  = regexp.MustCompile(`<[^>]+>`)
)

// parseTableHTML extracts rows of cell text from a VL table block's HTML
// payload, grounded on SPEC_FULL.md §4.3's label-row/value-row heuristic.
func parseTableHTML(html string) [][]string {
	var rows [][]string
	for _, rowMatch := range rowRe.FindAllStringSubmatch(html, -1) {
		var cells []string
		for _, cellMatch := range cellRe.FindAllStringSubmatch(rowMatch[1], -1) {
			cells = append(cells, cleanCell(cellMatch[1]))
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows
}

func cleanCell(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.TrimSpace(s)
}

// isLabelRow reports whether row contains any of the known label hints.
func isLabelRow(row []string) bool {
	for _, cell := range row {
		for _, hint := range labelHints {
			if strings.Contains(cell, hint) {
				return true
			}
		}
	}
	return false
}

// tableCellsFromRows builds a flat label->value map from parsed table rows:
// if the first row is a label row, the second row is read positionally as
// values; otherwise adjacent columns in each row are paired.
func tableCellsFromRows(rows [][]string) map[string]string {
	cells := make(map[string]string)
	if len(rows) == 0 {
		return cells
	}

	if isLabelRow(rows[0]) && len(rows) > 1 {
		labels, values := rows[0], rows[1]
		for i := 0; i < len(labels) && i < len(values); i++ {
			if labels[i] == "" {
				continue
			}
			cells[labels[i]] = values[i]
		}
		return cells
	}

	for _, row := range rows {
		for i := 0; i+1 < len(row); i += 2 {
			if row[i] == "" {
				continue
			}
			cells[row[i]] = row[i+1]
		}
	}
	return cells
}
