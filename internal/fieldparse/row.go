package fieldparse

import (
	"sort"

	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
)

// row is a horizontal cluster of tokens, sorted left to right.
type row struct {
	tokens []ocrtypes.Token
	text   string
	norm   string
	bbox   *ocrtypes.BBox
}

// groupTokensByRow clusters tokens into rows by y-center, with a threshold
// of max(6, 0.6*median_height), mirroring parsing.py's group_tokens_by_row.
func groupTokensByRow(tokens []ocrtypes.Token) [][]ocrtypes.Token {
	if len(tokens) == 0 {
		return nil
	}
	heights := make([]float64, len(tokens))
	for i, t := range tokens {
		h := t.BBox.Y1 - t.BBox.Y0
		if h < 0 {
			h = -h
		}
		heights[i] = h
	}
	sort.Float64s(heights)
	medianHeight := heights[len(heights)/2]
	threshold := 0.6 * medianHeight
	if threshold < 6 {
		threshold = 6
	}

	sorted := make([]ocrtypes.Token, len(tokens))
	copy(sorted, tokens)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].BBox.Y0 != sorted[j].BBox.Y0 {
			return sorted[i].BBox.Y0 < sorted[j].BBox.Y0
		}
		return sorted[i].BBox.X0 < sorted[j].BBox.X0
	})

	var rows [][]ocrtypes.Token
	for _, tok := range sorted {
		cy := (tok.BBox.Y0 + tok.BBox.Y1) / 2
		placed := false
		for i, r := range rows {
			var sum float64
			for _, t := range r {
				sum += (t.BBox.Y0 + t.BBox.Y1) / 2
			}
			rowCY := sum / float64(len(r))
			if abs(cy-rowCY) <= threshold {
				rows[i] = append(rows[i], tok)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, []ocrtypes.Token{tok})
		}
	}
	return rows
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func rowBBox(tokens []ocrtypes.Token) *ocrtypes.BBox {
	if len(tokens) == 0 {
		return nil
	}
	b := tokens[0].BBox
	for _, t := range tokens[1:] {
		if t.BBox.X0 < b.X0 {
			b.X0 = t.BBox.X0
		}
		if t.BBox.Y0 < b.Y0 {
			b.Y0 = t.BBox.Y0
		}
		if t.BBox.X1 > b.X1 {
			b.X1 = t.BBox.X1
		}
		if t.BBox.Y1 > b.Y1 {
			b.Y1 = t.BBox.Y1
		}
	}
	return &b
}

func sortRowByX(tokens []ocrtypes.Token) []ocrtypes.Token {
	out := make([]ocrtypes.Token, len(tokens))
	copy(out, tokens)
	sort.Slice(out, func(i, j int) bool { return out[i].BBox.X0 < out[j].BBox.X0 })
	return out
}

func rowText(tokens []ocrtypes.Token) string {
	s := ""
	for i, t := range tokens {
		if t.Text == "" {
			continue
		}
		if i > 0 && s != "" {
			s += " "
		}
		s += t.Text
	}
	return s
}

// buildRows converts raw tokens into the sorted-by-x, text-joined row
// structure used throughout the sheet parser.
func buildRows(tokens []ocrtypes.Token) []row {
	grouped := groupTokensByRow(tokens)
	rows := make([]row, len(grouped))
	for i, g := range grouped {
		sorted := sortRowByX(g)
		text := rowText(sorted)
		rows[i] = row{
			tokens: sorted,
			text:   text,
			norm:   normalizeText(text),
			bbox:   rowBBox(sorted),
		}
	}
	return rows
}
