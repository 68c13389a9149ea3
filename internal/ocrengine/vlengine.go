package ocrengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"

	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
)

// VLEngine adapts a vision-language OCR service reachable over HTTP. When
// Endpoint is empty it behaves as an unconfigured/offline stub and returns
// no tokens, mirroring the "client absent -> deterministic degrade, don't
// crash" idiom the corpus uses for its own external-service adapters
// (e.g. a VIN decoder falling back when its upstream client is nil).
type VLEngine struct {
	Endpoint     string
	HTTPClient   *http.Client
	MaxNewTokens int
	MaxPixels    int
}

func NewVLEngine(endpoint string, maxNewTokens, maxPixels int, client *http.Client) *VLEngine {
	if client == nil {
		client = http.DefaultClient
	}
	return &VLEngine{Endpoint: endpoint, HTTPClient: client, MaxNewTokens: maxNewTokens, MaxPixels: maxPixels}
}

func (e *VLEngine) Name() string { return "vl" }

type vlBlock struct {
	Label   string     `json:"label"` // "text", "table", "image"
	Content string     `json:"content"`
	BBox    [4]float64 `json:"bbox"`
}

type vlResponse struct {
	Blocks []vlBlock `json:"blocks"`
}

func (e *VLEngine) Run(ctx context.Context, img *image.RGBA, lang string) (ocrtypes.OCRResult, error) {
	if e.Endpoint == "" {
		return ocrtypes.OCRResult{Engine: e.Name()}, ErrNoTokens
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ocrtypes.OCRResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, &buf)
	if err != nil {
		return ocrtypes.OCRResult{}, err
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("X-Lang", lang)
	req.Header.Set("X-Max-New-Tokens", fmt.Sprintf("%d", e.MaxNewTokens))
	req.Header.Set("X-Max-Pixels", fmt.Sprintf("%d", e.MaxPixels))

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return ocrtypes.OCRResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ocrtypes.OCRResult{}, fmt.Errorf("vl engine returned status %d", resp.StatusCode)
	}

	var parsed vlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ocrtypes.OCRResult{}, err
	}

	return blocksToResult(e.Name(), parsed.Blocks), nil
}

// blocksToResult converts VL layout blocks into a flat token list plus
// table_cells metadata, per SPEC_FULL.md §4.3.
func blocksToResult(engine string, blocks []vlBlock) ocrtypes.OCRResult {
	var tokens []ocrtypes.Token
	tableCells := make(map[string]string)
	cellCount := 0

	for _, block := range blocks {
		switch block.Label {
		case "table":
			rows := parseTableHTML(block.Content)
			cells := tableCellsFromRows(rows)
			for k, v := range cells {
				tableCells[k] = v
				cellCount++
				tokens = append(tokens, ocrtypes.Token{Text: k + " " + v, Confidence: 0.8, BBox: toBBox(block.BBox)})
			}
		case "image":
			// photo regions carry no text.
		default:
			tokens = append(tokens, splitTextBlock(block.Content, toBBox(block.BBox))...)
		}
	}

	return ocrtypes.OCRResult{
		Engine: engine,
		Tokens: tokens,
		Meta: ocrtypes.OCRResultMeta{
			TableCells:     tableCells,
			TableCellCount: cellCount,
			Method:         "vl",
		},
	}
}

// splitTextBlock splits a content line on whitespace and distributes each
// part's bbox proportionally across the block's width.
func splitTextBlock(content string, bbox ocrtypes.BBox) []ocrtypes.Token {
	parts := splitWhitespace(content)
	if len(parts) == 0 {
		return nil
	}
	if len(parts) == 1 {
		return []ocrtypes.Token{{Text: parts[0], Confidence: 0.9, BBox: bbox}}
	}

	width := bbox.X1 - bbox.X0
	step := width / float64(len(parts))
	out := make([]ocrtypes.Token, len(parts))
	for i, p := range parts {
		x0 := bbox.X0 + float64(i)*step
		out[i] = ocrtypes.Token{
			Text:       p,
			Confidence: 0.9,
			BBox:       ocrtypes.BBox{X0: x0, Y0: bbox.Y0, X1: x0 + step, Y1: bbox.Y1},
		}
	}
	return out
}

func toBBox(b [4]float64) ocrtypes.BBox {
	return ocrtypes.BBox{X0: b[0], Y0: b[1], X1: b[2], Y1: b[3]}
}

func splitWhitespace(s string) []string {
	var parts []string
	var cur []rune
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '　' {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = nil
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}
