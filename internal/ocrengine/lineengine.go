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

// LineEngine adapts a conventional line-OCR service (the "tesseract"
// fallback role in original_source/backend/worker/ocr/ocr_engine.py,
// renamed here since this port has no real engine name to preserve).
// Same unconfigured-endpoint degrade as VLEngine.
type LineEngine struct {
	Endpoint   string
	HTTPClient *http.Client
}

func NewLineEngine(endpoint string, client *http.Client) *LineEngine {
	if client == nil {
		client = http.DefaultClient
	}
	return &LineEngine{Endpoint: endpoint, HTTPClient: client}
}

func (e *LineEngine) Name() string { return "line" }

type lineToken struct {
	Text       string     `json:"text"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

type lineResponse struct {
	Tokens []lineToken `json:"tokens"`
}

func (e *LineEngine) Run(ctx context.Context, img *image.RGBA, lang string) (ocrtypes.OCRResult, error) {
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

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return ocrtypes.OCRResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ocrtypes.OCRResult{}, fmt.Errorf("line engine returned status %d", resp.StatusCode)
	}

	var parsed lineResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ocrtypes.OCRResult{}, err
	}

	tokens := make([]ocrtypes.Token, len(parsed.Tokens))
	for i, t := range parsed.Tokens {
		tokens[i] = ocrtypes.Token{Text: t.Text, Confidence: t.Confidence, BBox: toBBox(t.BBox)}
	}

	return ocrtypes.OCRResult{Engine: e.Name(), Tokens: tokens, Meta: ocrtypes.OCRResultMeta{Method: "line"}}, nil
}
