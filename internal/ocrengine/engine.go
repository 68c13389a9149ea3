// Package ocrengine routes auction-sheet crops through a priority-ordered
// list of OCR engine adapters, grounded on
// original_source/backend/worker/ocr/ocr_engine.py's run_ocr priority chain
// (PaddleOCR primary, Tesseract fallback) generalized to SPEC_FULL.md §4.3's
// two-stage VL/line-OCR router with rotation search and table-cell parsing.
//
// No real vision-language or line-OCR vendor SDK appears anywhere in the
// example corpus, so this package ships plain HTTP client adapters (which
// return no tokens when their endpoint is unset) behind the Engine
// interface — the same
// "adapter reachable through an interface, real SDK substitutable later"
// shape the corpus uses for its own OCR/VIN-decoder clients — rather than
// fabricating a binding to a service that was never retrieved.
package ocrengine

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/nanahara/auction-sheet-extractor/internal/metrics"
	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
	"github.com/nanahara/auction-sheet-extractor/internal/pipelineerr"
	"github.com/nanahara/auction-sheet-extractor/internal/tracing"
)

// ErrNoTokens is returned by an adapter that ran but produced no tokens.
var ErrNoTokens = errors.New("ocr engine produced no tokens")

// Engine is the adapter contract every OCR backend implements.
type Engine interface {
	Name() string
	Run(ctx context.Context, img *image.RGBA, lang string) (ocrtypes.OCRResult, error)
}

const (
	minSheetTokens  = 10
	minHeaderTokens = 0
)

// Router tries engines in priority order and applies the crop-specific
// fallback strategy from SPEC_FULL.md §4.3.
type Router struct {
	vl   Engine
	line Engine
}

func NewRouter(vl, line Engine) *Router {
	return &Router{vl: vl, line: line}
}

// RunHeader implements the header-crop policy: VL only, with a line-OCR
// fallback solely when VL returned zero tokens. origin is the crop's
// top-left corner in full-image coordinates; every returned token's bbox
// is translated by it so downstream stages work in full-image space.
func (r *Router) RunHeader(ctx context.Context, crop *image.RGBA, lang string, origin ocrtypes.BBox) (ocrtypes.OCRResult, error) {
	ctx, span := tracing.StartSpan(ctx, "ocr.router.header")
	defer span.End()

	res, err := r.runEngine(ctx, r.vl, crop, lang, "header")
	if err == nil && len(res.Tokens) > 0 {
		translateResult(&res, origin)
		return res, nil
	}

	fallback, ferr := r.runEngine(ctx, r.line, binarize(crop), lang, "header")
	if ferr != nil {
		if err != nil {
			return ocrtypes.OCRResult{}, &pipelineerr.OcrError{Crop: "header", Cause: err}
		}
		translateResult(&res, origin)
		return res, nil
	}
	fallback.Meta.Fallback = "line_ocr_zero_tokens"
	fallback.Meta.FallbackEngine = fallback.Engine
	translateResult(&fallback, origin)
	return fallback, nil
}

// RunSheet implements the sheet-crop policy: VL primary, rotation-search
// line-OCR fallback on low token count or missing value signal, then a
// binarized second-pass fallback kept only if strictly better. origin
// behaves as in RunHeader.
func (r *Router) RunSheet(ctx context.Context, crop *image.RGBA, lang string, origin ocrtypes.BBox) (ocrtypes.OCRResult, error) {
	ctx, span := tracing.StartSpan(ctx, "ocr.router.sheet")
	defer span.End()

	vlRes, vlErr := r.runEngine(ctx, r.vl, crop, lang, "sheet")
	vlTokenCount := len(vlRes.Tokens)
	needsFallback := vlErr != nil || vlTokenCount < minSheetTokens || !hasValueSignal(vlRes.Tokens)

	if !needsFallback {
		translateResult(&vlRes, origin)
		return vlRes, nil
	}

	best, rotation := rotationSearch(ctx, r.line, crop, lang)
	best.Meta.VLTokenCount = vlTokenCount
	best.Meta.VLLowSignal = vlErr == nil && !hasValueSignal(vlRes.Tokens)
	best.Meta.Rotation = rotation
	best.Meta.Fallback = "rotation_search"
	best.Meta.FallbackEngine = best.Engine

	if len(best.Tokens) >= minSheetTokens {
		translateResult(&best, origin)
		return best, nil
	}

	binarized := binarize(crop)
	second, err := r.runEngine(ctx, r.line, binarized, "jpn+eng", "sheet")
	if err == nil && len(second.Tokens) > len(best.Tokens) {
		second.Meta.VLTokenCount = vlTokenCount
		second.Meta.VLLowSignal = best.Meta.VLLowSignal
		second.Meta.Fallback = "binarized_second_pass"
		second.Meta.FallbackEngine = second.Engine
		translateResult(&second, origin)
		return second, nil
	}

	if len(best.Tokens) == 0 && vlErr != nil {
		return ocrtypes.OCRResult{}, &pipelineerr.OcrError{Crop: "sheet", Cause: vlErr}
	}
	translateResult(&best, origin)
	return best, nil
}

// translateResult shifts every token bbox in res by origin's top-left
// corner, converting crop-local coordinates to full-image coordinates.
func translateResult(res *ocrtypes.OCRResult, origin ocrtypes.BBox) {
	for i := range res.Tokens {
		res.Tokens[i].BBox.X0 += origin.X0
		res.Tokens[i].BBox.Y0 += origin.Y0
		res.Tokens[i].BBox.X1 += origin.X0
		res.Tokens[i].BBox.Y1 += origin.Y0
	}
}

func (r *Router) runEngine(ctx context.Context, e Engine, img *image.RGBA, lang, crop string) (ocrtypes.OCRResult, error) {
	if e == nil {
		return ocrtypes.OCRResult{}, errors.New("nil engine")
	}
	start := time.Now()
	res, err := e.Run(ctx, img, lang)
	metrics.OCREngineCallsTotal.WithLabelValues(e.Name(), crop, resultStatus(err)).Inc()
	metrics.OCREngineLatency.WithLabelValues(e.Name(), crop).Observe(time.Since(start).Seconds())
	if err != nil {
		tracing.RecordError(ctx, err)
		return ocrtypes.OCRResult{}, err
	}
	if len(res.Tokens) == 0 {
		return res, ErrNoTokens
	}
	return res, nil
}

func resultStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// rotationSearch runs the line engine at 0/90/180/270 degrees and keeps the
// rotation yielding the most tokens, remapping token bboxes back into the
// un-rotated frame.
func rotationSearch(ctx context.Context, e Engine, crop *image.RGBA, lang string) (ocrtypes.OCRResult, int) {
	angles := []int{0, 90, 180, 270}
	var best ocrtypes.OCRResult
	bestAngle := 0
	bestCount := -1

	for _, angle := range angles {
		rotated := rotateImage(crop, angle)
		res, err := e.Run(ctx, rotated, lang)
		if err != nil {
			continue
		}
		res.Tokens = remapTokens(res.Tokens, crop.Bounds(), angle)
		if len(res.Tokens) > bestCount {
			best = res
			bestCount = len(res.Tokens)
			bestAngle = angle
		}
		if bestCount >= minSheetTokens {
			break
		}
	}
	return best, bestAngle
}
