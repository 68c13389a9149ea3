package ocrengine

import (
	"image"
	"image/draw"

	"github.com/nanahara/auction-sheet-extractor/internal/ocrtypes"
)

// rotateImage returns a new image rotated clockwise by angle degrees, where
// angle is one of 0, 90, 180, 270.
func rotateImage(img *image.RGBA, angle int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch angle {
	case 0:
		out := image.NewRGBA(b)
		draw.Draw(out, b, img, b.Min, draw.Src)
		return out
	case 90:
		out := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(h-1-y, x, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return out
	case 180:
		out := image.NewRGBA(b)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(w-1-x, h-1-y, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return out
	case 270:
		out := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(y, w-1-x, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return out
	default:
		out := image.NewRGBA(b)
		draw.Draw(out, b, img, b.Min, draw.Src)
		return out
	}
}

// remapTokens maps token bboxes produced on a rotated crop back into the
// coordinate frame of origBounds (the pre-rotation crop), by mapping each
// of the 4 corners through the inverse rotation individually and then
// re-bounding, per SPEC_FULL.md §4.3.
func remapTokens(tokens []ocrtypes.Token, origBounds image.Rectangle, angle int) []ocrtypes.Token {
	if angle == 0 {
		return tokens
	}
	w, h := float64(origBounds.Dx()), float64(origBounds.Dy())

	out := make([]ocrtypes.Token, len(tokens))
	for i, t := range tokens {
		corners := [4][2]float64{
			{t.BBox.X0, t.BBox.Y0},
			{t.BBox.X1, t.BBox.Y0},
			{t.BBox.X1, t.BBox.Y1},
			{t.BBox.X0, t.BBox.Y1},
		}
		minX, minY := w, h
		maxX, maxY := 0.0, 0.0
		for _, c := range corners {
			x, y := inverseRotatePoint(c[0], c[1], w, h, angle)
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
		out[i] = t
		out[i].BBox = ocrtypes.BBox{X0: minX, Y0: minY, X1: maxX, Y1: maxY}
	}
	return out
}

// inverseRotatePoint maps (x, y) in the rotated-by-angle frame back to the
// original w x h frame.
func inverseRotatePoint(x, y, origW, origH float64, angle int) (float64, float64) {
	switch angle {
	case 90:
		// rotated frame is origH x origW; inverse of "rotate 90 clockwise"
		return y, origH - x
	case 180:
		return origW - x, origH - y
	case 270:
		return origW - y, x
	default:
		return x, y
	}
}
