package ocrengine

import (
	"image"
	"image/color"
)

const binarizeThreshold = 150

// binarize produces a black/white image via simple luma thresholding, used
// as the preprocess step for the line-OCR fallback passes.
func binarize(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			luma := (299*int(r>>8) + 587*int(g>>8) + 114*int(bl>>8)) / 1000
			v := uint8(0)
			if luma >= binarizeThreshold {
				v = 255
			}
			out.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}
