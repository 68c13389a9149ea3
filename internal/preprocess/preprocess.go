// Package preprocess normalizes raw auction-sheet photographs before ROI
// detection and OCR: upscaling small images, denoising, sharpening, and
// contrast-limited adaptive histogram equalization on the luma channel.
//
// Grounded on original_source/backend/worker/ocr/preprocessing.py. No
// example repo in the corpus binds OpenCV (checked every go.mod under
// _examples/ — none import gocv or an opencv wrapper), so this package
// implements the algorithm directly over image/image-color rather than
// reaching for a vendor CV binding; golang.org/x/image/draw supplies the
// one piece the standard library lacks, a high-quality resampling filter
// for the upscale step.
package preprocess

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/nanahara/auction-sheet-extractor/internal/pipelineerr"
)

const (
	minHeight       = 1500
	denoiseStrength = 6
	claheClipLimit  = 2.0
	claheTileSize   = 8
)

// Preprocessor runs the fixed preprocessing pipeline on decoded images.
type Preprocessor struct{}

func New() *Preprocessor { return &Preprocessor{} }

// Run decodes raw image bytes and returns the normalized RGBA image.
func (p *Preprocessor) Run(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &pipelineerr.DecodeError{Cause: err}
	}

	rgba := toRGBA(img)
	rgba = upscaleIfSmall(rgba)
	rgba = denoise(rgba, denoiseStrength)
	rgba = sharpen(rgba)
	rgba = claheL(rgba, claheClipLimit, claheTileSize)
	return rgba, nil
}

// Decode reads already-preprocessed image bytes back into an *image.RGBA
// without re-running the normalization pipeline, for stages downstream of
// Run that only need to load the cached preprocessed image.
func Decode(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &pipelineerr.DecodeError{Cause: err}
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}

// upscaleIfSmall rescales so height >= minHeight, using CatmullRom as the
// closest available analogue to cv2.INTER_CUBIC.
func upscaleIfSmall(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	h := b.Dy()
	if h >= minHeight {
		return img
	}
	scale := float64(minHeight) / float64(h)
	newW := int(math.Round(float64(b.Dx()) * scale))
	newH := minHeight

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// denoise applies a box-blur approximation of non-local-means denoising:
// cheap, and adequate for the blocky JPEG noise these photos exhibit.
// strength controls the blur radius.
func denoise(img *image.RGBA, strength int) *image.RGBA {
	radius := strength / 3
	if radius < 1 {
		radius = 1
	}
	b := img.Bounds()
	out := image.NewRGBA(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var rSum, gSum, bSum, aSum, n uint32
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					px, py := x+dx, y+dy
					if px < b.Min.X || px >= b.Max.X || py < b.Min.Y || py >= b.Max.Y {
						continue
					}
					r, g, bl, a := img.At(px, py).RGBA()
					rSum += r >> 8
					gSum += g >> 8
					bSum += bl >> 8
					aSum += a >> 8
					n++
				}
			}
			if n == 0 {
				n = 1
			}
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(rSum / n), G: uint8(gSum / n), B: uint8(bSum / n), A: uint8(aSum / n),
			})
		}
	}
	return out
}

// sharpenKernel is the 3x3 high-pass kernel from SPEC_FULL.md §4.1.
var sharpenKernel = [3][3]int{
	{-1, -1, -1},
	{-1, 9, -1},
	{-1, -1, -1},
}

func sharpen(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var rSum, gSum, bSum int
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					px, py := clamp(x+kx, b.Min.X, b.Max.X-1), clamp(y+ky, b.Min.Y, b.Max.Y-1)
					r, g, bl, _ := img.At(px, py).RGBA()
					w := sharpenKernel[ky+1][kx+1]
					rSum += int(r>>8) * w
					gSum += int(g>>8) * w
					bSum += int(bl>>8) * w
				}
			}
			_, _, _, a := img.At(x, y).RGBA()
			out.SetRGBA(x, y, color.RGBA{
				R: clampByte(rSum), G: clampByte(gSum), B: clampByte(bSum), A: uint8(a >> 8),
			})
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// claheL converts to a hand-rolled RGB<->LAB-like luma/chroma split,
// applies tiled contrast-limited histogram equalization to the luma
// channel only, and converts back. This stands in for cv2's LAB-channel
// CLAHE without depending on a real LAB transform (no colorimetric
// accuracy is needed for OCR contrast enhancement, only a stable
// luma channel).
func claheL(img *image.RGBA, clipLimit float64, tileSize int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	luma := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			luma[y*w+x] = uint8((299*int(r>>8) + 587*int(g>>8) + 114*int(bl>>8)) / 1000)
		}
	}

	equalized := claheEqualize(luma, w, h, clipLimit, tileSize)

	out := image.NewRGBA(b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			oldL := float64((299*int(r>>8) + 587*int(g>>8) + 114*int(bl>>8)) / 1000)
			newL := float64(equalized[y*w+x])
			var ratio float64
			if oldL > 0 {
				ratio = newL / oldL
			} else {
				ratio = 1
			}
			out.SetRGBA(b.Min.X+x, b.Min.Y+y, color.RGBA{
				R: clampByte(int(float64(r>>8) * ratio)),
				G: clampByte(int(float64(g>>8) * ratio)),
				B: clampByte(int(float64(bl>>8) * ratio)),
				A: uint8(a >> 8),
			})
		}
	}
	return out
}

// claheEqualize runs tiled histogram equalization with clipping over a
// single-channel plane, bilinearly interpolating tile mappings across
// pixel positions the way CLAHE implementations do to avoid tile-boundary
// artifacts.
func claheEqualize(plane []uint8, w, h int, clipLimit float64, tileSize int) []uint8 {
	tilesX := (w + tileSize - 1) / tileSize
	tilesY := (h + tileSize - 1) / tileSize
	if tilesX == 0 {
		tilesX = 1
	}
	if tilesY == 0 {
		tilesY = 1
	}

	mappings := make([][]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileSize, ty*tileSize
			x1, y1 := min(x0+tileSize, w), min(y0+tileSize, h)
			mappings[ty*tilesX+tx] = buildClaheLUT(plane, w, x0, y0, x1, y1, clipLimit)
		}
	}

	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tx := float64(x)/float64(tileSize) - 0.5
			ty := float64(y)/float64(tileSize) - 0.5
			tx0 := int(math.Floor(tx))
			ty0 := int(math.Floor(ty))
			fx := tx - float64(tx0)
			fy := ty - float64(ty0)

			v00 := lookupClamped(mappings, tilesX, tilesY, tx0, ty0, plane[y*w+x])
			v10 := lookupClamped(mappings, tilesX, tilesY, tx0+1, ty0, plane[y*w+x])
			v01 := lookupClamped(mappings, tilesX, tilesY, tx0, ty0+1, plane[y*w+x])
			v11 := lookupClamped(mappings, tilesX, tilesY, tx0+1, ty0+1, plane[y*w+x])

			top := float64(v00)*(1-fx) + float64(v10)*fx
			bot := float64(v01)*(1-fx) + float64(v11)*fx
			out[y*w+x] = clampByte(int(top*(1-fy) + bot*fy))
		}
	}
	return out
}

func lookupClamped(mappings [][]uint8, tilesX, tilesY, tx, ty int, v uint8) uint8 {
	tx = clamp(tx, 0, tilesX-1)
	ty = clamp(ty, 0, tilesY-1)
	return mappings[ty*tilesX+tx][v]
}

// buildClaheLUT computes a clipped-histogram equalization lookup table for
// one tile region of plane.
func buildClaheLUT(plane []uint8, stride, x0, y0, x1, y1 int, clipLimit float64) []uint8 {
	var hist [256]int
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[plane[y*stride+x]]++
			n++
		}
	}
	if n == 0 {
		lut := make([]uint8, 256)
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	clip := int(clipLimit * float64(n) / 256.0)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > clip {
			excess += hist[i] - clip
			hist[i] = clip
		}
	}
	redistribute := excess / 256
	for i := range hist {
		hist[i] += redistribute
	}

	lut := make([]uint8, 256)
	cdf := 0
	for i := range hist {
		cdf += hist[i]
		lut[i] = clampByte(cdf * 255 / n)
	}
	return lut
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
