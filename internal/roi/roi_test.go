package roi

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanahara/auction-sheet-extractor/internal/pipelineerr"
)

// §8 boundary: a header bbox with height ratio 0.06 is accepted, 0.05 is not.
func TestValidHeaderBBox_HeightRatioBoundary(t *testing.T) {
	w, h := 1000.0, 1000.0

	accepted := [4]float64{0, 0, 600, 60} // ratio 0.06
	assert.True(t, validHeaderBBox(accepted, w, h))

	rejected := [4]float64{0, 0, 600, 50} // ratio 0.05
	assert.False(t, validHeaderBBox(rejected, w, h))
}

func TestValidHeaderBBox_HeightRatioUpperBoundary(t *testing.T) {
	w, h := 1000.0, 1000.0

	accepted := [4]float64{0, 0, 600, 250} // ratio 0.25
	assert.True(t, validHeaderBBox(accepted, w, h))

	rejected := [4]float64{0, 0, 600, 260} // ratio 0.26
	assert.False(t, validHeaderBBox(rejected, w, h))
}

func TestValidHeaderBBox_OutOfBoundsRejected(t *testing.T) {
	w, h := 1000.0, 1000.0
	assert.False(t, validHeaderBBox([4]float64{-10, 0, 600, 80}, w, h))
	assert.False(t, validHeaderBBox([4]float64{0, 0, 600, 1100}, w, h))
	assert.False(t, validHeaderBBox([4]float64{600, 0, 600, 80}, w, h))
}

func TestValidSheetBBox_WidthRatioBoundary(t *testing.T) {
	w, h := 1000.0, 1000.0

	accepted := [4]float64{0, 100, 450, 1000} // ratio 0.45
	assert.True(t, validSheetBBox(accepted, w, h))

	rejected := [4]float64{0, 100, 440, 1000} // ratio 0.44
	assert.False(t, validSheetBBox(rejected, w, h))
}

func TestValidSheetBBox_WidthRatioUpperBoundary(t *testing.T) {
	w, h := 1000.0, 1000.0

	accepted := [4]float64{0, 100, 800, 1000} // ratio 0.8
	assert.True(t, validSheetBBox(accepted, w, h))

	rejected := [4]float64{0, 100, 810, 1000} // ratio 0.81
	assert.False(t, validSheetBBox(rejected, w, h))
}

func TestFallbackROI_UsesSpecProportions(t *testing.T) {
	roi := fallbackROI(image.Rect(0, 0, 1000, 1000))
	assert.Equal(t, [4]float64{0, 0, 620, 220}, roi.HeaderBBox)
	assert.Equal(t, [4]float64{0, 220, 620, 1000}, roi.SheetBBox)
	assert.Equal(t, [4]float64{620, 220, 1000, 1000}, roi.PhotosBBox)
	assert.Equal(t, 0, roi.Version)
}

func blueRGBA(w, h int, band image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	for y := band.Min.Y; y < band.Max.Y; y++ {
		for x := band.Min.X; x < band.Max.X; x++ {
			img.Set(x, y, color.RGBA{R: 0, G: 0, B: 255, A: 255})
		}
	}
	return img
}

func TestDetect_FindsQualifyingBandAndDerivesGeometry(t *testing.T) {
	img := blueRGBA(1000, 1000, image.Rect(50, 50, 700, 130))

	roi, err := New().Detect(img)
	require.NoError(t, err)
	assert.Equal(t, 1, roi.Version)
	assert.Equal(t, [4]float64{50, 50, 650, 130}, roi.HeaderBBox)
	assert.Equal(t, [4]float64{0, 130, 620, 1000}, roi.SheetBBox)
	assert.Equal(t, [4]float64{620, 130, 1000, 1000}, roi.PhotosBBox)
}

func TestDetect_NoBlueBandFallsBackWithError(t *testing.T) {
	img := blueRGBA(1000, 1000, image.Rect(0, 0, 0, 0))

	roi, err := New().Detect(img)
	require.Error(t, err)
	var roiErr *pipelineerr.RoiError
	require.ErrorAs(t, err, &roiErr)
	assert.Contains(t, roiErr.Reason, "no blue band detected")
	assert.Equal(t, 0, roi.Version)
	assert.Equal(t, [4]float64{0, 0, 620, 220}, roi.HeaderBBox)
}

func TestDetect_NarrowCandidateIsFilteredOut(t *testing.T) {
	// Too narrow (w < 0.3*W) and too square (aspect < 3) to qualify as the
	// header rule line, even though it's the only blue region present.
	img := blueRGBA(1000, 1000, image.Rect(50, 50, 150, 150))

	roi, err := New().Detect(img)
	require.Error(t, err)
	assert.Equal(t, 0, roi.Version)
	assert.Equal(t, [4]float64{0, 0, 620, 220}, roi.HeaderBBox)
}

func TestDetect_CandidateBelowUpperBandIsFilteredOut(t *testing.T) {
	// y > 0.45*H disqualifies an otherwise well-shaped candidate.
	img := blueRGBA(1000, 1000, image.Rect(50, 600, 700, 650))

	roi, err := New().Detect(img)
	require.Error(t, err)
	assert.Equal(t, 0, roi.Version)
}
