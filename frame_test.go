package deckhand

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phinze/deckhand/imaging"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func TestBuildFrameBaseVariants(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	src.SetRGBA(3, 3, color.RGBA{255, 255, 255, 255})

	f := buildFrame(imaging.Default, src, 50*time.Millisecond, 0, 0, 0)

	assert.Same(t, src, f.Base())
	assert.Equal(t, 50*time.Millisecond, f.Delay())
	assert.Nil(t, f.Scaled())
	assert.Nil(t, f.ScaledOpaque())
	assert.Equal(t, 0, f.CellCount())

	// The opaque variant collapses transparency onto black.
	op := f.BaseOpaque()
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, op.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, op.RGBAAt(3, 3))
}

func TestBuildFrameScaledDimensionsMatchBase(t *testing.T) {
	// The scaled variant is always re-fit to the base dimensions, whatever
	// the factor: crop when growing, pad when shrinking.
	for _, factor := range []float64{0.25, 0.5, 0.999, 1.5, 2} {
		src := solidFrame(8, 8, color.RGBA{200, 0, 0, 255})
		f := buildFrame(imaging.Default, src, 0, factor, 0, 0)

		require.NotNil(t, f.Scaled(), "factor %v", factor)
		b := f.Scaled().Bounds()
		assert.Equal(t, 8, b.Dx(), "factor %v", factor)
		assert.Equal(t, 8, b.Dy(), "factor %v", factor)

		ob := f.ScaledOpaque().Bounds()
		assert.Equal(t, 8, ob.Dx(), "factor %v", factor)
		assert.Equal(t, 8, ob.Dy(), "factor %v", factor)
	}
}

func TestBuildFrameScaleOneIsNoVariant(t *testing.T) {
	f := buildFrame(imaging.Default, solidFrame(8, 8, color.RGBA{1, 2, 3, 255}), 0, 1, 0, 0)
	assert.Nil(t, f.Scaled())
}

func TestBuildScaledShrinkCentersWithTransparentPad(t *testing.T) {
	src := solidFrame(72, 72, color.RGBA{0, 200, 0, 255})
	f := buildFrame(imaging.Default, src, 0, 0.5, 0, 0)

	scaled := f.Scaled()
	// 72 * 0.5 = 36, centered at offset 18.
	assert.Equal(t, uint8(0), scaled.RGBAAt(5, 5).A, "pad stays transparent")
	assert.Equal(t, uint8(200), scaled.RGBAAt(36, 36).G, "content centered")
	assert.Equal(t, uint8(0), scaled.RGBAAt(70, 70).A)

	// Flattened variant turns the pad into backing color.
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, f.ScaledOpaque().RGBAAt(5, 5))
}

func TestBuildScaledGrowCenterCrops(t *testing.T) {
	// Mark the center of the source; after a 2x grow and center crop the
	// mark must still sit at the center.
	src := solidFrame(16, 16, color.RGBA{50, 50, 50, 255})
	src.SetRGBA(8, 8, color.RGBA{255, 0, 0, 255})

	f := buildFrame(imaging.Default, src, 0, 2, 0, 0)

	scaled := f.Scaled()
	b := scaled.Bounds()
	require.Equal(t, 16, b.Dx())
	center := scaled.RGBAAt(8, 8)
	assert.Greater(t, center.R, uint8(100), "center mark survives the crop")
}

func TestBuildScaledTinyFactorFloorsAtOnePixel(t *testing.T) {
	src := solidFrame(8, 8, color.RGBA{9, 9, 9, 255})
	f := buildFrame(imaging.Default, src, 0, 0.01, 0, 0)

	// int(8 * 0.01) == 0 floors to 1; the variant still matches base size.
	b := f.Scaled().Bounds()
	assert.Equal(t, 8, b.Dx())
	assert.Equal(t, 8, b.Dy())
}

func TestBuildFrameCellsRowMajor(t *testing.T) {
	// 2x3 grid over a 6x4 frame: 2x2 cells. Paint each cell region with a
	// distinct red value equal to its row-major index.
	src := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			idx := uint8(r*3 + c)
			for y := r * 2; y < (r+1)*2; y++ {
				for x := c * 2; x < (c+1)*2; x++ {
					src.SetRGBA(x, y, color.RGBA{idx, 0, 0, 255})
				}
			}
		}
	}

	f := buildFrame(imaging.Default, src, 0, 0, 2, 3)

	require.Equal(t, 6, f.CellCount())
	for i := 0; i < 6; i++ {
		cell := f.Cell(i)
		require.NotNil(t, cell, "cell %d", i)
		assert.Equal(t, 2, cell.Bounds().Dx())
		assert.Equal(t, 2, cell.Bounds().Dy())
		assert.Equal(t, uint8(i), cell.RGBAAt(0, 0).R, "cell %d content", i)

		op := f.CellOpaque(i)
		require.NotNil(t, op)
		assert.Equal(t, uint8(255), op.RGBAAt(0, 0).A)
	}

	assert.Nil(t, f.Cell(-1))
	assert.Nil(t, f.Cell(6))
}

func TestFrameRaw(t *testing.T) {
	src := solidFrame(2, 2, color.RGBA{1, 2, 3, 255})
	f := buildFrame(imaging.Default, src, 0, 0, 0, 0)

	assert.Len(t, f.Raw(true), 16)
	assert.Len(t, f.Raw(false), 12)
}
