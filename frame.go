package deckhand

import (
	"image"
	"image/color"
	"time"

	"github.com/phinze/deckhand/imaging"
)

// Frame is one still of an animation sequence. All buffers are produced
// once during load and are immutable afterward, so they may be read by any
// number of consumers without locking.
type Frame struct {
	base       *image.RGBA
	baseOpaque *image.RGBA

	// Press-time variant re-fit to base dimensions; nil when no press
	// scale is configured.
	scaled       *image.RGBA
	scaledOpaque *image.RGBA

	// Row-major per-cell split of the base frame; nil when no split grid
	// is configured.
	cells       []*image.RGBA
	cellsOpaque []*image.RGBA

	delay time.Duration
}

// Base returns the full-size with-alpha buffer.
func (f *Frame) Base() *image.RGBA { return f.base }

// BaseOpaque returns the full-size buffer with transparency flattened onto
// a neutral backing.
func (f *Frame) BaseOpaque() *image.RGBA { return f.baseOpaque }

// Scaled returns the with-alpha press variant, or nil if none exists.
func (f *Frame) Scaled() *image.RGBA { return f.scaled }

// ScaledOpaque returns the flattened press variant, or nil if none exists.
func (f *Frame) ScaledOpaque() *image.RGBA { return f.scaledOpaque }

// CellCount returns the number of split cells (0 without a split grid).
func (f *Frame) CellCount() int { return len(f.cells) }

// Cell returns the with-alpha split cell at index i, or nil when the frame
// has no split variant or i is out of range.
func (f *Frame) Cell(i int) *image.RGBA {
	if i < 0 || i >= len(f.cells) {
		return nil
	}
	return f.cells[i]
}

// CellOpaque returns the flattened split cell at index i, or nil when
// unavailable.
func (f *Frame) CellOpaque(i int) *image.RGBA {
	if i < 0 || i >= len(f.cellsOpaque) {
		return nil
	}
	return f.cellsOpaque[i]
}

// Delay returns the display duration for this frame.
func (f *Frame) Delay() time.Duration { return f.delay }

// Raw returns the base variant as a flat pixel buffer, RGBA when withAlpha
// is true, RGB otherwise.
func (f *Frame) Raw(withAlpha bool) []byte {
	if withAlpha {
		return imaging.ToRaw(f.base, true)
	}
	return imaging.ToRaw(f.baseOpaque, false)
}

// flattenBacking is the neutral color transparency collapses onto when a
// buffer is handed to the hardware.
var flattenBacking = color.Black

// buildFrame derives all configured variants from one composited frame
// already sized to the target dimensions.
func buildFrame(proc imaging.Processor, src *image.RGBA, delay time.Duration, pressScale float64, gridRows, gridCols int) *Frame {
	f := &Frame{
		base:       src,
		baseOpaque: proc.FlattenToOpaque(src, flattenBacking),
		delay:      delay,
	}

	w := src.Bounds().Dx()
	h := src.Bounds().Dy()

	if pressScale > 0 && pressScale != 1 {
		f.scaled = buildScaled(proc, src, w, h, pressScale)
		f.scaledOpaque = proc.FlattenToOpaque(f.scaled, flattenBacking)
	}

	if gridRows > 0 && gridCols > 0 {
		f.cells, f.cellsOpaque = buildCells(proc, src, w, h, gridRows, gridCols)
	}

	return f
}

// buildScaled resizes the base by the press factor, then re-fits the result
// to the base dimensions: center-crop when growing, center-pad with
// transparency when shrinking. Scaled dimensions round down with a 1px floor.
func buildScaled(proc imaging.Processor, src *image.RGBA, w, h int, factor float64) *image.RGBA {
	sw := int(float64(w) * factor)
	sh := int(float64(h) * factor)
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}

	resized := proc.Resize(src, sw, sh)

	if factor > 1 {
		x0 := (sw - w) / 2
		y0 := (sh - h) / 2
		return proc.ExtractRegion(resized, image.Rect(x0, y0, x0+w, y0+h))
	}

	at := image.Point{X: (w - sw) / 2, Y: (h - sh) / 2}
	return proc.CompositeLayers(w, h, []imaging.Layer{{Image: resized, At: at}})
}

// buildCells partitions the base frame into a row-major grid of fixed-size
// sub-buffers covering the full frame.
func buildCells(proc imaging.Processor, src *image.RGBA, w, h, rows, cols int) (cells, opaque []*image.RGBA) {
	cellW := w / cols
	cellH := h / rows

	cells = make([]*image.RGBA, 0, rows*cols)
	opaque = make([]*image.RGBA, 0, rows*cols)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			rect := image.Rect(c*cellW, r*cellH, (c+1)*cellW, (r+1)*cellH)
			cell := proc.ExtractRegion(src, rect)
			cells = append(cells, cell)
			opaque = append(opaque, proc.FlattenToOpaque(cell, flattenBacking))
		}
	}
	return cells, opaque
}
