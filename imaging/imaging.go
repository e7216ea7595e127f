// Package imaging provides the image-processing capability deckhand's frame
// pipeline is built on: decoding (including multi-frame GIF and SVG sources),
// resizing, region extraction, layer compositing, and alpha flattening.
//
// The Processor interface is what the core consumes; Std is the standard
// implementation. Everything works in terms of *image.RGBA so produced
// buffers can be handed around without conversion.
package imaging

import (
	"image"
	"image/color"
	"time"
)

// Metadata describes a decoded image source.
type Metadata struct {
	Width  int
	Height int

	// FrameCount is 1 for still images.
	FrameCount int

	// LoopCount is the number of times the full animation plays.
	// 0 means loop forever.
	LoopCount int

	// Delays holds the per-frame display durations. len(Delays) == FrameCount.
	Delays []time.Duration

	// Format is the detected source format ("png", "gif", "svg", ...).
	Format string
}

// Decoded is a fully decoded image source. Animated sources are coalesced:
// every frame is a complete canvas-sized image, not a diff.
type Decoded struct {
	Meta   Metadata
	frames []*image.RGBA
}

// NewDecoded builds a Decoded from pre-rendered frames. Intended for
// synthesized sources (solid fills, snapshots of other images).
func NewDecoded(meta Metadata, frames []*image.RGBA) *Decoded {
	return &Decoded{Meta: meta, frames: frames}
}

// Frame returns the coalesced frame at index i.
func (d *Decoded) Frame(i int) *image.RGBA {
	return d.frames[i]
}

// Layer is one input to CompositeLayers, drawn at the given offset.
type Layer struct {
	Image image.Image
	At    image.Point
}

// Processor is the opaque image-processing capability the frame pipeline
// depends on.
type Processor interface {
	// Decode decodes raw bytes into frames plus metadata.
	Decode(data []byte) (*Decoded, error)

	// DecodeFile decodes the file at path.
	DecodeFile(path string) (*Decoded, error)

	// Resize scales src to w x h.
	Resize(src image.Image, w, h int) *image.RGBA

	// ExtractRegion copies the sub-rectangle r out of src.
	ExtractRegion(src image.Image, r image.Rectangle) *image.RGBA

	// CompositeLayers alpha-composites the layers in order onto a
	// transparent w x h canvas. Layer 0 is the base.
	CompositeLayers(w, h int, layers []Layer) *image.RGBA

	// FlattenToOpaque replaces transparency in src with the backing color,
	// producing a fully opaque buffer.
	FlattenToOpaque(src image.Image, backing color.Color) *image.RGBA
}

// ToRaw returns the pixel buffer of img as a flat byte slice, RGBA order
// when withAlpha is true, RGB otherwise.
func ToRaw(img *image.RGBA, withAlpha bool) []byte {
	if withAlpha {
		out := make([]byte, len(img.Pix))
		copy(out, img.Pix)
		return out
	}

	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for x := 0; x < len(row); x += 4 {
			out = append(out, row[x], row[x+1], row[x+2])
		}
	}
	return out
}
