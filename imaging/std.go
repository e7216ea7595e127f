package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"strings"
	"time"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// defaultFrameDelay is used when an animated source reports a zero delay
// for a frame.
const defaultFrameDelay = 100 * time.Millisecond

// svgFallbackSize is the render size for SVGs that declare no viewbox.
const svgFallbackSize = 256

// Std is the standard Processor built on the Go image packages, x/image
// for high quality scaling and extra decoders, and oksvg/rasterx for SVG
// rasterization.
type Std struct{}

var _ Processor = Std{}

// Default is the Processor used when none is configured.
var Default Processor = Std{}

// Decode decodes raw bytes. GIF is decoded frame-by-frame with coalescing;
// SVG is rasterized at its intrinsic size; everything else goes through the
// registered image decoders (PNG, JPEG, WebP, BMP).
func (Std) Decode(data []byte) (*Decoded, error) {
	switch {
	case looksLikeGIF(data):
		return decodeGIF(data)
	case looksLikeSVG(data):
		return decodeSVG(data)
	default:
		return decodeStill(data)
	}
}

// DecodeFile decodes the image file at path.
func (s Std) DecodeFile(path string) (*Decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("imaging: reading %s: %w", path, err)
	}
	return s.Decode(data)
}

// Resize scales src to w x h using Catmull-Rom interpolation.
func (Std) Resize(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// ExtractRegion copies the sub-rectangle r out of src into a buffer
// anchored at the origin.
func (Std) ExtractRegion(src image.Image, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst
}

// CompositeLayers alpha-composites the layers in order onto a transparent
// canvas.
func (Std) CompositeLayers(w, h int, layers []Layer) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for _, l := range layers {
		if l.Image == nil {
			continue
		}
		b := l.Image.Bounds()
		target := image.Rect(l.At.X, l.At.Y, l.At.X+b.Dx(), l.At.Y+b.Dy())
		draw.Draw(dst, target, l.Image, b.Min, draw.Over)
	}
	return dst
}

// FlattenToOpaque draws src over a solid backing, producing a buffer with
// full alpha everywhere.
func (Std) FlattenToOpaque(src image.Image, backing color.Color) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{backing}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func looksLikeGIF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("GIF8"))
}

func looksLikeSVG(data []byte) bool {
	head := strings.TrimLeft(string(data[:min(len(data), 512)]), " \t\r\n")
	return strings.HasPrefix(head, "<svg") ||
		strings.HasPrefix(head, "<?xml") && strings.Contains(head, "<svg")
}

func decodeStill(data []byte) (*Decoded, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}

	b := img.Bounds()
	frame := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(frame, frame.Bounds(), img, b.Min, draw.Src)

	return &Decoded{
		Meta: Metadata{
			Width:      b.Dx(),
			Height:     b.Dy(),
			FrameCount: 1,
			Delays:     []time.Duration{0},
			Format:     format,
		},
		frames: []*image.RGBA{frame},
	}, nil
}

// decodeGIF decodes all frames and coalesces them: each produced frame is a
// full canvas with the GIF disposal semantics already applied.
func decodeGIF(data []byte) (*Decoded, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("imaging: gif has no frames")
	}

	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		b := g.Image[0].Bounds()
		w, h = b.Max.X, b.Max.Y
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	frames := make([]*image.RGBA, 0, len(g.Image))
	delays := make([]time.Duration, 0, len(g.Image))

	for i, src := range g.Image {
		var restore *image.RGBA
		if i < len(g.Disposal) && g.Disposal[i] == gif.DisposalPrevious {
			restore = cloneRGBA(canvas)
		}

		draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Over)
		frames = append(frames, cloneRGBA(canvas))

		delay := defaultFrameDelay
		if i < len(g.Delay) && g.Delay[i] > 0 {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		delays = append(delays, delay)

		if i < len(g.Disposal) {
			switch g.Disposal[i] {
			case gif.DisposalBackground:
				draw.Draw(canvas, src.Bounds(), image.Transparent, image.Point{}, draw.Src)
			case gif.DisposalPrevious:
				canvas = restore
			}
		}
	}

	return &Decoded{
		Meta: Metadata{
			Width:      w,
			Height:     h,
			FrameCount: len(frames),
			LoopCount:  gifLoopCount(g.LoopCount),
			Delays:     delays,
			Format:     "gif",
		},
		frames: frames,
	}, nil
}

// gifLoopCount converts image/gif loop semantics (0 = forever, -1 = once,
// n = n+1 plays) to deckhand's (0 = forever, n = n plays).
func gifLoopCount(lc int) int {
	switch {
	case lc == 0:
		return 0
	case lc < 0:
		return 1
	default:
		return lc + 1
	}
}

func decodeSVG(data []byte) (*Decoded, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: parse svg: %w", err)
	}

	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = svgFallbackSize, svgFallbackSize
	}

	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))

	scanner := rasterx.NewScannerGV(w, h, frame, frame.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	return &Decoded{
		Meta: Metadata{
			Width:      w,
			Height:     h,
			FrameCount: 1,
			Delays:     []time.Duration{0},
			Format:     "svg",
		},
		frames: []*image.RGBA{frame},
	}, nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
