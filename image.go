package deckhand

import (
	"fmt"
	goimage "image"
	"image/draw"
	"sync"
	"time"

	"github.com/phinze/deckhand/imaging"
)

// fallbackFrameDelay is used for frames whose source reported no delay.
const fallbackFrameDelay = 100 * time.Millisecond

// FrameEvent notifies that an Image's current frame changed.
type FrameEvent struct {
	Image *Image
	Index int
}

// Image owns a fixed-size sequence of animation frames derived from one or
// more composited sources. Construction returns immediately; frames load
// asynchronously and consumers must treat "no frame yet" as a valid
// transient state (see CurrentFrame).
//
// An Image may be shared by any number of keys and pages; sharing never
// duplicates pixel buffers. Destroy releases the frames and silences all
// further notifications.
type Image struct {
	deck   *Deck
	proc   imaging.Processor
	width  int
	height int

	pressScale float64
	resizeMode ResizeMode
	gridRows   int
	gridCols   int
	custom     map[string]any

	mu         sync.Mutex
	frames     []*Frame
	frameCount int
	loopCount  int
	current    int
	loop       int
	animating  bool
	manual     bool
	pending    int
	timer      *time.Timer
	loadDone   bool
	destroyed  bool

	frameUpdated emitter[FrameEvent]
	loadDoneEv   emitter[*Image]
	destroyedEv  emitter[*Image]
	errs         emitter[error]
}

// NewImage creates an Image with the given target dimensions and starts
// loading the sources in the background. Width and height never change for
// the Image's lifetime.
func (d *Deck) NewImage(width, height int, opts *ImageOptions, sources ...Source) (*Image, error) {
	if opts == nil {
		opts = &ImageOptions{}
	}

	if width <= 0 || height <= 0 {
		return nil, &ValidationError{Op: "NewImage", Reason: fmt.Sprintf("invalid dimensions %dx%d", width, height)}
	}
	if opts.PressScale < 0 || opts.PressScale > 2 {
		return nil, &ValidationError{Op: "NewImage", Reason: fmt.Sprintf("press scale %v outside (0, 2]", opts.PressScale)}
	}
	if (opts.GridRows > 0) != (opts.GridColumns > 0) {
		return nil, &ValidationError{Op: "NewImage", Reason: "split grid needs both rows and columns"}
	}

	img := &Image{
		deck:       d,
		proc:       d.proc,
		width:      width,
		height:     height,
		pressScale: opts.PressScale,
		resizeMode: opts.Resize,
		gridRows:   opts.GridRows,
		gridCols:   opts.GridColumns,
		custom:     opts.Custom,
		pending:    -1,
	}
	img.frameUpdated.onCount = img.observerCountChanged

	go img.load(sources)
	return img, nil
}

// NewKeyImage creates an Image sized to one key display.
func (d *Deck) NewKeyImage(opts *ImageOptions, sources ...Source) (*Image, error) {
	return d.NewImage(d.info.KeySize.X, d.info.KeySize.Y, opts, sources...)
}

// NewPanelImage creates an Image spanning the full key panel, split into
// per-key cells matching the device grid. Intended for page backgrounds.
func (d *Deck) NewPanelImage(opts *ImageOptions, sources ...Source) (*Image, error) {
	if opts == nil {
		opts = &ImageOptions{}
	}
	panelOpts := *opts
	panelOpts.GridRows = d.info.Rows
	panelOpts.GridColumns = d.info.Columns

	size := d.info.PanelSize()
	return d.NewImage(size.X, size.Y, &panelOpts, sources...)
}

// Width returns the fixed target width.
func (img *Image) Width() int { return img.width }

// Height returns the fixed target height.
func (img *Image) Height() int { return img.height }

// FrameCount returns the number of frames the sources declared, or 0 before
// metadata has been resolved.
func (img *Image) FrameCount() int {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.frameCount
}

// Delays returns the per-frame display durations for the frames loaded so
// far. The slice is a copy.
func (img *Image) Delays() []time.Duration {
	img.mu.Lock()
	defer img.mu.Unlock()
	delays := make([]time.Duration, 0, len(img.frames))
	for _, f := range img.frames {
		if f == nil {
			delays = append(delays, 0)
			continue
		}
		delays = append(delays, f.Delay())
	}
	return delays
}

// LoopCount returns the configured loop count (0 = infinite).
func (img *Image) LoopCount() int {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.loopCount
}

// CurrentFrame returns the frame currently visible. Before the first frame
// finishes loading, or after Destroy, ok is false. This never blocks on a
// load in progress; it reports the last frame that completed.
func (img *Image) CurrentFrame() (f *Frame, ok bool) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.destroyed || len(img.frames) == 0 {
		return nil, false
	}
	return img.frames[img.current], true
}

// CurrentIndex returns the index of the visible frame and the completed loop
// count.
func (img *Image) CurrentIndex() (frame, loop int) {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.current, img.loop
}

// Custom returns the caller-defined attribute map from the options.
func (img *Image) Custom() map[string]any { return img.custom }

// OnFrameUpdated subscribes to current-frame changes. The animation timer
// only runs while at least one subscriber exists.
func (img *Image) OnFrameUpdated(fn func(FrameEvent)) (cancel func()) {
	return img.frameUpdated.subscribe(fn)
}

// OnLoad subscribes to completion of the initial load of all frames.
func (img *Image) OnLoad(fn func(*Image)) (cancel func()) {
	return img.loadDoneEv.subscribe(fn)
}

// OnDestroy subscribes to the Image's destruction.
func (img *Image) OnDestroy(fn func(*Image)) (cancel func()) {
	return img.destroyedEv.subscribe(fn)
}

// OnError subscribes to non-fatal pipeline errors (dropped sources, failed
// frames).
func (img *Image) OnError(fn func(error)) (cancel func()) {
	return img.errs.subscribe(fn)
}

// Destroy stops animation, releases frame buffers, and silences all further
// notifications from this Image. Keys and pages still referencing it render
// as if it had no frames.
func (img *Image) Destroy() error {
	img.mu.Lock()
	if img.destroyed {
		img.mu.Unlock()
		return &LifecycleError{Entity: "image", Op: "destroy"}
	}
	img.destroyed = true
	img.animating = false
	img.stopTimerLocked()
	img.frames = nil
	img.mu.Unlock()

	img.destroyedEv.emit(img)
	return nil
}

// load is the frame pipeline: resolve sources, composite, then derive each
// frame's variants. Runs on its own goroutine; every stage failure is
// non-fatal and reported through the error subscription.
func (img *Image) load(sources []Source) {
	layers := make([]*imaging.Decoded, 0, len(sources))
	for i, s := range sources {
		dec, err := img.resolveSource(s)
		if err != nil {
			img.reportError(&UnrecognizedSourceError{Index: i, Err: err})
			continue
		}
		layers = append(layers, dec)
	}

	// A load never ends with zero layers.
	if len(layers) == 0 {
		layers = append(layers, img.blankLayer())
	}

	base := layers[0]

	// Overlay layers contribute their current (first) frame only; the base
	// layer drives frame count, loop count, and delays.
	overlays := make([]*goimage.RGBA, 0, len(layers)-1)
	for _, l := range layers[1:] {
		overlays = append(overlays, img.fit(l.Frame(0)))
	}

	img.mu.Lock()
	if img.destroyed {
		img.mu.Unlock()
		return
	}
	img.frameCount = base.Meta.FrameCount
	img.loopCount = base.Meta.LoopCount
	img.mu.Unlock()

	for i := 0; i < base.Meta.FrameCount; i++ {
		img.mu.Lock()
		dead := img.destroyed
		img.mu.Unlock()
		if dead {
			return
		}

		composed := img.fit(base.Frame(i))
		if len(overlays) > 0 {
			ls := make([]imaging.Layer, 0, 1+len(overlays))
			ls = append(ls, imaging.Layer{Image: composed})
			for _, o := range overlays {
				ls = append(ls, imaging.Layer{Image: o})
			}
			composed = img.proc.CompositeLayers(img.width, img.height, ls)
		}

		delay := fallbackFrameDelay
		if i < len(base.Meta.Delays) && base.Meta.Delays[i] > 0 {
			delay = base.Meta.Delays[i]
		}

		frame := buildFrame(img.proc, composed, delay, img.pressScale, img.gridRows, img.gridCols)
		img.frameLoaded(i, frame)
	}

	img.finishLoad()
}

// resolveSource turns one Source into decoded frames, fit to the target
// dimensions downstream.
func (img *Image) resolveSource(s Source) (*imaging.Decoded, error) {
	switch s.kind {
	case sourceBytes:
		return img.proc.Decode(s.data)
	case sourceFile:
		return img.proc.DecodeFile(s.path)
	case sourceFill:
		frame := goimage.NewRGBA(goimage.Rect(0, 0, img.width, img.height))
		draw.Draw(frame, frame.Bounds(), &goimage.Uniform{C: s.fill}, goimage.Point{}, draw.Src)
		return stillDecoded(frame), nil
	case sourceBlank:
		return img.blankLayer(), nil
	case sourceSnapshot:
		if s.img == nil {
			return nil, fmt.Errorf("nil source image")
		}
		f, ok := s.img.CurrentFrame()
		if !ok {
			return nil, fmt.Errorf("source image has no loaded frame")
		}
		return stillDecoded(f.Base()), nil
	default:
		return nil, fmt.Errorf("unrecognized source shape")
	}
}

func (img *Image) blankLayer() *imaging.Decoded {
	return stillDecoded(goimage.NewRGBA(goimage.Rect(0, 0, img.width, img.height)))
}

func stillDecoded(frame *goimage.RGBA) *imaging.Decoded {
	b := frame.Bounds()
	return imaging.NewDecoded(imaging.Metadata{
		Width:      b.Dx(),
		Height:     b.Dy(),
		FrameCount: 1,
		Delays:     []time.Duration{0},
	}, []*goimage.RGBA{frame})
}

// fit places a resolved layer onto the target dimensions. Under the default
// contain mode a smaller source is centered on a transparent canvas without
// enlargement, and a larger source is scaled down preserving aspect ratio;
// ResizeStretch scales to the exact target instead.
func (img *Image) fit(src *goimage.RGBA) *goimage.RGBA {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == img.width && sh == img.height {
		return src
	}
	if img.resizeMode == ResizeStretch {
		return img.proc.Resize(src, img.width, img.height)
	}

	if sw > img.width || sh > img.height {
		scale := float64(img.width) / float64(sw)
		if s := float64(img.height) / float64(sh); s < scale {
			scale = s
		}
		sw = int(float64(sw) * scale)
		sh = int(float64(sh) * scale)
		if sw < 1 {
			sw = 1
		}
		if sh < 1 {
			sh = 1
		}
		src = img.proc.Resize(src, sw, sh)
	}

	at := goimage.Point{X: (img.width - sw) / 2, Y: (img.height - sh) / 2}
	return img.proc.CompositeLayers(img.width, img.height, []imaging.Layer{{Image: src, At: at}})
}

// frameLoaded records a completed frame. Frame 0 becomes current on its own
// completion; a deferred animation advance waiting on this index becomes
// visible now.
func (img *Image) frameLoaded(i int, f *Frame) {
	img.mu.Lock()
	if img.destroyed {
		img.mu.Unlock()
		return
	}
	img.frames = append(img.frames, f)

	notify := false
	if i == 0 {
		img.current = 0
		notify = true
	}
	if img.pending == i {
		img.pending = -1
		img.current = i
		notify = true
	}
	idx := img.current
	img.mu.Unlock()

	if notify {
		img.frameUpdated.emit(FrameEvent{Image: img, Index: idx})
		img.armTimer()
	}
}

// finishLoad runs after every frame completed. Animation auto-starts for
// multi-frame images unless the caller already took explicit control.
func (img *Image) finishLoad() {
	img.mu.Lock()
	if img.destroyed {
		img.mu.Unlock()
		return
	}
	img.loadDone = true
	if img.frameCount > 1 {
		if !img.manual {
			img.animating = true
		}
	} else {
		// StartAnimation called mid-load on what turned out to be a still
		// image; the documented no-op applies.
		img.animating = false
	}
	img.mu.Unlock()

	img.armTimer()
	img.loadDoneEv.emit(img)
}

func (img *Image) reportError(err error) {
	img.mu.Lock()
	dead := img.destroyed
	img.mu.Unlock()
	if dead {
		return
	}
	img.errs.emit(err)
	if img.deck != nil {
		img.deck.emitError(err)
	}
}
