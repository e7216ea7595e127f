// Package transporttest provides an in-memory Transport for tests.
package transporttest

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/phinze/deckhand/transport"
)

// Op records one display write handed to the fake.
type Op struct {
	// Kind is one of "fillKey", "clearKey", "fillPanel", "clearPanel",
	// "brightness".
	Kind string

	// Index is the key index for fillKey/clearKey.
	Index int

	// Image is a copy of the written buffer for fillKey/fillPanel.
	Image *image.RGBA

	// Value is the brightness percentage for brightness ops.
	Value int
}

// Fake is a Transport that records every write and lets tests inject
// key transitions.
type Fake struct {
	mu   sync.Mutex
	info transport.Info
	open bool
	cb   transport.KeyCallback
	ops  []Op

	listenStop chan struct{}
}

// New creates a Fake with the given grid geometry and key pixel size.
func New(rows, cols, keyW, keyH int) *Fake {
	return &Fake{
		info: transport.Info{
			Model:    "Fake Deck",
			Serial:   "FAKE0001",
			KeyCount: rows * cols,
			Rows:     rows,
			Columns:  cols,
			KeySize:  image.Point{X: keyW, Y: keyH},
		},
		listenStop: make(chan struct{}),
	}
}

func (f *Fake) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		return fmt.Errorf("transporttest: already open")
	}
	f.open = true
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return fmt.Errorf("transporttest: not open")
	}
	f.open = false
	close(f.listenStop)
	f.listenStop = make(chan struct{})
	return nil
}

func (f *Fake) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *Fake) Info() transport.Info {
	return f.info
}

func (f *Fake) SetBrightness(percent int) error {
	f.record(Op{Kind: "brightness", Value: percent})
	return nil
}

func (f *Fake) FillKey(index int, img image.Image) error {
	if index < 0 || index >= f.info.KeyCount {
		return fmt.Errorf("transporttest: invalid key index %d", index)
	}
	f.record(Op{Kind: "fillKey", Index: index, Image: copyImage(img)})
	return nil
}

func (f *Fake) ClearKey(index int) error {
	if index < 0 || index >= f.info.KeyCount {
		return fmt.Errorf("transporttest: invalid key index %d", index)
	}
	f.record(Op{Kind: "clearKey", Index: index})
	return nil
}

func (f *Fake) FillPanel(img image.Image) error {
	f.record(Op{Kind: "fillPanel", Image: copyImage(img)})
	return nil
}

func (f *Fake) ClearPanel() error {
	f.record(Op{Kind: "clearPanel"})
	return nil
}

func (f *Fake) SetKeyCallback(cb transport.KeyCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *Fake) Listen(errCh chan error) error {
	f.mu.Lock()
	stop := f.listenStop
	f.mu.Unlock()
	<-stop
	return nil
}

// Press injects a key-down transition.
func (f *Fake) Press(index int) {
	f.transition(index, true)
}

// Release injects a key-up transition.
func (f *Fake) Release(index int) {
	f.transition(index, false)
}

func (f *Fake) transition(index int, pressed bool) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(index, pressed)
	}
}

// Ops returns a snapshot of all recorded operations.
func (f *Fake) Ops() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Op, len(f.ops))
	copy(out, f.ops)
	return out
}

// OpsOfKind returns the recorded operations matching kind, in order.
func (f *Fake) OpsOfKind(kind string) []Op {
	var out []Op
	for _, op := range f.Ops() {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// ResetOps discards the recorded operations.
func (f *Fake) ResetOps() {
	f.mu.Lock()
	f.ops = nil
	f.mu.Unlock()
}

func (f *Fake) record(op Op) {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.mu.Unlock()
}

func copyImage(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
