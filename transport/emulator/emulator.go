// Package emulator provides a GUI-based stand-in for real button-display
// hardware, rendering the key grid in an Ebitengine window. Mouse presses
// on a key generate the same down/up transitions the hardware would.
package emulator

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/phinze/deckhand/transport"
)

// Window layout constants.
const (
	displayScale = 2  // on-screen key scale for crisp rendering
	keySpacing   = 24 // gap between keys
	marginX      = 24
	marginY      = 24
	headerHeight = 30
)

// Emulator implements transport.Transport with an on-screen key grid.
type Emulator struct {
	mu sync.RWMutex

	info       transport.Info
	open       bool
	brightness int
	keyImages  []*image.RGBA
	cb         transport.KeyCallback

	stopCh     chan struct{}
	listenDone chan struct{}

	// Input state owned by the game loop.
	pressedKey int
}

// New creates an emulator with the given key grid geometry.
func New(rows, cols, keyW, keyH int) *Emulator {
	e := &Emulator{
		info: transport.Info{
			Model:    "Deckhand Emulator",
			Serial:   "EMU0001",
			KeyCount: rows * cols,
			Rows:     rows,
			Columns:  cols,
			KeySize:  image.Point{X: keyW, Y: keyH},
		},
		brightness: 80,
		pressedKey: -1,
	}
	e.keyImages = make([]*image.RGBA, e.info.KeyCount)
	for i := range e.keyImages {
		e.keyImages[i] = image.NewRGBA(image.Rect(0, 0, keyW, keyH))
	}
	return e
}

// Open marks the emulator ready for use.
func (e *Emulator) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		return fmt.Errorf("emulator: device is already open")
	}
	e.open = true
	e.stopCh = make(chan struct{})
	e.listenDone = make(chan struct{})
	return nil
}

// Close shuts the emulator down and stops the GUI loop.
func (e *Emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return fmt.Errorf("emulator: device is not open")
	}
	e.open = false
	close(e.stopCh)
	return nil
}

// IsOpen returns whether the emulator is open.
func (e *Emulator) IsOpen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.open
}

// Info returns the emulated device geometry.
func (e *Emulator) Info() transport.Info {
	return e.info
}

// SetBrightness dims the on-screen keys.
func (e *Emulator) SetBrightness(percent int) error {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	e.mu.Lock()
	e.brightness = percent
	e.mu.Unlock()
	return nil
}

// FillKey sets the image shown on one key.
func (e *Emulator) FillKey(index int, img image.Image) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= e.info.KeyCount {
		return fmt.Errorf("emulator: invalid key index %d", index)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, e.info.KeySize.X, e.info.KeySize.Y))
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	e.keyImages[index] = rgba
	return nil
}

// ClearKey blanks one key.
func (e *Emulator) ClearKey(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= e.info.KeyCount {
		return fmt.Errorf("emulator: invalid key index %d", index)
	}
	e.keyImages[index] = image.NewRGBA(image.Rect(0, 0, e.info.KeySize.X, e.info.KeySize.Y))
	return nil
}

// FillPanel slices a panel-spanning image into the per-key displays.
func (e *Emulator) FillPanel(img image.Image) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < e.info.KeyCount; i++ {
		row := i / e.info.Columns
		col := i % e.info.Columns
		src := image.Point{X: col * e.info.KeySize.X, Y: row * e.info.KeySize.Y}

		tile := image.NewRGBA(image.Rect(0, 0, e.info.KeySize.X, e.info.KeySize.Y))
		draw.Draw(tile, tile.Bounds(), img, img.Bounds().Min.Add(src), draw.Src)
		e.keyImages[i] = tile
	}
	return nil
}

// ClearPanel blanks every key.
func (e *Emulator) ClearPanel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.keyImages {
		e.keyImages[i] = image.NewRGBA(image.Rect(0, 0, e.info.KeySize.X, e.info.KeySize.Y))
	}
	return nil
}

// SetKeyCallback registers the key transition callback.
func (e *Emulator) SetKeyCallback(cb transport.KeyCallback) {
	e.mu.Lock()
	e.cb = cb
	e.mu.Unlock()
}

// Listen blocks until the emulator is closed. The actual event loop runs
// via RunGUI, which must be called from the main goroutine.
func (e *Emulator) Listen(errCh chan error) error {
	e.mu.RLock()
	if !e.open {
		e.mu.RUnlock()
		return fmt.Errorf("emulator: device is not open")
	}
	done := e.listenDone
	e.mu.RUnlock()

	<-done
	return nil
}

// RunGUI starts the Ebitengine loop. This MUST run on the main goroutine on
// macOS due to Cocoa threading requirements; it blocks until the window is
// closed or the emulator is closed.
func (e *Emulator) RunGUI() error {
	e.mu.RLock()
	if !e.open {
		e.mu.RUnlock()
		return fmt.Errorf("emulator: device is not open")
	}
	done := e.listenDone
	e.mu.RUnlock()

	g := &game{emu: e}
	w, h := g.windowSize()
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("Deckhand Emulator")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeDisabled)

	err := ebiten.RunGame(g)
	close(done)
	return err
}

// game implements ebiten.Game for the emulator window.
type game struct {
	emu *Emulator
}

func (g *game) windowSize() (int, int) {
	info := g.emu.info
	kw := info.KeySize.X * displayScale
	kh := info.KeySize.Y * displayScale
	w := 2*marginX + info.Columns*kw + (info.Columns-1)*keySpacing
	h := headerHeight + 2*marginY + info.Rows*kh + (info.Rows-1)*keySpacing
	return w, h
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.windowSize()
}

func (g *game) Update() error {
	select {
	case <-g.emu.stopCh:
		return ebiten.Termination
	default:
	}
	g.handleInput()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{30, 30, 30, 255})

	g.emu.mu.RLock()
	defer g.emu.mu.RUnlock()

	info := g.emu.info
	ebitenutil.DebugPrintAt(screen, info.Model, marginX, 8)

	kw := info.KeySize.X * displayScale
	kh := info.KeySize.Y * displayScale

	for i, keyImg := range g.emu.keyImages {
		x, y := g.keyOrigin(i)

		// Border
		border := ebiten.NewImage(kw+4, kh+4)
		border.Fill(color.RGBA{60, 60, 60, 255})
		borderOp := &ebiten.DrawImageOptions{}
		borderOp.GeoM.Translate(float64(x-2), float64(y-2))
		screen.DrawImage(border, borderOp)

		if keyImg == nil {
			continue
		}
		img := ebiten.NewImageFromImage(keyImg)
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(displayScale, displayScale)
		op.GeoM.Translate(float64(x), float64(y))
		brightness := float32(g.emu.brightness) / 100
		op.ColorScale.Scale(brightness, brightness, brightness, 1)
		screen.DrawImage(img, op)
	}

	ebitenutil.DebugPrintAt(screen, "Click and hold keys to press them", marginX, g.heightMinus(18))
}

func (g *game) heightMinus(px int) int {
	_, h := g.windowSize()
	return h - px
}

func (g *game) keyOrigin(index int) (int, int) {
	info := g.emu.info
	row := index / info.Columns
	col := index % info.Columns
	kw := info.KeySize.X * displayScale
	kh := info.KeySize.Y * displayScale
	x := marginX + col*(kw+keySpacing)
	y := headerHeight + marginY + row*(kh+keySpacing)
	return x, y
}

// handleInput maps mouse presses onto key transitions. Unlike a simulated
// click, press and release are reported separately so hold semantics work.
func (g *game) handleInput() {
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		mx, my := ebiten.CursorPosition()
		if idx := g.keyAt(mx, my); idx >= 0 {
			g.emu.pressedKey = idx
			g.dispatch(idx, true)
		}
	}

	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) && g.emu.pressedKey >= 0 {
		idx := g.emu.pressedKey
		g.emu.pressedKey = -1
		g.dispatch(idx, false)
	}
}

func (g *game) keyAt(mx, my int) int {
	info := g.emu.info
	kw := info.KeySize.X * displayScale
	kh := info.KeySize.Y * displayScale
	for i := 0; i < info.KeyCount; i++ {
		x, y := g.keyOrigin(i)
		if mx >= x && mx < x+kw && my >= y && my < y+kh {
			return i
		}
	}
	return -1
}

func (g *game) dispatch(index int, pressed bool) {
	g.emu.mu.RLock()
	cb := g.emu.cb
	g.emu.mu.RUnlock()
	if cb == nil {
		return
	}
	// Off the game loop so a slow consumer can't stall rendering.
	go cb(index, pressed)
}
