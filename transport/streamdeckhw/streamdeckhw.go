// Package streamdeckhw adapts a real Elgato Stream Deck, driven through
// rafaelmartins.com/p/streamdeck, to the deckhand transport interface.
package streamdeckhw

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"rafaelmartins.com/p/streamdeck"

	"github.com/phinze/deckhand/transport"
)

// Adapter wraps a streamdeck.Device to implement transport.Transport.
type Adapter struct {
	dev *streamdeck.Device

	mu sync.Mutex
	cb transport.KeyCallback
}

// Get finds a connected Stream Deck by serial number and wraps it.
// An empty serial matches the first device found.
func Get(serial string) (*Adapter, error) {
	dev, err := streamdeck.GetDevice(serial)
	if err != nil {
		return nil, fmt.Errorf("streamdeckhw: locating device: %w", err)
	}
	return &Adapter{dev: dev}, nil
}

// New wraps an already obtained streamdeck.Device.
func New(dev *streamdeck.Device) *Adapter {
	return &Adapter{dev: dev}
}

// Open opens the device and registers the raw key handlers.
func (a *Adapter) Open() error {
	if err := a.dev.Open(); err != nil {
		return fmt.Errorf("streamdeckhw: open: %w", err)
	}

	// One handler per key. The library invokes the handler on press;
	// WaitForRelease blocks that handler until the matching release, which
	// gives us both edges of the transition.
	return a.dev.ForEachKey(func(id streamdeck.KeyID) error {
		index := int(id) - 1
		return a.dev.AddKeyHandler(id, func(_ *streamdeck.Device, k *streamdeck.Key) error {
			a.dispatch(index, true)
			k.WaitForRelease()
			a.dispatch(index, false)
			return nil
		})
	})
}

func (a *Adapter) dispatch(index int, pressed bool) {
	a.mu.Lock()
	cb := a.cb
	a.mu.Unlock()
	if cb != nil {
		cb(index, pressed)
	}
}

// Close closes the device.
func (a *Adapter) Close() error {
	return a.dev.Close()
}

// IsOpen returns whether the device is open.
func (a *Adapter) IsOpen() bool {
	return a.dev.IsOpen()
}

// Info returns the device geometry and identity.
func (a *Adapter) Info() transport.Info {
	keyCount := int(a.dev.GetKeyCount())
	rows, cols := gridFor(keyCount)

	keySize := image.Point{}
	if rect, err := a.dev.GetKeyImageRectangle(); err == nil {
		keySize = rect.Size()
	}

	return transport.Info{
		Model:    a.dev.GetModelName(),
		KeyCount: keyCount,
		Rows:     rows,
		Columns:  cols,
		KeySize:  keySize,
	}
}

// gridFor maps a key count to the physical row/column layout of the
// known Stream Deck models. Unknown counts fall back to a single row.
func gridFor(keyCount int) (rows, cols int) {
	switch keyCount {
	case 6: // Mini
		return 2, 3
	case 8: // Plus
		return 2, 4
	case 15: // Original, MK.2
		return 3, 5
	case 32: // XL
		return 4, 8
	default:
		return 1, keyCount
	}
}

// SetBrightness sets the device brightness (0-100).
func (a *Adapter) SetBrightness(percent int) error {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	return a.dev.SetBrightness(byte(percent))
}

// FillKey writes the image to one key display.
func (a *Adapter) FillKey(index int, img image.Image) error {
	return a.dev.SetKeyImage(streamdeck.KeyID(index+1), img)
}

// ClearKey blanks one key display.
func (a *Adapter) ClearKey(index int) error {
	return a.dev.ClearKey(streamdeck.KeyID(index + 1))
}

// FillPanel writes a panel-spanning image by slicing it into per-key tiles.
// The hardware has no whole-panel write, so each tile goes out as an
// individual key image in index order.
func (a *Adapter) FillPanel(img image.Image) error {
	info := a.Info()
	for i := 0; i < info.KeyCount; i++ {
		row := i / info.Columns
		col := i % info.Columns

		tile := image.NewRGBA(image.Rect(0, 0, info.KeySize.X, info.KeySize.Y))
		src := image.Point{X: col * info.KeySize.X, Y: row * info.KeySize.Y}
		draw.Draw(tile, tile.Bounds(), img, img.Bounds().Min.Add(src), draw.Src)

		if err := a.dev.SetKeyImage(streamdeck.KeyID(i+1), tile); err != nil {
			return fmt.Errorf("streamdeckhw: panel tile %d: %w", i, err)
		}
	}
	return nil
}

// ClearPanel blanks every key display.
func (a *Adapter) ClearPanel() error {
	return a.dev.ForEachKey(func(id streamdeck.KeyID) error {
		return a.dev.ClearKey(id)
	})
}

// SetKeyCallback registers the raw key transition callback.
func (a *Adapter) SetKeyCallback(cb transport.KeyCallback) {
	a.mu.Lock()
	a.cb = cb
	a.mu.Unlock()
}

// Listen starts the device event loop.
func (a *Adapter) Listen(errCh chan error) error {
	return a.dev.Listen(errCh)
}

// Underlying returns the wrapped streamdeck.Device for direct access.
func (a *Adapter) Underlying() *streamdeck.Device {
	return a.dev
}
