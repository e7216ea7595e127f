// Package transport defines the abstraction layer between deckhand's
// rendering core and the physical button-display hardware.
// The real Stream Deck adapter and the on-screen emulator both implement
// Transport.
package transport

import "image"

// Info describes the fixed geometry and identity of an opened device.
type Info struct {
	// Model is the human-readable device model name.
	Model string

	// Serial uniquely identifies the physical unit, when available.
	Serial string

	// KeyCount is the number of addressable key displays.
	KeyCount int

	// Rows and Columns describe the physical key grid.
	// Rows*Columns == KeyCount.
	Rows    int
	Columns int

	// KeySize is the pixel dimensions of a single key display.
	KeySize image.Point
}

// PanelSize returns the pixel dimensions of the full key panel.
func (i Info) PanelSize() image.Point {
	return image.Point{X: i.Columns * i.KeySize.X, Y: i.Rows * i.KeySize.Y}
}

// KeyCallback receives raw key transitions. index is zero-based;
// pressed is true on down and false on up.
type KeyCallback func(index int, pressed bool)

// Transport is the interface deckhand renders through.
//
// Implementations must accept FillKey/FillPanel images of exactly the
// dimensions reported by Info; deckhand always hands over fully opaque
// buffers.
type Transport interface {
	// Lifecycle
	Open() error
	Close() error
	IsOpen() bool

	// Device info
	Info() Info

	// Display
	SetBrightness(percent int) error
	FillKey(index int, img image.Image) error
	ClearKey(index int) error
	FillPanel(img image.Image) error
	ClearPanel() error

	// Input. SetKeyCallback replaces any previously registered callback;
	// it must be set before Listen.
	SetKeyCallback(cb KeyCallback)

	// Listen starts the device event loop. It blocks until the device is
	// closed or fails; errors encountered while dispatching input are sent
	// to errCh when non-nil. Implementations must not send on errCh after
	// Listen returns; the caller closes it then.
	Listen(errCh chan error) error
}
