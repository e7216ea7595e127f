//go:build !darwin

package usbwatch

import "context"

// ElgatoVendorID is the USB vendor ID carried by every Stream Deck model.
const ElgatoVendorID uint16 = 0x0fd9

// Watch has no hotplug backend off macOS; the returned channel never fires
// and callers fall back to interval polling.
func Watch(_ context.Context, _ ...uint16) <-chan struct{} {
	return make(chan struct{})
}
