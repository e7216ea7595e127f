package deckhand

import (
	goimage "image"

	"github.com/phinze/deckhand/imaging"
)

// Compositor: render jobs assemble the final pixel buffer for one key slot
// or the whole panel from the live Image and interaction state, then hand
// it to the transport. Layer order is always page-background, key
// background, key foreground; absent layers are skipped; the result is
// flattened to full opacity before the write.

func (d *Deck) enqueueKeyRender(page *Page, index int) {
	d.queue.enqueue(func() error { return d.renderKey(page, index) })
}

func (d *Deck) enqueuePanelRender(page *Page) {
	d.queue.enqueue(func() error { return d.renderPanel(page) })
}

// enqueueClear blanks the whole panel, used when the focused page goes away.
func (d *Deck) enqueueClear() {
	d.queue.enqueue(func() error {
		if err := d.transport.ClearPanel(); err != nil {
			return &TransportError{Op: "clearPanel", Index: -1, Err: err}
		}
		return nil
	})
}

// renderKey composes and writes one key slot. Jobs for pages that lost
// focus (or were destroyed) since enqueue time resolve to no-ops.
func (d *Deck) renderKey(page *Page, index int) error {
	d.mu.Lock()
	if d.closed || page == nil || page.destroyed || d.focus != page {
		d.mu.Unlock()
		return nil
	}

	var layers []imaging.Layer
	if bg := page.background; bg != nil {
		if f, ok := bg.CurrentFrame(); ok {
			if cell := f.Cell(index); cell != nil {
				layers = append(layers, imaging.Layer{Image: cell})
			}
		}
	}
	if att := page.keys[index]; att != nil {
		layers = append(layers, keyLayers(att, att.pressed)...)
	}
	d.mu.Unlock()

	if len(layers) == 0 {
		if err := d.transport.ClearKey(index); err != nil {
			return &TransportError{Op: "clearKey", Index: index, Err: err}
		}
		return nil
	}

	canvas := d.proc.CompositeLayers(d.info.KeySize.X, d.info.KeySize.Y, layers)
	flat := d.proc.FlattenToOpaque(canvas, flattenBacking)
	if err := d.transport.FillKey(index, flat); err != nil {
		return &TransportError{Op: "fillKey", Index: index, Err: err}
	}
	return nil
}

// renderPanel composes and writes the full panel for the focused page: the
// page background first, then each attached key's layers at its grid
// offset (row = index / columns, column = index mod columns).
func (d *Deck) renderPanel(page *Page) error {
	d.mu.Lock()
	if d.closed || page == nil || page.destroyed || d.focus != page {
		d.mu.Unlock()
		return nil
	}

	var layers []imaging.Layer
	var background *goimage.RGBA
	if bg := page.background; bg != nil {
		if f, ok := bg.CurrentFrame(); ok {
			background = f.Base()
		}
	}

	for index, att := range page.keys {
		offset := goimage.Point{
			X: (index % d.info.Columns) * d.info.KeySize.X,
			Y: (index / d.info.Columns) * d.info.KeySize.Y,
		}
		for _, l := range keyLayers(att, att.pressed) {
			l.At = offset
			layers = append(layers, l)
		}
	}
	d.mu.Unlock()

	panel := d.info.PanelSize()

	if background != nil {
		if b := background.Bounds(); b.Dx() != panel.X || b.Dy() != panel.Y {
			background = d.proc.Resize(background, panel.X, panel.Y)
		}
		layers = append([]imaging.Layer{{Image: background}}, layers...)
	}

	if len(layers) == 0 {
		if err := d.transport.ClearPanel(); err != nil {
			return &TransportError{Op: "clearPanel", Index: -1, Err: err}
		}
		return nil
	}

	canvas := d.proc.CompositeLayers(panel.X, panel.Y, layers)
	flat := d.proc.FlattenToOpaque(canvas, flattenBacking)
	if err := d.transport.FillPanel(flat); err != nil {
		return &TransportError{Op: "fillPanel", Index: -1, Err: err}
	}
	return nil
}

// keyLayers gathers a key's own contribution: background frame, then the
// foreground in its pressed (scaled) variant when one exists.
func keyLayers(att *attachment, pressed bool) []imaging.Layer {
	var layers []imaging.Layer
	if bg := att.key.background; bg != nil {
		if f, ok := bg.CurrentFrame(); ok {
			layers = append(layers, imaging.Layer{Image: f.Base()})
		}
	}
	if fg := att.key.foreground; fg != nil {
		if f, ok := fg.CurrentFrame(); ok {
			variant := f.Base()
			if pressed && f.Scaled() != nil {
				variant = f.Scaled()
			}
			layers = append(layers, imaging.Layer{Image: variant})
		}
	}
	return layers
}
