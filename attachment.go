package deckhand

import (
	"fmt"
	"time"
)

// Placement names one (page, slot) pair a key occupies.
type Placement struct {
	Page  *Page
	Index int
}

// attachment binds a key to one slot on one page and carries the
// interaction state for that pair. All fields are guarded by deck.mu; the
// state fields exist only between a down transition and its matching up.
type attachment struct {
	page  *Page
	key   *Key
	index int

	downed  bool
	held    bool
	pressed bool

	holdTimer  *time.Timer
	pressTimer *time.Timer
}

func (a *attachment) cancelTimersLocked() {
	if a.holdTimer != nil {
		a.holdTimer.Stop()
		a.holdTimer = nil
	}
	if a.pressTimer != nil {
		a.pressTimer.Stop()
		a.pressTimer = nil
	}
}

// purgeLocked drops all transient interaction state without emitting up,
// held, or click. Used on detach and entity destruction.
func (a *attachment) purgeLocked(d *Deck) {
	a.cancelTimersLocked()
	if a.downed {
		d.downCount--
	}
	a.downed, a.held, a.pressed = false, false, false
}

func (k *Key) removeAttachmentLocked(att *attachment) {
	for i, other := range k.attachments {
		if other == att {
			k.attachments = append(k.attachments[:i], k.attachments[i+1:]...)
			return
		}
	}
}

// Attach binds the key to the zero-based slot index on page. A slot holds
// at most one key; attaching to an occupied slot fails unless the occupant
// is this key already, which is a no-op.
func (k *Key) Attach(page *Page, index int) error {
	d := k.deck
	d.mu.Lock()
	attached, err := k.attachLocked(page, index)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	if attached {
		k.emitAttached(page, index)
	}
	return nil
}

// AttachAt binds the key by 1-based row and column.
func (k *Key) AttachAt(page *Page, row, col int) error {
	d := k.deck
	if row < 1 || row > d.info.Rows || col < 1 || col > d.info.Columns {
		return &ValidationError{Op: "AttachAt", Reason: fmt.Sprintf("position (%d, %d) outside %dx%d grid", row, col, d.info.Rows, d.info.Columns)}
	}
	return k.Attach(page, (col-1)+(row-1)*d.info.Columns)
}

// AttachFree binds the key to the lowest unoccupied slot on page and
// returns the chosen index.
func (k *Key) AttachFree(page *Page) (int, error) {
	d := k.deck
	d.mu.Lock()
	index := -1
	if page != nil {
		for i := 0; i < d.info.KeyCount; i++ {
			if _, ok := page.keys[i]; !ok {
				index = i
				break
			}
		}
	}
	if index < 0 {
		d.mu.Unlock()
		return -1, &ValidationError{Op: "AttachFree", Reason: "no free slot on page"}
	}
	attached, err := k.attachLocked(page, index)
	d.mu.Unlock()
	if err != nil {
		return -1, err
	}

	if attached {
		k.emitAttached(page, index)
	}
	return index, nil
}

// attachLocked records the binding. attached is false when the key already
// holds the slot, so callers keep the no-op silent like Detach does.
func (k *Key) attachLocked(page *Page, index int) (attached bool, err error) {
	d := k.deck
	switch {
	case page == nil:
		return false, &ValidationError{Op: "Attach", Reason: "nil page"}
	case page.deck != d:
		return false, &ValidationError{Op: "Attach", Reason: "page belongs to a different deck"}
	case k.destroyed:
		return false, &LifecycleError{Entity: "key", Op: "attach"}
	case page.destroyed:
		return false, &LifecycleError{Entity: "page", Op: "attach"}
	case index < 0 || index >= d.info.KeyCount:
		return false, &ValidationError{Op: "Attach", Reason: fmt.Sprintf("index %d outside [0, %d)", index, d.info.KeyCount)}
	}

	if existing, ok := page.keys[index]; ok {
		if existing.key == k {
			return false, nil
		}
		return false, &ValidationError{Op: "Attach", Reason: fmt.Sprintf("slot %d already occupied", index)}
	}

	att := &attachment{page: page, key: k, index: index}
	page.keys[index] = att
	k.attachments = append(k.attachments, att)
	return true, nil
}

func (k *Key) emitAttached(page *Page, index int) {
	ev := KeyEvent{Deck: k.deck, Page: page, Key: k, Index: index}
	k.attachEv.emit(ev)
	page.attachEv.emit(ev)
	k.deck.enqueueKeyRender(page, index)
}

// Detach unbinds the key from the slot. Detaching a pair that is not
// attached (or attached to a different key) is a no-op and emits nothing.
// Transient hold/press state for the pair is purged without emitting up,
// held, or click.
func (k *Key) Detach(page *Page, index int) error {
	d := k.deck
	d.mu.Lock()
	if page == nil || page.deck != d {
		d.mu.Unlock()
		return &ValidationError{Op: "Detach", Reason: "page belongs to a different deck"}
	}
	att, ok := page.keys[index]
	if !ok || att.key != k {
		d.mu.Unlock()
		return nil
	}
	att.purgeLocked(d)
	delete(page.keys, index)
	k.removeAttachmentLocked(att)
	d.mu.Unlock()

	ev := KeyEvent{Deck: d, Page: page, Key: k, Index: index}
	k.detachEv.emit(ev)
	page.detachEv.emit(ev)
	d.enqueueKeyRender(page, index)
	return nil
}

// DetachAll unbinds the key from every slot on every page.
func (k *Key) DetachAll() {
	d := k.deck
	d.mu.Lock()
	atts := make([]*attachment, len(k.attachments))
	copy(atts, k.attachments)
	d.mu.Unlock()

	for _, att := range atts {
		k.Detach(att.page, att.index)
	}
}
