package deckhand

import "time"

// Key is one logical button: a background and foreground image slot plus
// interaction configuration. A key is visible wherever it is attached and
// may be attached to any number of (page, slot) pairs simultaneously.
type Key struct {
	deck *Deck

	holdDuration  *time.Duration
	pressDuration *time.Duration
	custom        map[string]any

	// Guarded by deck.mu.
	background  *Image
	foreground  *Image
	bgCancel    func()
	fgCancel    func()
	attachments []*attachment
	destroyed   bool

	attachEv    emitter[KeyEvent]
	detachEv    emitter[KeyEvent]
	downEv      emitter[KeyEvent]
	upEv        emitter[KeyEvent]
	holdEv      emitter[KeyEvent]
	clickEv     emitter[KeyEvent]
	heldEv      emitter[KeyEvent]
	destroyedEv emitter[*Key]
}

// NewKey creates a key on this deck. The key is not visible until attached
// to a page.
func (d *Deck) NewKey(opts *KeyOptions) (*Key, error) {
	if opts == nil {
		opts = &KeyOptions{}
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, &LifecycleError{Entity: "deck", Op: "new key"}
	}
	d.mu.Unlock()

	k := &Key{
		deck:          d,
		holdDuration:  opts.HoldDuration,
		pressDuration: opts.PressDuration,
		custom:        opts.Custom,
	}

	if opts.Background != nil {
		if err := k.SetBackground(opts.Background); err != nil {
			return nil, err
		}
	}
	if opts.Foreground != nil {
		if err := k.SetForeground(opts.Foreground); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// Deck returns the owning deck.
func (k *Key) Deck() *Deck { return k.deck }

// Custom returns the caller-defined attribute map from the options.
func (k *Key) Custom() map[string]any { return k.custom }

// SetBackground installs the key's background image slot. Pass nil to clear.
func (k *Key) SetBackground(img *Image) error {
	return k.setSlot(&k.background, &k.bgCancel, img, "set background")
}

// SetForeground installs the key's foreground image slot. Pass nil to clear.
// The foreground is the slot the pressed (scaled) variant applies to.
func (k *Key) SetForeground(img *Image) error {
	return k.setSlot(&k.foreground, &k.fgCancel, img, "set foreground")
}

func (k *Key) setSlot(slot **Image, cancel *func(), img *Image, op string) error {
	d := k.deck
	d.mu.Lock()
	if k.destroyed {
		d.mu.Unlock()
		return &LifecycleError{Entity: "key", Op: op}
	}
	if *cancel != nil {
		(*cancel)()
		*cancel = nil
	}
	*slot = img
	if img != nil {
		*cancel = img.OnFrameUpdated(func(FrameEvent) {
			k.frameChanged()
		})
	}
	d.mu.Unlock()

	k.frameChanged()
	return nil
}

// Background returns the key's background image, or nil.
func (k *Key) Background() *Image {
	k.deck.mu.Lock()
	defer k.deck.mu.Unlock()
	return k.background
}

// Foreground returns the key's foreground image, or nil.
func (k *Key) Foreground() *Image {
	k.deck.mu.Lock()
	defer k.deck.mu.Unlock()
	return k.foreground
}

// frameChanged redraws every slot this key occupies. A key-level image
// change redraws only the affected slots, never the whole panel; only a
// page background change triggers a full panel recomposite.
func (k *Key) frameChanged() {
	d := k.deck
	d.mu.Lock()
	atts := make([]*attachment, len(k.attachments))
	copy(atts, k.attachments)
	d.mu.Unlock()

	for _, att := range atts {
		d.enqueueKeyRender(att.page, att.index)
	}
}

// Attachments returns the (page, index) pairs this key currently occupies.
func (k *Key) Attachments() []Placement {
	d := k.deck
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Placement, 0, len(k.attachments))
	for _, att := range k.attachments {
		out = append(out, Placement{Page: att.page, Index: att.index})
	}
	return out
}

// Destroy detaches the key from every page and silences its notifications.
// Images referenced by the key are left untouched; another key sharing them
// keeps rendering and animating.
func (k *Key) Destroy() error {
	d := k.deck
	d.mu.Lock()
	if k.destroyed {
		d.mu.Unlock()
		return &LifecycleError{Entity: "key", Op: "destroy"}
	}
	k.destroyed = true

	var detached []KeyEvent
	for _, att := range k.attachments {
		att.purgeLocked(d)
		delete(att.page.keys, att.index)
		detached = append(detached, KeyEvent{Deck: d, Page: att.page, Key: k, Index: att.index})
	}
	k.attachments = nil

	if k.bgCancel != nil {
		k.bgCancel()
		k.bgCancel = nil
	}
	if k.fgCancel != nil {
		k.fgCancel()
		k.fgCancel = nil
	}
	k.background = nil
	k.foreground = nil
	d.mu.Unlock()

	for _, ev := range detached {
		k.detachEv.emit(ev)
		ev.Page.detachEv.emit(ev)
		d.enqueueKeyRender(ev.Page, ev.Index)
	}
	k.destroyedEv.emit(k)
	return nil
}

// Event subscriptions.

func (k *Key) OnAttach(fn func(KeyEvent)) (cancel func())  { return k.attachEv.subscribe(fn) }
func (k *Key) OnDetach(fn func(KeyEvent)) (cancel func())  { return k.detachEv.subscribe(fn) }
func (k *Key) OnDown(fn func(KeyEvent)) (cancel func())    { return k.downEv.subscribe(fn) }
func (k *Key) OnUp(fn func(KeyEvent)) (cancel func())      { return k.upEv.subscribe(fn) }
func (k *Key) OnHold(fn func(KeyEvent)) (cancel func())    { return k.holdEv.subscribe(fn) }
func (k *Key) OnClick(fn func(KeyEvent)) (cancel func())   { return k.clickEv.subscribe(fn) }
func (k *Key) OnHeld(fn func(KeyEvent)) (cancel func())    { return k.heldEv.subscribe(fn) }
func (k *Key) OnDestroy(fn func(*Key)) (cancel func())     { return k.destroyedEv.subscribe(fn) }
