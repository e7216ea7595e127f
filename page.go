package deckhand

import "time"

// Page is a virtual screen: a set of key attachments plus an optional
// panel-spanning background image. At most one page holds device focus at a
// time; only the focused page's slots receive hardware writes and input.
type Page struct {
	deck *Deck
	name string

	holdDuration  *time.Duration
	pressDuration *time.Duration
	custom        map[string]any

	// Guarded by deck.mu.
	background *Image
	bgCancel   func()
	keys       map[int]*attachment
	destroyed  bool

	focusEv     emitter[*Page]
	blurEv      emitter[*Page]
	attachEv    emitter[KeyEvent]
	detachEv    emitter[KeyEvent]
	downEv      emitter[KeyEvent]
	upEv        emitter[KeyEvent]
	holdEv      emitter[KeyEvent]
	clickEv     emitter[KeyEvent]
	heldEv      emitter[KeyEvent]
	destroyedEv emitter[*Page]
}

// NewPage creates a page on this deck. The first page created takes device
// focus automatically.
func (d *Deck) NewPage(opts *PageOptions) (*Page, error) {
	if opts == nil {
		opts = &PageOptions{}
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, &LifecycleError{Entity: "deck", Op: "new page"}
	}

	p := &Page{
		deck:          d,
		name:          opts.Name,
		holdDuration:  opts.HoldDuration,
		pressDuration: opts.PressDuration,
		custom:        opts.Custom,
		keys:          make(map[int]*attachment),
	}
	d.pages = append(d.pages, p)

	autoFocus := d.focus == nil
	if autoFocus {
		d.focus = p
	}
	d.mu.Unlock()

	if opts.Background != nil {
		if err := p.SetBackground(opts.Background); err != nil {
			return nil, err
		}
	}
	if autoFocus {
		p.focusEv.emit(p)
		d.focusEv.emit(FocusEvent{Deck: d, New: p})
		d.enqueuePanelRender(p)
	}
	return p, nil
}

// Name returns the page's label.
func (p *Page) Name() string { return p.name }

// Deck returns the owning deck.
func (p *Page) Deck() *Deck { return p.deck }

// Custom returns the caller-defined attribute map from the options.
func (p *Page) Custom() map[string]any { return p.custom }

// SetBackground installs the panel-spanning background image. Pass nil to
// remove it. Frame changes on the background redraw the whole panel while
// this page is focused.
func (p *Page) SetBackground(img *Image) error {
	d := p.deck
	d.mu.Lock()
	if p.destroyed {
		d.mu.Unlock()
		return &LifecycleError{Entity: "page", Op: "set background"}
	}
	if p.bgCancel != nil {
		p.bgCancel()
		p.bgCancel = nil
	}
	p.background = img
	if img != nil {
		p.bgCancel = img.OnFrameUpdated(func(FrameEvent) {
			d.enqueuePanelRender(p)
		})
	}
	d.mu.Unlock()

	d.enqueuePanelRender(p)
	return nil
}

// Background returns the current background image, or nil.
func (p *Page) Background() *Image {
	p.deck.mu.Lock()
	defer p.deck.mu.Unlock()
	return p.background
}

// KeyAt returns the key attached at index, if any.
func (p *Page) KeyAt(index int) (*Key, bool) {
	p.deck.mu.Lock()
	defer p.deck.mu.Unlock()
	att, ok := p.keys[index]
	if !ok {
		return nil, false
	}
	return att.key, true
}

// Keys returns a snapshot of the page's attachments keyed by slot index.
func (p *Page) Keys() map[int]*Key {
	p.deck.mu.Lock()
	defer p.deck.mu.Unlock()
	out := make(map[int]*Key, len(p.keys))
	for i, att := range p.keys {
		out[i] = att.key
	}
	return out
}

// HasKey reports whether any slot on this page holds the given key.
func (p *Page) HasKey(k *Key) bool {
	p.deck.mu.Lock()
	defer p.deck.mu.Unlock()
	for _, att := range p.keys {
		if att.key == k {
			return true
		}
	}
	return false
}

// Focused reports whether this page currently holds device focus.
func (p *Page) Focused() bool {
	p.deck.mu.Lock()
	defer p.deck.mu.Unlock()
	return p.deck.focus == p
}

// Destroy detaches every key from the page and removes it from the deck.
// Pending hold/press timers for the page's slots are purged without
// emitting up, held, or click.
func (p *Page) Destroy() error {
	d := p.deck
	d.mu.Lock()
	if p.destroyed {
		d.mu.Unlock()
		return &LifecycleError{Entity: "page", Op: "destroy"}
	}
	p.destroyed = true

	var detached []KeyEvent
	for index, att := range p.keys {
		att.purgeLocked(d)
		att.key.removeAttachmentLocked(att)
		detached = append(detached, KeyEvent{Deck: d, Page: p, Key: att.key, Index: index})
	}
	p.keys = make(map[int]*attachment)

	if p.bgCancel != nil {
		p.bgCancel()
		p.bgCancel = nil
	}
	p.background = nil

	for i, other := range d.pages {
		if other == p {
			d.pages = append(d.pages[:i], d.pages[i+1:]...)
			break
		}
	}
	wasFocused := d.focus == p
	if wasFocused {
		d.focus = nil
	}
	d.mu.Unlock()

	for _, ev := range detached {
		ev.Key.detachEv.emit(ev)
		p.detachEv.emit(ev)
	}
	if wasFocused {
		p.blurEv.emit(p)
		d.focusEv.emit(FocusEvent{Deck: d, Old: p})
		d.enqueueClear()
	}
	p.destroyedEv.emit(p)
	return nil
}

// Event subscriptions.

func (p *Page) OnFocus(fn func(*Page)) (cancel func())      { return p.focusEv.subscribe(fn) }
func (p *Page) OnBlur(fn func(*Page)) (cancel func())       { return p.blurEv.subscribe(fn) }
func (p *Page) OnAttach(fn func(KeyEvent)) (cancel func())  { return p.attachEv.subscribe(fn) }
func (p *Page) OnDetach(fn func(KeyEvent)) (cancel func())  { return p.detachEv.subscribe(fn) }
func (p *Page) OnDown(fn func(KeyEvent)) (cancel func())    { return p.downEv.subscribe(fn) }
func (p *Page) OnUp(fn func(KeyEvent)) (cancel func())      { return p.upEv.subscribe(fn) }
func (p *Page) OnHold(fn func(KeyEvent)) (cancel func())    { return p.holdEv.subscribe(fn) }
func (p *Page) OnClick(fn func(KeyEvent)) (cancel func())   { return p.clickEv.subscribe(fn) }
func (p *Page) OnHeld(fn func(KeyEvent)) (cancel func())    { return p.heldEv.subscribe(fn) }
func (p *Page) OnDestroy(fn func(*Page)) (cancel func())    { return p.destroyedEv.subscribe(fn) }
