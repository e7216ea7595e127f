package deckhand

import (
	"fmt"
	"sync"
	"time"

	"github.com/phinze/deckhand/imaging"
	"github.com/phinze/deckhand/transport"
)

// KeyEvent describes an interaction or attachment change at one key slot.
// Key is nil for transitions on slots with no attached key.
type KeyEvent struct {
	Deck  *Deck
	Page  *Page
	Key   *Key
	Index int
}

// FocusEvent describes a device focus change. Old or New may be nil.
type FocusEvent struct {
	Deck *Deck
	Old  *Page
	New  *Page
}

// Deck is one device session: it owns the render queue, the device-level
// interaction defaults, and the set of pages. All hardware writes for the
// device funnel through the deck's single FIFO render queue.
type Deck struct {
	transport transport.Transport
	proc      imaging.Processor
	info      transport.Info
	queue     *renderQueue

	holdDuration  time.Duration
	pressDuration time.Duration
	idleDuration  time.Duration
	custom        map[string]any

	mu         sync.Mutex
	pages      []*Page
	focus      *Page
	idleTimer  *time.Timer
	downCount  int
	brightness int
	closed     bool

	downEv     emitter[KeyEvent]
	upEv       emitter[KeyEvent]
	holdEv     emitter[KeyEvent]
	clickEv    emitter[KeyEvent]
	heldEv     emitter[KeyEvent]
	activityEv emitter[KeyEvent]
	idleEv     emitter[*Deck]
	focusEv    emitter[FocusEvent]
	errs       emitter[error]
	closedEv   emitter[*Deck]
}

// New opens the transport and starts a device session. The transport's
// reported geometry is fixed for the session's lifetime.
func New(t transport.Transport, opts *DeckOptions) (*Deck, error) {
	if t == nil {
		return nil, &ValidationError{Op: "New", Reason: "nil transport"}
	}
	if opts == nil {
		opts = &DeckOptions{}
	}

	brightness := DefaultBrightness
	if opts.Brightness != nil {
		brightness = *opts.Brightness
		if brightness < 0 || brightness > 100 {
			return nil, &ValidationError{Op: "New", Reason: fmt.Sprintf("brightness %d outside [0, 100]", brightness)}
		}
	}

	if err := t.Open(); err != nil {
		return nil, fmt.Errorf("deckhand: opening transport: %w", err)
	}

	info := t.Info()
	if info.KeyCount <= 0 || info.Columns <= 0 || info.Rows <= 0 {
		t.Close()
		return nil, &ValidationError{Op: "New", Reason: "transport reports no key grid"}
	}

	d := &Deck{
		transport:     t,
		proc:          imaging.Default,
		info:          info,
		holdDuration:  DefaultHoldDuration,
		pressDuration: DefaultPressDuration,
		idleDuration:  opts.IdleDuration,
		custom:        opts.Custom,
		brightness:    brightness,
	}
	if opts.HoldDuration != nil {
		d.holdDuration = *opts.HoldDuration
	}
	if opts.PressDuration != nil {
		d.pressDuration = *opts.PressDuration
	}

	d.queue = newRenderQueue(d.emitError)

	if err := t.SetBrightness(brightness); err != nil {
		d.emitError(&TransportError{Op: "brightness", Index: -1, Err: err})
	}

	t.SetKeyCallback(d.handleKeyTransition)
	go d.listen()

	d.mu.Lock()
	d.noteActivityLocked()
	d.mu.Unlock()

	return d, nil
}

// listen pumps the transport event loop and forwards its errors to the
// deck's error notifications.
func (d *Deck) listen() {
	errCh := make(chan error, 8)
	go func() {
		for err := range errCh {
			d.emitError(&TransportError{Op: "listen", Index: -1, Err: err})
		}
	}()

	if err := d.transport.Listen(errCh); err != nil {
		d.emitError(&TransportError{Op: "listen", Index: -1, Err: err})
	}
	close(errCh)
}

// Info returns the device geometry and identity.
func (d *Deck) Info() transport.Info { return d.info }

// Custom returns the caller-defined attribute map from the options.
func (d *Deck) Custom() map[string]any { return d.custom }

// SetBrightness sets the display brightness (0-100).
func (d *Deck) SetBrightness(percent int) error {
	if percent < 0 || percent > 100 {
		return &ValidationError{Op: "SetBrightness", Reason: fmt.Sprintf("brightness %d outside [0, 100]", percent)}
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return &LifecycleError{Entity: "deck", Op: "set brightness"}
	}
	d.brightness = percent
	d.mu.Unlock()

	if err := d.transport.SetBrightness(percent); err != nil {
		return &TransportError{Op: "brightness", Index: -1, Err: err}
	}
	return nil
}

// Brightness returns the last brightness applied.
func (d *Deck) Brightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness
}

// Focus gives the page device focus and redraws the panel. Transient
// interaction state on the previously focused page is purged without
// emitting up, held, or click.
func (d *Deck) Focus(p *Page) error {
	if p == nil {
		return &ValidationError{Op: "Focus", Reason: "nil page"}
	}
	if p.deck != d {
		return &ValidationError{Op: "Focus", Reason: "page belongs to a different deck"}
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return &LifecycleError{Entity: "deck", Op: "focus"}
	}
	if p.destroyed {
		d.mu.Unlock()
		return &LifecycleError{Entity: "page", Op: "focus"}
	}
	old := d.focus
	if old == p {
		d.mu.Unlock()
		return nil
	}
	if old != nil {
		for _, att := range old.keys {
			att.purgeLocked(d)
		}
	}
	d.focus = p
	d.noteActivityLocked()
	d.mu.Unlock()

	if old != nil {
		old.blurEv.emit(old)
	}
	p.focusEv.emit(p)
	d.focusEv.emit(FocusEvent{Deck: d, Old: old, New: p})
	d.activityEv.emit(KeyEvent{Deck: d, Page: p, Index: -1})
	d.enqueuePanelRender(p)
	return nil
}

// FocusedPage returns the page holding device focus, or nil.
func (d *Deck) FocusedPage() *Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focus
}

// Pages returns a snapshot of the deck's pages in creation order.
func (d *Deck) Pages() []*Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Page, len(d.pages))
	copy(out, d.pages)
	return out
}

// Close shuts the session down: pending render jobs drain, all timers are
// purged, and the transport is closed. The deck is unusable afterwards.
func (d *Deck) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return &LifecycleError{Entity: "deck", Op: "close"}
	}
	d.closed = true
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	for _, p := range d.pages {
		for _, att := range p.keys {
			att.cancelTimersLocked()
		}
	}
	d.mu.Unlock()

	d.queue.close()

	err := d.transport.Close()
	d.closedEv.emit(d)
	if err != nil {
		return fmt.Errorf("deckhand: closing transport: %w", err)
	}
	return nil
}

func (d *Deck) emitError(err error) {
	if err == nil {
		return
	}
	d.errs.emit(err)
}

// Event subscriptions. Down, up, and activity fire for every transition on
// the focused page; hold, click, and held defer to the finest scope that
// configured a hold duration of its own.

func (d *Deck) OnDown(fn func(KeyEvent)) (cancel func())     { return d.downEv.subscribe(fn) }
func (d *Deck) OnUp(fn func(KeyEvent)) (cancel func())       { return d.upEv.subscribe(fn) }
func (d *Deck) OnHold(fn func(KeyEvent)) (cancel func())     { return d.holdEv.subscribe(fn) }
func (d *Deck) OnClick(fn func(KeyEvent)) (cancel func())    { return d.clickEv.subscribe(fn) }
func (d *Deck) OnHeld(fn func(KeyEvent)) (cancel func())     { return d.heldEv.subscribe(fn) }
func (d *Deck) OnActivity(fn func(KeyEvent)) (cancel func()) { return d.activityEv.subscribe(fn) }
func (d *Deck) OnIdle(fn func(*Deck)) (cancel func())        { return d.idleEv.subscribe(fn) }
func (d *Deck) OnFocusChange(fn func(FocusEvent)) (cancel func()) {
	return d.focusEv.subscribe(fn)
}
func (d *Deck) OnError(fn func(error)) (cancel func()) { return d.errs.subscribe(fn) }
func (d *Deck) OnClose(fn func(*Deck)) (cancel func()) { return d.closedEv.subscribe(fn) }
