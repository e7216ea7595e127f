package deckhand

import "time"

// Interaction state machine. Raw transitions from the transport enter
// through handleKeyTransition; the per-pair state lives on the attachment
// for the slot on the focused page.
//
// Hold durations resolve hierarchically: a key-level duration wins,
// otherwise the page's, otherwise the deck default. An explicit 0 disables
// hold at that scope without falling back further. Hold, held, and click
// notifications follow the same hierarchy: a coarser scope only emits when
// no finer scope configured its own duration.

func (d *Deck) handleKeyTransition(index int, pressed bool) {
	if pressed {
		d.handleDown(index)
	} else {
		d.handleUp(index)
	}
}

func (d *Deck) handleDown(index int) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	page := d.focus
	var att *attachment
	if page != nil {
		att = page.keys[index]
	}
	if att == nil {
		d.noteActivityLocked()
		d.mu.Unlock()
		d.activityEv.emit(KeyEvent{Deck: d, Page: page, Index: index})
		return
	}

	// A fresh down fully clears any leftover timers for this pair before
	// arming new ones.
	att.cancelTimersLocked()
	if !att.downed {
		d.downCount++
	}
	att.downed = true
	att.held = false
	att.pressed = true

	holdDur, _ := resolveDuration(att.key.holdDuration, page.holdDuration, d.holdDuration)
	if holdDur > 0 {
		a := att
		att.holdTimer = time.AfterFunc(holdDur, func() { d.holdFired(a) })
	}

	pressDur, _ := resolveDuration(att.key.pressDuration, page.pressDuration, d.pressDuration)
	if pressDur > 0 {
		a := att
		att.pressTimer = time.AfterFunc(pressDur, func() { d.pressFired(a) })
	}

	d.noteActivityLocked()
	ev := KeyEvent{Deck: d, Page: page, Key: att.key, Index: index}
	d.mu.Unlock()

	att.key.downEv.emit(ev)
	page.downEv.emit(ev)
	d.downEv.emit(ev)
	d.activityEv.emit(ev)
	d.enqueueKeyRender(page, index)
}

func (d *Deck) handleUp(index int) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	page := d.focus
	var att *attachment
	if page != nil {
		att = page.keys[index]
	}
	if att == nil || !att.downed {
		d.noteActivityLocked()
		d.mu.Unlock()
		d.activityEv.emit(KeyEvent{Deck: d, Page: page, Index: index})
		return
	}

	att.cancelTimersLocked()
	wasHeld := att.held
	wasPressed := att.pressed
	att.downed, att.held, att.pressed = false, false, false
	d.downCount--

	holdDur, _ := resolveDuration(att.key.holdDuration, page.holdDuration, d.holdDuration)
	keyScoped := att.key.holdDuration != nil
	pageScoped := page.holdDuration != nil

	d.noteActivityLocked()
	ev := KeyEvent{Deck: d, Page: page, Key: att.key, Index: index}
	d.mu.Unlock()

	att.key.upEv.emit(ev)
	page.upEv.emit(ev)
	d.upEv.emit(ev)

	// Hold disabled for this pair suppresses both held and click.
	if holdDur > 0 {
		if wasHeld {
			d.emitScoped(ev, keyScoped, pageScoped, &att.key.heldEv, &page.heldEv, &d.heldEv)
		} else {
			d.emitScoped(ev, keyScoped, pageScoped, &att.key.clickEv, &page.clickEv, &d.clickEv)
		}
	}

	d.activityEv.emit(ev)

	// The pressed visual was still up; revert to the base frame.
	if wasPressed {
		d.enqueueKeyRender(page, index)
	}
}

// holdFired runs when the hold timer elapses with the key still down.
func (d *Deck) holdFired(att *attachment) {
	d.mu.Lock()
	if d.closed || !att.downed || att.held {
		d.mu.Unlock()
		return
	}
	att.held = true
	att.holdTimer = nil
	page := att.page
	keyScoped := att.key.holdDuration != nil
	pageScoped := page.holdDuration != nil
	d.noteActivityLocked()
	ev := KeyEvent{Deck: d, Page: page, Key: att.key, Index: att.index}
	d.mu.Unlock()

	d.emitScoped(ev, keyScoped, pageScoped, &att.key.holdEv, &page.holdEv, &d.holdEv)
	d.activityEv.emit(ev)
}

// pressFired runs when the press-visual timer elapses: the visual reverts
// to the base frame while down/held state stays untouched.
func (d *Deck) pressFired(att *attachment) {
	d.mu.Lock()
	if d.closed || !att.pressed {
		d.mu.Unlock()
		return
	}
	att.pressed = false
	att.pressTimer = nil
	page := att.page
	index := att.index
	d.mu.Unlock()

	d.enqueueKeyRender(page, index)
}

// emitScoped applies the hierarchy deference rule: the key scope always
// emits; the page scope emits only when the key defined no duration of its
// own; the deck scope emits only when neither finer scope did.
func (d *Deck) emitScoped(ev KeyEvent, keyScoped, pageScoped bool, key, page, deck *emitter[KeyEvent]) {
	key.emit(ev)
	if keyScoped {
		return
	}
	page.emit(ev)
	if pageScoped {
		return
	}
	deck.emit(ev)
}

// noteActivityLocked resets the idle timer. The timer stays disarmed while
// any slot is down; the following up transition re-arms it.
func (d *Deck) noteActivityLocked() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	if d.idleDuration <= 0 || d.downCount > 0 || d.closed {
		return
	}
	d.idleTimer = time.AfterFunc(d.idleDuration, d.idleFired)
}

func (d *Deck) idleFired() {
	d.mu.Lock()
	d.idleTimer = nil
	if d.closed || d.downCount > 0 {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	d.idleEv.emit(d)
}
