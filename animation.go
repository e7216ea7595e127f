package deckhand

import "time"

// Animation clock for Image. The timer is lazy twice over: it only runs
// while animation is enabled AND at least one frame-updated subscriber
// exists, so an unobserved Image causes no wakeups.

// StartAnimation enables frame advancement. A no-op for single-frame
// images. Calling it (or StopAnimation) before the load completes takes
// explicit control and suppresses the automatic start.
func (img *Image) StartAnimation() error {
	img.mu.Lock()
	if img.destroyed {
		img.mu.Unlock()
		return &LifecycleError{Entity: "image", Op: "start animation"}
	}
	img.manual = true
	if img.loadDone && img.frameCount <= 1 {
		img.mu.Unlock()
		return nil
	}
	img.animating = true
	img.mu.Unlock()

	img.armTimer()
	return nil
}

// StopAnimation disarms the frame timer without resetting position.
func (img *Image) StopAnimation() error {
	img.mu.Lock()
	if img.destroyed {
		img.mu.Unlock()
		return &LifecycleError{Entity: "image", Op: "stop animation"}
	}
	img.manual = true
	img.animating = false
	img.stopTimerLocked()
	img.mu.Unlock()
	return nil
}

// Animating reports whether the clock is currently enabled.
func (img *Image) Animating() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.animating
}

// SetCurrentFrame jumps to frame i. Disallowed on single-frame images. If
// frame i has not finished loading, the visible transition is deferred
// until it does.
func (img *Image) SetCurrentFrame(i int) error {
	img.mu.Lock()
	if img.destroyed {
		img.mu.Unlock()
		return &LifecycleError{Entity: "image", Op: "set frame"}
	}
	if img.frameCount <= 1 {
		img.mu.Unlock()
		return &ValidationError{Op: "SetCurrentFrame", Reason: "image has a single frame"}
	}
	if i < 0 || i >= img.frameCount {
		img.mu.Unlock()
		return &ValidationError{Op: "SetCurrentFrame", Reason: "frame index out of range"}
	}

	img.stopTimerLocked()
	if i >= len(img.frames) {
		img.pending = i
		img.mu.Unlock()
		return nil
	}
	img.current = i
	img.mu.Unlock()

	img.frameUpdated.emit(FrameEvent{Image: img, Index: i})
	img.armTimer()
	return nil
}

// Reset jumps to frame 0, loop 0.
func (img *Image) Reset() {
	img.mu.Lock()
	if img.destroyed {
		img.mu.Unlock()
		return
	}
	img.stopTimerLocked()
	img.loop = 0
	img.pending = -1
	if len(img.frames) == 0 {
		img.mu.Unlock()
		return
	}
	img.current = 0
	img.mu.Unlock()

	img.frameUpdated.emit(FrameEvent{Image: img, Index: 0})
	img.armTimer()
}

// advance moves to the next frame with loop wrapping. When the target frame
// has not loaded yet, the visible transition is deferred to its completion
// instead of busy-waiting. When the loop count is exhausted the clock halts
// and the frame holds its last value.
func (img *Image) advance() {
	img.mu.Lock()
	if img.destroyed || img.frameCount <= 1 {
		img.mu.Unlock()
		return
	}
	img.stopTimerLocked()

	next := img.current + 1
	if next >= img.frameCount {
		if img.loopCount != 0 && img.loop+1 >= img.loopCount {
			img.animating = false
			img.mu.Unlock()
			return
		}
		img.loop++
		next = 0
	}

	if next >= len(img.frames) {
		img.pending = next
		img.mu.Unlock()
		return
	}

	img.current = next
	img.mu.Unlock()

	img.frameUpdated.emit(FrameEvent{Image: img, Index: next})
	img.armTimer()
}

func (img *Image) tick() {
	img.advance()
}

// observerCountChanged ties the timer to observation: the last subscriber
// leaving disarms it, the first one arriving re-arms it.
func (img *Image) observerCountChanged(n int) {
	if n == 0 {
		img.mu.Lock()
		img.stopTimerLocked()
		img.mu.Unlock()
		return
	}
	img.armTimer()
}

func (img *Image) armTimer() {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.armTimerLocked()
}

func (img *Image) armTimerLocked() {
	if img.timer != nil || img.destroyed || !img.animating {
		return
	}
	if img.frameCount <= 1 || img.frameUpdated.count() == 0 {
		return
	}

	delay := fallbackFrameDelay
	if img.current < len(img.frames) {
		if d := img.frames[img.current].delay; d > 0 {
			delay = d
		}
	}
	img.timer = time.AfterFunc(delay, img.tick)
}

func (img *Image) stopTimerLocked() {
	if img.timer != nil {
		img.timer.Stop()
		img.timer = nil
	}
}
