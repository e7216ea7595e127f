// Package deckhand renders a layered, animated image model onto a grid of
// physical button displays and turns raw button transitions into a layered
// interaction model (down, hold, up, click, held, idle).
//
// A Deck is one device session. Pages are virtual screens holding key
// attachments and an optional panel-spanning background; Keys carry
// background and foreground Images and may appear on multiple pages at
// once. Images load their frames asynchronously and drive redraws through
// frame-updated notifications. Every hardware write goes through the deck's
// single FIFO render queue, so overlapping triggers can never interleave
// writes.
//
// The physical device is abstracted behind transport.Transport; see the
// streamdeckhw package for real hardware and the emulator package for an
// on-screen stand-in.
package deckhand
