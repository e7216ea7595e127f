package deckhand

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phinze/deckhand/transport/transporttest"
)

// Shared helpers for the package tests. The fake transport records every
// hardware write and lets tests inject raw key transitions.

const (
	testRows = 2
	testCols = 3
	testKeyW = 8
	testKeyH = 8
)

func newTestDeck(t *testing.T, opts *DeckOptions) (*Deck, *transporttest.Fake) {
	t.Helper()
	fake := transporttest.New(testRows, testCols, testKeyW, testKeyH)
	d, err := New(fake, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		d.mu.Lock()
		closed := d.closed
		d.mu.Unlock()
		if !closed {
			d.Close()
		}
	})
	return d, fake
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitLoaded blocks until the image finished loading every frame.
func waitLoaded(t *testing.T, img *Image) {
	t.Helper()
	waitFor(t, "image load", func() bool {
		img.mu.Lock()
		defer img.mu.Unlock()
		return img.loadDone
	})
}

// drainQueue blocks until all currently queued render jobs have run.
func drainQueue(t *testing.T, d *Deck) {
	t.Helper()
	done := make(chan struct{})
	d.queue.enqueue(func() error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out draining render queue")
	}
}

func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// animatedGIF builds a small GIF with one solid frame per color.
func animatedGIF(t *testing.T, loopCount int, delayHundredths int, colors ...color.RGBA) []byte {
	t.Helper()
	g := &gif.GIF{LoopCount: loopCount}
	for _, c := range colors {
		pal := color.Palette{color.RGBA{0, 0, 0, 255}, c}
		frame := image.NewPaletted(image.Rect(0, 0, 4, 4), pal)
		for p := range frame.Pix {
			frame.Pix[p] = 1
		}
		g.Image = append(g.Image, frame)
		g.Delay = append(g.Delay, delayHundredths)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func loadedKeyImage(t *testing.T, d *Deck, opts *ImageOptions, sources ...Source) *Image {
	t.Helper()
	img, err := d.NewKeyImage(opts, sources...)
	require.NoError(t, err)
	waitLoaded(t, img)
	return img
}
