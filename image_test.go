package deckhand

import (
	"errors"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageValidation(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	var verr *ValidationError

	_, err := d.NewImage(0, 8, nil)
	require.ErrorAs(t, err, &verr)

	_, err = d.NewImage(8, -1, nil)
	require.ErrorAs(t, err, &verr)

	_, err = d.NewImage(8, 8, &ImageOptions{PressScale: 2.5})
	require.ErrorAs(t, err, &verr)

	_, err = d.NewImage(8, 8, &ImageOptions{GridRows: 2})
	require.ErrorAs(t, err, &verr, "split grid needs both dimensions")
}

func TestNewImageLoadsAsynchronously(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	img, err := d.NewKeyImage(nil, Bytes(solidPNG(t, 8, 8, color.RGBA{255, 0, 0, 255})))
	require.NoError(t, err)

	waitLoaded(t, img)

	f, ok := img.CurrentFrame()
	require.True(t, ok)
	assert.Equal(t, uint8(255), f.Base().RGBAAt(4, 4).R)
	assert.Equal(t, 1, img.FrameCount())
	assert.Equal(t, testKeyW, img.Width())
	assert.Equal(t, testKeyH, img.Height())
}

func TestNewImageResizesSourceToTarget(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	// Source is 20x20; the key image is 8x8.
	img := loadedKeyImage(t, d, nil, Bytes(solidPNG(t, 20, 20, color.RGBA{0, 0, 200, 255})))

	f, _ := img.CurrentFrame()
	b := f.Base().Bounds()
	assert.Equal(t, testKeyW, b.Dx())
	assert.Equal(t, testKeyH, b.Dy())
	assert.Equal(t, uint8(200), f.Base().RGBAAt(4, 4).B)
}

func TestNewImageCentersSmallerSourceWithTransparentPadding(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	// A 4x4 opaque square in an 8x8 key image keeps its size: centered,
	// transparent padding around it, no enlargement.
	img := loadedKeyImage(t, d, nil, Bytes(solidPNG(t, 4, 4, color.RGBA{255, 0, 0, 255})))

	f, ok := img.CurrentFrame()
	require.True(t, ok)
	base := f.Base()

	assert.Equal(t, uint8(0), base.RGBAAt(0, 0).A, "corner stays transparent")
	assert.Equal(t, uint8(0), base.RGBAAt(7, 7).A)
	assert.Equal(t, uint8(0), base.RGBAAt(1, 1).A, "square spans [2, 6)")

	center := base.RGBAAt(4, 4)
	assert.Equal(t, uint8(255), center.R)
	assert.Equal(t, uint8(255), center.A)
	assert.Equal(t, uint8(255), base.RGBAAt(2, 2).A)
}

func TestNewImageScalesLargerSourcePreservingAspect(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	// A 16x8 source in an 8x8 target scales down to 8x4 and letterboxes.
	img := loadedKeyImage(t, d, nil, Bytes(solidPNG(t, 16, 8, color.RGBA{0, 0, 200, 255})))

	f, ok := img.CurrentFrame()
	require.True(t, ok)
	base := f.Base()

	assert.Equal(t, uint8(0), base.RGBAAt(4, 0).A, "letterbox rows stay transparent")
	assert.Equal(t, uint8(0), base.RGBAAt(4, 7).A)

	mid := base.RGBAAt(4, 4)
	assert.Equal(t, uint8(200), mid.B)
	assert.Equal(t, uint8(255), mid.A)
}

func TestNewImageStretchResizeOverride(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	img := loadedKeyImage(t, d, &ImageOptions{Resize: ResizeStretch},
		Bytes(solidPNG(t, 4, 4, color.RGBA{255, 0, 0, 255})))

	f, ok := img.CurrentFrame()
	require.True(t, ok)
	corner := f.Base().RGBAAt(0, 0)
	assert.Equal(t, uint8(255), corner.R, "stretch fills the whole frame")
	assert.Equal(t, uint8(255), corner.A)
}

func TestNewImageCompositesSourcesInOrder(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	img := loadedKeyImage(t, d, nil,
		Fill(color.RGBA{255, 0, 0, 255}),
		Bytes(solidPNG(t, 8, 8, color.RGBA{0, 255, 0, 255})),
	)

	f, _ := img.CurrentFrame()
	assert.Equal(t, uint8(255), f.Base().RGBAAt(4, 4).G, "later source composites on top")
}

func TestNewImageDropsUnrecognizedSource(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	var mu sync.Mutex
	var got []error
	img, err := d.NewKeyImage(nil,
		Bytes([]byte("definitely not an image")),
		Fill(color.RGBA{0, 0, 255, 255}),
	)
	require.NoError(t, err)
	img.OnError(func(e error) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	waitLoaded(t, img)

	// The bad source is dropped; the good one still renders.
	f, ok := img.CurrentFrame()
	require.True(t, ok)
	assert.Equal(t, uint8(255), f.Base().RGBAAt(4, 4).B)

	// Deck-level error stream sees the same failure.
	waitFor(t, "source error", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	})
	mu.Lock()
	defer mu.Unlock()
	var serr *UnrecognizedSourceError
	require.ErrorAs(t, got[0], &serr)
	assert.Equal(t, 0, serr.Index)
}

func TestNewImageAllSourcesFailedYieldsBlank(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	img := loadedKeyImage(t, d, nil, Bytes([]byte("junk")))

	f, ok := img.CurrentFrame()
	require.True(t, ok, "load never ends with zero layers")
	assert.Equal(t, uint8(0), f.Base().RGBAAt(4, 4).A)
	assert.Equal(t, 1, img.FrameCount())
}

func TestNewImageSnapshotSource(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	src := loadedKeyImage(t, d, nil, Fill(color.RGBA{123, 0, 0, 255}))

	snap := loadedKeyImage(t, d, nil, Snapshot(src))
	f, ok := snap.CurrentFrame()
	require.True(t, ok)
	assert.Equal(t, uint8(123), f.Base().RGBAAt(4, 4).R)
}

func TestNewImageSnapshotOfUnloadedImageFails(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	// A destroyed image has no current frame, so the snapshot drops.
	src := loadedKeyImage(t, d, nil, Fill(color.RGBA{1, 1, 1, 255}))
	require.NoError(t, src.Destroy())

	snap := loadedKeyImage(t, d, nil, Snapshot(src))
	f, ok := snap.CurrentFrame()
	require.True(t, ok)
	assert.Equal(t, uint8(0), f.Base().RGBAAt(0, 0).A, "falls back to blank")
}

func TestAnimatedImageFrameZeroVisibleBeforeLoadCompletes(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	img := loadedKeyImage(t, d, nil, Bytes(animatedGIF(t, 0, 50,
		color.RGBA{255, 0, 0, 255},
		color.RGBA{0, 255, 0, 255},
		color.RGBA{0, 0, 255, 255})))

	assert.Equal(t, 3, img.FrameCount())
	assert.Equal(t, 0, img.LoopCount())

	frame, loop := img.CurrentIndex()
	assert.Equal(t, 0, frame)
	assert.Equal(t, 0, loop)
}

func TestNewPanelImageSplitsIntoDeviceCells(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	panel := d.Info().PanelSize()
	img, err := d.NewPanelImage(nil, Fill(color.RGBA{9, 9, 9, 255}))
	require.NoError(t, err)
	waitLoaded(t, img)

	assert.Equal(t, panel.X, img.Width())
	assert.Equal(t, panel.Y, img.Height())

	f, ok := img.CurrentFrame()
	require.True(t, ok)
	require.Equal(t, testRows*testCols, f.CellCount())
	cell := f.Cell(0)
	assert.Equal(t, testKeyW, cell.Bounds().Dx())
	assert.Equal(t, testKeyH, cell.Bounds().Dy())
}

func TestImageDestroy(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	img := loadedKeyImage(t, d, nil, Fill(color.RGBA{5, 5, 5, 255}))

	destroyed := make(chan struct{})
	img.OnDestroy(func(*Image) { close(destroyed) })

	require.NoError(t, img.Destroy())
	<-destroyed

	_, ok := img.CurrentFrame()
	assert.False(t, ok)

	var lerr *LifecycleError
	err := img.Destroy()
	require.ErrorAs(t, err, &lerr)
}

func TestImageSharedAcrossKeysSurvivesKeyDestroy(t *testing.T) {
	d, fake := newTestDeck(t, nil)

	_, err := d.NewPage(nil)
	require.NoError(t, err)
	page := d.FocusedPage()

	img := loadedKeyImage(t, d, nil, Fill(color.RGBA{0, 99, 0, 255}))

	k1, err := d.NewKey(&KeyOptions{Foreground: img})
	require.NoError(t, err)
	k2, err := d.NewKey(&KeyOptions{Foreground: img})
	require.NoError(t, err)

	require.NoError(t, k1.Attach(page, 0))
	require.NoError(t, k2.Attach(page, 1))
	drainQueue(t, d)
	fake.ResetOps()

	// Destroying one key leaves the image intact for the other.
	require.NoError(t, k1.Destroy())
	drainQueue(t, d)

	_, ok := img.CurrentFrame()
	assert.True(t, ok)

	// Slot 0 went blank, slot 1 still renders the shared image.
	var cleared, filled bool
	for _, op := range fake.Ops() {
		if op.Kind == "clearKey" && op.Index == 0 {
			cleared = true
		}
		if op.Kind == "fillKey" && op.Index == 1 {
			filled = true
		}
	}
	assert.True(t, cleared, "destroyed key's slot clears")

	// Redraw slot 1 to prove the shared image still feeds it.
	d.enqueueKeyRender(page, 1)
	drainQueue(t, d)
	for _, op := range fake.Ops() {
		if op.Kind == "fillKey" && op.Index == 1 {
			filled = true
		}
	}
	assert.True(t, filled)
}

func TestImageCustomAttributes(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	img, err := d.NewKeyImage(&ImageOptions{Custom: map[string]any{"k": "v"}}, Blank())
	require.NoError(t, err)
	assert.Equal(t, "v", img.Custom()["k"])
}

func TestValidationErrorMessage(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	_, err := d.NewImage(0, 0, nil)
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*ValidationError)))
	assert.NotEmpty(t, err.Error())
}
