package deckhand

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstPageTakesFocus(t *testing.T) {
	d, fake := newTestDeck(t, nil)

	focused := 0
	p1, err := d.NewPage(&PageOptions{Name: "first"})
	require.NoError(t, err)
	p1.OnFocus(func(*Page) { focused++ })

	assert.True(t, p1.Focused())
	assert.Same(t, p1, d.FocusedPage())

	p2, err := d.NewPage(&PageOptions{Name: "second"})
	require.NoError(t, err)
	assert.False(t, p2.Focused(), "later pages do not steal focus")

	drainQueue(t, d)
	// The initial focus produced a panel write (blank panel clears).
	assert.NotEmpty(t, fake.OpsOfKind("clearPanel"))
}

func TestFocusSwitchEmitsBlurAndFocus(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	p1, err := d.NewPage(&PageOptions{Name: "one"})
	require.NoError(t, err)
	p2, err := d.NewPage(&PageOptions{Name: "two"})
	require.NoError(t, err)

	rec := &recorder{}
	p1.OnBlur(func(*Page) { rec.add("blur-1")(KeyEvent{}) })
	p2.OnFocus(func(*Page) { rec.add("focus-2")(KeyEvent{}) })

	var focusEvents []FocusEvent
	d.OnFocusChange(func(ev FocusEvent) { focusEvents = append(focusEvents, ev) })

	require.NoError(t, d.Focus(p2))

	assert.Equal(t, []string{"blur-1", "focus-2"}, rec.names())
	require.Len(t, focusEvents, 1)
	assert.Same(t, p1, focusEvents[0].Old)
	assert.Same(t, p2, focusEvents[0].New)

	// Focusing the focused page is a no-op.
	require.NoError(t, d.Focus(p2))
	assert.Len(t, focusEvents, 1)
}

func TestFocusSwitchPurgesOldPageInteractionState(t *testing.T) {
	d, fake := newTestDeck(t, nil)
	p1, key := attachTestKey(t, d, nil, 0)
	p2, err := d.NewPage(nil)
	require.NoError(t, err)

	rec := &recorder{}
	key.OnUp(rec.add("up"))
	key.OnClick(rec.add("click"))

	fake.Press(0)
	require.NoError(t, d.Focus(p2))

	// The release lands on the new page; the old pair's state was purged
	// without emitting up or click.
	fake.Release(0)
	assert.Empty(t, rec.names())
	assert.Same(t, p2, d.FocusedPage())
	_ = p1
}

func TestFocusValidation(t *testing.T) {
	d, _ := newTestDeck(t, nil)

	var verr *ValidationError
	require.ErrorAs(t, d.Focus(nil), &verr)

	other, _ := newTestDeck(t, nil)
	p, err := other.NewPage(nil)
	require.NoError(t, err)
	require.ErrorAs(t, d.Focus(p), &verr)
}

func TestPageBackgroundRendersPanel(t *testing.T) {
	d, fake := newTestDeck(t, nil)

	bg, err := d.NewPanelImage(nil, Fill(color.RGBA{0, 0, 250, 255}))
	require.NoError(t, err)
	waitLoaded(t, bg)

	page, err := d.NewPage(&PageOptions{Background: bg})
	require.NoError(t, err)
	require.True(t, page.Focused())
	drainQueue(t, d)

	fills := fake.OpsOfKind("fillPanel")
	require.NotEmpty(t, fills)
	panel := fills[len(fills)-1].Image
	assert.Equal(t, uint8(250), panel.RGBAAt(3, 3).B)
	assert.Same(t, bg, page.Background())
}

func TestPageBackgroundCellCompositesUnderKey(t *testing.T) {
	d, fake := newTestDeck(t, nil)

	bg, err := d.NewPanelImage(nil, Fill(color.RGBA{250, 0, 0, 255}))
	require.NoError(t, err)
	waitLoaded(t, bg)

	page, err := d.NewPage(&PageOptions{Background: bg})
	require.NoError(t, err)

	key, err := d.NewKey(nil)
	require.NoError(t, err)
	require.NoError(t, key.Attach(page, 1))
	drainQueue(t, d)

	// The slot render composites the page background cell even though the
	// key itself contributes no layers.
	fills := fake.OpsOfKind("fillKey")
	require.NotEmpty(t, fills)
	last := fills[len(fills)-1]
	assert.Equal(t, 1, last.Index)
	assert.Equal(t, uint8(250), last.Image.RGBAAt(2, 2).R)
}

func TestUnfocusedPageReceivesNoWrites(t *testing.T) {
	d, fake := newTestDeck(t, nil)
	_, err := d.NewPage(nil)
	require.NoError(t, err)
	p2, err := d.NewPage(nil)
	require.NoError(t, err)

	drainQueue(t, d)
	fake.ResetOps()

	img := loadedKeyImage(t, d, nil, Fill(color.RGBA{1, 1, 1, 255}))
	key, err := d.NewKey(&KeyOptions{Foreground: img})
	require.NoError(t, err)
	require.NoError(t, key.Attach(p2, 0))
	drainQueue(t, d)

	assert.Empty(t, fake.OpsOfKind("fillKey"), "writes only reach the focused page")
}

func TestPageDestroy(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	p1, err := d.NewPage(nil)
	require.NoError(t, err)
	key, err := d.NewKey(nil)
	require.NoError(t, err)
	require.NoError(t, key.Attach(p1, 0))

	rec := &recorder{}
	key.OnDetach(rec.add("detach"))
	destroyed := false
	p1.OnDestroy(func(*Page) { destroyed = true })

	require.NoError(t, p1.Destroy())

	assert.True(t, destroyed)
	assert.Equal(t, []string{"detach"}, rec.names())
	assert.Empty(t, key.Attachments())
	assert.Nil(t, d.FocusedPage(), "destroying the focused page leaves no focus")
	assert.Empty(t, d.Pages())

	var lerr *LifecycleError
	require.ErrorAs(t, p1.Destroy(), &lerr)
	require.ErrorAs(t, d.Focus(p1), &lerr)
}

func TestPageDestroyClearsPanel(t *testing.T) {
	d, fake := newTestDeck(t, nil)
	p, err := d.NewPage(nil)
	require.NoError(t, err)
	drainQueue(t, d)
	fake.ResetOps()

	require.NoError(t, p.Destroy())
	drainQueue(t, d)
	assert.NotEmpty(t, fake.OpsOfKind("clearPanel"))
}

func TestPagesSnapshot(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	p1, err := d.NewPage(&PageOptions{Name: "a"})
	require.NoError(t, err)
	p2, err := d.NewPage(&PageOptions{Name: "b"})
	require.NoError(t, err)

	pages := d.Pages()
	require.Len(t, pages, 2)
	assert.Same(t, p1, pages[0])
	assert.Same(t, p2, pages[1])
}
