package deckhand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachAndKeyAt(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	page, err := d.NewPage(nil)
	require.NoError(t, err)
	key, err := d.NewKey(nil)
	require.NoError(t, err)

	require.NoError(t, key.Attach(page, 3))

	got, ok := page.KeyAt(3)
	require.True(t, ok)
	assert.Same(t, key, got)
	assert.True(t, page.HasKey(key))

	placements := key.Attachments()
	require.Len(t, placements, 1)
	assert.Same(t, page, placements[0].Page)
	assert.Equal(t, 3, placements[0].Index)
}

func TestAttachAtRowColumnMapping(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	page, err := d.NewPage(nil)
	require.NoError(t, err)

	// 1-based (row, col) maps row-major onto the 2x3 grid.
	cases := []struct {
		row, col, index int
	}{
		{1, 1, 0},
		{1, 3, 2},
		{2, 1, 3},
		{2, 3, 5},
	}
	for _, tc := range cases {
		key, err := d.NewKey(nil)
		require.NoError(t, err)
		require.NoError(t, key.AttachAt(page, tc.row, tc.col))

		got, ok := page.KeyAt(tc.index)
		require.True(t, ok, "(%d, %d)", tc.row, tc.col)
		assert.Same(t, key, got, "(%d, %d) -> %d", tc.row, tc.col, tc.index)
	}

	key, err := d.NewKey(nil)
	require.NoError(t, err)
	var verr *ValidationError
	require.ErrorAs(t, key.AttachAt(page, 0, 1), &verr)
	require.ErrorAs(t, key.AttachAt(page, 3, 1), &verr)
	require.ErrorAs(t, key.AttachAt(page, 1, 4), &verr)
}

func TestAttachValidation(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	page, err := d.NewPage(nil)
	require.NoError(t, err)
	key, err := d.NewKey(nil)
	require.NoError(t, err)

	var verr *ValidationError
	require.ErrorAs(t, key.Attach(nil, 0), &verr)
	require.ErrorAs(t, key.Attach(page, -1), &verr)
	require.ErrorAs(t, key.Attach(page, d.Info().KeyCount), &verr)

	other, otherFake := newTestDeck(t, nil)
	_ = otherFake
	otherPage, err := other.NewPage(nil)
	require.NoError(t, err)
	require.ErrorAs(t, key.Attach(otherPage, 0), &verr)
}

func TestAttachOccupiedSlot(t *testing.T) {
	d, fake := newTestDeck(t, nil)
	page, err := d.NewPage(nil)
	require.NoError(t, err)
	k1, err := d.NewKey(nil)
	require.NoError(t, err)
	k2, err := d.NewKey(nil)
	require.NoError(t, err)

	require.NoError(t, k1.Attach(page, 0))

	var verr *ValidationError
	require.ErrorAs(t, k2.Attach(page, 0), &verr)

	// Re-attaching the same key to its own slot is a no-op, not an error.
	// It emits nothing and enqueues no redraw.
	drainQueue(t, d)
	fake.ResetOps()
	attached := 0
	k1.OnAttach(func(KeyEvent) { attached++ })
	require.NoError(t, k1.Attach(page, 0))
	drainQueue(t, d)
	assert.Equal(t, 0, attached, "no-op re-attach emits nothing")
	assert.Empty(t, fake.Ops(), "no-op re-attach renders nothing")
}

func TestAttachFreeTakesLowestSlot(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	page, err := d.NewPage(nil)
	require.NoError(t, err)

	k1, err := d.NewKey(nil)
	require.NoError(t, err)
	require.NoError(t, k1.Attach(page, 0))
	k2, err := d.NewKey(nil)
	require.NoError(t, err)
	require.NoError(t, k2.Attach(page, 2))

	k3, err := d.NewKey(nil)
	require.NoError(t, err)
	index, err := k3.AttachFree(page)
	require.NoError(t, err)
	assert.Equal(t, 1, index)
}

func TestAttachFreeFullPage(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	page, err := d.NewPage(nil)
	require.NoError(t, err)

	for i := 0; i < d.Info().KeyCount; i++ {
		k, err := d.NewKey(nil)
		require.NoError(t, err)
		require.NoError(t, k.Attach(page, i))
	}

	extra, err := d.NewKey(nil)
	require.NoError(t, err)
	var verr *ValidationError
	_, err = extra.AttachFree(page)
	require.ErrorAs(t, err, &verr)
}

func TestKeyOnMultiplePages(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	p1, err := d.NewPage(&PageOptions{Name: "one"})
	require.NoError(t, err)
	p2, err := d.NewPage(&PageOptions{Name: "two"})
	require.NoError(t, err)

	key, err := d.NewKey(nil)
	require.NoError(t, err)
	require.NoError(t, key.Attach(p1, 0))
	require.NoError(t, key.Attach(p2, 5))

	assert.Len(t, key.Attachments(), 2)
	assert.True(t, p1.HasKey(key))
	assert.True(t, p2.HasKey(key))
}

func TestDetachIsIdempotent(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	page, err := d.NewPage(nil)
	require.NoError(t, err)
	key, err := d.NewKey(nil)
	require.NoError(t, err)
	require.NoError(t, key.Attach(page, 1))

	detached := 0
	key.OnDetach(func(KeyEvent) { detached++ })

	require.NoError(t, key.Detach(page, 1))
	assert.Equal(t, 1, detached)
	assert.False(t, page.HasKey(key))

	// Detaching an already-detached pair is a silent no-op.
	require.NoError(t, key.Detach(page, 1))
	assert.Equal(t, 1, detached)

	// Detaching a slot held by a different key is also a no-op.
	other, err := d.NewKey(nil)
	require.NoError(t, err)
	require.NoError(t, other.Attach(page, 1))
	require.NoError(t, key.Detach(page, 1))
	assert.Equal(t, 1, detached)
	assert.True(t, page.HasKey(other))
}

func TestDetachPurgesInteractionStateSilently(t *testing.T) {
	d, fake := newTestDeck(t, nil)
	page, key := attachTestKey(t, d, nil, 0)

	rec := &recorder{}
	key.OnUp(rec.add("up"))
	key.OnClick(rec.add("click"))
	key.OnHeld(rec.add("held"))

	fake.Press(0)
	require.NoError(t, key.Detach(page, 0))

	// The release arrives after detach; the slot is empty so nothing fires.
	fake.Release(0)
	assert.Empty(t, rec.names())
}

func TestDetachAll(t *testing.T) {
	d, _ := newTestDeck(t, nil)
	p1, err := d.NewPage(nil)
	require.NoError(t, err)
	p2, err := d.NewPage(nil)
	require.NoError(t, err)

	key, err := d.NewKey(nil)
	require.NoError(t, err)
	require.NoError(t, key.Attach(p1, 0))
	require.NoError(t, key.Attach(p2, 3))

	key.DetachAll()
	assert.Empty(t, key.Attachments())
	assert.False(t, p1.HasKey(key))
	assert.False(t, p2.HasKey(key))
}

func TestAttachRendersSlot(t *testing.T) {
	d, fake := newTestDeck(t, nil)
	page, err := d.NewPage(nil)
	require.NoError(t, err)
	drainQueue(t, d)
	fake.ResetOps()

	key, err := d.NewKey(nil)
	require.NoError(t, err)
	require.NoError(t, key.Attach(page, 2))
	drainQueue(t, d)

	// A bare key has no layers; the slot clears rather than fills.
	ops := fake.OpsOfKind("clearKey")
	require.NotEmpty(t, ops)
	assert.Equal(t, 2, ops[0].Index)
}
