package deckhand

import "time"

// Defaults applied when the corresponding option is left unset.
const (
	// DefaultHoldDuration is the device-level press-and-hold threshold.
	DefaultHoldDuration = 500 * time.Millisecond

	// DefaultPressDuration is how long the pressed (scaled) visual stays up
	// before reverting, when the key is not released first.
	DefaultPressDuration = 200 * time.Millisecond

	// DefaultBrightness is applied at session open when no brightness is
	// configured.
	DefaultBrightness = 80
)

// Duration-valued options use *time.Duration throughout: nil means "inherit
// from the enclosing scope", an explicit 0 disables the behavior at that
// scope without falling back further. The two are not interchangeable.

// DeckOptions configures a device session.
type DeckOptions struct {
	// HoldDuration is the device-level hold threshold. nil applies
	// DefaultHoldDuration; 0 disables hold detection device-wide.
	HoldDuration *time.Duration

	// PressDuration is the device-level pressed-visual duration. nil applies
	// DefaultPressDuration; 0 keeps the pressed visual until release.
	PressDuration *time.Duration

	// IdleDuration arms an idle notification after this much inactivity.
	// 0 disables idle tracking.
	IdleDuration time.Duration

	// Brightness is the initial display brightness (0-100).
	// nil applies DefaultBrightness.
	Brightness *int

	// Custom carries caller-defined attributes; deckhand never reads it.
	Custom map[string]any
}

// PageOptions configures a virtual screen.
type PageOptions struct {
	// Name is an optional label used in notifications and logs.
	Name string

	// HoldDuration overrides the device hold threshold for keys on this
	// page. nil inherits; 0 disables.
	HoldDuration *time.Duration

	// PressDuration overrides the device pressed-visual duration for keys
	// on this page. nil inherits; 0 disables.
	PressDuration *time.Duration

	// Background is the optional panel-spanning background image.
	Background *Image

	// Custom carries caller-defined attributes; deckhand never reads it.
	Custom map[string]any
}

// KeyOptions configures a key.
type KeyOptions struct {
	// HoldDuration overrides the page/device hold threshold for this key.
	// nil inherits; 0 disables.
	HoldDuration *time.Duration

	// PressDuration overrides the page/device pressed-visual duration for
	// this key. nil inherits; 0 disables.
	PressDuration *time.Duration

	// Background and Foreground are the key's initial image slots.
	Background *Image
	Foreground *Image

	// Custom carries caller-defined attributes; deckhand never reads it.
	Custom map[string]any
}

// ResizeMode controls how an Image fits sources onto its target dimensions.
type ResizeMode int

const (
	// ResizeContain centers smaller sources on a transparent canvas without
	// enlarging them, and scales larger sources down preserving aspect
	// ratio. This is the default.
	ResizeContain ResizeMode = iota

	// ResizeStretch scales every source to exactly the target dimensions,
	// ignoring aspect ratio.
	ResizeStretch
)

// ImageOptions configures an Image's derived frame variants.
type ImageOptions struct {
	// PressScale produces a press-time variant scaled by this factor and
	// re-fit to the base dimensions. Valid range (0, 2]; 0 disables.
	PressScale float64

	// Resize overrides how sources are fit to the target dimensions.
	Resize ResizeMode

	// GridRows and GridColumns partition each frame into per-key-slot cells
	// for panel-spanning backgrounds. Both zero disables splitting.
	GridRows    int
	GridColumns int

	// Custom carries caller-defined attributes; deckhand never reads it.
	Custom map[string]any
}

// DurationPtr is a convenience for populating pointer-typed duration options.
func DurationPtr(d time.Duration) *time.Duration { return &d }

// resolveDuration walks key -> page -> deck scope and returns the effective
// duration plus the scope that defined it. An explicit 0 at any scope stops
// the walk there.
type durationScope int

const (
	scopeDeck durationScope = iota
	scopePage
	scopeKey
)

func resolveDuration(key, page *time.Duration, deck time.Duration) (time.Duration, durationScope) {
	if key != nil {
		return *key, scopeKey
	}
	if page != nil {
		return *page, scopePage
	}
	return deck, scopeDeck
}
