// Package layout turns a loaded config into live pages, keys, and images on
// a deck session.
package layout

import (
	"fmt"

	"github.com/phinze/deckhand"
	"github.com/phinze/deckhand/internal/config"
)

// Actions maps the action names used in key configs to click handlers.
type Actions map[string]func(deckhand.KeyEvent)

// DeckOptions converts the device-level config fields into deck options.
func DeckOptions(cfg *config.Config) *deckhand.DeckOptions {
	opts := &deckhand.DeckOptions{
		Brightness: cfg.Brightness,
	}
	if cfg.Hold != nil {
		opts.HoldDuration = deckhand.DurationPtr(cfg.Hold.Std())
	}
	if cfg.Press != nil {
		opts.PressDuration = deckhand.DurationPtr(cfg.Press.Std())
	}
	if cfg.Idle != nil {
		opts.IdleDuration = cfg.Idle.Std()
	}
	return opts
}

// Build creates the configured pages and keys on the deck. The first page in
// the config receives focus (the deck focuses the first page created).
func Build(d *deckhand.Deck, cfg *config.Config, actions Actions) error {
	if len(cfg.Pages) == 0 {
		return fmt.Errorf("layout: config defines no pages")
	}

	for _, pc := range cfg.Pages {
		if err := buildPage(d, pc, actions); err != nil {
			return fmt.Errorf("layout: page %q: %w", pc.Name, err)
		}
	}
	return nil
}

func buildPage(d *deckhand.Deck, pc config.PageConfig, actions Actions) error {
	popts := &deckhand.PageOptions{Name: pc.Name}
	if pc.Hold != nil {
		popts.HoldDuration = deckhand.DurationPtr(pc.Hold.Std())
	}
	if pc.Press != nil {
		popts.PressDuration = deckhand.DurationPtr(pc.Press.Std())
	}
	if pc.Background != "" {
		img, err := d.NewPanelImage(nil, deckhand.File(pc.Background))
		if err != nil {
			return fmt.Errorf("panel background %s: %w", pc.Background, err)
		}
		popts.Background = img
	}

	page, err := d.NewPage(popts)
	if err != nil {
		return err
	}

	for _, kc := range pc.Keys {
		if err := buildKey(d, page, kc, actions); err != nil {
			return fmt.Errorf("key at row %d col %d: %w", kc.Row, kc.Col, err)
		}
	}
	return nil
}

func buildKey(d *deckhand.Deck, page *deckhand.Page, kc config.KeyConfig, actions Actions) error {
	kopts := &deckhand.KeyOptions{}
	if kc.Hold != nil {
		kopts.HoldDuration = deckhand.DurationPtr(kc.Hold.Std())
	}
	if kc.Press != nil {
		kopts.PressDuration = deckhand.DurationPtr(kc.Press.Std())
	}

	iopts := &deckhand.ImageOptions{}
	if kc.PressScale > 0 {
		iopts.PressScale = kc.PressScale
	}
	if kc.Image != "" {
		img, err := d.NewKeyImage(iopts, deckhand.File(kc.Image))
		if err != nil {
			return fmt.Errorf("image %s: %w", kc.Image, err)
		}
		kopts.Foreground = img
	}
	if kc.Background != "" {
		img, err := d.NewKeyImage(nil, deckhand.File(kc.Background))
		if err != nil {
			return fmt.Errorf("background %s: %w", kc.Background, err)
		}
		kopts.Background = img
	}

	key, err := d.NewKey(kopts)
	if err != nil {
		return err
	}

	if kc.Action != "" {
		fn, ok := actions[kc.Action]
		if !ok {
			return fmt.Errorf("unknown action %q", kc.Action)
		}
		key.OnClick(fn)
	}

	if kc.Row > 0 && kc.Col > 0 {
		return key.AttachAt(page, kc.Row, kc.Col)
	}
	_, err = key.AttachFree(page)
	return err
}
