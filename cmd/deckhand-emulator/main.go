package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/phinze/deckhand"
	"github.com/phinze/deckhand/internal/config"
	"github.com/phinze/deckhand/internal/layout"
	"github.com/phinze/deckhand/transport/emulator"
)

// Default emulated geometry matches a 15-key Stream Deck MK.2.
const (
	defaultRows    = 3
	defaultColumns = 5
	defaultKeySize = 72
)

func main() {
	log.Println("=== Deckhand Emulator ===")
	log.Println("Close window or press Ctrl+C to exit")

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}

	rows, cols := defaultRows, defaultColumns
	kw, kh := defaultKeySize, defaultKeySize
	if cfg.Emulator.Rows > 0 && cfg.Emulator.Columns > 0 {
		rows, cols = cfg.Emulator.Rows, cfg.Emulator.Columns
	}
	if cfg.Emulator.KeyW > 0 && cfg.Emulator.KeyH > 0 {
		kw, kh = cfg.Emulator.KeyW, cfg.Emulator.KeyH
	}

	emu := emulator.New(rows, cols, kw, kh)

	deck, err := deckhand.New(emu, layout.DeckOptions(cfg))
	if err != nil {
		log.Fatalf("Opening deck: %v", err)
	}
	deck.OnError(func(err error) {
		log.Printf("Deck error: %v", err)
	})

	if err := layout.Build(deck, cfg, layout.Actions{
		"next-page": func(ev deckhand.KeyEvent) {
			pages := ev.Deck.Pages()
			for i, p := range pages {
				if p == ev.Page {
					ev.Deck.Focus(pages[(i+1)%len(pages)])
					return
				}
			}
		},
		"log": func(ev deckhand.KeyEvent) {
			log.Printf("Key clicked on page %q slot %d", ev.Page.Name(), ev.Index)
		},
	}); err != nil {
		log.Fatalf("Applying layout: %v", err)
	}

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal")
		cancel()
	}()

	go func() {
		<-ctx.Done()
		deck.Close()
	}()

	log.Println("Ready!")

	// Run GUI on main thread (required for macOS)
	if err := emu.RunGUI(); err != nil {
		log.Printf("Emulator GUI error: %v", err)
	}
}
