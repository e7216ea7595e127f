package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prashantgupta24/mac-sleep-notifier/notifier"
	"github.com/spf13/cobra"

	"github.com/phinze/deckhand"
	"github.com/phinze/deckhand/internal/config"
	"github.com/phinze/deckhand/internal/layout"
	"github.com/phinze/deckhand/internal/usbwatch"
	"github.com/phinze/deckhand/transport/streamdeckhw"
)

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("=== Deckhand Daemon ===")
	log.Println("Press Ctrl+C to exit")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal")
		cancel()
	}()

	// Start sleep/wake notifier; wake signals trigger immediate device probes
	sleepCh := notifier.GetInstance().Start()
	wakeCh := make(chan struct{}, 1)
	go func() {
		for activity := range sleepCh {
			if activity.Type == notifier.Awake {
				log.Println("System wake detected")
				select {
				case wakeCh <- struct{}{}:
				default:
				}
			}
		}
	}()

	// USB hotplug arrivals short-circuit the poll interval
	arrivals := usbwatch.Watch(ctx, usbwatch.ElgatoVendorID)

	// Main device loop - wait for device, run, repeat on disconnect
	for {
		hw := waitForDevice(ctx, cfg.Serial, wakeCh, arrivals)
		if hw == nil {
			// Context cancelled
			break
		}

		// Check context before starting - avoid race where device connects
		// after shutdown requested
		select {
		case <-ctx.Done():
			log.Println("Exiting...")
			return nil
		default:
		}

		// Drain any stale wake signals that accumulated while waiting for
		// the device. Without this, a wake signal from before device
		// enumeration would immediately tear the session down again.
	drainWake:
		for {
			select {
			case <-wakeCh:
				log.Println("Draining stale wake signal")
			default:
				break drainWake
			}
		}

		// Brief stabilization delay - USB enumeration may not be complete
		// even after the probe succeeds
		time.Sleep(500 * time.Millisecond)

		runSession(ctx, cfg, hw, wakeCh)

		select {
		case <-ctx.Done():
			log.Println("Exiting...")
			return nil
		default:
			log.Println("Waiting for device reconnect...")
		}
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadPath(configPath)
	}
	return config.Load()
}

// tryProbeWithTimeout attempts to locate a Stream Deck with a timeout. The
// timeout prevents blocking indefinitely when the USB subsystem is in a bad
// state. The device is not opened; the session does that.
func tryProbeWithTimeout(serial string, timeout time.Duration) *streamdeckhw.Adapter {
	ch := make(chan *streamdeckhw.Adapter, 1)

	go func() {
		hw, err := streamdeckhw.Get(serial)
		if err != nil {
			ch <- nil
			return
		}
		ch <- hw
	}()

	select {
	case hw := <-ch:
		return hw
	case <-time.After(timeout):
		log.Println("Device detection timed out")
		return nil
	}
}

// waitForDevice blocks until a Stream Deck is available. Hotplug arrivals
// and wake signals trigger immediate retries instead of waiting for the
// poll interval.
func waitForDevice(ctx context.Context, serial string, wakeCh, arrivals <-chan struct{}) *streamdeckhw.Adapter {
	const probeTimeout = 5 * time.Second

	// First, try an already-connected device
	if hw := tryProbeWithTimeout(serial, probeTimeout); hw != nil {
		return hw
	}

	log.Println("Waiting for device...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-arrivals:
			if hw := tryProbeWithTimeout(serial, probeTimeout); hw != nil {
				log.Println("Device connected!")
				return hw
			}
		case <-wakeCh:
			// After wake, USB devices may take several seconds to
			// enumerate. Retry a few times with short delays instead of
			// checking once.
			log.Println("Wake signal received, probing for device...")
			for i := 0; i < 10; i++ {
				if hw := tryProbeWithTimeout(serial, probeTimeout); hw != nil {
					log.Println("Device connected!")
					return hw
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(500 * time.Millisecond):
				}
			}
			log.Println("Device not found after wake, resuming polling...")
		case <-time.After(2 * time.Second):
		}

		if hw := tryProbeWithTimeout(serial, probeTimeout); hw != nil {
			log.Println("Device connected!")
			return hw
		}
	}
}

// runSession opens a deck on the transport, applies the configured layout,
// and runs until disconnect, wake, or context cancel.
func runSession(ctx context.Context, cfg *config.Config, hw *streamdeckhw.Adapter, wakeCh <-chan struct{}) {
	deck, err := deckhand.New(hw, layout.DeckOptions(cfg))
	if err != nil {
		log.Printf("Opening deck: %v", err)
		return
	}
	log.Printf("Connected to: %s", deck.Info().Model)

	errChan := make(chan error, 1)
	deck.OnError(func(err error) {
		log.Printf("Deck error: %v", err)
		var terr *deckhand.TransportError
		if errors.As(err, &terr) && terr.Op == "listen" {
			select {
			case errChan <- err:
			default:
			}
		}
	})

	if err := layout.Build(deck, cfg, defaultActions()); err != nil {
		log.Printf("Applying layout: %v", err)
		deck.Close()
		return
	}

	log.Println("Ready!")

	// Wait for shutdown, device error, or system wake
	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
	case err := <-errChan:
		log.Printf("Device disconnected: %v", err)
	case <-wakeCh:
		log.Println("Reconnecting device after wake...")
	}

	// Close with timeout; USB I/O can wedge on a half-gone device
	done := make(chan struct{})
	go func() {
		deck.Close()
		close(done)
	}()

	select {
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			log.Println("Device close timed out")
			os.Exit(0)
		}
	case <-done:
	case <-time.After(3 * time.Second):
		log.Println("Device close timed out")
	}

	// Brief delay to let any pending USB I/O callbacks complete before a
	// reopen attempt.
	time.Sleep(200 * time.Millisecond)
}

// defaultActions returns the built-in click handlers available to key
// configs.
func defaultActions() layout.Actions {
	return layout.Actions{
		"next-page": func(ev deckhand.KeyEvent) {
			pages := ev.Deck.Pages()
			for i, p := range pages {
				if p == ev.Page {
					if err := ev.Deck.Focus(pages[(i+1)%len(pages)]); err != nil {
						log.Printf("Focusing next page: %v", err)
					}
					return
				}
			}
		},
		"log": func(ev deckhand.KeyEvent) {
			log.Printf("Key clicked on page %q slot %d", ev.Page.Name(), ev.Index)
		},
	}
}
