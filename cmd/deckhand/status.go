package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/phinze/deckhand/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check config and device health",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Deckhand Status ===")
	fmt.Println()

	allOK := true

	// Config file
	path := config.DefaultConfigPath()
	if configPath != "" {
		path = configPath
	}
	fmt.Printf("Config file: %s\n", path)
	if _, err := os.Stat(path); err == nil {
		fmt.Println("  Status: found")
	} else {
		fmt.Println("  Status: NOT FOUND")
		allOK = false
	}

	cfg, err := config.LoadPath(path)
	if err != nil {
		fmt.Printf("  Load error: %v\n", err)
		allOK = false
	}
	fmt.Println()

	// Layout summary
	fmt.Println("Layout:")
	if cfg != nil && len(cfg.Pages) > 0 {
		for _, p := range cfg.Pages {
			fmt.Printf("  Page %q: %d keys\n", p.Name, len(p.Keys))
		}
	} else {
		fmt.Println("  Pages: NONE CONFIGURED")
		allOK = false
	}
	fmt.Println()

	// Device check (quick USB probe)
	fmt.Println("Stream Deck:")
	serial := ""
	if cfg != nil {
		serial = cfg.Serial
	}
	if hw := tryProbeWithTimeout(serial, 2*time.Second); hw != nil {
		fmt.Println("  Device: CONNECTED")
	} else {
		fmt.Println("  Device: not detected")
	}
	fmt.Println()

	if allOK {
		fmt.Println("All checks passed.")
	} else {
		fmt.Println("Some checks failed. Write a config to get started.")
	}

	return nil
}
