// Command btkbd turns this computer into a Bluetooth keyboard: pick a
// nearby device, connect, and whatever is typed into the window is sent
// to it as HID key presses.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gioui.org/app"
	"gioui.org/unit"

	"github.com/chaz8081/btkbd/internal/ble"
	"github.com/chaz8081/btkbd/internal/clipboard"
	"github.com/chaz8081/btkbd/internal/config"
	"github.com/chaz8081/btkbd/internal/hotkey"
	"github.com/chaz8081/btkbd/internal/typing"
	"github.com/chaz8081/btkbd/internal/ui"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/btkbd/config.yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	printBanner(cfg)

	adapter, release, err := ble.OpenAdapter(cfg.Bluetooth.Backend, cfg.Bluetooth.Adapter)
	if err != nil {
		log.Fatalf("Failed to open Bluetooth adapter: %v", err)
	}

	session := ble.NewSession(adapter, ble.SessionOptions{
		ConnectTimeout: cfg.Bluetooth.ConnectTimeout,
		ServiceFilter:  cfg.Bluetooth.ServiceFilter,
	})
	translator := typing.NewTranslator(session, typing.Options{
		KeyDelay:  cfg.Typing.KeyDelay,
		CharDelay: cfg.Typing.CharDelay,
	})

	go func() {
		w := new(app.Window)
		w.Option(app.Title("Bluetooth Keyboard"))
		w.Option(app.Size(unit.Dp(520), unit.Dp(760)))

		shell := ui.NewApp(session, translator, ui.Options{
			ScanTimeout: cfg.Bluetooth.ScanTimeout,
			Clipboard:   clipboard.System{},
			Invalidate:  w.Invalidate,
		})

		if cfg.Hotkey.Enabled {
			listener := hotkey.NewListener(cfg.Hotkey.Keys)
			go listener.Start()
			go func() {
				for range listener.Events() {
					shell.TypeClipboard()
				}
			}()
			log.Printf("Hotkey ready: %s types the clipboard", strings.Join(cfg.Hotkey.Keys, "+"))
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			log.Printf("Received %s, shutting down...", sig)
			shell.Close()
			release()
			// Exit directly to avoid gohook's C cleanup crash.
			os.Exit(0)
		}()

		err := ui.Run(w, shell)
		if rerr := release(); rerr != nil {
			slog.Warn("releasing adapter", "error", rerr)
		}
		if err != nil {
			log.Fatal(err)
		}
		log.Println("Goodbye!")
		os.Exit(0)
	}()
	app.Main()
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or writes and uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	written, err := config.WriteDefault()
	if err != nil {
		log.Printf("No config file found, using defaults (could not write one: %v)", err)
	} else if written != "" {
		log.Printf("No config file found, wrote defaults to %s", written)
	}
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== btkbd ===")
	fmt.Printf("  Backend: %s", cfg.Bluetooth.Backend)
	if cfg.Bluetooth.Backend == ble.BackendBlueZ {
		fmt.Printf(" (%s)", cfg.Bluetooth.Adapter)
	}
	fmt.Println()
	fmt.Printf("  Scan:    %s, connect timeout %s\n", cfg.Bluetooth.ScanTimeout, cfg.Bluetooth.ConnectTimeout)
	fmt.Printf("  Typing:  key %s, char %s\n", cfg.Typing.KeyDelay, cfg.Typing.CharDelay)
	if cfg.Hotkey.Enabled {
		fmt.Printf("  Hotkey:  %s\n", strings.Join(cfg.Hotkey.Keys, "+"))
	} else {
		fmt.Println("  Hotkey:  off")
	}
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("=============")
}
