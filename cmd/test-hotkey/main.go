// Command test-hotkey is a manual test for the global hotkey listener.
// Run it, then press the combo to see events and the clipboard text that
// would be typed. Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--keys ctrl+shift+v]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chaz8081/btkbd/internal/clipboard"
	"github.com/chaz8081/btkbd/internal/hotkey"
)

func main() {
	combo := flag.String("keys", "ctrl+shift+v", "hotkey combo, keys joined by +")
	flag.Parse()

	keys := strings.Split(strings.ToLower(*combo), "+")
	fmt.Printf("Listening for %s...\n", strings.Join(keys, "+"))
	fmt.Println("Press Ctrl+C to exit.")

	listener := hotkey.NewListener(keys)

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	// Read events
	go func() {
		var clip clipboard.System
		for range listener.Events() {
			text, err := clip.Read()
			if err != nil {
				fmt.Printf(">>> PRESSED (clipboard error: %v)\n", err)
				continue
			}
			fmt.Printf(">>> PRESSED, would type %q\n", text)
		}
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
