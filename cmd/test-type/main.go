// Command test-type is a manual end-to-end test for the BLE keyboard path.
// It scans, connects to the given device, then types test text into
// whatever has focus on that device.
//
// Usage:
//
//	go run ./cmd/test-type [--backend tinygo|bluez] [--addr AA:BB:CC:DD:EE:FF] [--text "..."]
//
// Without --addr it only lists nearby devices.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/chaz8081/btkbd/internal/ble"
	"github.com/chaz8081/btkbd/internal/typing"
)

func main() {
	backend := flag.String("backend", ble.BackendTinyGo, "bluetooth backend: tinygo or bluez")
	hci := flag.String("hci", "hci0", "controller for the bluez backend")
	addr := flag.String("addr", "", "device address to connect to")
	text := flag.String("text", "Hello from btkbd!\n", "text to type")
	scan := flag.Duration("scan", 10*time.Second, "scan duration")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	adapter, release, err := ble.OpenAdapter(*backend, *hci)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer release()

	session := ble.NewSession(adapter, ble.DefaultSessionOptions())
	session.OnStateChange(func(s ble.State) {
		fmt.Printf("--- %s\n", s)
	})

	fmt.Printf("Scanning for %s...\n", *scan)
	var target ble.Device
	for dev, err := range session.Discover(ctx, *scan) {
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  %-40s RSSI %d\n", dev, dev.RSSI)
		if strings.EqualFold(dev.Address, *addr) {
			target = dev
		}
	}

	if *addr == "" {
		fmt.Println("\nPass --addr to connect.")
		return
	}
	if target.Address == "" {
		// Paired hosts often stop advertising; try the address anyway.
		target = ble.Device{Address: *addr}
	}

	if err := session.Connect(ctx, target); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer session.Disconnect()

	fmt.Println("Connected. Focus a text field on the device; typing in 3 seconds...")
	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	res := typing.NewTranslator(session, typing.DefaultOptions()).Type(ctx, *text)
	fmt.Printf("\nSent %d character(s)", res.Sent)
	if len(res.Skipped) > 0 {
		fmt.Printf(", skipped %q", string(res.Skipped))
	}
	fmt.Println()
	if err := res.Err(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Done!")
}
