// Command blescan is a manual test for device discovery. It scans for a
// peripheral whose advertised name starts with the given prefix and
// prints what it finds.
//
// Usage:
//
//	go run ./cmd/blescan [--prefix "KICKR BIKE SHIFT"] [--timeout 12]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chaz8081/shiftkey/internal/ble"
)

func main() {
	prefix := flag.String("prefix", "KICKR BIKE SHIFT", "device name prefix to match")
	timeout := flag.Float64("timeout", 12, "scan timeout in seconds")
	flag.Parse()

	adapter := ble.NewNativeAdapter()
	if err := adapter.Enable(); err != nil {
		fmt.Printf("Error: enable adapter: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scanning for %q* (up to %.0fs)...\n", *prefix, *timeout)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout*float64(time.Second)))
	defer cancel()

	dev, err := adapter.Scan(ctx, *prefix)
	if err != nil {
		fmt.Printf("Error: scan: %v\n", err)
		os.Exit(1)
	}
	if dev == nil {
		fmt.Println("No matching device found. Is it on and advertising?")
		os.Exit(1)
	}

	fmt.Printf("Found %q at %s (RSSI %d)\n", dev.Name, dev.Addr, dev.RSSI)
}
