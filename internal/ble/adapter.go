// Package ble abstracts the Bluetooth Low Energy transport: scanning for
// the shifter by advertised name, connecting, and subscribing to the
// button notification characteristic.
package ble

import (
	"context"
	"strings"
)

// Device represents a discovered BLE peripheral.
type Device struct {
	Name string
	Addr string
	RSSI int
}

// Characteristic represents a BLE GATT characteristic. The shifter's
// button characteristic is notify-only; there is no write path.
type Characteristic interface {
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers the first peripheral whose advertised name starts
	// with namePrefix. Returns (nil, nil) if ctx expires with no match.
	Scan(ctx context.Context, namePrefix string) (*Device, error)
	// Connect establishes a connection to the device at the given address.
	Connect(ctx context.Context, addr string) (Connection, error)
}

// MatchesName reports whether an advertised local name identifies the
// target device. An empty advertised name never matches.
func MatchesName(localName, namePrefix string) bool {
	if localName == "" {
		return false
	}
	return strings.HasPrefix(localName, namePrefix)
}
