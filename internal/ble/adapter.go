// Package ble provides the Bluetooth Low Energy side of the keyboard: a
// platform adapter abstraction, device discovery, and the single device
// session that HID keyboard reports are written through.
package ble

import (
	"context"
	"time"
)

// Standard Bluetooth SIG UUIDs for the HID over GATT profile.
const (
	HIDServiceUUID = "00001812-0000-1000-8000-00805f9b34fb"
	ReportCharUUID = "00002a4d-0000-1000-8000-00805f9b34fb"
)

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data to the characteristic.
	Write(data []byte) error
}

// Device is a peripheral found during discovery.
type Device struct {
	Name string
	// Address is a MAC address on Linux and Windows. On macOS it is the
	// CoreBluetooth peripheral UUID.
	Address string
	RSSI    int
	SeenAt  time.Time
}

// DisplayName returns the advertised name, or "Unknown".
func (d Device) DisplayName() string {
	if d.Name == "" {
		return "Unknown"
	}
	return d.Name
}

func (d Device) String() string {
	return d.DisplayName() + " (" + d.Address + ")"
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

// Adapter abstracts the platform Bluetooth stack. There is one
// implementation per native stack plus in-package mocks for tests.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers BLE peripherals until ctx is done. An empty serviceUUID
	// reports every peripheral.
	Scan(ctx context.Context, serviceUUID string) ([]Device, error)
	// Connect establishes a connection to the device with the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}
