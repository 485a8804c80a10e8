package ble

import "fmt"

// Backend names accepted by OpenAdapter.
const (
	BackendTinyGo = "tinygo"
	BackendBlueZ  = "bluez"
)

// OpenAdapter returns the adapter for backend and a function that
// releases it. hci selects the controller for the bluez backend.
func OpenAdapter(backend, hci string) (Adapter, func() error, error) {
	switch backend {
	case BackendTinyGo, "":
		return NewTinyGoAdapter(), func() error { return nil }, nil
	case BackendBlueZ:
		a, err := NewBlueZAdapter(hci)
		if err != nil {
			return nil, nil, err
		}
		return a, a.Close, nil
	default:
		return nil, nil, fmt.Errorf("ble: unknown backend %q", backend)
	}
}
