package ble

import (
	"errors"
	"fmt"

	"github.com/chaz8081/btkbd/internal/hid"
)

// ErrNotConnected is matched by every *NotConnectedError.
var ErrNotConnected = errors.New("ble: not connected")

var (
	errConnectInProgress = errors.New("another connection attempt is in progress")
	errConnectAborted    = errors.New("connection aborted by disconnect")
	errNoHIDReport       = errors.New("device does not expose a HID report characteristic")
)

// ScanError means discovery could not run, usually because the local
// adapter is missing or powered off.
type ScanError struct {
	Err error
}

func (e *ScanError) Error() string { return "ble: scan: " + e.Err.Error() }
func (e *ScanError) Unwrap() error { return e.Err }

// ConnectionError means a connect attempt failed: link refused, HID profile
// missing, pairing rejected, or a concurrent attempt was already running.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ble: connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotConnectedError is returned by SendReport outside the Connected state.
type NotConnectedError struct {
	State State
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("ble: not connected (state %s)", e.State)
}

func (e *NotConnectedError) Unwrap() error { return ErrNotConnected }

// TransmissionError is a failed report write. It is never retried.
type TransmissionError struct {
	Report hid.Report
	Err    error
}

func (e *TransmissionError) Error() string {
	return fmt.Sprintf("ble: send report [%s]: %v", e.Report, e.Err)
}

func (e *TransmissionError) Unwrap() error { return e.Err }
