package ble

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/btkbd/internal/hid"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SessionOptions configures a Session.
type SessionOptions struct {
	ConnectTimeout time.Duration // bound on link setup plus characteristic discovery
	ServiceFilter  string        // service UUID passed to Scan; empty lists every device
}

// DefaultSessionOptions returns sensible defaults.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		ConnectTimeout: 15 * time.Second,
	}
}

// Session owns the single connection to a HID host device. The zero value
// is not usable; create one with NewSession.
//
// SendReport calls must be serialized by the caller. State transitions are
// guarded internally because the platform stack reports link loss on its
// own goroutine.
type Session struct {
	adapter Adapter
	opts    SessionOptions

	mu      sync.Mutex
	enabled bool
	state   State
	device  Device
	conn    Connection
	report  Characteristic
	gen     uint64 // bumped on every connect/disconnect so stale callbacks are ignored
	onState func(State)
}

// NewSession creates a disconnected session on top of adapter.
func NewSession(adapter Adapter, opts SessionOptions) *Session {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 15 * time.Second
	}
	return &Session{adapter: adapter, opts: opts}
}

// OnStateChange registers fn to be called after every state transition.
// fn runs on the goroutine that caused the transition.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Device returns the device being connected to or connected to. It is the
// zero Device when disconnected.
func (s *Session) Device() Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

func (s *Session) notify(state State) {
	s.mu.Lock()
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

// enable powers on the adapter once per session.
func (s *Session) enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled {
		return nil
	}
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}
	s.enabled = true
	return nil
}

// Discover returns the devices seen within timeout. Nothing happens until
// the sequence is ranged over, and every range runs a new scan. Failure to
// use the adapter is yielded once as a *ScanError.
func (s *Session) Discover(ctx context.Context, timeout time.Duration) iter.Seq2[Device, error] {
	return func(yield func(Device, error) bool) {
		if err := s.enable(); err != nil {
			yield(Device{}, &ScanError{Err: err})
			return
		}

		scanCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		slog.Debug("[BLE] scanning", "timeout", timeout, "filter", s.opts.ServiceFilter)
		devices, err := s.adapter.Scan(scanCtx, s.opts.ServiceFilter)
		if err != nil {
			yield(Device{}, &ScanError{Err: err})
			return
		}

		now := time.Now()
		seen := make(map[string]bool, len(devices))
		for _, d := range devices {
			if seen[d.Address] {
				continue
			}
			seen[d.Address] = true
			if d.SeenAt.IsZero() {
				d.SeenAt = now
			}
			if !yield(d, nil) {
				return
			}
		}
		slog.Debug("[BLE] scan finished", "devices", len(seen))
	}
}

// CollectDevices drains a discovery sequence into a slice, stopping at the
// first error.
func CollectDevices(seq iter.Seq2[Device, error]) ([]Device, error) {
	var devices []Device
	for d, err := range seq {
		if err != nil {
			return devices, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// Connect opens the session to dev and resolves its HID report
// characteristic. Connecting to the device already connected is a no-op.
// A connected session to a different device is closed first. A second
// Connect while one is in flight fails with a *ConnectionError.
func (s *Session) Connect(ctx context.Context, dev Device) error {
	s.mu.Lock()
	var old Connection
	switch s.state {
	case StateConnecting:
		s.mu.Unlock()
		return &ConnectionError{Address: dev.Address, Err: errConnectInProgress}
	case StateConnected:
		if s.device.Address == dev.Address {
			s.mu.Unlock()
			return nil
		}
		old = s.conn
	}
	s.gen++
	gen := s.gen
	s.state = StateConnecting
	s.device = dev
	s.conn = nil
	s.report = nil
	s.mu.Unlock()

	s.notify(StateConnecting)

	if old != nil {
		slog.Info("[BLE] switching device, closing previous link")
		if err := old.Disconnect(); err != nil {
			slog.Debug("[BLE] previous link close failed", "error", err)
		}
	}

	if err := s.enable(); err != nil {
		return s.failConnect(gen, dev, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	slog.Info("[BLE] connecting", "device", dev.String())
	conn, err := s.adapter.Connect(ctx, dev.Address)
	if err != nil {
		return s.failConnect(gen, dev, err)
	}

	report, err := conn.DiscoverCharacteristic(HIDServiceUUID, ReportCharUUID)
	if err != nil {
		_ = conn.Disconnect()
		return s.failConnect(gen, dev, fmt.Errorf("%w: %v", errNoHIDReport, err))
	}

	s.mu.Lock()
	if s.gen != gen {
		// Disconnect or another Connect won the race.
		s.mu.Unlock()
		_ = conn.Disconnect()
		return &ConnectionError{Address: dev.Address, Err: errConnectAborted}
	}
	s.conn = conn
	s.report = report
	s.state = StateConnected
	s.mu.Unlock()

	conn.OnDisconnect(func() { s.linkLost(gen) })

	slog.Info("[BLE] connected", "device", dev.String())
	s.notify(StateConnected)
	return nil
}

func (s *Session) failConnect(gen uint64, dev Device, err error) error {
	s.mu.Lock()
	current := s.gen == gen
	if current {
		s.state = StateDisconnected
		s.device = Device{}
	}
	s.mu.Unlock()

	slog.Warn("[BLE] connect failed", "device", dev.String(), "error", err)
	if current {
		s.notify(StateDisconnected)
	}
	return &ConnectionError{Address: dev.Address, Err: err}
}

// linkLost handles a disconnect reported by the platform stack.
func (s *Session) linkLost(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	dev := s.device
	s.gen++
	s.reset()
	s.mu.Unlock()

	slog.Warn("[BLE] link lost", "device", dev.String())
	s.notify(StateDisconnected)
}

// reset clears connection fields (caller must hold mu).
func (s *Session) reset() {
	s.state = StateDisconnected
	s.device = Device{}
	s.conn = nil
	s.report = nil
}

// Disconnect closes the session from any state. It always succeeds; a
// failure to close the underlying link is only logged.
func (s *Session) Disconnect() {
	s.mu.Lock()
	prev := s.state
	conn := s.conn
	s.gen++
	s.reset()
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			slog.Debug("[BLE] disconnect failed", "error", err)
		}
	}
	if prev != StateDisconnected {
		slog.Info("[BLE] disconnected")
		s.notify(StateDisconnected)
	}
}

// SendReport writes one keyboard report. It fails with a *NotConnectedError
// unless the session is connected, and with a *TransmissionError when the
// write fails.
func (s *Session) SendReport(r hid.Report) error {
	s.mu.Lock()
	state := s.state
	report := s.report
	s.mu.Unlock()

	if state != StateConnected || report == nil {
		return &NotConnectedError{State: state}
	}
	if err := report.Write(r.Bytes()); err != nil {
		return &TransmissionError{Report: r, Err: err}
	}
	return nil
}
