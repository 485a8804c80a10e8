package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/btkbd/internal/hid"
)

var (
	phone  = Device{Name: "Pixel 8", Address: "AA:BB:CC:DD:EE:FF", RSSI: -45}
	tablet = Device{Name: "iPad", Address: "11:22:33:44:55:66", RSSI: -60}
)

func connectedSession(t *testing.T, adapter *mockAdapter, dev Device) *Session {
	t.Helper()
	s := NewSession(adapter, DefaultSessionOptions())
	require.NoError(t, s.Connect(context.Background(), dev))
	require.Equal(t, StateConnected, s.State())
	return s
}

func TestDiscoverYieldsDevices(t *testing.T) {
	adapter := newMockAdapter([]Device{phone, tablet})
	s := NewSession(adapter, DefaultSessionOptions())

	devices, err := CollectDevices(s.Discover(context.Background(), time.Second))
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "Pixel 8", devices[0].Name)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", devices[0].Address)
	assert.False(t, devices[0].SeenAt.IsZero(), "SeenAt should be stamped")
}

func TestDiscoverNoDevicesIsEmptyNotError(t *testing.T) {
	adapter := newMockAdapter(nil)
	s := NewSession(adapter, DefaultSessionOptions())

	var n int
	for _, err := range s.Discover(context.Background(), time.Second) {
		require.NoError(t, err)
		n++
	}
	assert.Zero(t, n)
}

func TestDiscoverIsLazyAndRestartable(t *testing.T) {
	adapter := newMockAdapter([]Device{phone})
	s := NewSession(adapter, DefaultSessionOptions())

	seq := s.Discover(context.Background(), time.Second)
	assert.Zero(t, adapter.scans, "creating the sequence must not scan")

	_, err := CollectDevices(seq)
	require.NoError(t, err)
	_, err = CollectDevices(seq)
	require.NoError(t, err)
	assert.Equal(t, 2, adapter.scans)
	assert.Equal(t, 1, adapter.enables, "adapter is enabled once per session")
}

func TestDiscoverDeduplicatesAddresses(t *testing.T) {
	adapter := newMockAdapter([]Device{phone, phone, tablet})
	s := NewSession(adapter, DefaultSessionOptions())

	devices, err := CollectDevices(s.Discover(context.Background(), time.Second))
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestDiscoverStopsEarly(t *testing.T) {
	adapter := newMockAdapter([]Device{phone, tablet})
	s := NewSession(adapter, DefaultSessionOptions())

	var got []Device
	for d, err := range s.Discover(context.Background(), time.Second) {
		require.NoError(t, err)
		got = append(got, d)
		break
	}
	assert.Len(t, got, 1)
}

func TestDiscoverAdapterUnavailable(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.enableErr = errMockRadioOff
	s := NewSession(adapter, DefaultSessionOptions())

	_, err := CollectDevices(s.Discover(context.Background(), time.Second))
	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.ErrorIs(t, err, errMockRadioOff)
}

func TestDiscoverScanFailure(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.scanErr = errors.New("mock: scan refused")
	s := NewSession(adapter, DefaultSessionOptions())

	_, err := CollectDevices(s.Discover(context.Background(), time.Second))
	var scanErr *ScanError
	assert.ErrorAs(t, err, &scanErr)
}

func TestConnectTransitionsToConnected(t *testing.T) {
	adapter := newMockAdapter(nil)
	s := NewSession(adapter, DefaultSessionOptions())

	var mu sync.Mutex
	var states []State
	s.OnStateChange(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, st)
	})

	require.Equal(t, StateDisconnected, s.State())
	require.NoError(t, s.Connect(context.Background(), phone))
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, phone.Address, s.Device().Address)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateConnected}, states)
}

func TestConnectIsIdempotentForSameDevice(t *testing.T) {
	adapter := newMockAdapter(nil)
	s := connectedSession(t, adapter, phone)

	require.NoError(t, s.Connect(context.Background(), phone))
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, 1, adapter.connectCount(), "second Connect must not open a new link")
}

func TestConnectWhileConnectingFails(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.connectGate = make(chan struct{})
	adapter.connecting = make(chan struct{}, 1)
	s := NewSession(adapter, DefaultSessionOptions())

	first := make(chan error, 1)
	go func() { first <- s.Connect(context.Background(), tablet) }()
	<-adapter.connecting
	require.Equal(t, StateConnecting, s.State())

	err := s.Connect(context.Background(), phone)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", connErr.Address)

	close(adapter.connectGate)
	require.NoError(t, <-first)
	assert.Equal(t, tablet.Address, s.Device().Address)
}

func TestConnectToOtherDeviceClosesPrevious(t *testing.T) {
	adapter := newMockAdapter(nil)
	s := connectedSession(t, adapter, phone)
	old := adapter.latestConnection()

	require.NoError(t, s.Connect(context.Background(), tablet))
	assert.True(t, old.isDisconnected())
	assert.Equal(t, tablet.Address, s.Device().Address)

	// A late disconnect callback from the old link must not tear down the new one.
	old.SimulateDisconnect()
	assert.Equal(t, StateConnected, s.State())
}

func TestConnectRefused(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.connectErr = errors.New("mock: pairing rejected")
	s := NewSession(adapter, DefaultSessionOptions())

	err := s.Connect(context.Background(), phone)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestConnectWithoutHIDProfile(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.noHID = true
	s := NewSession(adapter, DefaultSessionOptions())

	err := s.Connect(context.Background(), phone)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, errNoHIDReport)
	assert.Equal(t, StateDisconnected, s.State())
	assert.True(t, adapter.latestConnection().isDisconnected(), "link without HID must be closed")
}

func TestConnectTimesOut(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.connectGate = make(chan struct{})
	opts := DefaultSessionOptions()
	opts.ConnectTimeout = 20 * time.Millisecond
	s := NewSession(adapter, opts)

	err := s.Connect(context.Background(), phone)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestDisconnectDuringConnectAborts(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.connectGate = make(chan struct{})
	adapter.connecting = make(chan struct{}, 1)
	s := NewSession(adapter, DefaultSessionOptions())

	result := make(chan error, 1)
	go func() { result <- s.Connect(context.Background(), phone) }()
	<-adapter.connecting

	s.Disconnect()
	assert.Equal(t, StateDisconnected, s.State())

	close(adapter.connectGate)
	err := <-result
	assert.ErrorIs(t, err, errConnectAborted)
	assert.Equal(t, StateDisconnected, s.State())
	assert.True(t, adapter.latestConnection().isDisconnected())
}

func TestDisconnectAlwaysSucceeds(t *testing.T) {
	adapter := newMockAdapter(nil)
	s := NewSession(adapter, DefaultSessionOptions())
	s.Disconnect() // from Disconnected
	assert.Equal(t, StateDisconnected, s.State())

	s = connectedSession(t, adapter, phone)
	s.Disconnect()
	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, Device{}, s.Device())
	assert.True(t, adapter.latestConnection().isDisconnected())
}

func TestLinkLossMovesToDisconnected(t *testing.T) {
	adapter := newMockAdapter(nil)
	s := connectedSession(t, adapter, phone)

	adapter.latestConnection().SimulateDisconnect()
	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, 1, adapter.connectCount(), "link loss is not retried")
}

func TestSendReportRequiresConnected(t *testing.T) {
	adapter := newMockAdapter(nil)
	adapter.connectGate = make(chan struct{})
	adapter.connecting = make(chan struct{}, 1)
	s := NewSession(adapter, DefaultSessionOptions())

	err := s.SendReport(hid.Press(hid.KeyA, 0))
	assert.ErrorIs(t, err, ErrNotConnected)

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background(), phone) }()
	<-adapter.connecting

	err = s.SendReport(hid.Press(hid.KeyA, 0))
	var nc *NotConnectedError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, StateConnecting, nc.State)

	close(adapter.connectGate)
	require.NoError(t, <-done)
	require.NoError(t, s.SendReport(hid.Press(hid.KeyA, 0)))

	s.Disconnect()
	assert.ErrorIs(t, s.SendReport(hid.Release), ErrNotConnected)
}

func TestSendReportWritesWireBytes(t *testing.T) {
	adapter := newMockAdapter(nil)
	s := connectedSession(t, adapter, phone)

	require.NoError(t, s.SendReport(hid.Press(hid.KeyA+7, hid.ModLeftShift)))
	require.NoError(t, s.SendReport(hid.Release))

	writes := adapter.latestConnection().report.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, []byte{0x02, 0x00, 0x0B, 0, 0, 0, 0, 0}, writes[0])
	assert.Equal(t, make([]byte, 8), writes[1])
}

func TestSendReportTransmissionError(t *testing.T) {
	adapter := newMockAdapter(nil)
	s := connectedSession(t, adapter, phone)
	adapter.latestConnection().report.writeErr = errors.New("mock: ATT write failed")

	err := s.SendReport(hid.Release)
	var txErr *TransmissionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, StateConnected, s.State(), "a failed write does not drop the session")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestDeviceDisplayName(t *testing.T) {
	assert.Equal(t, "Unknown", Device{Address: "AA"}.DisplayName())
	assert.Equal(t, "Pixel 8 (AA:BB:CC:DD:EE:FF)", phone.String())
}
