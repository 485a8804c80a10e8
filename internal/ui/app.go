// Package ui is the presentation shell: a gioui window with a device list,
// connect controls and a typing area. App holds the shell state and runs
// every Bluetooth call on one worker goroutine; Run draws it.
package ui

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/btkbd/internal/ble"
	"github.com/chaz8081/btkbd/internal/clipboard"
	"github.com/chaz8081/btkbd/internal/typing"
)

// maxLogLines bounds the on-screen log.
const maxLogLines = 500

// Session is the device session as seen by the shell.
type Session interface {
	Discover(ctx context.Context, timeout time.Duration) iter.Seq2[ble.Device, error]
	Connect(ctx context.Context, dev ble.Device) error
	Disconnect()
	State() ble.State
	Device() ble.Device
	OnStateChange(fn func(ble.State))
}

// Typist sends text through the session. Both calls stop early once ctx
// is done.
type Typist interface {
	Type(ctx context.Context, text string) typing.Result
	Apply(ctx context.Context, prev, cur string) typing.Result
}

// LogLine is one entry of the on-screen log.
type LogLine struct {
	Time time.Time
	Text string
}

func (l LogLine) String() string {
	return "[" + l.Time.Format("15:04:05") + "] " + l.Text
}

// View is a snapshot of shell state for drawing.
type View struct {
	Devices  []ble.Device
	Selected int // index into Devices, -1 for none
	State    ble.State
	Device   ble.Device
	Status   string
	Scanning bool
	Log      []LogLine
}

// CanConnect reports whether the Connect button should be enabled.
func (v View) CanConnect() bool {
	return v.Selected >= 0 && v.State != ble.StateConnecting && !v.Scanning
}

// Options configures an App.
type Options struct {
	ScanTimeout time.Duration
	Clipboard   clipboard.Reader
	// Invalidate asks the window to redraw. It may be called from any goroutine.
	Invalidate func()
}

// App owns the device session on behalf of the window.
type App struct {
	session Session
	typist  Typist
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan func()
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	devices  []ble.Device
	selected int
	state    ble.State
	status   string
	scanning bool
	logs     []LogLine
	sent     string // editor text already typed to the device, kept across reconnects
}

// NewApp creates the shell state and starts its worker goroutine. Call
// Close when the window goes away.
func NewApp(session Session, typist Typist, opts Options) *App {
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 10 * time.Second
	}
	if opts.Invalidate == nil {
		opts.Invalidate = func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		session:  session,
		typist:   typist,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(chan func(), 64),
		done:     make(chan struct{}),
		selected: -1,
		state:    session.State(),
		status:   "Not connected",
	}
	session.OnStateChange(a.onStateChange)
	go a.work()
	a.logf("Application started. Ready to scan for devices.")
	return a
}

// work runs queued jobs in order, so scans, connects and typed text never
// overlap.
func (a *App) work() {
	defer close(a.done)
	for {
		select {
		case <-a.ctx.Done():
			return
		case job := <-a.jobs:
			job()
			a.opts.Invalidate()
		}
	}
}

func (a *App) enqueue(job func()) {
	select {
	case a.jobs <- job:
	case <-a.ctx.Done():
	}
}

func (a *App) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Info("[UI] " + msg)
	a.mu.Lock()
	a.logs = append(a.logs, LogLine{Time: time.Now(), Text: msg})
	if len(a.logs) > maxLogLines {
		a.logs = a.logs[len(a.logs)-maxLogLines:]
	}
	a.mu.Unlock()
	a.opts.Invalidate()
}

func (a *App) setStatus(s string) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
	a.opts.Invalidate()
}

func (a *App) onStateChange(st ble.State) {
	dev := a.session.Device()
	a.mu.Lock()
	a.state = st
	switch st {
	case ble.StateConnecting:
		a.status = "Connecting to " + dev.DisplayName() + "..."
	case ble.StateConnected:
		a.status = "Connected to " + dev.DisplayName()
	case ble.StateDisconnected:
		a.status = "Not connected"
	}
	a.mu.Unlock()
	a.opts.Invalidate()
}

// View returns a snapshot for drawing.
func (a *App) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return View{
		Devices:  append([]ble.Device(nil), a.devices...),
		Selected: a.selected,
		State:    a.state,
		Device:   a.session.Device(),
		Status:   a.status,
		Scanning: a.scanning,
		Log:      append([]LogLine(nil), a.logs...),
	}
}

// ScanRequested replaces the device list with a fresh scan.
func (a *App) ScanRequested() {
	a.mu.Lock()
	if a.scanning {
		a.mu.Unlock()
		return
	}
	a.scanning = true
	a.status = "Scanning..."
	a.mu.Unlock()
	a.logf("Starting device scan...")

	a.enqueue(func() {
		devices, err := ble.CollectDevices(a.session.Discover(a.ctx, a.opts.ScanTimeout))

		a.mu.Lock()
		a.scanning = false
		a.devices = devices
		a.selected = -1
		if len(devices) > 0 {
			a.selected = 0
		}
		a.status = "Scan complete"
		if err != nil {
			a.status = "Scan failed"
		}
		a.mu.Unlock()

		switch {
		case err != nil:
			a.logf("Error scanning: %v", err)
		case len(devices) == 0:
			a.logf("No devices found")
		default:
			a.logf("Found %d device(s)", len(devices))
		}
	})
}

// SelectDevice marks devices[i] as the connect target.
func (a *App) SelectDevice(i int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i >= 0 && i < len(a.devices) {
		a.selected = i
	}
}

// ConnectRequested connects to the selected device.
func (a *App) ConnectRequested() {
	a.mu.Lock()
	if a.selected < 0 || a.selected >= len(a.devices) {
		a.mu.Unlock()
		a.logf("Please select a device first.")
		return
	}
	dev := a.devices[a.selected]
	a.mu.Unlock()

	a.logf("Attempting to connect to %s...", dev.DisplayName())
	a.enqueue(func() {
		if err := a.session.Connect(a.ctx, dev); err != nil {
			a.setStatus("Connection failed")
			a.logf("Connection failed: %v", err)
			a.logf("Make sure the device supports the HID profile, is in pairing mode, and Bluetooth is enabled on both sides.")
			return
		}
		a.logf("Successfully connected to %s", dev.DisplayName())
	})
}

// DisconnectRequested closes the session. It bypasses the job queue so
// it also aborts a connect in progress.
func (a *App) DisconnectRequested() {
	go func() {
		a.session.Disconnect()
		a.logf("Disconnected")
	}()
}

// TextChanged types the difference between what was already sent and the
// editor's current contents.
func (a *App) TextChanged(cur string) {
	a.mu.Lock()
	if a.state != ble.StateConnected {
		a.mu.Unlock()
		return
	}
	prev := a.sent
	a.sent = cur
	a.mu.Unlock()

	if prev == cur {
		return
	}
	a.enqueue(func() {
		a.report(a.typist.Apply(a.ctx, prev, cur))
	})
}

// ClearInput forgets the typed text without sending backspaces.
func (a *App) ClearInput() {
	a.mu.Lock()
	a.sent = ""
	a.mu.Unlock()
}

// TypeClipboard types the clipboard contents to the connected device.
func (a *App) TypeClipboard() {
	if a.opts.Clipboard == nil {
		return
	}
	if a.View().State != ble.StateConnected {
		a.logf("Not connected, clipboard not sent")
		return
	}
	a.enqueue(func() {
		text, err := a.opts.Clipboard.Read()
		if err != nil {
			a.logf("Clipboard error: %v", err)
			return
		}
		if text == "" {
			return
		}
		res := a.typist.Type(a.ctx, text)
		a.report(res)
		a.logf("Typed %d character(s) from clipboard", res.Sent)
	})
}

func (a *App) report(res typing.Result) {
	for _, r := range res.Skipped {
		a.logf("Unsupported character: %q", r)
	}
	for _, f := range res.Failures {
		a.logf("Failed to send %q: %v", f.Char, f.Err)
	}
}

// Close cancels pending work including text being typed, disconnects,
// and stops the worker.
func (a *App) Close() {
	a.once.Do(func() {
		a.cancel()
		a.session.Disconnect()
		<-a.done
	})
}
