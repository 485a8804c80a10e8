// Package hid implements the HID boot keyboard report and the US-layout key
// map used to turn characters into key presses.
package hid

import "fmt"

// ReportSize is the length of a boot keyboard input report:
// modifiers, reserved, then six key usage slots.
const ReportSize = 8

// MaxKeys is the number of simultaneous key usages a report carries.
const MaxKeys = 6

// Modifier bits for the first report byte.
const (
	ModLeftCtrl   byte = 0x01
	ModLeftShift  byte = 0x02
	ModLeftAlt    byte = 0x04
	ModLeftGUI    byte = 0x08
	ModRightCtrl  byte = 0x10
	ModRightShift byte = 0x20
	ModRightAlt   byte = 0x40
	ModRightGUI   byte = 0x80
)

// Report is a single keyboard input report.
type Report struct {
	Modifiers byte
	Keys      [MaxKeys]byte
}

// Release is the empty report sent after every press.
var Release = Report{}

// Press returns the report for pressing a single key with the given modifiers.
func Press(usage, modifiers byte) Report {
	r := Report{Modifiers: modifiers}
	r.Keys[0] = usage
	return r
}

// IsRelease reports whether no key and no modifier is held.
func (r Report) IsRelease() bool {
	return r == Release
}

// Bytes returns the 8-byte wire form.
func (r Report) Bytes() []byte {
	b := make([]byte, ReportSize)
	b[0] = r.Modifiers
	copy(b[2:], r.Keys[:])
	return b
}

func (r Report) String() string {
	return fmt.Sprintf("% x", r.Bytes())
}

// ParseReport decodes the 8-byte wire form.
func ParseReport(b []byte) (Report, error) {
	if len(b) != ReportSize {
		return Report{}, fmt.Errorf("hid: report must be %d bytes, got %d", ReportSize, len(b))
	}
	var r Report
	r.Modifiers = b[0]
	copy(r.Keys[:], b[2:])
	return r, nil
}
