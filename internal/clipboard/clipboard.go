// Package clipboard reads the system clipboard using robotgo so its text
// can be typed to the connected device.
package clipboard

import (
	"fmt"
	"strings"

	"github.com/go-vgo/robotgo"
)

// Reader returns the current clipboard text.
type Reader interface {
	Read() (string, error)
}

// System reads the OS clipboard.
type System struct{}

// Compile-time interface satisfaction check.
var _ Reader = System{}

// Read returns the clipboard text with line endings normalized.
func (System) Read() (string, error) {
	text, err := robotgo.ReadAll()
	if err != nil {
		return "", fmt.Errorf("clipboard: read: %w", err)
	}
	return Normalize(text), nil
}

// Normalize converts CRLF and lone CR line endings to LF so each line break
// types a single Enter.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
