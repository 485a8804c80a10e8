package typing

import (
	"unicode/utf8"

	"github.com/chaz8081/btkbd/internal/hid"
)

// Diff computes the keystrokes that turn prev into cur on a host whose
// cursor sits at the end of the text: delete the runes after the common
// prefix, then type the rest of cur. Runes with no key mapping were never
// sent, so deleting them costs no backspace.
func Diff(prev, cur string) (added string, deleted int) {
	p := 0
	for p < len(prev) && p < len(cur) {
		_, np := utf8.DecodeRuneInString(prev[p:])
		_, nc := utf8.DecodeRuneInString(cur[p:])
		if prev[p:p+np] != cur[p:p+nc] {
			break
		}
		p += np
	}
	for _, r := range prev[p:] {
		if _, ok := hid.Lookup(r); ok {
			deleted++
		}
	}
	return cur[p:], deleted
}
