package hid

import (
	"strconv"
	"strings"
)

// Usage IDs from the Keyboard/Keypad page (0x07) of the HID Usage Tables.
const (
	KeyA          byte = 0x04
	Key1          byte = 0x1E
	Key0          byte = 0x27
	KeyEnter      byte = 0x28
	KeyEscape     byte = 0x29
	KeyBackspace  byte = 0x2A
	KeyTab        byte = 0x2B
	KeySpace      byte = 0x2C
	KeyMinus      byte = 0x2D
	KeyEqual      byte = 0x2E
	KeyLeftBrace  byte = 0x2F
	KeyRightBrace byte = 0x30
	KeyBackslash  byte = 0x31
	KeySemicolon  byte = 0x33
	KeyApostrophe byte = 0x34
	KeyGrave      byte = 0x35
	KeyComma      byte = 0x36
	KeyDot        byte = 0x37
	KeySlash      byte = 0x38
	KeyF1         byte = 0x3A
	KeyHome       byte = 0x4A
	KeyPageUp     byte = 0x4B
	KeyDelete     byte = 0x4C
	KeyEnd        byte = 0x4D
	KeyPageDown   byte = 0x4E
	KeyRight      byte = 0x4F
	KeyLeft       byte = 0x50
	KeyDown       byte = 0x51
	KeyUp         byte = 0x52
)

// Entry is one key map row: the usage to press and the modifiers to hold.
type Entry struct {
	Usage     byte
	Modifiers byte
}

// Shifted reports whether the entry needs Shift held.
func (e Entry) Shifted() bool {
	return e.Modifiers&(ModLeftShift|ModRightShift) != 0
}

// Report returns the press report for this entry.
func (e Entry) Report() Report {
	return Press(e.Usage, e.Modifiers)
}

type usageKey struct {
	usage, mods byte
}

var (
	keymap  map[rune]Entry
	reverse map[usageKey]rune
	named   map[string]byte
)

func init() {
	keymap = make(map[rune]Entry, 100)

	for i := 0; i < 26; i++ {
		usage := KeyA + byte(i)
		keymap['a'+rune(i)] = Entry{Usage: usage}
		keymap['A'+rune(i)] = Entry{Usage: usage, Modifiers: ModLeftShift}
	}
	for i := 1; i <= 9; i++ {
		keymap['0'+rune(i)] = Entry{Usage: Key1 + byte(i-1)}
	}
	keymap['0'] = Entry{Usage: Key0}

	// Shifted digit row on a US layout.
	for i, r := range "!@#$%^&*(" {
		keymap[r] = Entry{Usage: Key1 + byte(i), Modifiers: ModLeftShift}
	}
	keymap[')'] = Entry{Usage: Key0, Modifiers: ModLeftShift}

	punct := []struct {
		plain, shifted rune
		usage          byte
	}{
		{'-', '_', KeyMinus},
		{'=', '+', KeyEqual},
		{'[', '{', KeyLeftBrace},
		{']', '}', KeyRightBrace},
		{'\\', '|', KeyBackslash},
		{';', ':', KeySemicolon},
		{'\'', '"', KeyApostrophe},
		{'`', '~', KeyGrave},
		{',', '<', KeyComma},
		{'.', '>', KeyDot},
		{'/', '?', KeySlash},
	}
	for _, p := range punct {
		keymap[p.plain] = Entry{Usage: p.usage}
		keymap[p.shifted] = Entry{Usage: p.usage, Modifiers: ModLeftShift}
	}

	keymap[' '] = Entry{Usage: KeySpace}
	keymap['\t'] = Entry{Usage: KeyTab}
	keymap['\n'] = Entry{Usage: KeyEnter}
	keymap['\r'] = Entry{Usage: KeyEnter}

	reverse = make(map[usageKey]rune, len(keymap))
	for r, e := range keymap {
		if r == '\r' {
			continue
		}
		reverse[usageKey{e.Usage, e.Modifiers}] = r
	}

	named = map[string]byte{
		"backspace": KeyBackspace,
		"enter":     KeyEnter,
		"return":    KeyEnter,
		"escape":    KeyEscape,
		"esc":       KeyEscape,
		"tab":       KeyTab,
		"space":     KeySpace,
		"delete":    KeyDelete,
		"home":      KeyHome,
		"end":       KeyEnd,
		"pageup":    KeyPageUp,
		"pagedown":  KeyPageDown,
		"up":        KeyUp,
		"down":      KeyDown,
		"left":      KeyLeft,
		"right":     KeyRight,
	}
	for i := 0; i < 12; i++ {
		named["f"+strconv.Itoa(i+1)] = KeyF1 + byte(i)
	}
}

// Lookup returns the key map entry for r.
func Lookup(r rune) (Entry, bool) {
	e, ok := keymap[r]
	return e, ok
}

// Decode maps a press report back to the character it types. Only the first
// key slot is considered. Enter decodes as '\n'.
func Decode(r Report) (rune, bool) {
	if r.Keys[0] == 0 {
		return 0, false
	}
	ch, ok := reverse[usageKey{r.Keys[0], r.Modifiers}]
	return ch, ok
}

// KeyByName returns the usage for a named, non-printing key such as
// "backspace" or "f5". Names are case-insensitive.
func KeyByName(name string) (byte, bool) {
	u, ok := named[strings.ToLower(name)]
	return u, ok
}

// Runes returns every character the key map can type.
func Runes() []rune {
	out := make([]rune, 0, len(keymap))
	for r := range keymap {
		out = append(out, r)
	}
	return out
}
