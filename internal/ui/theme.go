package ui

import (
	"image/color"
	"runtime"

	"gioui.org/unit"
	"gioui.org/widget/material"

	"github.com/chaz8081/btkbd/internal/ble"
)

// Palette defines the shell colors.
type Palette struct {
	Background color.NRGBA
	Surface    color.NRGBA
	Primary    color.NRGBA
	Text       color.NRGBA
	TextMuted  color.NRGBA
	Border     color.NRGBA
	Success    color.NRGBA
	Error      color.NRGBA
	Warning    color.NRGBA
}

// Metrics defines spacing and font sizes.
type Metrics struct {
	CornerRadius unit.Dp
	Spacing      unit.Dp
	Padding      unit.Dp
	FontTitle    unit.Sp
	FontBody     unit.Sp
	FontCaption  unit.Sp
}

// Theme wraps the material theme with shell styling.
type Theme struct {
	*material.Theme
	Palette Palette
	Metrics Metrics
}

// NewTheme creates a dark theme tuned for the current OS.
func NewTheme(mtheme *material.Theme) *Theme {
	t := &Theme{
		Theme: mtheme,
		Palette: Palette{
			Background: color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xFF},
			Surface:    color.NRGBA{R: 0x2C, G: 0x2C, B: 0x2C, A: 0xFF},
			Primary:    color.NRGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0xFF},
			Text:       color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
			TextMuted:  color.NRGBA{R: 0xA0, G: 0xA0, B: 0xA0, A: 0xFF},
			Border:     color.NRGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xFF},
			Success:    color.NRGBA{R: 0x6B, G: 0xBC, B: 0x0F, A: 0xFF},
			Error:      color.NRGBA{R: 0xE8, G: 0x11, B: 0x23, A: 0xFF},
			Warning:    color.NRGBA{R: 0xFF, G: 0xB9, B: 0x00, A: 0xFF},
		},
		Metrics: Metrics{
			CornerRadius: unit.Dp(4),
			Spacing:      unit.Dp(8),
			Padding:      unit.Dp(16),
			FontTitle:    unit.Sp(20),
			FontBody:     unit.Sp(14),
			FontCaption:  unit.Sp(12),
		},
	}

	if runtime.GOOS == "darwin" {
		t.Palette.Background = color.NRGBA{R: 0x1E, G: 0x1E, B: 0x1E, A: 0xFF}
		t.Palette.Surface = color.NRGBA{R: 0x26, G: 0x26, B: 0x26, A: 0xFF}
		t.Palette.Primary = color.NRGBA{R: 0x0A, G: 0x84, B: 0xFF, A: 0xFF}
		t.Palette.Success = color.NRGBA{R: 0x30, G: 0xD1, B: 0x58, A: 0xFF}
		t.Metrics.CornerRadius = unit.Dp(10)
		t.Metrics.FontBody = unit.Sp(13)
	}

	t.Theme.Palette.Bg = t.Palette.Background
	t.Theme.Palette.Fg = t.Palette.Text
	t.Theme.Palette.ContrastBg = t.Palette.Primary
	t.Theme.Palette.ContrastFg = t.Palette.Text
	return t
}

func (t *Theme) statusColor(v View) color.NRGBA {
	switch {
	case v.Status == "Connection failed" || v.Status == "Scan failed":
		return t.Palette.Error
	case v.State == ble.StateConnected:
		return t.Palette.Success
	case v.State == ble.StateConnecting || v.Scanning:
		return t.Palette.Warning
	}
	return t.Palette.TextMuted
}
