package ui

import (
	"image"

	"gioui.org/app"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"github.com/chaz8081/btkbd/internal/ble"
)

// Window draws an App and forwards input to it.
type Window struct {
	app   *App
	theme *Theme

	scanBtn       widget.Clickable
	connectBtn    widget.Clickable
	disconnectBtn widget.Clickable
	clearBtn      widget.Clickable
	clipboardBtn  widget.Clickable

	devices    widget.Enum
	deviceList widget.List
	editor     widget.Editor
	logList    widget.List
}

// NewWindow creates the widgets for a.
func NewWindow(a *App, th *Theme) *Window {
	return &Window{
		app:        a,
		theme:      th,
		deviceList: widget.List{List: layout.List{Axis: layout.Vertical}},
		logList:    widget.List{List: layout.List{Axis: layout.Vertical, ScrollToEnd: true}},
	}
}

// Run processes window events until the window is closed, then closes a.
func Run(w *app.Window, a *App) error {
	win := NewWindow(a, NewTheme(material.NewTheme()))

	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			a.Close()
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			win.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

// update handles input from the previous frame.
func (w *Window) update(gtx layout.Context, v View) {
	if w.scanBtn.Clicked(gtx) {
		w.app.ScanRequested()
	}
	if w.devices.Update(gtx) {
		for i, d := range v.Devices {
			if d.Address == w.devices.Value {
				w.app.SelectDevice(i)
			}
		}
	}
	if w.connectBtn.Clicked(gtx) {
		w.app.ConnectRequested()
	}
	if w.disconnectBtn.Clicked(gtx) {
		w.app.DisconnectRequested()
	}
	if w.clearBtn.Clicked(gtx) {
		w.editor.SetText("")
		w.app.ClearInput()
	}
	if w.clipboardBtn.Clicked(gtx) {
		w.app.TypeClipboard()
	}
	for {
		ev, ok := w.editor.Update(gtx)
		if !ok {
			break
		}
		if _, ok := ev.(widget.ChangeEvent); ok {
			w.app.TextChanged(w.editor.Text())
		}
	}
}

// Layout draws one frame.
func (w *Window) Layout(gtx layout.Context) layout.Dimensions {
	v := w.app.View()
	w.update(gtx, v)
	v = w.app.View()

	if v.Selected >= 0 && v.Selected < len(v.Devices) {
		w.devices.Value = v.Devices[v.Selected].Address
	}
	connected := v.State == ble.StateConnected
	w.editor.ReadOnly = !connected

	paint.Fill(gtx.Ops, w.theme.Palette.Background)
	sp := layout.Spacer{Height: w.theme.Metrics.Spacing}.Layout

	return layout.UniformInset(w.theme.Metrics.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				title := material.H6(w.theme.Theme, "Bluetooth Keyboard")
				title.Color = w.theme.Palette.Primary
				title.TextSize = w.theme.Metrics.FontTitle
				return title.Layout(gtx)
			}),
			layout.Rigid(sp),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				l := material.Body1(w.theme.Theme, "Status: "+v.Status)
				l.Color = w.theme.statusColor(v)
				return l.Layout(gtx)
			}),
			layout.Rigid(sp),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return w.buttonRow(gtx,
					w.button(&w.scanBtn, "Scan", !v.Scanning),
					w.button(&w.connectBtn, "Connect", v.CanConnect()),
					w.button(&w.disconnectBtn, "Disconnect", v.State != ble.StateDisconnected),
				)
			}),
			layout.Rigid(sp),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return w.layoutDevices(gtx, v)
			}),
			layout.Rigid(sp),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return w.label(gtx, "Type Here")
			}),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return w.layoutEditor(gtx, connected)
			}),
			layout.Rigid(sp),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return w.buttonRow(gtx,
					w.button(&w.clearBtn, "Clear Input", true),
					w.button(&w.clipboardBtn, "Type Clipboard", connected),
				)
			}),
			layout.Rigid(sp),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return w.label(gtx, "Log")
			}),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return w.layoutLog(gtx, v.Log)
			}),
		)
	})
}

func (w *Window) button(btn *widget.Clickable, label string, enabled bool) layout.Widget {
	return func(gtx layout.Context) layout.Dimensions {
		if !enabled {
			gtx = gtx.Disabled()
		}
		b := material.Button(w.theme.Theme, btn, label)
		b.CornerRadius = w.theme.Metrics.CornerRadius
		return b.Layout(gtx)
	}
}

func (w *Window) buttonRow(gtx layout.Context, buttons ...layout.Widget) layout.Dimensions {
	children := make([]layout.FlexChild, 0, 2*len(buttons))
	for i, b := range buttons {
		if i > 0 {
			children = append(children, layout.Rigid(layout.Spacer{Width: w.theme.Metrics.Spacing}.Layout))
		}
		children = append(children, layout.Rigid(b))
	}
	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx, children...)
}

func (w *Window) label(gtx layout.Context, text string) layout.Dimensions {
	l := material.Body2(w.theme.Theme, text)
	l.Color = w.theme.Palette.TextMuted
	return l.Layout(gtx)
}

func (w *Window) layoutDevices(gtx layout.Context, v View) layout.Dimensions {
	gtx.Constraints.Max.Y = gtx.Dp(unit.Dp(140))
	if len(v.Devices) == 0 {
		msg := "No devices. Press Scan."
		if v.Scanning {
			msg = "Scanning..."
		}
		return w.label(gtx, msg)
	}
	return material.List(w.theme.Theme, &w.deviceList).Layout(gtx, len(v.Devices), func(gtx layout.Context, i int) layout.Dimensions {
		d := v.Devices[i]
		rb := material.RadioButton(w.theme.Theme, &w.devices, d.Address, d.String())
		rb.Color = w.theme.Palette.Text
		rb.IconColor = w.theme.Palette.Primary
		return rb.Layout(gtx)
	})
}

func (w *Window) layoutEditor(gtx layout.Context, connected bool) layout.Dimensions {
	border := widget.Border{
		Color:        w.theme.Palette.Border,
		CornerRadius: w.theme.Metrics.CornerRadius,
		Width:        unit.Dp(1),
	}
	return border.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		size := gtx.Constraints.Max
		rect := clip.UniformRRect(image.Rect(0, 0, size.X, size.Y), gtx.Dp(w.theme.Metrics.CornerRadius)).Op(gtx.Ops)
		paint.FillShape(gtx.Ops, w.theme.Palette.Surface, rect)

		return layout.UniformInset(w.theme.Metrics.Spacing).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			gtx.Constraints.Min = gtx.Constraints.Max
			hint := "Connect to a device to start typing"
			if connected {
				hint = "Text typed here is sent to the device"
			}
			ed := material.Editor(w.theme.Theme, &w.editor, hint)
			ed.Color = w.theme.Palette.Text
			ed.HintColor = w.theme.Palette.TextMuted
			ed.TextSize = w.theme.Metrics.FontBody
			if !connected {
				gtx = gtx.Disabled()
			}
			return ed.Layout(gtx)
		})
	})
}

func (w *Window) layoutLog(gtx layout.Context, lines []LogLine) layout.Dimensions {
	return material.List(w.theme.Theme, &w.logList).Layout(gtx, len(lines), func(gtx layout.Context, i int) layout.Dimensions {
		l := material.Caption(w.theme.Theme, lines[i].String())
		l.Color = w.theme.Palette.TextMuted
		l.TextSize = w.theme.Metrics.FontCaption
		return l.Layout(gtx)
	})
}
