// Package typing turns text into HID key presses and sends them through a
// keyboard session, one press/release pair per character.
package typing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/chaz8081/btkbd/internal/hid"
)

// ReportSender is the part of the BLE session the translator needs.
type ReportSender interface {
	SendReport(r hid.Report) error
}

// Options configures typing pace.
type Options struct {
	KeyDelay  time.Duration // between press and release
	CharDelay time.Duration // between characters
}

// DefaultOptions returns the pacing most hosts accept without dropping keys.
func DefaultOptions() Options {
	return Options{
		KeyDelay:  10 * time.Millisecond,
		CharDelay: 50 * time.Millisecond,
	}
}

// CharError is a failed send for one character of the input.
type CharError struct {
	Index int // rune index in the input
	Char  rune
	Err   error
}

func (e CharError) Error() string {
	return fmt.Sprintf("typing: char %d %q: %v", e.Index, e.Char, e.Err)
}

func (e CharError) Unwrap() error { return e.Err }

// Result summarizes one Type or Backspace call.
type Result struct {
	Sent     int         // characters whose press and release were both sent
	Skipped  []rune      // characters with no key mapping
	Failures []CharError // characters whose reports failed to send
	Canceled error       // context error when typing stopped early
}

// Err joins every failure and a cancellation, or returns nil. Skipped
// characters are warnings, not errors.
func (r Result) Err() error {
	if len(r.Failures) == 0 && r.Canceled == nil {
		return nil
	}
	errs := make([]error, 0, len(r.Failures)+1)
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	if r.Canceled != nil {
		errs = append(errs, r.Canceled)
	}
	return errors.Join(errs...)
}

func (r *Result) merge(o Result) {
	r.Sent += o.Sent
	r.Skipped = append(r.Skipped, o.Skipped...)
	r.Failures = append(r.Failures, o.Failures...)
	if r.Canceled == nil {
		r.Canceled = o.Canceled
	}
}

// Translator sends text as key presses. It is not safe for concurrent use;
// a single goroutine must own it.
type Translator struct {
	sender ReportSender
	opts   Options
	sleep  func(ctx context.Context, d time.Duration)
}

// NewTranslator creates a Translator writing through sender.
// Panics if sender is nil (programmer error).
func NewTranslator(sender ReportSender, opts Options) *Translator {
	if sender == nil {
		panic("typing: NewTranslator called with nil sender")
	}
	if opts.KeyDelay < 0 {
		opts.KeyDelay = 0
	}
	if opts.CharDelay < 0 {
		opts.CharDelay = 0
	}
	return &Translator{sender: sender, opts: opts, sleep: sleepContext}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (t *Translator) pause(ctx context.Context, d time.Duration) {
	if d > 0 {
		t.sleep(ctx, d)
	}
}

// tap sends a press then the empty release report. The release is sent
// even if ctx ends during the key delay so no key is left held down.
func (t *Translator) tap(ctx context.Context, press hid.Report) error {
	if err := t.sender.SendReport(press); err != nil {
		return err
	}
	t.pause(ctx, t.opts.KeyDelay)
	return t.sender.SendReport(hid.Release)
}

// Type sends every mappable character of text in order. Unmapped characters
// are skipped with a warning. A failed send is recorded and typing goes on
// with the next character. Typing stops when ctx is done.
func (t *Translator) Type(ctx context.Context, text string) Result {
	var res Result
	i := 0
	for _, r := range text {
		idx := i
		i++

		entry, ok := hid.Lookup(r)
		if !ok {
			slog.Warn("[TYPE] unsupported character, skipping", "char", string(r))
			res.Skipped = append(res.Skipped, r)
			continue
		}
		if idx > 0 {
			t.pause(ctx, t.opts.CharDelay)
		}
		if err := ctx.Err(); err != nil {
			slog.Debug("[TYPE] stopped", "sent", res.Sent, "error", err)
			res.Canceled = err
			return res
		}
		if err := t.tap(ctx, entry.Report()); err != nil {
			slog.Error("[TYPE] send failed", "char", string(r), "error", err)
			res.Failures = append(res.Failures, CharError{Index: idx, Char: r, Err: err})
			continue
		}
		res.Sent++
	}
	return res
}

// Backspace sends n backspace taps, stopping early when ctx is done.
func (t *Translator) Backspace(ctx context.Context, n int) Result {
	var res Result
	press := hid.Press(hid.KeyBackspace, 0)
	for i := 0; i < n; i++ {
		if i > 0 {
			t.pause(ctx, t.opts.CharDelay)
		}
		if err := ctx.Err(); err != nil {
			res.Canceled = err
			return res
		}
		if err := t.tap(ctx, press); err != nil {
			res.Failures = append(res.Failures, CharError{Index: i, Char: '\b', Err: err})
			continue
		}
		res.Sent++
	}
	return res
}

// Key taps one key, optionally with modifiers. name is a named key such as
// "enter" or "f5", or a single mapped character such as "a" for ctrl+a.
func (t *Translator) Key(name string, modifiers byte) error {
	if usage, ok := hid.KeyByName(name); ok {
		return t.tap(context.Background(), hid.Press(usage, modifiers))
	}
	if r, size := utf8.DecodeRuneInString(name); size > 0 && size == len(name) {
		if entry, ok := hid.Lookup(r); ok {
			return t.tap(context.Background(), hid.Press(entry.Usage, entry.Modifiers|modifiers))
		}
	}
	return fmt.Errorf("typing: unknown key %q", name)
}

// Apply types the change between the previously sent text and the current
// editor contents.
func (t *Translator) Apply(ctx context.Context, prev, cur string) Result {
	added, deleted := Diff(prev, cur)
	res := t.Backspace(ctx, deleted)
	if added != "" && res.Canceled == nil {
		res.merge(t.Type(ctx, added))
	}
	return res
}
