package typing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/btkbd/internal/hid"
)

// recordingSender records reports and fails the sends listed in failAt
// (0-based report index).
type recordingSender struct {
	reports []hid.Report
	failAt  map[int]bool
	calls   int
}

func (s *recordingSender) SendReport(r hid.Report) error {
	i := s.calls
	s.calls++
	if s.failAt[i] {
		return errors.New("mock: write failed")
	}
	s.reports = append(s.reports, r)
	return nil
}

var ctx = context.Background()

func newTestTranslator(s ReportSender) *Translator {
	return NewTranslator(s, Options{})
}

func TestTypeHiBang(t *testing.T) {
	s := &recordingSender{}
	res := newTestTranslator(s).Type(ctx, "Hi!")

	require.NoError(t, res.Err())
	assert.Equal(t, 3, res.Sent)
	require.Len(t, s.reports, 6, "three press/release pairs")

	assert.Equal(t, hid.Press(0x0B, hid.ModLeftShift), s.reports[0]) // H
	assert.True(t, s.reports[1].IsRelease())
	assert.Equal(t, hid.Press(0x0C, 0), s.reports[2]) // i
	assert.True(t, s.reports[3].IsRelease())
	assert.Equal(t, hid.Press(hid.Key1, hid.ModLeftShift), s.reports[4]) // !
	assert.True(t, s.reports[5].IsRelease())
}

func TestTypeRoundTripsThroughKeyMap(t *testing.T) {
	const text = "The quick brown fox, 42 times: (a+b)*c = {x|y} ~ \"done\"?\n"
	s := &recordingSender{}
	res := newTestTranslator(s).Type(ctx, text)
	require.NoError(t, res.Err())
	require.Empty(t, res.Skipped)

	var decoded []rune
	for i, r := range s.reports {
		if i%2 == 1 {
			require.True(t, r.IsRelease(), "report %d should be a release", i)
			continue
		}
		ch, ok := hid.Decode(r)
		require.True(t, ok, "report %d did not decode", i)
		decoded = append(decoded, ch)
	}
	assert.Equal(t, text, string(decoded))
}

func TestTypeSkipsUnmapped(t *testing.T) {
	s := &recordingSender{}
	res := newTestTranslator(s).Type(ctx, "café")

	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, []rune{'é'}, res.Skipped)
	assert.NoError(t, res.Err(), "skipped characters are warnings only")
	assert.Len(t, s.reports, 6)
}

func TestTypeContinuesAfterFailure(t *testing.T) {
	// Report 2 is the press of the second character.
	s := &recordingSender{failAt: map[int]bool{2: true}}
	res := newTestTranslator(s).Type(ctx, "abc")

	assert.Equal(t, 2, res.Sent)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Equal(t, 'b', res.Failures[0].Char)
	assert.Error(t, res.Err())

	// a press, a release, c press, c release
	require.Len(t, s.reports, 4)
	ch, _ := hid.Decode(s.reports[2])
	assert.Equal(t, 'c', ch)
}

func TestTypeEmpty(t *testing.T) {
	s := &recordingSender{}
	res := newTestTranslator(s).Type(ctx, "")
	assert.Zero(t, res.Sent)
	assert.Empty(t, s.reports)
}

func TestTypePacing(t *testing.T) {
	s := &recordingSender{}
	tr := NewTranslator(s, Options{KeyDelay: 10 * time.Millisecond, CharDelay: 50 * time.Millisecond})
	var slept []time.Duration
	tr.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }

	tr.Type(ctx, "ab")
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond, // a press -> release
		50 * time.Millisecond, // a -> b
		10 * time.Millisecond, // b press -> release
	}, slept)
}

func TestBackspace(t *testing.T) {
	s := &recordingSender{}
	res := newTestTranslator(s).Backspace(ctx, 2)
	assert.Equal(t, 2, res.Sent)
	require.Len(t, s.reports, 4)
	assert.Equal(t, hid.Press(hid.KeyBackspace, 0), s.reports[0])
	assert.True(t, s.reports[1].IsRelease())
}

func TestKey(t *testing.T) {
	s := &recordingSender{}
	tr := newTestTranslator(s)

	require.NoError(t, tr.Key("enter", 0))
	require.NoError(t, tr.Key("a", hid.ModLeftCtrl))
	require.NoError(t, tr.Key("A", hid.ModLeftCtrl))
	require.Len(t, s.reports, 6)
	assert.Equal(t, hid.Press(hid.KeyEnter, 0), s.reports[0])
	assert.Equal(t, hid.Press(hid.KeyA, hid.ModLeftCtrl), s.reports[2])
	assert.Equal(t, hid.Press(hid.KeyA, hid.ModLeftCtrl|hid.ModLeftShift), s.reports[4])
	assert.True(t, s.reports[5].IsRelease())

	assert.Error(t, tr.Key("hyper", 0))
	assert.Error(t, tr.Key("é", 0), "unmapped character")
	assert.Error(t, tr.Key("", 0))
}

func TestApply(t *testing.T) {
	s := &recordingSender{}
	res := newTestTranslator(s).Apply(ctx, "hello", "help!")

	require.NoError(t, res.Err())
	// two backspaces ("lo") then "p!"
	assert.Equal(t, 4, res.Sent)
	require.Len(t, s.reports, 8)
	assert.Equal(t, hid.Press(hid.KeyBackspace, 0), s.reports[0])
	assert.Equal(t, hid.Press(hid.KeyBackspace, 0), s.reports[2])
	ch, _ := hid.Decode(s.reports[4])
	assert.Equal(t, 'p', ch)
}

func TestNewTranslatorNilSenderPanics(t *testing.T) {
	assert.Panics(t, func() { NewTranslator(nil, DefaultOptions()) })
}

func TestApplyDeletingUnsentRune(t *testing.T) {
	s := &recordingSender{}
	tr := newTestTranslator(s)

	typed := tr.Type(ctx, "aé")
	require.Equal(t, []rune{'é'}, typed.Skipped)
	require.Len(t, s.reports, 2)

	res := tr.Apply(ctx, "aé", "a")
	require.NoError(t, res.Err())
	assert.Zero(t, res.Sent)
	assert.Len(t, s.reports, 2, "no backspace for a character the host never got")
}

func TestTypeStopsWhenCanceled(t *testing.T) {
	s := &recordingSender{}
	tr := NewTranslator(s, Options{CharDelay: time.Hour})
	c, cancel := context.WithCancel(context.Background())
	tr.sleep = func(ctx context.Context, d time.Duration) {
		cancel()
		<-ctx.Done()
	}

	res := tr.Type(c, "abc")
	assert.Equal(t, 1, res.Sent)
	assert.ErrorIs(t, res.Canceled, context.Canceled)
	assert.ErrorIs(t, res.Err(), context.Canceled)
	require.Len(t, s.reports, 2, "only the first press/release")
}

func TestTypeAlreadyCanceledSendsNothing(t *testing.T) {
	s := &recordingSender{}
	c, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestTranslator(s).Apply(c, "hello", "help")
	assert.Zero(t, res.Sent)
	assert.ErrorIs(t, res.Canceled, context.Canceled)
	assert.Empty(t, s.reports)
}

func TestSleepContextReturnsOnCancel(t *testing.T) {
	c, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	sleepContext(c, time.Hour)
	assert.Less(t, time.Since(start), time.Second)
}
