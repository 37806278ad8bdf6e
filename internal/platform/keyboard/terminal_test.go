package keyboard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dontdude/scanprint/internal/keystroke"
)

// steppedClock advances by step on every call.
func steppedClock(step time.Duration) func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func newSource(input string, step time.Duration) *Source {
	c := keystroke.NewClassifier(keystroke.Config{Threshold: 50 * time.Millisecond, MinLength: 15})
	s := NewSource(strings.NewReader(input), c)
	s.now = steppedClock(step)
	return s
}

func TestClassify(t *testing.T) {
	assert.Equal(t, keystroke.KeyEnter, Classify('\r'))
	assert.Equal(t, keystroke.KeyEnter, Classify('\n'))
	assert.Equal(t, keystroke.KeyPrintable, Classify('A'))
	assert.Equal(t, keystroke.KeyPrintable, Classify('Ж'))
	assert.Equal(t, keystroke.KeyOther, Classify(0x1b))
	assert.Equal(t, keystroke.KeyOther, Classify('\t'))
}

func TestSource_EmitsFastBursts(t *testing.T) {
	s := newSource("0104601234567890215abc\r\nshort\r", 5*time.Millisecond)

	var got []string
	err := s.Run(context.Background(), func(p string) { got = append(got, p) })
	require.NoError(t, err)
	assert.Equal(t, []string{"0104601234567890215abc"}, got)
}

func TestSource_DropsSlowTyping(t *testing.T) {
	s := newSource("this was typed by a person\n", 200*time.Millisecond)

	var got []string
	require.NoError(t, s.Run(context.Background(), func(p string) { got = append(got, p) }))
	assert.Empty(t, got)
}

func TestSource_CtrlC(t *testing.T) {
	s := newSource("abc\x03def", time.Millisecond)
	err := s.Run(context.Background(), func(string) {})
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestSource_ContextCancel(t *testing.T) {
	c := keystroke.NewClassifier(keystroke.Config{})
	s := NewSource(blockingReader{}, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, func(string) {}) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run ignored cancellation")
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}
