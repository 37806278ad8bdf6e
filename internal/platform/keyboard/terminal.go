// Package keyboard turns raw terminal input into classified scanner bursts.
// A keyboard-emulating scanner types into the agent's console like a person
// would; the classifier decides which bursts were scans.
package keyboard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	"unicode"

	"golang.org/x/term"

	"github.com/dontdude/scanprint/internal/keystroke"
	"github.com/dontdude/scanprint/internal/observability"
)

// ErrInterrupted is returned when Ctrl-C arrives while the terminal is raw.
var ErrInterrupted = errors.New("keyboard: interrupted")

const ctrlC = 0x03

// Source reads key events from a terminal or any rune stream.
type Source struct {
	in         io.Reader
	classifier *keystroke.Classifier
	now        func() time.Time
}

func NewSource(in io.Reader, classifier *keystroke.Classifier) *Source {
	return &Source{in: in, classifier: classifier, now: time.Now}
}

// MakeRaw puts the terminal on f into raw mode so each key arrives as soon
// as it is pressed. The returned function restores the previous state.
func MakeRaw(f *os.File) (func(), error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("keyboard: %s is not a terminal", f.Name())
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("keyboard: enable raw mode: %w", err)
	}
	return func() { _ = term.Restore(fd, old) }, nil
}

// Classify maps a rune to the key kind the classifier expects.
func Classify(r rune) keystroke.KeyKind {
	switch {
	case r == '\r' || r == '\n':
		return keystroke.KeyEnter
	case unicode.IsPrint(r):
		return keystroke.KeyPrintable
	default:
		return keystroke.KeyOther
	}
}

// Run feeds every key to the classifier and calls emit for each burst it
// accepts. It returns when the input ends, Ctrl-C is read or ctx is done.
// A CRLF pair counts as a single Enter.
func (s *Source) Run(ctx context.Context, emit func(payload string)) error {
	type key struct {
		r   rune
		at  time.Time
		err error
	}

	keys := make(chan key)
	go func() {
		defer close(keys)
		br := bufio.NewReader(s.in)
		for {
			r, _, err := br.ReadRune()
			at := s.now()
			select {
			case keys <- key{r: r, at: at, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var prev rune
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case k, ok := <-keys:
			if !ok {
				return ctx.Err()
			}
			if k.err != nil {
				if errors.Is(k.err, io.EOF) {
					return nil
				}
				return fmt.Errorf("keyboard: read: %w", k.err)
			}
			if k.r == ctrlC {
				return ErrInterrupted
			}
			if k.r == '\n' && prev == '\r' {
				prev = k.r
				continue
			}
			prev = k.r

			kind := Classify(k.r)
			payload, accepted := s.classifier.Feed(keystroke.Event{Kind: kind, Char: k.r, At: k.at})
			if kind == keystroke.KeyEnter && !accepted {
				observability.GetLogger().Debug("Keyboard burst discarded as human input")
			}
			if accepted {
				emit(payload)
			}
		}
	}
}
