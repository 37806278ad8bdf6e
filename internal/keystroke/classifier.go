// Package keystroke tells a keyboard-emulating scanner apart from a person
// typing, using only the timing between key events.
package keystroke

import (
	"strings"
	"time"
)

const (
	DefaultThreshold = 50 * time.Millisecond
	DefaultMinLength = 15
)

// KeyKind groups key events by how the classifier treats them.
type KeyKind int

const (
	// KeyPrintable carries a character for the buffer.
	KeyPrintable KeyKind = iota
	// KeyEnter terminates a burst.
	KeyEnter
	// KeyOther is any other key; it only moves the timing baseline.
	KeyOther
)

// Event is a single key press.
type Event struct {
	Kind KeyKind
	Char rune
	At   time.Time
}

type state int

const (
	stateIdle state = iota
	stateAccumulating
)

// Config tunes a Classifier.
type Config struct {
	// Threshold is the largest inter-key delay a scanner produces.
	Threshold time.Duration
	// MinLength is exclusive: a burst must be longer to be emitted.
	MinLength int
	// IdleReset discards the session when the gap before a key exceeds it.
	// Zero disables the reset.
	IdleReset time.Duration
}

// Classifier holds one keystroke session. It is not safe for concurrent
// use; the keyboard source owns it.
type Classifier struct {
	cfg     Config
	state   state
	buf     strings.Builder
	last    time.Time
	scanner bool
}

func NewClassifier(cfg Config) *Classifier {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinLength < 0 {
		cfg.MinLength = DefaultMinLength
	}
	return &Classifier{cfg: cfg, scanner: true}
}

// Feed advances the session by one event. It returns the buffered text and
// true only when Enter closes a burst that stayed at scanner speed and is
// longer than MinLength.
func (c *Classifier) Feed(ev Event) (string, bool) {
	if c.state == stateAccumulating && c.cfg.IdleReset > 0 && ev.At.Sub(c.last) > c.cfg.IdleReset {
		c.Reset()
	}

	if c.state == stateIdle {
		if ev.Kind == KeyEnter {
			return "", false
		}
		c.state = stateAccumulating
		c.last = ev.At
		c.append(ev)
		return "", false
	}

	if ev.At.Sub(c.last) > c.cfg.Threshold {
		c.scanner = false
	}
	c.last = ev.At

	if ev.Kind != KeyEnter {
		c.append(ev)
		return "", false
	}

	text := c.buf.String()
	emit := c.scanner && len([]rune(text)) > c.cfg.MinLength
	c.Reset()
	if !emit {
		return "", false
	}
	return text, true
}

// Reset drops the buffer and makes the next burst scanner-eligible again.
func (c *Classifier) Reset() {
	c.state = stateIdle
	c.buf.Reset()
	c.last = time.Time{}
	c.scanner = true
}

// LooksLikeScanner reports the current session's classification.
func (c *Classifier) LooksLikeScanner() bool {
	return c.scanner
}

// Buffered returns the number of characters accumulated so far.
func (c *Classifier) Buffered() int {
	return len([]rune(c.buf.String()))
}

func (c *Classifier) append(ev Event) {
	if ev.Kind == KeyPrintable {
		c.buf.WriteRune(ev.Char)
	}
}
