package domain

import (
	"time"
	"unicode/utf8"
)

// DefaultMaxPayloadLength bounds a payload in characters.
const DefaultMaxPayloadLength = 4096

// Job is a single payload waiting in the broker queue.
// Its position in the queue is its only identity.
type Job struct {
	Payload string `json:"data"`
}

// Source names where an agent-side candidate came from.
type Source string

const (
	SourceKeyboard Source = "keyboard"
	SourcePoll     Source = "poll"
	SourcePush     Source = "push"
)

// Candidate is a payload that reached the agent and may become a label.
type Candidate struct {
	Payload    string
	Source     Source
	ReceivedAt time.Time
}

// ValidatePayload checks the only constraints placed on a payload:
// it is non-empty and no longer than maxLen characters.
// maxLen <= 0 means DefaultMaxPayloadLength.
func ValidatePayload(payload string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxPayloadLength
	}
	if payload == "" {
		return &Error{Kind: KindValidation, Op: "validate", Err: ErrEmptyPayload}
	}
	if utf8.RuneCountInString(payload) > maxLen {
		return &Error{Kind: KindValidation, Op: "validate", Err: ErrPayloadTooLong}
	}
	return nil
}
