package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPayload       = errors.New("payload is empty")
	ErrPayloadTooLong     = errors.New("payload exceeds maximum length")
	ErrEncoderFailed      = errors.New("symbol encoder failed")
	ErrPrinterUnavailable = errors.New("printer unavailable")
)

// ErrorKind classifies a failure so the top-level handler can decide
// between retrying and dropping the job.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransport
	KindValidation
	KindComposition
	KindDispatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindComposition:
		return "composition"
	case KindDispatch:
		return "dispatch"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this kind are retried.
// Only transport failures are; everything else drops the job.
func (k ErrorKind) Retryable() bool {
	return k == KindTransport
}

// Error carries a kind alongside the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches kind and op to err. It returns nil for a nil err.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
