package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingKind    = errors.New("missing or invalid kind")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrNilMessage     = errors.New("nil message")
)

// DecodeError describes why an inbound frame was rejected. Err is one of the
// sentinel errors above; Cause is the underlying parser error, if any.
type DecodeError struct {
	Err   error
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("protocol: %v", e.Err)
	}
	return fmt.Sprintf("protocol: %v: %v", e.Err, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
