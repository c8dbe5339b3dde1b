package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when an exchange is already in flight.
	ErrBusy = errors.New("a request is already in flight")
	// ErrEmptyInput is returned when there is neither text nor an image to send.
	ErrEmptyInput = errors.New("nothing to send")
)

// TransportError reports a failure to open or read the response stream. The
// user only ever sees ErrorText for it.
type TransportError struct {
	Op  string // "open" or "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s stream: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
