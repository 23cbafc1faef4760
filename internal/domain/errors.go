package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. Every failure surfaced by the chat
// service unwraps to exactly one of these so transports can map them to a
// status code with errors.Is.
var (
	ErrNotFound     = errors.New("requested resource not found")
	ErrForbidden    = errors.New("access to the resource is forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource already exists")
	ErrUnauthorized = errors.New("authentication required")
)

// Error pairs a sentinel kind with a message that is safe to show to clients.
type Error struct {
	kind error
	msg  string
}

// Errorf creates an Error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Error returns the client-facing message.
func (e *Error) Error() string {
	return e.msg
}

// Unwrap returns the sentinel kind.
func (e *Error) Unwrap() error {
	return e.kind
}

// Kind returns the sentinel error that classifies err, or nil when err does
// not carry a domain kind.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrForbidden, ErrInvalidInput, ErrConflict, ErrUnauthorized} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
