package supervise

import (
	"errors"
	"fmt"
)

// Common errors returned by supervise operations
var (
	// ErrMalformedRecord indicates the status record has an unsupported length
	ErrMalformedRecord = errors.New("supervise: malformed status record")

	// ErrUnknownOperation indicates a command name or Operation with no control byte
	ErrUnknownOperation = errors.New("supervise: unknown operation")

	// ErrEmptyName indicates a service was constructed without a name or path
	ErrEmptyName = errors.New("supervise: empty service name")

	// ErrWatchClosed indicates a watch ended before the awaited state was seen
	ErrWatchClosed = errors.New("supervise: watch closed")
)

// OpError is an I/O failure on one of the service's files. The
// underlying error is kept verbatim.
type OpError struct {
	// Op is the operation that failed
	Op Operation
	// Path is the file path involved in the operation
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("supervise %s %q: %v", e.Op.String(), e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// MultiError aggregates multiple errors from bulk operations
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
