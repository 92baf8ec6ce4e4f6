package fault

import (
	"errors"
	"fmt"
)

// Kind categorizes a fault.
type Kind string

const (
	// KindConfiguration indicates a required setting is absent or invalid.
	KindConfiguration Kind = "CONFIGURATION"

	// KindConnection indicates a database handle could not be acquired.
	KindConnection Kind = "CONNECTION"

	// KindOperation indicates the wrapped operation itself failed.
	KindOperation Kind = "OPERATION"
)

// Error is a categorized fault.
//
// Op names the step that failed ("acquire", "commit", "stream rows", ...).
// Err is the underlying cause and is reachable through errors.Is/As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Configuration creates a configuration fault.
func Configuration(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// Configurationf creates a configuration fault from a format string.
func Configurationf(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: fmt.Errorf(format, args...)}
}

// Connection creates a connection fault.
func Connection(op string, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

// Operation creates an operation fault.
func Operation(op string, err error) *Error {
	return &Error{Kind: KindOperation, Op: op, Err: err}
}

// KindOf returns the kind of the first fault in err's chain.
// Returns "" if err carries no fault.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsConfiguration reports whether err is (or wraps) a configuration fault.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsConnection reports whether err is (or wraps) a connection fault.
func IsConnection(err error) bool {
	return KindOf(err) == KindConnection
}

// IsOperation reports whether err is (or wraps) an operation fault.
func IsOperation(err error) bool {
	return KindOf(err) == KindOperation
}
