package dialect

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation is attempted before
	// Connect or after Disconnect.
	ErrNotConnected = errors.New("adapter not connected")

	// ErrUnsupportedDialect is returned by the registry for unknown tags.
	ErrUnsupportedDialect = errors.New("unsupported dialect")

	// ErrUnsupportedOperation is returned when a dialect does not
	// implement a capability rather than emitting invalid SQL.
	ErrUnsupportedOperation = errors.New("operation not supported by dialect")
)

// ConnectionError indicates the driver could not reach or authenticate
// with the database.
type ConnectionError struct {
	Dialect Tag
	Addr    string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection to %s failed: %v", e.Dialect, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError wraps a statement failure with the failing statement text.
// Any QueryError raised inside an open adapter transaction implies the
// adapter already rolled that transaction back.
type QueryError struct {
	Statement string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v (statement: %s)", e.Err, truncate(e.Statement, 120))
}

func (e *QueryError) Unwrap() error { return e.Err }

// ValidationError indicates malformed metadata or naming input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
