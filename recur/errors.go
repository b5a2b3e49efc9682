package recur

import (
	"errors"
	"fmt"
)

// Done is returned by Next once a sequence has no further occurrences.
var Done = errors.New("no more occurrences")

// Error types
type ErrorType string

const (
	// ErrRuleValidation marks a rule whose parts violate their ranges or
	// combination constraints.
	ErrRuleValidation ErrorType = "rule_validation"
	// ErrIterationExhausted marks a safety cap being reached while searching
	// for the next occurrence.
	ErrIterationExhausted ErrorType = "iteration_exhausted"
	// ErrInvariantViolation marks an internal consistency failure, such as
	// the same occurrence being produced twice in a row.
	ErrInvariantViolation ErrorType = "invariant_violation"
	// ErrMalformedValue marks textual input that could not be decoded.
	ErrMalformedValue ErrorType = "malformed_value"
)

// Error represents a recurrence-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same type, so errors.Is(err,
// &Error{Type: ErrRuleValidation}) works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// IsType reports whether err carries a recurrence error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

func validationError(format string, args ...any) error {
	return &Error{Type: ErrRuleValidation, Message: fmt.Sprintf(format, args...)}
}

func malformedError(err error, format string, args ...any) error {
	return &Error{Type: ErrMalformedValue, Message: fmt.Sprintf(format, args...), Err: err}
}

func exhaustedError(format string, args ...any) error {
	return &Error{Type: ErrIterationExhausted, Message: fmt.Sprintf(format, args...)}
}
