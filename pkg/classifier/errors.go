package classifier

import (
	"errors"
	"fmt"
)

// ErrorKind tells how a failure is reported and whether it is retried
type ErrorKind int

const (
	// KindUsage means no image path was given
	KindUsage ErrorKind = iota + 1

	// KindPath means the image path is missing, not a file, or unreadable. Never retried.
	KindPath

	// KindTransient covers network, timeout and remote failures
	KindTransient

	// KindResponseFormat means the remote response could not be interpreted
	KindResponseFormat
)

func (k ErrorKind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindPath:
		return "path"
	case KindTransient:
		return "transient"
	case KindResponseFormat:
		return "response_format"
	default:
		return "unknown"
	}
}

// Error is a failure tagged with its kind
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindResponseFormat
}

// UsageError is returned when the program is run without an image path
type UsageError struct {
	Program string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: missing image path", e.Program)
}

// KindOf returns the kind of err. Untagged errors are transient.
func KindOf(err error) ErrorKind {
	var u *UsageError
	if errors.As(err, &u) {
		return KindUsage
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// NewUsageError builds the error reported when no image path is given
func NewUsageError(program string) error {
	return &UsageError{Program: program}
}

func pathError(format string, args ...any) error {
	return &Error{Kind: KindPath, Err: fmt.Errorf(format, args...)}
}

func formatError(format string, args ...any) error {
	return &Error{Kind: KindResponseFormat, Err: fmt.Errorf(format, args...)}
}

func transientError(err error) error {
	return &Error{Kind: KindTransient, Err: err}
}

// isRetryable is the retry.ErrorChecker for classification attempts
func isRetryable(err error) bool {
	switch KindOf(err) {
	case KindUsage, KindPath:
		return false
	default:
		return true
	}
}
