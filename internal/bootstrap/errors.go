package bootstrap

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a bootstrap invocation failed.
type ErrorKind string

const (
	KindInvalidRequest       ErrorKind = "InvalidRequest"
	KindAssetNotFound        ErrorKind = "AssetNotFound"
	KindCredentialResolution ErrorKind = "CredentialResolutionError"
	KindSubmission           ErrorKind = "SubmissionError"
	KindExecutionFailed      ErrorKind = "ExecutionFailed"
	KindExecutionTimeout     ErrorKind = "ExecutionTimeout"
)

// Error is a terminal bootstrap failure. Message is what the lifecycle caller
// sees; Err keeps the underlying cause for errors.Is/As.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// ErrNotFound is returned by AssetStore and CredentialResolver implementations
// when the named object or secret does not exist.
var ErrNotFound = errors.New("not found")

// ErrMalformed is returned by CredentialResolver implementations when the
// secret exists but does not hold a usable credential.
var ErrMalformed = errors.New("malformed")
