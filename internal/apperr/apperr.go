// Package apperr defines the error taxonomy shared by the service layer and
// the HTTP handlers. Every error that crosses the service boundary carries a
// stable machine-readable kind plus a human-readable message; the wrapped
// cause stays internal and is never rendered to clients.
package apperr

import "fmt"

// Kind classifies an error for callers.
type Kind string

const (
	// KindValidation marks malformed input: missing file, disallowed mime
	// type, oversized file, title too long, invalid access level. Always
	// caller-fixable.
	KindValidation Kind = "validation"
	// KindNotFound marks a document, version, or ACL entry that does not
	// exist or is soft-deleted. Soft-deleted documents are indistinguishable
	// from absent ones.
	KindNotFound Kind = "not_found"
	// KindForbidden marks a failed capability check.
	KindForbidden Kind = "forbidden"
	// KindConflict marks a version-number race lost after retries.
	KindConflict Kind = "conflict"
	// KindBlobUnavailable marks an I/O failure in the underlying blob
	// backend, as opposed to input that was validated away.
	KindBlobUnavailable Kind = "blob_unavailable"
	// KindInternal covers everything else; the message shown to clients is
	// generic.
	KindInternal Kind = "internal"
)

// Error is the structured application error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error with the given kind and message around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validation creates a caller-fixable input error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a missing-resource error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Forbidden creates a capability-check failure.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// KindOf returns the kind of err, or KindInternal for any error that is not
// an *Error.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// AsError unwraps err to an *Error if there is one in its chain.
func AsError(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
