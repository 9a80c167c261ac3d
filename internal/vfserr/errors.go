package vfserr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Kind classifies the failures a VFS operation can surface.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermissionDenied
	KindUnsupported
	KindConnectionFailed
	KindAuthenticationFailed
	KindTimeout
	KindCancelled
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindPermissionDenied:
		return "permission denied"
	case KindUnsupported:
		return "unsupported"
	case KindConnectionFailed:
		return "connection failed"
	case KindAuthenticationFailed:
		return "authentication failed"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a structured VFS error carrying the failed operation and path.
type Error struct {
	Kind      Kind
	Operation string
	Path      string
	Err       error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error in %s [%s]: %v", e.Kind, e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so callers can match with errors.Is and a
// kind-only template error.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New wraps err with a kind, operation, and path.
func New(kind Kind, operation, path string, err error) *Error {
	if err == nil {
		err = errors.New(kind.String())
	}
	return &Error{Kind: kind, Operation: operation, Path: path, Err: err}
}

// NotFound creates a not-found error.
func NotFound(operation, path string, err error) *Error {
	return New(KindNotFound, operation, path, err)
}

// PermissionDenied creates a permission error.
func PermissionDenied(operation, path string, err error) *Error {
	return New(KindPermissionDenied, operation, path, err)
}

// Unsupported marks an operation a provider cannot perform, e.g. writing
// into an archive.
func Unsupported(operation, path string) *Error {
	return New(KindUnsupported, operation, path, fmt.Errorf("operation %q is not supported", operation))
}

// ConnectionFailed creates a connection error.
func ConnectionFailed(operation, path string, err error) *Error {
	return New(KindConnectionFailed, operation, path, err)
}

// AuthenticationFailed creates an authentication error.
func AuthenticationFailed(operation, path string, err error) *Error {
	return New(KindAuthenticationFailed, operation, path, err)
}

// KindOf extracts the kind from err, classifying common OS and context
// errors when err is not already a *Error.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	}
	return KindUnknown
}

// Classify wraps err with the kind inferred by KindOf. Errors that are
// already *Error pass through unchanged.
func Classify(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return New(KindOf(err), operation, path, err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
