// Package oserr classifies operating-system failures of the osio caches as
// platform errors with codes.
package oserr

import (
	"errors"
	"io/fs"

	platformerrors "github.com/jmgilman/go/errors"
)

// Wrap classifies err and attaches the path it concerns. The original error
// stays reachable through errors.Is and errors.As. Wrap(nil, ...) is nil.
func Wrap(err error, msg, path string) error {
	if err == nil {
		return nil
	}
	return platformerrors.WithContext(platformerrors.Wrap(err, classify(err), msg), "path", path)
}

// Invalid reports a request rejected before touching the OS.
func Invalid(msg, path string) error {
	return platformerrors.WithContext(platformerrors.New(platformerrors.CodeInvalidInput, msg), "path", path)
}

func classify(err error) platformerrors.ErrorCode {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return platformerrors.CodeNotFound
	case errors.Is(err, fs.ErrPermission):
		return platformerrors.CodeForbidden
	case errors.Is(err, fs.ErrInvalid):
		return platformerrors.CodeInvalidInput
	default:
		return platformerrors.CodeInternal
	}
}
