// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package iio

import (
	"errors"

	"golang.org/x/sys/unix"
)

// codeError is a sentinel error that carries the errno classifying it.
// errors.Is matches both the sentinel itself and the underlying errno.
type codeError struct {
	msg   string
	errno unix.Errno
}

func (e *codeError) Error() string { return e.msg }
func (e *codeError) Unwrap() error { return e.errno }

// Sentinel errors shared by all backends. Each one unwraps to the
// unix.Errno it represents, so callers can test either
// errors.Is(err, iio.ErrTimedOut) or errors.Is(err, unix.ETIMEDOUT).
var (
	// ErrCancelled reports that an in-flight operation was interrupted
	// by a cross-thread cancellation request. It is terminal: the
	// operation is not retried.
	ErrCancelled = &codeError{"operation cancelled", unix.EBADF}

	// ErrTimedOut reports that a blocking wait gave up after the
	// configured timeout elapsed.
	ErrTimedOut = &codeError{"timed out waiting for data", unix.ETIMEDOUT}

	// ErrBusy reports that a non-blocking operation would have had to
	// wait. Distinguished from ErrTimedOut by the absence of a deadline.
	ErrBusy = &codeError{"no data available", unix.EBUSY}

	// ErrNotSupported reports a missing kernel feature. Backend
	// selection chains treat it as "try the next backend".
	ErrNotSupported = &codeError{"not supported", unix.ENOSYS}

	// ErrInvalid reports a structural inconsistency in the request,
	// such as a sample count that contradicts the buffer capabilities.
	ErrInvalid = &codeError{"invalid argument", unix.EINVAL}
)

// ErrnoOf extracts the errno classifying err. Errors produced by this
// module always carry one; anything foreign maps to EIO. A nil error
// maps to zero.
func ErrnoOf(err error) unix.Errno {
	if err == nil {
		return 0
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EIO
}
