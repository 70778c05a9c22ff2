// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package iio

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"golang.org/x/sys/unix"
)

func TestErrnoOf(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want unix.Errno
	}{
		{"nil", nil, 0},
		{"cancelled", ErrCancelled, unix.EBADF},
		{"timed out", ErrTimedOut, unix.ETIMEDOUT},
		{"busy", ErrBusy, unix.EBUSY},
		{"not supported", ErrNotSupported, unix.ENOSYS},
		{"invalid", ErrInvalid, unix.EINVAL},
		{"raw errno", unix.ENOENT, unix.ENOENT},
		{"wrapped sentinel", fmt.Errorf("opening buffer: %w", ErrTimedOut), unix.ETIMEDOUT},
		{"wrapped errno", fmt.Errorf("poll: %w", unix.ENXIO), unix.ENXIO},
		{"foreign error", fs.ErrClosed, unix.EIO},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := ErrnoOf(tc.err); got != tc.want {
				t.Errorf("ErrnoOf(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestSentinelIdentity(t *testing.T) {
	wrapped := fmt.Errorf("transfer on iio:device0: %w", ErrCancelled)
	if !errors.Is(wrapped, ErrCancelled) {
		t.Errorf("errors.Is(%v, ErrCancelled) = false, want true", wrapped)
	}
	if errors.Is(wrapped, ErrTimedOut) {
		t.Errorf("errors.Is(%v, ErrTimedOut) = true, want false", wrapped)
	}

	// Sentinels unwrap to their errno, so errno-level matching works
	// through the sentinel too.
	if !errors.Is(ErrBusy, unix.EBUSY) {
		t.Error("errors.Is(ErrBusy, unix.EBUSY) = false, want true")
	}
}
