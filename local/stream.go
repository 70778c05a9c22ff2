// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kimpaller/libiio/iio"
)

// Read fills p from the buffer's character device, blocking until the
// kernel has data or the backend timeout expires. It returns the bytes
// transferred before any error; a cancelled buffer reports
// ErrCancelled, expiry ErrTimedOut.
func (buf *Buffer) Read(p []byte) (int, error) {
	if buf.output {
		return 0, fmt.Errorf("reading from an output buffer: %w", iio.ErrInvalid)
	}
	return buf.transfer(p, false)
}

// Write drains p into the buffer's character device. Semantics mirror
// Read with the direction reversed.
func (buf *Buffer) Write(p []byte) (int, error) {
	if !buf.output {
		return 0, fmt.Errorf("writing to an input buffer: %w", iio.ErrInvalid)
	}
	return buf.transfer(p, true)
}

// transfer moves the whole of p through the nonblocking descriptor,
// polling between short transfers. The deadline covers the entire call,
// not each chunk.
func (buf *Buffer) transfer(p []byte, output bool) (int, error) {
	events := int16(unix.POLLIN)
	if output {
		events = unix.POLLOUT
	}
	start := time.Now()
	pos := 0
	for pos < len(p) {
		if err := waitReady(buf.fd, buf.cancelFd, events, &start, buf.b.timeout); err != nil {
			return pos, err
		}

		var n int
		var err error
		if output {
			n, err = unix.Write(buf.fd, p[pos:])
		} else {
			n, err = unix.Read(buf.fd, p[pos:])
		}
		switch {
		case err == unix.EINTR || err == unix.EAGAIN:
			continue
		case err != nil:
			return pos, fmt.Errorf("buffer transfer on %s: %w", buf.dev.ID, err)
		case n == 0:
			// The descriptor signalled readiness but moved nothing;
			// the device is gone.
			return pos, fmt.Errorf("device %s vanished: %w", buf.dev.ID, unix.EIO)
		}
		pos += n
	}
	return pos, nil
}
