// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kimpaller/libiio/iio"
)

// relTimeoutMs converts the operation's total relative timeout into
// the poll argument for the next wait: the milliseconds left until
// total has elapsed since start, clamped to [0, MaxInt32]. A zero
// total means no timeout (-1).
//
// The remaining time must be recomputed before every individual poll.
// Reusing the full timeout across retries would let repeated
// interruptions (a short read, a timer signal) inflate the total far
// past what the caller asked for, or defer expiry indefinitely.
func relTimeoutMs(start time.Time, total time.Duration) int {
	if total == 0 {
		return -1
	}
	elapsed := time.Since(start)
	if elapsed >= total {
		return 0
	}
	remaining := (total - elapsed).Milliseconds()
	if remaining > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(remaining)
}

// waitReady blocks until fd is ready for the requested events, the
// cancellation descriptor fires, or the deadline derived from start
// expires. A nil start means non-blocking: expiry yields ErrBusy
// instead of ErrTimedOut, so callers can tell "would block" apart from
// "waited and gave up". EINTR is retried with a recomputed timeout and
// never surfaced.
func waitReady(fd, cancelFd int, events int16, start *time.Time, total time.Duration) error {
	for {
		timeoutMs := 0
		if start != nil {
			timeoutMs = relTimeoutMs(*start, total)
		}

		fds := []unix.PollFd{
			{Fd: int32(fd), Events: events},
			{Fd: int32(cancelFd), Events: unix.POLLIN},
		}
		n, err := unix.Poll(fds, timeoutMs)
		if err == unix.EINTR {
			continue
		}

		// The cancellation descriptor is checked first: a signalled
		// cancel wins over whatever else the poll reported.
		if fds[1].Revents&unix.POLLIN != 0 {
			return iio.ErrCancelled
		}
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			if start != nil {
				return iio.ErrTimedOut
			}
			return iio.ErrBusy
		}
		if fds[0].Revents&unix.POLLNVAL != 0 {
			return fmt.Errorf("poll: invalid descriptor: %w", unix.EBADF)
		}
		if fds[0].Revents&events == 0 {
			return fmt.Errorf("poll: unexpected events %#x: %w", fds[0].Revents, unix.EIO)
		}
		return nil
	}
}
