// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kimpaller/libiio/iio"
)

// pipeBuffer swaps the fixture buffer's descriptor for one end of a
// pipe so transfers run against real poll/read semantics.
func pipeBuffer(t *testing.T, readSide bool) (*Buffer, int) {
	t.Helper()
	_, buf, _ := newBufferFixture(t)

	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	if readSide {
		buf.fd = p[0]
		return buf, p[1]
	}
	buf.fd = p[1]
	buf.output = true
	return buf, p[0]
}

func TestStreamRead(t *testing.T) {
	buf, wfd := pipeBuffer(t, true)
	defer unix.Close(wfd)

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if _, err := unix.Write(wfd, want); err != nil {
		t.Fatalf("priming pipe: %v", err)
	}

	got := make([]byte, len(want))
	n, err := buf.Read(got)
	if err != nil || n != len(want) {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Read data = %v, want %v", got, want)
	}
}

func TestStreamWrite(t *testing.T) {
	buf, rfd := pipeBuffer(t, false)
	defer unix.Close(rfd)

	want := []byte{9, 8, 7, 6}
	n, err := buf.Write(want)
	if err != nil || n != len(want) {
		t.Fatalf("Write = %d, %v", n, err)
	}

	got := make([]byte, len(want))
	if _, err := unix.Read(rfd, got); err != nil {
		t.Fatalf("draining pipe: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("written data = %v, want %v", got, want)
	}
}

func TestStreamReadTimeout(t *testing.T) {
	buf, wfd := pipeBuffer(t, true)
	defer unix.Close(wfd)
	buf.b.timeout = 20 * time.Millisecond

	n, err := buf.Read(make([]byte, 4))
	if !errors.Is(err, iio.ErrTimedOut) {
		t.Errorf("Read on idle pipe = %d, %v, want ErrTimedOut", n, err)
	}
}

func TestStreamReadPartialProgress(t *testing.T) {
	buf, wfd := pipeBuffer(t, true)

	// Half the requested bytes, then the writer goes away: the
	// transfer must report the progress it made alongside the error.
	if _, err := unix.Write(wfd, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("priming pipe: %v", err)
	}
	unix.Close(wfd)

	n, err := buf.Read(make([]byte, 8))
	if err == nil {
		t.Fatal("Read past writer hangup succeeded")
	}
	if n != 4 {
		t.Errorf("partial progress = %d, want 4", n)
	}
}
