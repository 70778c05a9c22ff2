// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kimpaller/libiio/iio"
)

// newBufferFixture discovers the synthetic ADC and wraps its first
// hardware buffer without opening a character device; tests drive the
// sysfs side of the lifecycle directly.
func newBufferFixture(t *testing.T) (*iio.Device, *Buffer, string) {
	t.Helper()
	root := t.TempDir()
	writeSyntheticADC(t, root, "iio:device0")

	ctx, err := CreateContext(syntheticOptions(t, root))
	if err != nil {
		t.Fatalf("CreateContext: %v", err)
	}
	dev := ctx.FindDevice("iio:device0")
	if dev == nil {
		t.Fatal("synthetic device missing")
	}

	cancelFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		t.Fatalf("eventfd: %v", err)
	}
	buf := &Buffer{
		b:        ctx.Backend().(*backend),
		dev:      dev,
		fd:       -1,
		cancelFd: cancelFd,
	}
	t.Cleanup(func() { buf.Close() })
	return dev, buf, root
}

// readSysfs returns the raw contents of a synthetic attribute file.
func readSysfs(t *testing.T, root, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "sys", path))
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestBufferSetupNegotiatesChannels(t *testing.T) {
	dev, buf, root := newBufferFixture(t)

	mask := iio.NewMask(uint(len(dev.Channels)))
	dev.Channels[0].Enable(mask)
	if err := buf.setup(mask); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if got := readSysfs(t, root, "iio:device0/scan_elements/in_voltage0_en"); got != "1\x00" {
		t.Errorf("voltage0 enable file = %q, want 1", got)
	}
	if got := readSysfs(t, root, "iio:device0/scan_elements/in_voltage1_en"); got != "0\x00" {
		t.Errorf("voltage1 enable file = %q, want 0", got)
	}

	// The mask reflects the read-back state.
	if !dev.Channels[0].IsEnabled(mask) || dev.Channels[1].IsEnabled(mask) {
		t.Errorf("mask after setup: voltage0=%v voltage1=%v",
			dev.Channels[0].IsEnabled(mask), dev.Channels[1].IsEnabled(mask))
	}
	if buf.output {
		t.Error("input-only device negotiated as output")
	}
}

func TestBufferSetupCoupledChannels(t *testing.T) {
	dev, buf, root := newBufferFixture(t)

	// Couple the two channels by backing their enable files with the
	// same inode, the way coupled hardware flips both bits on one
	// write. All disables must land before any enable, or the
	// unselected sibling's disable would undo the coupling.
	shared := filepath.Join(root, "sys/iio:device0/scan_elements/in_voltage1_en")
	if err := os.Remove(shared); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.Link(filepath.Join(root, "sys/iio:device0/scan_elements/in_voltage0_en"), shared); err != nil {
		t.Fatalf("link: %v", err)
	}

	mask := iio.NewMask(uint(len(dev.Channels)))
	dev.Channels[0].Enable(mask)
	if err := buf.setup(mask); err != nil {
		t.Fatalf("setup: %v", err)
	}

	// The read-back sees both channels enabled and corrects the mask.
	if !dev.Channels[0].IsEnabled(mask) || !dev.Channels[1].IsEnabled(mask) {
		t.Errorf("mask after coupled setup: voltage0=%v voltage1=%v",
			dev.Channels[0].IsEnabled(mask), dev.Channels[1].IsEnabled(mask))
	}
}

func TestBufferSetupMissingEnableFile(t *testing.T) {
	dev, buf, _ := newBufferFixture(t)

	// A scan channel without a registered enable file cannot be
	// negotiated.
	delete(buf.b.enableFns, dev.Channels[1])

	mask := iio.NewMask(uint(len(dev.Channels)))
	dev.Channels[0].Enable(mask)
	err := buf.setup(mask)
	if !errors.Is(err, iio.ErrInvalid) {
		t.Errorf("setup without enable file = %v, want ErrInvalid", err)
	}
}

func TestBufferEnableSizingContract(t *testing.T) {
	t.Run("stream", func(t *testing.T) {
		_, buf, root := newBufferFixture(t)

		if err := buf.Enable(64); !errors.Is(err, iio.ErrInvalid) {
			t.Errorf("Enable(64) on stream buffer = %v, want ErrInvalid", err)
		}
		if err := buf.Enable(0); err != nil {
			t.Fatalf("Enable(0): %v", err)
		}
		if got := readSysfs(t, root, "iio:device0/buffer/enable"); got != "1\x00" {
			t.Errorf("enable file = %q, want 1", got)
		}
		// Streaming buffers size themselves; the ring length is never
		// touched.
		if got := readSysfs(t, root, "iio:device0/buffer/length"); got != "128\n" {
			t.Errorf("length file = %q, want untouched fixture value", got)
		}
	})

	t.Run("block capable", func(t *testing.T) {
		_, buf, root := newBufferFixture(t)
		buf.mmapOK = true

		if err := buf.Enable(0); !errors.Is(err, iio.ErrInvalid) {
			t.Errorf("Enable(0) on block-capable buffer = %v, want ErrInvalid", err)
		}
		if err := buf.Enable(64); err != nil {
			t.Fatalf("Enable(64): %v", err)
		}
		if got := readSysfs(t, root, "iio:device0/buffer/length"); got != "64\x00" {
			t.Errorf("length file = %q, want 64", got)
		}
		if got := readSysfs(t, root, "iio:device0/buffer/watermark"); got != "64\x00" {
			t.Errorf("watermark file = %q, want 64", got)
		}
		if got := readSysfs(t, root, "iio:device0/buffer/enable"); got != "1\x00" {
			t.Errorf("enable file = %q, want 1", got)
		}
	})
}

func TestBufferDisableIdempotent(t *testing.T) {
	_, buf, root := newBufferFixture(t)

	// Disabling a never-enabled buffer is a no-op.
	if err := buf.Disable(); err != nil {
		t.Errorf("Disable before Enable: %v", err)
	}

	if err := buf.Enable(0); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := buf.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if got := readSysfs(t, root, "iio:device0/buffer/enable"); got != "0\x00" {
		t.Errorf("enable file = %q, want 0", got)
	}
	if err := buf.Disable(); err != nil {
		t.Errorf("second Disable: %v", err)
	}
}

func TestBufferCloseIdempotent(t *testing.T) {
	_, buf, _ := newBufferFixture(t)
	if err := buf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := buf.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if buf.fd != -1 || buf.cancelFd != -1 {
		t.Errorf("descriptors survived Close: fd=%d cancelFd=%d", buf.fd, buf.cancelFd)
	}
}

func TestBufferCloseAlwaysDisables(t *testing.T) {
	_, buf, root := newBufferFixture(t)

	// Hardware left streaming by a previous owner: the buffer was
	// never enabled through this session, but teardown still stops it.
	writeSyntheticFile(t, root, "sys/iio:device0/buffer/enable", "1\n")

	if err := buf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := readSysfs(t, root, "iio:device0/buffer/enable"); got != "0\x00" {
		t.Errorf("enable file after Close = %q, want 0", got)
	}
}

func TestMmapBlockAccounting(t *testing.T) {
	_, buf, _ := newBufferFixture(t)
	buf.mmapOK = true
	buf.nextBlockID = 2
	buf.liveBlocks = 2

	// Retiring a block that is not the last one touches no kernel
	// state.
	if err := buf.dropMmapBlock(); err != nil {
		t.Fatalf("dropMmapBlock: %v", err)
	}
	if buf.liveBlocks != 1 || buf.nextBlockID != 2 {
		t.Errorf("accounting after first drop: live=%d next=%d", buf.liveBlocks, buf.nextBlockID)
	}

	// The last block triggers the FREE ioctl (which fails here, the
	// descriptor being closed) and resets the id sequence either way.
	if err := buf.dropMmapBlock(); err == nil {
		t.Error("FREE on a dead descriptor succeeded")
	}
	if buf.liveBlocks != 0 || buf.nextBlockID != 0 {
		t.Errorf("accounting after last drop: live=%d next=%d", buf.liveBlocks, buf.nextBlockID)
	}
}

func TestBufferCancelWakesWaiters(t *testing.T) {
	_, buf, _ := newBufferFixture(t)

	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	buf.Cancel()
	start := time.Now()
	err := waitReady(p[0], buf.cancelFd, unix.POLLIN, &start, time.Second)
	if !errors.Is(err, iio.ErrCancelled) {
		t.Errorf("waitReady after Cancel = %v, want ErrCancelled", err)
	}

	// Cancellation is sticky: a second waiter sees it too.
	err = waitReady(p[0], buf.cancelFd, unix.POLLIN, &start, time.Second)
	if !errors.Is(err, iio.ErrCancelled) {
		t.Errorf("second waitReady after Cancel = %v, want ErrCancelled", err)
	}
}

func TestBufferDirectionGuards(t *testing.T) {
	_, buf, _ := newBufferFixture(t)

	if _, err := buf.Write(make([]byte, 4)); !errors.Is(err, iio.ErrInvalid) {
		t.Errorf("Write on input buffer = %v, want ErrInvalid", err)
	}
	buf.output = true
	if _, err := buf.Read(make([]byte, 4)); !errors.Is(err, iio.ErrInvalid) {
		t.Errorf("Read on output buffer = %v, want ErrInvalid", err)
	}
}

func TestStreamBlock(t *testing.T) {
	_, buf, _ := newBufferFixture(t)

	if _, err := CreateBlock(buf, 0); !errors.Is(err, iio.ErrInvalid) {
		t.Error("zero-sized block allocated")
	}

	blk, err := CreateBlock(buf, 4096)
	if err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}
	if blk.kind != kindStream {
		t.Errorf("block kind = %d, want stream", blk.kind)
	}
	if len(blk.Data()) != 4096 || blk.Size() != 4096 {
		t.Errorf("block sizing: len(Data)=%d Size=%d", len(blk.Data()), blk.Size())
	}

	// Cyclic output needs hardware block support.
	buf.output = true
	if err := blk.Enqueue(0, true); !errors.Is(err, iio.ErrNotSupported) {
		t.Errorf("cyclic stream Enqueue = %v, want ErrNotSupported", err)
	}
	buf.output = false

	// Enqueueing an input block is a no-op handoff.
	if err := blk.Enqueue(0, false); err != nil {
		t.Errorf("input stream Enqueue: %v", err)
	}

	if err := blk.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := blk.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := blk.Enqueue(0, false); !errors.Is(err, iio.ErrInvalid) {
		t.Errorf("Enqueue after Close = %v, want ErrInvalid", err)
	}
}
