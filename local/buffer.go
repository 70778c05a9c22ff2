// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kimpaller/libiio/iio"
)

// Buffer is an open sample stream on one hardware buffer of a device.
// It owns the character-device descriptor and an eventfd used to wake
// blocked readers and writers on Cancel.
//
// The capability flags are probed once at open time; the transfer
// mechanism chosen for blocks created on this buffer never changes
// afterwards.
type Buffer struct {
	b     *backend
	dev   *iio.Device
	index uint

	fd       int
	cancelFd int

	// multi is set when the IIO_BUFFER_GET_FD ioctl succeeded and fd
	// is a dedicated per-buffer descriptor.
	multi bool

	mmapOK   bool
	dmabufOK bool

	// output is the direction of the enabled scan channels.
	output bool

	mu      sync.Mutex
	closed  bool
	enabled bool

	// mmap block bookkeeping: the kernel hands out sequential block
	// ids, and a single FREE ioctl releases them all at once.
	nextBlockID uint32
	liveBlocks  int
}

// CreateBuffer opens hardware buffer index of dev with the channels in
// mask enabled. On return mask holds the hardware's view of the enable
// states, which may differ from the request when channels are coupled.
//
// The buffer is created disabled; call Enable to start streaming.
func CreateBuffer(dev *iio.Device, index uint, mask *iio.Mask) (*Buffer, error) {
	b, ok := dev.Context().Backend().(*backend)
	if !ok {
		return nil, fmt.Errorf("device %s has no local backend: %w", dev.ID, iio.ErrNotSupported)
	}
	if mask == nil || !mask.Any() {
		return nil, fmt.Errorf("no channels enabled: %w", iio.ErrInvalid)
	}

	cancelFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	fd, err := unix.Open(filepath.Join(b.devRoot, dev.ID),
		unix.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		unix.Close(cancelFd)
		return nil, fmt.Errorf("opening %s: %w", dev.ID, err)
	}

	buf := &Buffer{b: b, dev: dev, index: index, fd: fd, cancelFd: cancelFd}

	// Exchange the main descriptor for a dedicated per-buffer one.
	// Kernels without the multi-buffer interface reject the ioctl, in
	// which case only buffer 0 is reachable.
	arg := int32(index)
	if err := ioctlNointr(fd, ioctlBufferGetFD, unsafe.Pointer(&arg)); err == nil {
		unix.Close(fd)
		buf.fd = int(arg)
		buf.multi = true
	} else if index > 0 {
		buf.closeFds()
		return nil, fmt.Errorf("buffer %d of %s: %w", index, dev.ID, iio.ErrNotSupported)
	}

	buf.probeCapabilities()

	if err := buf.setup(mask); err != nil {
		buf.closeFds()
		return nil, err
	}
	return buf, nil
}

// probeCapabilities detects which block interfaces the descriptor
// accepts. The dmabuf attach ioctl is issued with an invalid dma-buf
// descriptor: a kernel that implements the interface reports EBADF,
// one that does not rejects the ioctl number itself.
func (buf *Buffer) probeCapabilities() {
	arg := int32(-1)
	err := ioctlNointr(buf.fd, ioctlDmabufAttach, unsafe.Pointer(&arg))
	buf.dmabufOK = err == unix.EBADF

	// A zero-count allocation request is a no-op on kernels carrying
	// the mmap block interface and ENOTTY everywhere else.
	req := bufferBlockAllocReq{}
	buf.mmapOK = ioctlNointr(buf.fd, ioctlBlockAlloc, unsafe.Pointer(&req)) == nil
}

// setup negotiates the channel enable states: every scan channel is
// disabled, the selected ones are then enabled, and the result is read
// back, since the kernel may enable coupled channels implicitly. mask
// is updated in place with the read-back state.
func (buf *Buffer) setup(mask *iio.Mask) error {
	// Make sure nothing is streaming before touching enable files.
	buf.writeEnable(false)

	// All disables must land before any enable: enabling a channel can
	// implicitly enable a coupled sibling, and a later disable write
	// would undo that coupling before the read-back.
	for _, chn := range buf.dev.Channels {
		if chn.Index < 0 {
			continue
		}
		if err := buf.writeChannelState(chn, false); err != nil {
			return err
		}
	}
	for _, chn := range buf.dev.Channels {
		if chn.Index < 0 || !chn.IsEnabled(mask) {
			continue
		}
		if err := buf.writeChannelState(chn, true); err != nil {
			return err
		}
	}

	hasOutput := false
	for _, chn := range buf.dev.Channels {
		if chn.Index < 0 {
			continue
		}
		enabled, err := buf.readChannelState(chn)
		if err != nil {
			return err
		}
		if enabled {
			mask.Set(chn.Number())
			hasOutput = hasOutput || chn.IsOutput
		} else {
			mask.Clear(chn.Number())
		}
	}
	buf.output = hasOutput
	return nil
}

// enableAttr returns the enable-file name of a scan channel and the
// attribute namespace it lives in. On multi-buffer kernels the files
// sit under bufferN/ instead of scan_elements/.
func (buf *Buffer) enableAttr(chn *iio.Channel) (string, iio.AttrType, error) {
	fn, ok := buf.b.enableFns[chn]
	if !ok {
		return "", 0, fmt.Errorf("channel %s of %s has no enable file: %w",
			chn.ID, buf.dev.ID, iio.ErrInvalid)
	}
	if buf.index > 0 {
		return strings.TrimPrefix(fn, "scan_elements/"), iio.AttrTypeBuffer, nil
	}
	return fn, iio.AttrTypeDevice, nil
}

func (buf *Buffer) writeChannelState(chn *iio.Channel, enabled bool) error {
	fn, typ, err := buf.enableAttr(chn)
	if err != nil {
		return err
	}
	value := "0"
	if enabled {
		value = "1"
	}
	return buf.b.WriteDeviceAttr(buf.dev, buf.index, fn, value, typ)
}

func (buf *Buffer) readChannelState(chn *iio.Channel) (bool, error) {
	fn, typ, err := buf.enableAttr(chn)
	if err != nil {
		return false, err
	}
	value, err := buf.b.ReadDeviceAttr(buf.dev, buf.index, fn, typ)
	if err != nil {
		return false, err
	}
	return value != "0", nil
}

// writeEnable flips the buffer's enable file, ignoring failures: the
// file is absent on devices without a buffer, and disabling an already
// disabled buffer may be rejected by some drivers.
func (buf *Buffer) writeEnable(on bool) {
	value := "0"
	if on {
		value = "1"
	}
	err := buf.b.WriteDeviceAttr(buf.dev, buf.index, "enable", value, iio.AttrTypeBuffer)
	if err != nil {
		buf.b.logger.Debug("buffer enable write failed",
			"device", buf.dev.ID, "index", buf.index, "value", value, "error", err)
	}
}

// Enable starts the buffer. Block-capable buffers (mmap or dmabuf)
// need explicit sizing and take nbSamples, which configures the kernel
// ring length and watermark. Streaming buffers size themselves from
// the transfers and must pass zero.
func (buf *Buffer) Enable(nbSamples uint) error {
	blockCapable := buf.dmabufOK || buf.mmapOK
	if blockCapable != (nbSamples != 0) {
		return fmt.Errorf("buffer sizing does not match transfer mechanism: %w", iio.ErrInvalid)
	}

	if nbSamples != 0 {
		length := strconv.FormatUint(uint64(nbSamples), 10)
		if err := buf.b.WriteDeviceAttr(buf.dev, buf.index, "length", length, iio.AttrTypeBuffer); err != nil {
			return err
		}
		// The watermark cannot exceed the length, so shrink it along.
		// Absent or read-only files are fine.
		err := buf.b.WriteDeviceAttr(buf.dev, buf.index, "watermark", length, iio.AttrTypeBuffer)
		if err != nil {
			errno := iio.ErrnoOf(err)
			if errno != unix.ENOENT && errno != unix.EACCES && errno != unix.EROFS {
				return err
			}
		}
	}

	if err := buf.b.WriteDeviceAttr(buf.dev, buf.index, "enable", "1", iio.AttrTypeBuffer); err != nil {
		return err
	}
	buf.mu.Lock()
	buf.enabled = true
	buf.mu.Unlock()
	return nil
}

// Disable stops the buffer. Disabling an already disabled buffer is
// a no-op.
func (buf *Buffer) Disable() error {
	buf.mu.Lock()
	wasEnabled := buf.enabled
	buf.enabled = false
	buf.mu.Unlock()
	if !wasEnabled {
		return nil
	}
	return buf.b.WriteDeviceAttr(buf.dev, buf.index, "enable", "0", iio.AttrTypeBuffer)
}

// Cancel wakes every blocked transfer on the buffer; they return
// ErrCancelled. The buffer stays cancelled until closed.
func (buf *Buffer) Cancel() {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(buf.cancelFd, one[:]); err != nil {
		buf.b.logger.Warn("buffer cancellation failed",
			"device", buf.dev.ID, "index", buf.index, "error", err)
	}
}

// Close disables the buffer and releases both descriptors. The disable
// write is always attempted, even when the buffer was never enabled
// through this API, so hardware left streaming by a previous owner is
// stopped. Close is idempotent.
func (buf *Buffer) Close() error {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	if buf.closed {
		return nil
	}
	buf.closed = true
	buf.enabled = false
	buf.writeEnable(false)
	buf.closeFds()
	return nil
}

func (buf *Buffer) closeFds() {
	if buf.fd >= 0 {
		unix.Close(buf.fd)
		buf.fd = -1
	}
	if buf.cancelFd >= 0 {
		unix.Close(buf.cancelFd)
		buf.cancelFd = -1
	}
}

// Device returns the device the buffer was opened on.
func (buf *Buffer) Device() *iio.Device { return buf.dev }

// Index returns the hardware buffer index.
func (buf *Buffer) Index() uint { return buf.index }

// IsOutput reports the streaming direction negotiated at open time.
func (buf *Buffer) IsOutput() bool { return buf.output }
