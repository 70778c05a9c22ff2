// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"fmt"
	"time"

	"github.com/kimpaller/libiio/iio"
)

// blockKind selects the transfer mechanism of a block. It is derived
// from the buffer's capabilities, probed once at open time.
type blockKind int

const (
	kindStream blockKind = iota
	kindMmap
	kindDmabuf
)

// Block is one unit of sample memory cycled between the application
// and the kernel. Depending on the buffer's capabilities it is backed
// by a dma-buf, a kernel-mapped region, or plain heap memory moved
// through the character device.
type Block struct {
	buf  *Buffer
	kind blockKind
	size uint
	data []byte

	// id is the kernel block id (mmap kind only).
	id uint32

	// dmabufFd is the dma-buf descriptor (dmabuf kind only).
	dmabufFd int

	closed bool
}

// CreateBlock allocates a block of size bytes on the buffer, using the
// best transfer mechanism the buffer supports: dmabuf, then mmap, then
// character-device streaming.
func CreateBlock(buf *Buffer, size uint) (*Block, error) {
	if size == 0 {
		return nil, fmt.Errorf("zero-sized block: %w", iio.ErrInvalid)
	}
	switch {
	case buf.dmabufOK:
		return createDmabufBlock(buf, size)
	case buf.mmapOK:
		return createMmapBlock(buf, size)
	default:
		return &Block{buf: buf, kind: kindStream, size: size, data: make([]byte, size)}, nil
	}
}

// Data returns the block's sample memory. The slice stays valid until
// Close; while the block is enqueued the kernel owns the contents.
func (blk *Block) Data() []byte { return blk.data }

// Size returns the block's capacity in bytes.
func (blk *Block) Size() uint { return blk.size }

// Enqueue hands the block to the kernel. bytesUsed is the payload size
// for output buffers, zero meaning the full block. A cyclic block is
// transmitted repeatedly until the buffer is disabled and can only be
// enqueued once.
//
// On stream-backed output buffers Enqueue performs the actual write
// and blocks accordingly.
func (blk *Block) Enqueue(bytesUsed uint, cyclic bool) error {
	if blk.closed {
		return fmt.Errorf("block is closed: %w", iio.ErrInvalid)
	}
	if bytesUsed == 0 || bytesUsed > blk.size {
		bytesUsed = blk.size
	}
	switch blk.kind {
	case kindDmabuf:
		return blk.enqueueDmabuf(bytesUsed, cyclic)
	case kindMmap:
		return blk.enqueueMmap(bytesUsed, cyclic)
	default:
		if cyclic {
			return fmt.Errorf("cyclic streaming needs a block interface: %w", iio.ErrNotSupported)
		}
		if blk.buf.output {
			_, err := blk.buf.Write(blk.data[:bytesUsed])
			return err
		}
		return nil
	}
}

// Dequeue takes the block back from the kernel, blocking until its
// transfer completed. With nonblock set, a transfer still in flight
// reports ErrBusy instead of waiting.
//
// On stream-backed input buffers Dequeue performs the actual read.
func (blk *Block) Dequeue(nonblock bool) error {
	if blk.closed {
		return fmt.Errorf("block is closed: %w", iio.ErrInvalid)
	}
	switch blk.kind {
	case kindDmabuf:
		return blk.dequeueDmabuf(nonblock)
	case kindMmap:
		return blk.dequeueMmap(nonblock)
	default:
		if !blk.buf.output {
			_, err := blk.buf.Read(blk.data)
			return err
		}
		return nil
	}
}

// deadline returns the poll start marker for a block operation: nil for
// nonblocking (expiry maps to ErrBusy), the current time otherwise.
func blockDeadline(nonblock bool) *time.Time {
	if nonblock {
		return nil
	}
	now := time.Now()
	return &now
}

// Close releases the block's memory and kernel resources. Close is
// idempotent. Blocks must be closed before their buffer.
func (blk *Block) Close() error {
	if blk.closed {
		return nil
	}
	blk.closed = true
	switch blk.kind {
	case kindDmabuf:
		return blk.closeDmabuf()
	case kindMmap:
		return blk.closeMmap()
	default:
		blk.data = nil
		return nil
	}
}
