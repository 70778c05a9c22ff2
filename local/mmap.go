// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kimpaller/libiio/iio"
)

// createMmapBlock allocates one kernel block and maps it into the
// process. The kernel assigns ids sequentially per buffer; a single
// FREE ioctl later releases every block at once, so the buffer counts
// live blocks and frees when the last one closes.
func createMmapBlock(buf *Buffer, size uint) (*Block, error) {
	req := bufferBlockAllocReq{size: uint32(size), count: 1}
	if err := ioctlNointr(buf.fd, ioctlBlockAlloc, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("allocating block on %s: %w", buf.dev.ID, err)
	}
	if req.count == 0 {
		return nil, fmt.Errorf("allocating block on %s: %w", buf.dev.ID, unix.ENOMEM)
	}

	buf.mu.Lock()
	id := buf.nextBlockID
	buf.nextBlockID++
	buf.liveBlocks++
	buf.mu.Unlock()

	kblock := bufferBlock{id: id}
	if err := ioctlNointr(buf.fd, ioctlBlockQuery, unsafe.Pointer(&kblock)); err != nil {
		buf.dropMmapBlock()
		return nil, fmt.Errorf("querying block %d on %s: %w", id, buf.dev.ID, err)
	}

	data, err := unix.Mmap(buf.fd, int64(kblock.offset), int(kblock.size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		buf.dropMmapBlock()
		return nil, fmt.Errorf("mapping block %d on %s: %w", id, buf.dev.ID, err)
	}
	return &Block{buf: buf, kind: kindMmap, size: size, data: data, id: id}, nil
}

// dropMmapBlock retires one kernel block from the buffer's accounting.
// The kernel cannot free blocks individually, so the FREE ioctl is
// issued when the last one goes, which also releases blocks whose
// query or mapping failed after allocation.
func (buf *Buffer) dropMmapBlock() error {
	buf.mu.Lock()
	buf.liveBlocks--
	last := buf.liveBlocks == 0 && !buf.closed
	if last {
		buf.nextBlockID = 0
	}
	buf.mu.Unlock()
	if !last {
		return nil
	}
	req := bufferBlockAllocReq{}
	if err := ioctlNointr(buf.fd, ioctlBlockFree, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("freeing blocks on %s: %w", buf.dev.ID, err)
	}
	return nil
}

func (blk *Block) enqueueMmap(bytesUsed uint, cyclic bool) error {
	kblock := bufferBlock{id: blk.id, size: uint32(blk.size), bytesUsed: uint32(bytesUsed)}
	if cyclic {
		kblock.flags = blockFlagCyclic
	}
	if err := ioctlNointr(blk.buf.fd, ioctlBlockEnqueue, unsafe.Pointer(&kblock)); err != nil {
		return fmt.Errorf("enqueueing block %d on %s: %w", blk.id, blk.buf.dev.ID, err)
	}
	return nil
}

func (blk *Block) dequeueMmap(nonblock bool) error {
	buf := blk.buf
	events := int16(unix.POLLIN)
	if buf.output {
		events = unix.POLLOUT
	}
	start := blockDeadline(nonblock)
	for {
		if err := waitReady(buf.fd, buf.cancelFd, events, start, buf.b.timeout); err != nil {
			return err
		}
		kblock := bufferBlock{id: blk.id}
		err := ioctlNointr(buf.fd, ioctlBlockDequeue, unsafe.Pointer(&kblock))
		if err == unix.EAGAIN {
			if nonblock {
				return iio.ErrBusy
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("dequeueing block %d on %s: %w", blk.id, buf.dev.ID, err)
		}
		return nil
	}
}

func (blk *Block) closeMmap() error {
	err := unix.Munmap(blk.data)
	blk.data = nil
	if ferr := blk.buf.dropMmapBlock(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
