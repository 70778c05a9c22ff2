// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kimpaller/libiio/iio"
)

// createDmabufBlock allocates a dma-buf from the system DMA heap, maps
// it, and attaches it to the buffer. The heap descriptor is only needed
// for the allocation and is closed before returning.
func createDmabufBlock(buf *Buffer, size uint) (*Block, error) {
	heapFd, err := unix.Open(filepath.Join(buf.b.devRoot, "dma_heap", "system"),
		unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening system DMA heap: %w", err)
	}
	defer unix.Close(heapFd)

	alloc := dmaHeapAllocData{
		length:  uint64(size),
		fdFlags: unix.O_RDWR | unix.O_CLOEXEC,
	}
	if err := ioctlNointr(heapFd, ioctlDmaHeapAlloc, unsafe.Pointer(&alloc)); err != nil {
		return nil, fmt.Errorf("allocating %d bytes from DMA heap: %w", size, err)
	}
	dmabufFd := int(alloc.fd)

	data, err := unix.Mmap(dmabufFd, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(dmabufFd)
		return nil, fmt.Errorf("mapping dma-buf: %w", err)
	}

	arg := int32(dmabufFd)
	if err := ioctlNointr(buf.fd, ioctlDmabufAttach, unsafe.Pointer(&arg)); err != nil {
		unix.Munmap(data)
		unix.Close(dmabufFd)
		if err == unix.ENOTTY || err == unix.ENOSYS {
			return nil, fmt.Errorf("attaching dma-buf to %s: %w", buf.dev.ID, iio.ErrNotSupported)
		}
		return nil, fmt.Errorf("attaching dma-buf to %s: %w", buf.dev.ID, err)
	}

	return &Block{buf: buf, kind: kindDmabuf, size: size, data: data, dmabufFd: dmabufFd}, nil
}

// enqueueDmabuf hands the dma-buf to the hardware. CPU access is ended
// first so the device sees coherent memory.
func (blk *Block) enqueueDmabuf(bytesUsed uint, cyclic bool) error {
	sync := dmaBufSyncReq{flags: dmaBufSyncEnd | dmaBufSyncRW}
	if err := ioctlNointr(blk.dmabufFd, ioctlDmaBufSync, unsafe.Pointer(&sync)); err != nil {
		return fmt.Errorf("ending CPU access to dma-buf: %w", err)
	}

	req := iioDmabufReq{fd: uint32(blk.dmabufFd), bytesUsed: uint64(bytesUsed)}
	if cyclic {
		req.flags = dmabufFlagCyclic
	}
	if err := ioctlNointr(blk.buf.fd, ioctlDmabufEnqueue, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("enqueueing dma-buf on %s: %w", blk.buf.dev.ID, err)
	}
	return nil
}

// dequeueDmabuf waits on the dma-buf's reservation fences. POLLOUT
// signals that every implicit fence completed, so polling the dma-buf
// descriptor itself tracks the transfer regardless of direction.
func (blk *Block) dequeueDmabuf(nonblock bool) error {
	buf := blk.buf
	start := blockDeadline(nonblock)
	if err := waitReady(blk.dmabufFd, buf.cancelFd, unix.POLLOUT, start, buf.b.timeout); err != nil {
		return err
	}

	sync := dmaBufSyncReq{flags: dmaBufSyncStart | dmaBufSyncRW}
	if err := ioctlNointr(blk.dmabufFd, ioctlDmaBufSync, unsafe.Pointer(&sync)); err != nil {
		return fmt.Errorf("starting CPU access to dma-buf: %w", err)
	}
	return nil
}

func (blk *Block) closeDmabuf() error {
	arg := int32(blk.dmabufFd)
	err := ioctlNointr(blk.buf.fd, ioctlDmabufDetach, unsafe.Pointer(&arg))
	if merr := unix.Munmap(blk.data); merr != nil && err == nil {
		err = merr
	}
	blk.data = nil
	unix.Close(blk.dmabufFd)
	blk.dmabufFd = -1
	if err != nil {
		return fmt.Errorf("releasing dma-buf on %s: %w", blk.buf.dev.ID, err)
	}
	return nil
}
