// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// IIO ioctl numbers derived from the upstream Linux kernel UAPI
// headers (include/uapi/linux/iio/buffer.h and the high-speed buffer
// interface). These are stable ABI.
//
// Bit layout: direction << 30 | size << 16 | type << 8 | nr, with
// type 'i' (0x69) for IIO, 'H' (0x48) for DMA heaps and 'b' (0x62)
// for dma-buf sync.
const (
	// ioctlBufferGetFD is IIO_BUFFER_GET_FD_IOCTL, _IOWR('i', 0x91,
	// int): exchanges a buffer index for a dedicated descriptor on
	// multi-buffer-capable devices.
	ioctlBufferGetFD = 0xC0046991

	// ioctlDmabufAttach is IIO_BUFFER_DMABUF_ATTACH_IOCTL,
	// _IOW('i', 0x92, int).
	ioctlDmabufAttach = 0x40046992

	// ioctlDmabufDetach is IIO_BUFFER_DMABUF_DETACH_IOCTL,
	// _IOW('i', 0x93, int).
	ioctlDmabufDetach = 0x40046993

	// ioctlDmabufEnqueue is IIO_BUFFER_DMABUF_ENQUEUE_IOCTL,
	// _IOW('i', 0x94, struct iio_dmabuf) where the struct is 16 bytes.
	ioctlDmabufEnqueue = 0x40106994

	// ioctlBlockAlloc is IIO_BUFFER_BLOCK_ALLOC_IOCTL,
	// _IOWR('i', 0xa0, struct iio_buffer_block_alloc_req), 16 bytes.
	ioctlBlockAlloc = 0xC01069A0

	// ioctlBlockFree is IIO_BUFFER_BLOCK_FREE_IOCTL, _IO('i', 0xa1).
	ioctlBlockFree = 0x000069A1

	// ioctlBlockQuery is IIO_BUFFER_BLOCK_QUERY_IOCTL,
	// _IOWR('i', 0xa2, struct iio_buffer_block), 32 bytes.
	ioctlBlockQuery = 0xC02069A2

	// ioctlBlockEnqueue / ioctlBlockDequeue are the matching
	// _IOWR('i', 0xa3/0xa4, struct iio_buffer_block) numbers.
	ioctlBlockEnqueue = 0xC02069A3
	ioctlBlockDequeue = 0xC02069A4

	// ioctlDmaHeapAlloc is DMA_HEAP_IOCTL_ALLOC, _IOWR('H', 0x0,
	// struct dma_heap_allocation_data), 24 bytes.
	ioctlDmaHeapAlloc = 0xC0184800

	// ioctlDmaBufSync is DMA_BUF_IOCTL_SYNC, _IOW('b', 0,
	// struct dma_buf_sync), 8 bytes.
	ioctlDmaBufSync = 0x40086200
)

// dma_buf_sync flag values.
const (
	dmaBufSyncRead  = 1 << 0
	dmaBufSyncWrite = 1 << 1
	dmaBufSyncRW    = dmaBufSyncRead | dmaBufSyncWrite
	dmaBufSyncStart = 0
	dmaBufSyncEnd   = 1 << 2
)

// blockFlagCyclic is IIO_BUFFER_BLOCK_FLAG_CYCLIC.
const blockFlagCyclic = 1 << 1

// dmabufFlagCyclic is IIO_BUFFER_DMABUF_CYCLIC.
const dmabufFlagCyclic = 1 << 0

// bufferBlockAllocReq mirrors struct iio_buffer_block_alloc_req.
type bufferBlockAllocReq struct {
	blockType uint32
	size      uint32
	count     uint32
	id        uint32
}

// bufferBlock mirrors struct iio_buffer_block: 24 bytes of fields plus
// a 64-bit timestamp, 32 bytes total.
type bufferBlock struct {
	id        uint32
	size      uint32
	bytesUsed uint32
	blockType uint32
	flags     uint32
	offset    uint32
	timestamp uint64
}

// dmaHeapAllocData mirrors struct dma_heap_allocation_data.
type dmaHeapAllocData struct {
	length    uint64
	fd        uint32
	fdFlags   uint32
	heapFlags uint64
}

// iioDmabufReq mirrors struct iio_dmabuf.
type iioDmabufReq struct {
	fd        uint32
	flags     uint32
	bytesUsed uint64
}

// dmaBufSyncReq mirrors struct dma_buf_sync.
type dmaBufSyncReq struct {
	flags uint64
}

// ioctlNointr issues an ioctl, retrying on EINTR. The returned error,
// when non-nil, is the raw unix.Errno.
func ioctlNointr(fd int, request uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(request), uintptr(arg))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return errno
		}
		return nil
	}
}
