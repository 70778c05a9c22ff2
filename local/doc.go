// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

// Package local implements the local transport: it discovers industrial
// I/O devices from the sysfs hierarchy exported by the running kernel,
// classifies their attribute files into device, buffer, debug and
// channel scopes, and drives buffered capture/playback through the
// character devices in /dev.
//
// Discovery runs once, at context creation, and produces a fully sorted
// iio.Context. Buffers are opened per capture session against a device
// from that context; each buffer picks its block backend (dma-buf,
// mmap, or a byte-stream fallback) when it is opened and keeps it for
// its lifetime.
//
// All paths are injectable through Options so the discovery and
// classification logic can be exercised against synthetic trees.
package local
