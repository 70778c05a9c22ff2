// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package iio

// Mask is a channel-enable bitmask sized for one device. Bits are
// keyed by channel number. The buffer-open path reads the caller's
// selection from it and writes back the hardware's view, since coupled
// channels may be enabled implicitly.
type Mask struct {
	bits []uint64
	size uint
}

// NewMask returns a mask able to hold size channels, all disabled.
func NewMask(size uint) *Mask {
	return &Mask{bits: make([]uint64, (size+63)/64), size: size}
}

// Size returns the number of channels the mask covers.
func (m *Mask) Size() uint { return m.size }

// Set enables channel number n.
func (m *Mask) Set(n uint) {
	if n < m.size {
		m.bits[n/64] |= 1 << (n % 64)
	}
}

// Clear disables channel number n.
func (m *Mask) Clear(n uint) {
	if n < m.size {
		m.bits[n/64] &^= 1 << (n % 64)
	}
}

// Test reports whether channel number n is enabled.
func (m *Mask) Test(n uint) bool {
	return n < m.size && m.bits[n/64]&(1<<(n%64)) != 0
}

// Any reports whether at least one channel is enabled.
func (m *Mask) Any() bool {
	for _, word := range m.bits {
		if word != 0 {
			return true
		}
	}
	return false
}
