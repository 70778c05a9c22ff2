// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package iio

import "sort"

// Device is one hardware or virtual I/O endpoint. Its attribute lists
// hold names only; values are fetched from the backing store on demand.
type Device struct {
	ctx   *Context
	index int

	// ID is the stable kernel identifier, e.g. "iio:device0".
	ID string

	// Name and Label are the values of the device's name and label
	// files, read once at discovery. Either may be empty.
	Name  string
	Label string

	// Attrs, BufferAttrs and DebugAttrs are the device-level attribute
	// names of each namespace, sorted lexically.
	Attrs       []string
	BufferAttrs []string
	DebugAttrs  []string

	// Channels is sorted by scan-element index (then shift), with
	// non-scan channels last.
	Channels []*Channel
}

// Context returns the owning context.
func (d *Device) Context() *Context { return d.ctx }

// Index returns the device's position in the context arena.
func (d *Device) Index() int { return d.index }

// FindChannel returns the channel with the given id and direction, or
// nil. An input and an output channel may share an id.
func (d *Device) FindChannel(id string, output bool) *Channel {
	for _, chn := range d.Channels {
		if chn.ID == id && chn.IsOutput == output {
			return chn
		}
	}
	return nil
}

// ReadAttr returns the current value of a device attribute.
func (d *Device) ReadAttr(attr string) (string, error) {
	return d.ctx.backend.ReadDeviceAttr(d, 0, attr, AttrTypeDevice)
}

// WriteAttr writes a device attribute.
func (d *Device) WriteAttr(attr, value string) error {
	return d.ctx.backend.WriteDeviceAttr(d, 0, attr, value, AttrTypeDevice)
}

// ReadBufferAttr returns the current value of a buffer attribute for
// the given buffer index.
func (d *Device) ReadBufferAttr(bufferIndex uint, attr string) (string, error) {
	return d.ctx.backend.ReadDeviceAttr(d, bufferIndex, attr, AttrTypeBuffer)
}

// WriteBufferAttr writes a buffer attribute for the given buffer index.
func (d *Device) WriteBufferAttr(bufferIndex uint, attr, value string) error {
	return d.ctx.backend.WriteDeviceAttr(d, bufferIndex, attr, value, AttrTypeBuffer)
}

// ReadDebugAttr returns the current value of a debug attribute.
func (d *Device) ReadDebugAttr(attr string) (string, error) {
	return d.ctx.backend.ReadDeviceAttr(d, 0, attr, AttrTypeDebug)
}

// WriteDebugAttr writes a debug attribute.
func (d *Device) WriteDebugAttr(attr, value string) error {
	return d.ctx.backend.WriteDeviceAttr(d, 0, attr, value, AttrTypeDebug)
}

// Trigger returns the device currently bound as dev's trigger, or nil.
func (d *Device) Trigger() (*Device, error) {
	return d.ctx.backend.Trigger(d)
}

// SetTrigger binds trigger to the device. A nil trigger unbinds.
func (d *Device) SetTrigger(trigger *Device) error {
	return d.ctx.backend.SetTrigger(d, trigger)
}

// SortChannels orders the channel list by scan-element index, breaking
// ties on the format shift, with non-scan channels (negative index)
// last. Channel numbers, which key the enable mask, are assigned from
// the resulting positions. Backends call it once per device, after the
// last channel is added.
func (d *Device) SortChannels() {
	sort.SliceStable(d.Channels, func(i, j int) bool {
		a, b := d.Channels[i].Index, d.Channels[j].Index
		if a == b && a >= 0 {
			a = int64(d.Channels[i].Format.Shift)
			b = int64(d.Channels[j].Format.Shift)
		}
		if b < 0 {
			return a >= 0
		}
		if a < 0 {
			return false
		}
		return a < b
	})
	for i, chn := range d.Channels {
		chn.number = uint(i)
	}
}
