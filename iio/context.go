// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package iio

import "sort"

// AttrType selects which attribute namespace of a device a read or
// write targets.
type AttrType int

const (
	// AttrTypeDevice addresses the flat attribute files in the device
	// directory itself.
	AttrTypeDevice AttrType = iota

	// AttrTypeDebug addresses the debug-attribute mirror tree keyed by
	// device id.
	AttrTypeDebug

	// AttrTypeBuffer addresses the buffer/ (or bufferN/) control
	// directory of the device.
	AttrTypeBuffer
)

// Backend is the transport-specific half of a Context. The local
// backend implements it over sysfs; attribute values are never cached,
// every call hits the backing store.
type Backend interface {
	// Name returns the backend's short name, e.g. "local".
	Name() string

	// URI returns the backend's connection URI, e.g. "local:".
	URI() string

	// ReadDeviceAttr returns the value of a device-scoped attribute.
	// bufferIndex is only meaningful for AttrTypeBuffer.
	ReadDeviceAttr(dev *Device, bufferIndex uint, attr string, typ AttrType) (string, error)

	// WriteDeviceAttr writes a device-scoped attribute.
	WriteDeviceAttr(dev *Device, bufferIndex uint, attr, value string, typ AttrType) error

	// ReadChannelAttr returns the value of a channel attribute,
	// resolving the attribute's display name to its backing file.
	ReadChannelAttr(chn *Channel, attr string) (string, error)

	// WriteChannelAttr writes a channel attribute.
	WriteChannelAttr(chn *Channel, attr, value string) error

	// Trigger returns the device currently feeding dev's sampling,
	// or nil when none is bound.
	Trigger(dev *Device) (*Device, error)

	// SetTrigger binds trigger to dev. A nil trigger unbinds.
	SetTrigger(dev *Device, trigger *Device) error
}

// Attr is one context-level key/value pair. Context attributes are
// static metadata captured at discovery time.
type Attr struct {
	Name  string
	Value string
}

// Context is the root of the device model. It is built once by a
// backend and its shape never changes afterwards.
type Context struct {
	backend     Backend
	description string
	attrs       []Attr
	devices     []*Device
}

// NewContext returns an empty context bound to the given backend.
func NewContext(backend Backend, description string) *Context {
	return &Context{backend: backend, description: description}
}

// Description returns the human-readable description of the context,
// typically derived from the host identity.
func (c *Context) Description() string { return c.description }

// Name returns the backend name.
func (c *Context) Name() string { return c.backend.Name() }

// Backend returns the backend the context was created from.
func (c *Context) Backend() Backend { return c.backend }

// Attrs returns the context attributes in insertion order.
func (c *Context) Attrs() []Attr { return c.attrs }

// Attr returns the value of a context attribute and whether it exists.
func (c *Context) Attr(name string) (string, bool) {
	for _, attr := range c.attrs {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// AddAttr records a context attribute. A repeated name overwrites the
// previous value.
func (c *Context) AddAttr(name, value string) {
	for i := range c.attrs {
		if c.attrs[i].Name == name {
			c.attrs[i].Value = value
			return
		}
	}
	c.attrs = append(c.attrs, Attr{Name: name, Value: value})
}

// Devices returns the device arena. The slice must not be mutated.
func (c *Context) Devices() []*Device { return c.devices }

// Device returns the device at the given arena index.
func (c *Context) Device(index int) *Device { return c.devices[index] }

// FindDevice returns the device whose id, name or label matches, or
// nil when there is none.
func (c *Context) FindDevice(nameOrID string) *Device {
	for _, dev := range c.devices {
		if dev.ID == nameOrID || dev.Name == nameOrID || dev.Label == nameOrID {
			return dev
		}
	}
	return nil
}

// AddDevice appends a device to the arena and wires its back-references.
// Only backends call this, during discovery.
func (c *Context) AddDevice(dev *Device) {
	dev.ctx = c
	dev.index = len(c.devices)
	c.devices = append(c.devices, dev)
	for _, chn := range dev.Channels {
		chn.ctx = c
		chn.device = dev.index
	}
}

// SortDevices orders the arena by device id and renumbers the index
// back-references. Backends call it once, after the last AddDevice;
// the resulting order is part of the positional-indexing contract.
func (c *Context) SortDevices() {
	sort.Slice(c.devices, func(i, j int) bool {
		return c.devices[i].ID < c.devices[j].ID
	})
	for i, dev := range c.devices {
		dev.index = i
		for _, chn := range dev.Channels {
			chn.device = i
		}
	}
}
