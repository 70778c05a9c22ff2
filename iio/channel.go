// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package iio

// NoIndex is the Index value of a channel that is not a scan element.
const NoIndex int64 = -1

// Format describes a scan-element channel's on-wire sample layout.
type Format struct {
	// Bits is the number of valid data bits, Length the container
	// width in bits. Bits <= Length always holds.
	Bits   uint
	Length uint

	// Shift is the right-shift to apply to the container to align the
	// valid bits.
	Shift uint

	// Repeat is the number of consecutive containers per sample,
	// at least 1.
	Repeat uint

	IsSigned bool
	IsBE     bool

	// IsFullyDefined reports that no padding bits need masking: either
	// the type string declared it or Bits equals Length.
	IsFullyDefined bool

	// Scale is the channel's scale factor; WithScale reports whether a
	// numeric scale attribute was present and parsed cleanly.
	WithScale bool
	Scale     float64
}

// ChannelAttr pairs a channel attribute's display name with the name
// of its backing file in the device directory.
type ChannelAttr struct {
	Name     string
	Filename string
}

// Channel is one physical quantity measured or driven by a device.
type Channel struct {
	ctx    *Context
	device int
	number uint

	// ID is the grouping key derived from the attribute names, e.g.
	// "voltage0". Unique within the device, scoped by direction.
	ID string

	// Name is the display name folded out of a common attribute
	// prefix, or empty.
	Name string

	IsOutput      bool
	IsScanElement bool

	// Index is the channel's position in the buffered sample layout,
	// or NoIndex when the channel is not a scan element.
	Index int64

	// Attrs is sorted by display name.
	Attrs []ChannelAttr

	Format Format
}

// Device returns the owning device.
func (c *Channel) Device() *Device { return c.ctx.devices[c.device] }

// Number returns the channel's position within its device, assigned
// after sorting. It keys the enable mask.
func (c *Channel) Number() uint { return c.number }

// FindAttr returns the attribute with the given display name, or nil.
func (c *Channel) FindAttr(name string) *ChannelAttr {
	for i := range c.Attrs {
		if c.Attrs[i].Name == name {
			return &c.Attrs[i]
		}
	}
	return nil
}

// AttrFilename resolves an attribute display name to its backing file
// name. Unknown names map to themselves, so callers can address files
// that were never classified.
func (c *Channel) AttrFilename(name string) string {
	if attr := c.FindAttr(name); attr != nil {
		return attr.Filename
	}
	return name
}

// ReadAttr returns the current value of a channel attribute.
func (c *Channel) ReadAttr(attr string) (string, error) {
	return c.ctx.backend.ReadChannelAttr(c, attr)
}

// WriteAttr writes a channel attribute.
func (c *Channel) WriteAttr(attr, value string) error {
	return c.ctx.backend.WriteChannelAttr(c, attr, value)
}

// Enable marks the channel enabled in the mask.
func (c *Channel) Enable(mask *Mask) { mask.Set(c.number) }

// Disable clears the channel from the mask.
func (c *Channel) Disable(mask *Mask) { mask.Clear(c.number) }

// IsEnabled reports whether the mask has the channel enabled.
func (c *Channel) IsEnabled(mask *Mask) bool { return mask.Test(c.number) }
