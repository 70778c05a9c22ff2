// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/kimpaller/libiio/iio"
)

// attrPath maps an attribute name to its backing file. The name may
// carry a relative subpath ("scan_elements/...", "trigger/...").
func (b *backend) attrPath(dev *iio.Device, bufferIndex uint, attr string, typ iio.AttrType) (string, error) {
	switch typ {
	case iio.AttrTypeDevice:
		return filepath.Join(b.sysfsRoot, dev.ID, attr), nil
	case iio.AttrTypeDebug:
		return filepath.Join(b.debugRoot, dev.ID, attr), nil
	case iio.AttrTypeBuffer:
		if bufferIndex > 0 {
			return filepath.Join(b.sysfsRoot, dev.ID,
				"buffer"+strconv.FormatUint(uint64(bufferIndex), 10), attr), nil
		}
		return filepath.Join(b.sysfsRoot, dev.ID, "buffer", attr), nil
	}
	return "", fmt.Errorf("attribute type %d: %w", typ, iio.ErrInvalid)
}

// ReadDeviceAttr reads an attribute value from the backing store.
// The final terminator byte (newline or NUL) is trimmed.
func (b *backend) ReadDeviceAttr(dev *iio.Device, bufferIndex uint, attr string, typ iio.AttrType) (string, error) {
	path, err := b.attrPath(dev, bufferIndex, attr, typ)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading attribute %s of %s: %w", attr, dev.ID, err)
	}
	if n := len(data); n > 0 && (data[n-1] == '\n' || data[n-1] == 0) {
		data = data[:n-1]
	}
	return string(data), nil
}

// WriteDeviceAttr writes an attribute value to the backing store,
// sending the exact byte length including a NUL terminator.
func (b *backend) WriteDeviceAttr(dev *iio.Device, bufferIndex uint, attr, value string, typ iio.AttrType) error {
	path, err := b.attrPath(dev, bufferIndex, attr, typ)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(value), 0), 0644); err != nil {
		return fmt.Errorf("writing attribute %s of %s: %w", attr, dev.ID, err)
	}
	return nil
}

// ReadChannelAttr reads a channel attribute, resolving the display
// name to its backing file through the channel's attribute table.
func (b *backend) ReadChannelAttr(chn *iio.Channel, attr string) (string, error) {
	return b.ReadDeviceAttr(chn.Device(), 0, chn.AttrFilename(attr), iio.AttrTypeDevice)
}

// WriteChannelAttr writes a channel attribute.
func (b *backend) WriteChannelAttr(chn *iio.Channel, attr, value string) error {
	return b.WriteDeviceAttr(chn.Device(), 0, chn.AttrFilename(attr), value, iio.AttrTypeDevice)
}

// Trigger returns the device whose name matches the target device's
// trigger/current_trigger value, nil when the value is empty, and
// ENXIO when no context device matches.
func (b *backend) Trigger(dev *iio.Device) (*iio.Device, error) {
	value, err := b.ReadDeviceAttr(dev, 0, "trigger/current_trigger", iio.AttrTypeDevice)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}
	for _, cur := range b.ctx.Devices() {
		if cur.Name != "" && cur.Name == value {
			return cur, nil
		}
	}
	return nil, fmt.Errorf("trigger %q not found: %w", value, unix.ENXIO)
}

// SetTrigger binds trigger to dev; a nil trigger writes the empty
// string, which unbinds.
func (b *backend) SetTrigger(dev *iio.Device, trigger *iio.Device) error {
	value := ""
	if trigger != nil {
		value = trigger.Name
	}
	return b.WriteDeviceAttr(dev, 0, "trigger/current_trigger", value, iio.AttrTypeDevice)
}
