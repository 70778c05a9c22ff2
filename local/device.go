// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kimpaller/libiio/iio"
)

// deviceAttrsDenylist names device-directory files that are kernel
// plumbing, never attributes.
var deviceAttrsDenylist = []string{"dev", "uevent"}

// bufferAttrsReserved names the buffer-control files driven by the
// buffer lifecycle rather than exposed as attributes.
var bufferAttrsReserved = []string{"length", "enable", "watermark"}

// channelState is builder-private channel data: the protected
// scan-element attributes (index, type, en) that are consumed during
// construction instead of being exposed.
type channelState struct {
	protected []iio.ChannelAttr
	enableFn  string
}

// deviceBuilder accumulates one device during discovery.
type deviceBuilder struct {
	dev   *iio.Device
	path  string
	state map[*iio.Channel]*channelState
}

func (bld *deviceBuilder) channelState(chn *iio.Channel) *channelState {
	st := bld.state[chn]
	if st == nil {
		st = &channelState{}
		bld.state[chn] = st
	}
	return st
}

// createDevice builds one device from its sysfs directory. Any error
// discards the whole device; the caller decides whether that aborts
// the surrounding scan.
func (b *backend) createDevice(path string) (*iio.Device, error) {
	bld := &deviceBuilder{
		dev:   &iio.Device{ID: filepath.Base(path)},
		path:  path,
		state: make(map[*iio.Channel]*channelState),
	}

	if err := b.walkFiles(path, func(name string) error {
		return b.addAttrOrChannel(bld, name, false)
	}); err != nil {
		return nil, err
	}
	if err := b.addBufferAttrs(bld); err != nil {
		return nil, err
	}
	if err := b.addScanElements(bld); err != nil {
		return nil, err
	}

	for _, chn := range bld.dev.Channels {
		st := bld.channelState(chn)
		foldChannelName(chn, st.protected)
		if err := b.handleScanElements(bld, chn, st); err != nil {
			return nil, err
		}
	}

	if err := b.detectGlobalAttrs(bld); err != nil {
		return nil, err
	}

	// Sorting runs last so attributes moved by global detection land
	// in their final positions. Repeated discovery of an unchanged
	// tree must produce identical ordering.
	for _, chn := range bld.dev.Channels {
		sort.Slice(chn.Attrs, func(i, j int) bool {
			return chn.Attrs[i].Name < chn.Attrs[j].Name
		})
	}
	sort.Strings(bld.dev.Attrs)
	sort.Strings(bld.dev.BufferAttrs)
	bld.dev.SortChannels()

	for chn, st := range bld.state {
		if st.enableFn != "" {
			b.enableFns[chn] = st.enableFn
		}
	}

	return bld.dev, nil
}

// walkFiles invokes fn for every regular file in dir, following the
// directory symlinks sysfs uses for device entries.
func (b *backend) walkFiles(dir string, fn func(name string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if err := fn(entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

// addAttrOrChannel classifies one device-directory file. Files from
// the scan_elements subdirectory are always channel-scoped; top-level
// files become channels only when the strict name test justifies it.
func (b *backend) addAttrOrChannel(bld *deviceBuilder, name string, scanElements bool) error {
	if scanElements {
		return b.addChannel(bld, name, "scan_elements/"+name, true)
	}
	if !isChannelAttr(name, true) {
		return b.addDeviceAttr(bld, name)
	}
	return b.addChannel(bld, name, name, false)
}

// addDeviceAttr records a device-level attribute name. The name and
// label files are special: their value is read immediately and stored
// as the device identity, and a failure there discards the device.
func (b *backend) addDeviceAttr(bld *deviceBuilder, name string) error {
	for _, reserved := range deviceAttrsDenylist {
		if name == reserved {
			return nil
		}
	}
	switch name {
	case "name":
		value, err := b.ReadDeviceAttr(bld.dev, 0, "name", iio.AttrTypeDevice)
		if err != nil {
			return err
		}
		bld.dev.Name = value
		return nil
	case "label":
		value, err := b.ReadDeviceAttr(bld.dev, 0, "label", iio.AttrTypeDevice)
		if err != nil {
			return err
		}
		bld.dev.Label = value
		return nil
	}
	bld.dev.Attrs = append(bld.dev.Attrs, name)
	return nil
}

// addChannel attaches an attribute to the channel its name designates,
// creating the channel on first sight. Input and output channels with
// the same id are distinct.
func (b *backend) addChannel(bld *deviceBuilder, name, path string, scanElements bool) error {
	id := channelIDOf(name)
	isOutput := strings.HasPrefix(name, "out_")

	for _, chn := range bld.dev.Channels {
		if chn.ID == id && chn.IsOutput == isOutput {
			if err := b.addAttrToChannel(bld, chn, name, path, scanElements); err != nil {
				return err
			}
			chn.IsScanElement = chn.IsScanElement || scanElements
			return nil
		}
	}

	if !isOutput && !strings.HasPrefix(name, "in_") {
		return fmt.Errorf("attribute %q has no direction prefix: %w", name, iio.ErrInvalid)
	}
	chn := &iio.Channel{
		ID:            id,
		IsOutput:      isOutput,
		IsScanElement: scanElements,
		Index:         iio.NoIndex,
		Format:        iio.Format{Repeat: 1},
	}
	if err := b.addAttrToChannel(bld, chn, name, path, scanElements); err != nil {
		return err
	}
	bld.dev.Channels = append(bld.dev.Channels, chn)
	return nil
}

// addAttrToChannel stores one attribute under its short name. Scan
// element attributes are protected: they configure the channel during
// construction and are not exposed.
func (b *backend) addAttrToChannel(bld *deviceBuilder, chn *iio.Channel, name, path string, scanElements bool) error {
	attr := iio.ChannelAttr{Name: shortAttrName(chn, name), Filename: path}
	if scanElements {
		st := bld.channelState(chn)
		st.protected = append(st.protected, attr)
		return nil
	}
	chn.Attrs = append(chn.Attrs, attr)
	return nil
}

// addBufferAttrs records the buffer subdirectory's attribute names,
// excluding the reserved control files. The subdirectory is optional.
func (b *backend) addBufferAttrs(bld *deviceBuilder) error {
	dir := filepath.Join(bld.path, "buffer")
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	return b.walkFiles(dir, func(name string) error {
		for _, reserved := range bufferAttrsReserved {
			if name == reserved {
				return nil
			}
		}
		bld.dev.BufferAttrs = append(bld.dev.BufferAttrs, name)
		return nil
	})
}

// addScanElements walks the optional scan_elements subdirectory.
func (b *backend) addScanElements(bld *deviceBuilder) error {
	dir := filepath.Join(bld.path, "scan_elements")
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	return b.walkFiles(dir, func(name string) error {
		return b.addAttrOrChannel(bld, name, true)
	})
}

// handleScanElements consumes the channel's protected attributes:
// index fixes the channel's position in the sample layout, type feeds
// the format parser, and en names the enable file used by the buffer
// lifecycle. Read failures leave the field at its default; a malformed
// index value or a duplicated en attribute discards the device.
func (b *backend) handleScanElements(bld *deviceBuilder, chn *iio.Channel, st *channelState) error {
	for _, attr := range st.protected {
		switch attr.Name {
		case "index":
			value, err := b.ReadDeviceAttr(bld.dev, 0, attr.Filename, iio.AttrTypeDevice)
			if err != nil {
				continue
			}
			index, err := strconv.ParseInt(strings.TrimSpace(value), 0, 64)
			if err != nil || index < 0 {
				return fmt.Errorf("channel %s: bad scan index %q: %w",
					chn.ID, value, iio.ErrInvalid)
			}
			chn.Index = index
		case "type":
			value, err := b.ReadDeviceAttr(bld.dev, 0, attr.Filename, iio.AttrTypeDevice)
			if err != nil {
				continue
			}
			parseScanFormat(value, &chn.Format)
		case "en":
			if st.enableFn != "" {
				return fmt.Errorf("channel %s: duplicate en attribute: %w",
					chn.ID, iio.ErrInvalid)
			}
			st.enableFn = attr.Filename
		default:
			return fmt.Errorf("channel %s: unexpected scan element attribute %q: %w",
				chn.ID, attr.Name, iio.ErrInvalid)
		}
	}
	return nil
}

// detectGlobalAttrs re-classifies leftover device-level attributes as
// channel members. Private matches are resolved before shared ones,
// then whatever remains is given one last chance to become a bare
// channel of its own; the order is load-bearing and must not change.
func (b *backend) detectGlobalAttrs(bld *deviceBuilder) error {
	dev := bld.dev
	removed := make([]bool, len(dev.Attrs))

	for i, attr := range dev.Attrs {
		match, err := b.attachGlobalAttr(bld, attr, globalPrivate)
		if err != nil {
			return err
		}
		if !match {
			match, err = b.attachGlobalAttr(bld, attr, globalShared)
			if err != nil {
				return err
			}
		}
		removed[i] = match
	}

	for i, attr := range dev.Attrs {
		if removed[i] {
			continue
		}
		if isChannelAttr(attr, false) {
			if err := b.addChannel(bld, attr, attr, false); err != nil {
				return err
			}
			removed[i] = true
		}
	}

	kept := dev.Attrs[:0]
	for i, attr := range dev.Attrs {
		if !removed[i] {
			kept = append(kept, attr)
		}
	}
	dev.Attrs = kept
	return nil
}

// attachGlobalAttr adds attr to every channel matching it at exactly
// the given level, reporting whether any matched.
func (b *backend) attachGlobalAttr(bld *deviceBuilder, attr string, level globalMatch) (bool, error) {
	match := false
	for _, chn := range bld.dev.Channels {
		if globalAttrMatch(chn, attr) != level {
			continue
		}
		match = true
		if err := b.addAttrToChannel(bld, chn, attr, attr, false); err != nil {
			return false, err
		}
	}
	return match, nil
}
