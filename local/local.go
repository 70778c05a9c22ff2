// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kimpaller/libiio/iio"
)

// URI is the transport's connection URI.
const URI = "local:"

// DefaultTimeout bounds blocking buffer operations when Options.Timeout
// is left zero.
const DefaultTimeout = time.Second

// Options configures context creation. The zero value targets the
// running kernel's trees.
type Options struct {
	// SysfsRoot is the device-directory tree, normally
	// /sys/bus/iio/devices.
	SysfsRoot string

	// DebugRoot is the debug-attribute mirror tree, normally
	// /sys/kernel/debug/iio.
	DebugRoot string

	// DevRoot is the directory holding the character-device data-path
	// nodes, normally /dev.
	DevRoot string

	// ConfigPath is the optional INI file whose "Context Attributes"
	// section is merged into the context. Absence is not an error.
	ConfigPath string

	// Timeout bounds every blocking buffer operation. Zero selects
	// DefaultTimeout; a negative value disables the timeout entirely.
	Timeout time.Duration

	// Logger receives warnings. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// backend implements iio.Backend over sysfs.
type backend struct {
	sysfsRoot  string
	debugRoot  string
	devRoot    string
	configPath string
	timeout    time.Duration
	logger     *slog.Logger

	ctx *iio.Context

	// enableFns maps each scan-element channel to the backing file of
	// its protected "en" attribute, relative to the device directory.
	enableFns map[*iio.Channel]string
}

func newBackend(opts Options) *backend {
	b := &backend{
		sysfsRoot:  opts.SysfsRoot,
		debugRoot:  opts.DebugRoot,
		devRoot:    opts.DevRoot,
		configPath: opts.ConfigPath,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
		enableFns:  make(map[*iio.Channel]string),
	}
	if b.sysfsRoot == "" {
		b.sysfsRoot = "/sys/bus/iio/devices"
	}
	if b.debugRoot == "" {
		b.debugRoot = "/sys/kernel/debug/iio"
	}
	if b.devRoot == "" {
		b.devRoot = "/dev"
	}
	if b.configPath == "" {
		b.configPath = "/etc/libiio.ini"
	}
	switch {
	case b.timeout == 0:
		b.timeout = DefaultTimeout
	case b.timeout < 0:
		b.timeout = 0 // block forever
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

func (b *backend) Name() string { return "local" }
func (b *backend) URI() string  { return URI }

// CreateContext discovers every device under the sysfs root and returns
// a fully populated, sorted context. A device directory that fails to
// parse is skipped with a warning; it does not abort its siblings.
func CreateContext(opts Options) (*iio.Context, error) {
	b := newBackend(opts)

	ctx := iio.NewContext(b, localDescription())
	b.ctx = ctx

	entries, err := os.ReadDir(b.sysfsRoot)
	if err != nil {
		return nil, fmt.Errorf("reading device tree %s: %w", b.sysfsRoot, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(b.sysfsRoot, name)
		// Device entries are symlinks in the real tree; stat follows
		// them.
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		dev, err := b.createDevice(path)
		if err != nil {
			b.logger.Warn("skipping device", "id", name, "error", err)
			continue
		}
		ctx.AddDevice(dev)
	}

	ctx.SortDevices()
	b.addDebugAttrs(ctx)
	b.initScanElements(ctx)

	if err := b.populateContextAttrs(ctx); err != nil {
		b.logger.Warn("unable to read context-attributes file",
			"path", b.configPath, "error", err)
	}

	ctx.AddAttr("local,kernel", kernelRelease())
	ctx.AddAttr("uri", URI)

	return ctx, nil
}

// addDebugAttrs attaches the debug-attribute mirror tree. The tree is
// optional and every failure in it is non-fatal.
func (b *backend) addDebugAttrs(ctx *iio.Context) {
	entries, err := os.ReadDir(b.debugRoot)
	if err != nil {
		return
	}
	for _, entry := range entries {
		dev := ctx.FindDevice(entry.Name())
		if dev == nil {
			continue
		}
		files, err := os.ReadDir(filepath.Join(b.debugRoot, entry.Name()))
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			dev.DebugAttrs = append(dev.DebugAttrs, file.Name())
		}
		sort.Strings(dev.DebugAttrs)
	}
}

// initScanElements records the scale factor of every channel that
// exposes a parseable numeric scale attribute.
func (b *backend) initScanElements(ctx *iio.Context) {
	for _, dev := range ctx.Devices() {
		for _, chn := range dev.Channels {
			b.initDataScale(chn)
		}
	}
}

// localDescription returns the uname-derived context description.
func localDescription() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return strings.Join([]string{
		utsString(uts.Sysname),
		utsString(uts.Nodename),
		utsString(uts.Release),
		utsString(uts.Version),
		utsString(uts.Machine),
	}, " ")
}

// kernelRelease returns the running kernel release string from uname(2).
func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return utsString(uts.Release)
}

// utsString converts a fixed-size utsname field to a Go string,
// stopping at the first null byte.
func utsString(field [65]byte) string {
	for i, value := range field {
		if value == 0 {
			return string(field[:i])
		}
	}
	return string(field[:])
}
