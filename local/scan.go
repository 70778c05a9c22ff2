// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"os"
	"path/filepath"
	"strings"
)

// ScanResult advertises one creatable context.
type ScanResult struct {
	URI         string
	Description string
}

// Scan reports whether the host has a local context worth creating: one
// result when the device tree is populated, none otherwise. The
// description lists the device names and the machine identity so a
// front-end can present the context before creating it. Scan never
// fails; an unreadable tree simply yields no results.
func Scan(opts Options) []ScanResult {
	b := newBackend(opts)

	entries, err := os.ReadDir(b.sysfsRoot)
	if err != nil {
		return nil
	}
	var names []string
	found := false
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		found = true
		if !strings.Contains(entry.Name(), "iio:device") {
			continue
		}
		name := readIdentityFile(filepath.Join(b.sysfsRoot, entry.Name(), "name"))
		if name != "" {
			names = append(names, name)
		}
	}
	if !found {
		return nil
	}
	return []ScanResult{{URI: URI, Description: scanDescription(names, machineName())}}
}

// scanDescription formats the advertised context description. Without
// a machine identity the device names are withheld as well.
func scanDescription(names []string, machine string) string {
	switch {
	case machine == "":
		return "(Local IIO devices)"
	case len(names) == 0:
		return "(Local IIO devices on " + machine + ")"
	default:
		return "(" + strings.Join(names, ",") + " on " + machine + ")"
	}
}

// machineName returns the host's hardware identity: the devicetree
// model where one exists, the DMI board vendor otherwise.
func machineName() string {
	if name := readIdentityFile("/sys/firmware/devicetree/base/model"); name != "" {
		return name
	}
	return readIdentityFile("/sys/class/dmi/id/board_vendor")
}

// readIdentityFile reads a one-line identity file, trimming the
// terminator byte. Missing or empty files yield "".
func readIdentityFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if n := len(data); n > 0 && (data[n-1] == '\n' || data[n-1] == 0) {
		data = data[:n-1]
	}
	return string(data)
}
