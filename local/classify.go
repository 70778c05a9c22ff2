// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"strings"

	"github.com/kimpaller/libiio/iio"
)

// channelModifiers are the suffix tokens the kernel appends to a
// channel id to distinguish axes, orientations, spectral bands and the
// like. A modifier only counts when followed by an underscore or the
// end of the name; longer variants are listed before their prefixes so
// the match consumes the whole token.
var channelModifiers = []string{
	"x&y&z",
	"x&y", "x&z", "y&z",
	"x|y|z",
	"x|y", "x|z", "y|z",
	"x", "y", "z",
	"sqrt(x^2+y^2+z^2)",
	"sqrt(x^2+y^2)",
	"x^2+y^2+z^2",
	"both", "ir", "clear", "red", "green", "blue", "uv", "duv",
	"quaternion",
	"ambient", "object",
	"from_north_magnetic_tilt_comp",
	"from_north_true_tilt_comp",
	"from_north_magnetic",
	"from_north_true",
	"running", "jogging", "walking", "still",
	"i", "q",
	"co2", "voc",
	"pm1", "pm2p5", "pm4", "pm10",
	"ethanol", "h2", "o2",
}

// findModifier reports whether s starts with a channel-modifier token
// terminated by an underscore or the end of the string, and the token
// length.
func findModifier(s string) (int, bool) {
	for _, modifier := range channelModifiers {
		if !strings.HasPrefix(s, modifier) {
			continue
		}
		rest := s[len(modifier):]
		if rest == "" || rest[0] == '_' {
			return len(modifier), true
		}
	}
	return 0, false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func endsWithDigit(s string) bool {
	return s != "" && isDigit(s[len(s)-1])
}

// isChannelAttr reports whether a device-directory file name is
// channel-scoped: an in_/out_ prefix with a later underscore, or the
// in_timestamp_ family. Strict mode additionally requires the token
// right before that underscore to end in a digit or be a recognized
// channel modifier; it is used when the name alone must justify
// creating a channel, so device-wide attributes that merely contain an
// underscore are not misclassified.
func isChannelAttr(attr string, strict bool) bool {
	if strings.HasPrefix(attr, "in_timestamp_") {
		return true
	}
	var rest string
	switch {
	case strings.HasPrefix(attr, "in_"):
		rest = attr[3:]
	case strings.HasPrefix(attr, "out_"):
		rest = attr[4:]
	default:
		return false
	}
	i := strings.IndexByte(rest, '_')
	if i < 0 {
		return false
	}
	if !strict {
		return true
	}
	if i > 0 && isDigit(rest[i-1]) {
		return true
	}
	_, ok := findModifier(rest[i+1:])
	return ok
}

// channelIDOf derives the channel grouping key from an attribute name:
// the token after the direction prefix, extended over a modifier token
// when one follows. "in_voltage0_raw" maps to "voltage0",
// "in_accel_x_raw" to "accel_x".
func channelIDOf(attr string) string {
	i := strings.IndexByte(attr, '_')
	if i < 0 {
		return attr
	}
	rest := attr[i+1:]
	j := strings.IndexByte(rest, '_')
	if j < 0 {
		return rest
	}
	if length, ok := findModifier(rest[j+1:]); ok {
		j += length + 1
	}
	return rest[:j]
}

// shortAttrName strips the direction prefix, channel id, modifier
// token, and (once folding has run) the channel's display name from
// an attribute name, leaving the local name stored on the channel.
func shortAttrName(chn *iio.Channel, attr string) string {
	i := strings.IndexByte(attr, '_')
	if i < 0 {
		return attr
	}
	rest := attr[i+1:]
	j := strings.IndexByte(rest, '_')
	if j < 0 {
		return rest
	}
	rest = rest[j+1:]
	if length, ok := findModifier(rest); ok && len(rest) > length {
		rest = rest[length+1:]
	}
	if chn.Name != "" && strings.HasPrefix(rest, chn.Name) &&
		len(rest) > len(chn.Name) && rest[len(chn.Name)] == '_' {
		rest = rest[len(chn.Name)+1:]
	}
	return rest
}

// globalMatch classifies a device-level attribute against one channel.
type globalMatch int

const (
	// globalNone: the attribute does not belong to the channel.
	globalNone globalMatch = iota

	// globalShared: the attribute belongs to the channel and to every
	// sibling that matches it, e.g. "in_voltage_scale" across all
	// voltage channels.
	globalShared

	// globalPrivate: the attribute names the channel's folded display
	// name and belongs to this channel only.
	globalPrivate
)

// globalAttrMatch decides whether a device-level attribute is really a
// channel attribute of chn, and at which level. Private matches must
// be resolved before shared ones: a calibration attribute carrying a
// channel's folded name would otherwise be absorbed by every sibling.
func globalAttrMatch(chn *iio.Channel, attr string) globalMatch {
	switch {
	case !chn.IsOutput && strings.HasPrefix(attr, "in_"):
		attr = attr[3:]
	case chn.IsOutput && strings.HasPrefix(attr, "out_"):
		attr = attr[4:]
	default:
		return globalNone
	}
	end := strings.IndexByte(attr, '_')
	if end < 0 {
		return globalNone
	}
	base := attr[:end]

	// Differential pairs. "voltage0-voltage1_raw" belongs to both
	// member channels; "voltage-voltage_scale" is shared by every
	// numbered differential channel such as "voltage2-voltage3".
	if dash := strings.IndexByte(base, '-'); dash > 0 && dash < len(base)-1 {
		first, second := base[:dash], base[dash+1:]
		if endsWithDigit(first) && endsWithDigit(second) &&
			(chn.ID == first || chn.ID == second) {
			return globalShared
		}
		if idDash := strings.IndexByte(chn.ID, '-'); idDash > dash &&
			len(chn.ID)-idDash-1 > len(second) &&
			isDigit(chn.ID[dash]) &&
			strings.HasPrefix(chn.ID, first) &&
			isDigit(chn.ID[idDash+1+len(second)]) &&
			strings.HasPrefix(chn.ID[idDash+1:], second) {
			return globalShared
		}
	}

	if len(chn.ID) <= end || chn.ID[:end] != base {
		return globalNone
	}
	if isDigit(chn.ID[end]) {
		if chn.Name != "" {
			rest := attr[end+1:]
			if strings.HasPrefix(rest, chn.Name) &&
				len(rest) > len(chn.Name) && rest[len(chn.Name)] == '_' {
				return globalPrivate
			}
		}
		return globalShared
	}
	if chn.ID[end] != '_' {
		return globalNone
	}
	if _, ok := findModifier(chn.ID[end+1:]); ok {
		return globalShared
	}
	return globalNone
}

// foldChannelName computes the longest underscore-terminated prefix
// common to all of the channel's attribute names (protected
// scan-element attributes included), makes its final token the
// channel's display name, and strips the prefix from every stored
// name. Channels with fewer than two attributes keep their bare id.
func foldChannelName(chn *iio.Channel, protected []iio.ChannelAttr) {
	total := len(chn.Attrs) + len(protected)
	if total < 2 {
		return
	}

	var ref string
	if len(chn.Attrs) > 0 {
		ref = chn.Attrs[0].Name
	} else {
		ref = protected[0].Name
	}

	sharesPrefix := func(name string, length int) bool {
		return len(name) >= length && name[:length] == ref[:length]
	}

	prefixLen := 0
	for pos := 0; ; {
		next := strings.IndexByte(ref[pos:], '_')
		if next < 0 {
			break
		}
		length := pos + next + 1
		common := true
		for i := 1; common && i < len(chn.Attrs); i++ {
			common = sharesPrefix(chn.Attrs[i].Name, length)
		}
		start := 0
		if len(chn.Attrs) == 0 {
			start = 1
		}
		for i := start; common && i < len(protected); i++ {
			common = sharesPrefix(protected[i].Name, length)
		}
		if !common {
			break
		}
		prefixLen = length
		pos = length
	}

	if prefixLen == 0 {
		return
	}

	prefix := ref[:prefixLen-1]
	chn.Name = prefix[strings.LastIndexByte(prefix, '_')+1:]
	for i := range chn.Attrs {
		chn.Attrs[i].Name = chn.Attrs[i].Name[prefixLen:]
	}
	for i := range protected {
		protected[i].Name = protected[i].Name[prefixLen:]
	}
}
