// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"strconv"
	"strings"

	"github.com/kimpaller/libiio/iio"
)

// parseScanFormat parses a scan-element type description of the form
//
//	<endian>e:<sign><bits>/<length>[X<repeat>]>><shift>
//
// e.g. "le:s12/16>>4" or "be:U16/16X4>>0". The parse is best-effort:
// fields are committed in order as they are recognized, and malformed
// input leaves the remaining fields at their prior values. Upper-case
// sign characters declare the sample fully defined (no padding bits to
// mask), as does bits == length.
func parseScanFormat(value string, format *iio.Format) {
	s := value
	if len(s) == 0 {
		return
	}
	endian := s[0]
	s = s[1:]
	if !strings.HasPrefix(s, "e:") {
		return
	}
	s = s[2:]
	format.IsBE = endian == 'b'

	if len(s) == 0 {
		return
	}
	sign := s[0]
	switch sign {
	case 's', 'S', 'u', 'U':
	default:
		return
	}
	s = s[1:]
	format.IsSigned = sign == 's' || sign == 'S'
	defer func() {
		format.IsFullyDefined = sign == 'S' || sign == 'U' ||
			format.Bits == format.Length
	}()

	bits, s, ok := scanUint(s)
	if !ok {
		return
	}
	format.Bits = bits

	if !strings.HasPrefix(s, "/") {
		return
	}
	length, s, ok := scanUint(s[1:])
	if !ok {
		return
	}
	format.Length = length

	if strings.HasPrefix(s, "X") {
		repeat, rest, ok := scanUint(s[1:])
		if !ok {
			return
		}
		format.Repeat = repeat
		s = rest
	} else {
		format.Repeat = 1
	}

	if !strings.HasPrefix(s, ">>") {
		return
	}
	shift, _, ok := scanUint(s[2:])
	if !ok {
		return
	}
	format.Shift = shift
}

// scanUint consumes a leading decimal integer and returns it with the
// remainder of the string.
func scanUint(s string) (uint, string, bool) {
	end := 0
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	if end == 0 {
		return 0, s, false
	}
	value, err := strconv.ParseUint(s[:end], 10, 32)
	if err != nil {
		return 0, s, false
	}
	return uint(value), s[end:], true
}

// initDataScale probes the channel's scale attribute and records it in
// the format. The lookup goes through the channel's attribute table so
// a folded display name still resolves to the right backing file. A
// missing attribute or an unparseable value leaves WithScale false.
func (b *backend) initDataScale(chn *iio.Channel) {
	chn.Format.WithScale = false
	filename := chn.AttrFilename("scale")

	value, err := b.ReadDeviceAttr(chn.Device(), 0, filename, iio.AttrTypeDevice)
	if err != nil {
		return
	}
	scale, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return
	}
	chn.Format.WithScale = true
	chn.Format.Scale = scale
}
