// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

// Package iio holds the transport-independent device model for
// industrial I/O hardware: a Context owns a sorted arena of Devices,
// each Device owns its Channels, and every attribute is a named handle
// whose value is re-read from the backing store on each access.
//
// The model is populated once by a backend (see the local package) and
// is immutable in shape afterwards. Channels reference their owning
// device by index into the context arena rather than by pointer, so the
// whole graph can be traversed positionally; consumers rely on the
// ordering being identical across repeated discoveries of an unchanged
// device tree.
package iio
