// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package iio

import "testing"

func TestSortChannels(t *testing.T) {
	dev := &Device{
		Channels: []*Channel{
			{ID: "temp", Index: NoIndex},
			{ID: "voltage2", Index: 2},
			{ID: "voltage0", Index: 0, Format: Format{Shift: 8}},
			{ID: "voltage1", Index: 0, Format: Format{Shift: 0}},
			{ID: "pressure", Index: NoIndex},
			{ID: "timestamp", Index: 3},
		},
	}
	dev.SortChannels()

	want := []string{"voltage1", "voltage0", "voltage2", "timestamp", "temp", "pressure"}
	for i, id := range want {
		if dev.Channels[i].ID != id {
			t.Fatalf("channel %d = %s, want %s", i, dev.Channels[i].ID, id)
		}
		if got := dev.Channels[i].Number(); got != uint(i) {
			t.Errorf("channel %s number = %d, want %d", id, got, i)
		}
	}
}

func TestSortChannelsStable(t *testing.T) {
	// Non-scan channels keep their insertion order relative to each
	// other.
	dev := &Device{
		Channels: []*Channel{
			{ID: "b", Index: NoIndex},
			{ID: "a", Index: NoIndex},
			{ID: "c", Index: NoIndex},
		},
	}
	dev.SortChannels()
	for i, id := range []string{"b", "a", "c"} {
		if dev.Channels[i].ID != id {
			t.Fatalf("channel %d = %s, want %s", i, dev.Channels[i].ID, id)
		}
	}
}

func TestSortDevices(t *testing.T) {
	ctx := &Context{}
	for _, id := range []string{"trigger0", "iio:device1", "iio:device0"} {
		ctx.AddDevice(&Device{ID: id, Channels: []*Channel{{ID: "voltage0"}}})
	}
	ctx.SortDevices()

	want := []string{"iio:device0", "iio:device1", "trigger0"}
	for i, id := range want {
		dev := ctx.Device(i)
		if dev.ID != id {
			t.Fatalf("device %d = %s, want %s", i, dev.ID, id)
		}
		if dev.Index() != i {
			t.Errorf("device %s index = %d, want %d", id, dev.Index(), i)
		}
		// Channel back-references must follow the renumbering.
		if got := dev.Channels[0].Device(); got != dev {
			t.Errorf("channel of %s resolves to %s", id, got.ID)
		}
	}
}

func TestMask(t *testing.T) {
	mask := NewMask(70)
	if mask.Any() {
		t.Error("fresh mask reports enabled channels")
	}
	mask.Set(0)
	mask.Set(69)
	if !mask.Test(0) || !mask.Test(69) {
		t.Error("set bits not readable back")
	}
	if mask.Test(1) {
		t.Error("unset bit reads as set")
	}
	if !mask.Any() {
		t.Error("mask with bits set reports empty")
	}
	mask.Clear(0)
	if mask.Test(0) {
		t.Error("cleared bit still set")
	}

	// Out-of-range accesses are ignored rather than panicking.
	mask.Set(70)
	if mask.Test(70) {
		t.Error("out-of-range set took effect")
	}
}
