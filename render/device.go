// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// DeviceHandle provides GPU device access from the host application.
//
// The host (for example a gogpu.App) owns the device and passes it to the
// preview. The preview never creates a device of its own.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider, providing a
// preview-specific name for the interface while maintaining full
// compatibility with the gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

// Caps are the device capabilities the GPU compositor depends on.
type Caps struct {
	// RowAlignment is the byte alignment required for each texture row in
	// an upload. Rows are padded up to a multiple of it.
	RowAlignment uint32

	// MaxTextureDimension is the largest texture width or height the device
	// accepts. Surfaces above it are not drawn.
	MaxTextureDimension uint32
}

// DefaultCaps returns the capabilities guaranteed by the WebGPU default
// limits. Compositors created from an adapter or a device provider use
// the values the device reports instead.
func DefaultCaps() Caps {
	return Caps{
		RowAlignment:        256,
		MaxTextureDimension: gputypes.DefaultLimits().MaxTextureDimension2D,
	}
}

// normalized fills zero fields from DefaultCaps and rounds the row
// alignment up to a power of two.
func (c Caps) normalized() Caps {
	d := DefaultCaps()
	if c.RowAlignment == 0 {
		c.RowAlignment = d.RowAlignment
	}
	if c.MaxTextureDimension == 0 {
		c.MaxTextureDimension = d.MaxTextureDimension
	}
	a := uint32(1)
	for a < c.RowAlignment {
		a <<= 1
	}
	c.RowAlignment = a
	return c
}

// AlignedRow returns the padded byte length of a row of width RGBA pixels.
func (c Caps) AlignedRow(width uint32) uint32 {
	c = c.normalized()
	bpr := width * 4
	return (bpr + c.RowAlignment - 1) &^ (c.RowAlignment - 1)
}

// NullDeviceHandle is a DeviceHandle that provides nil implementations.
// Used for CPU-only previews where no GPU is available.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// AdapterInfo reports an unknown adapter for the null device.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "none", Type: gpucontext.AdapterTypeUnknown}
}

// Ensure NullDeviceHandle implements DeviceHandle.
var _ DeviceHandle = NullDeviceHandle{}
