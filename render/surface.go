// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"errors"
	"math"
)

// Surface acquisition errors. A Surface returns them (possibly wrapped)
// from Acquire when the swapchain must be reconfigured before drawing.
var (
	ErrSurfaceLost     = errors.New("render: surface lost")
	ErrSurfaceOutdated = errors.New("render: surface outdated")
)

// ErrNoDevice is returned when a compositor is created without a usable
// GPU device or queue.
var ErrNoDevice = errors.New("render: no GPU device")

// minDPR is the floor applied to device pixel ratios.
const minDPR = 0.01

// Bounds is the preview region in logical (device independent) pixels
// together with the display's device pixel ratio.
type Bounds struct {
	X, Y          float64
	Width, Height float64
	DPR           float64
}

// Physical converts the bounds to device pixels. Sizes are rounded and at
// least 1. A DPR below 0.01 is raised to 0.01.
func (b Bounds) Physical() (x, y int, w, h uint32) {
	dpr := b.DPR
	switch {
	case math.IsNaN(dpr):
		dpr = 1
	case dpr < minDPR:
		dpr = minDPR
	}
	x = int(math.Round(b.X * dpr))
	y = int(math.Round(b.Y * dpr))
	w = uint32(max(1, math.Round(b.Width*dpr)))
	h = uint32(max(1, math.Round(b.Height*dpr)))
	return x, y, w, h
}
