// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render composites preview layers onto a canvas.
//
// Two back ends consume the same placement data produced by the
// placement package:
//
//   - SoftwareCompositor: rasterizes layers into an *image.RGBA on the CPU.
//     Used when no GPU surface is available and for encoded still frames.
//   - GPUCompositor: uploads each layer as a texture and draws it through a
//     small transform/opacity shader onto an overlay Surface.
//
// # Key Principle
//
// The compositor RECEIVES a GPU device from the host application, it does
// NOT create one. A DeviceHandle (gpucontext.DeviceProvider) or a raw
// hal.Device/hal.Queue pair is injected together with the Surface the
// preview is drawn on.
//
// # Usage
//
// Software path:
//
//	sc := render.NewSoftwareCompositor()
//	canvas := sc.Render(960, 540, layers, previewScale)
//
// GPU path:
//
//	gc, err := render.NewGPUCompositor(device, queue, surface)
//	if err != nil {
//	    // fall back to the software path
//	}
//	gc.ApplyBounds(render.Bounds{Width: 640, Height: 360, DPR: 2})
//	if gc.Upload(stack) {
//	    _ = gc.Render()
//	}
//
// # Thread Safety
//
// Compositors are NOT thread-safe. Upload and Render run on the thread that
// owns the render call. The plate cache is the only shared structure and is
// guarded internally.
package render
