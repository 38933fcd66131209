// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package render

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Surface is the overlay the GPU compositor draws on. The host creates it
// over the application's preview region; the compositor only configures,
// draws into and shows or hides it.
type Surface interface {
	// Size returns the configured size in device pixels.
	Size() (width, height uint32)

	// Format returns the texture format of acquired views.
	Format() gputypes.TextureFormat

	// Configure (re)creates the swapchain for the given size.
	Configure(width, height uint32) error

	// Acquire returns the view to draw the next frame into. It returns
	// ErrSurfaceLost or ErrSurfaceOutdated when the surface must be
	// reconfigured first.
	Acquire() (hal.TextureView, error)

	// Present shows the frame drawn into the last acquired view.
	Present() error

	// SetVisible shows or hides the overlay.
	SetVisible(visible bool)
}

// Positioner is implemented by surfaces that can be moved to follow the
// preview region. Coordinates are device pixels.
type Positioner interface {
	SetPosition(x, y int)
}

// TextureSurface is an offscreen Surface backed by a single hal texture.
// It is used for headless rendering and for reading frames back.
type TextureSurface struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat

	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32

	visible  bool
	presents int
	x, y     int
}

// NewTextureSurface creates an offscreen surface. Call Configure before the
// first Acquire.
func NewTextureSurface(device hal.Device, queue hal.Queue, format gputypes.TextureFormat) *TextureSurface {
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	return &TextureSurface{device: device, queue: queue, format: format}
}

// Size returns the configured size.
func (s *TextureSurface) Size() (uint32, uint32) { return s.width, s.height }

// Format returns the texture format.
func (s *TextureSurface) Format() gputypes.TextureFormat { return s.format }

// Configure recreates the backing texture when the size changes.
func (s *TextureSurface) Configure(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("render: configure surface %dx%d: empty size", width, height)
	}
	if s.tex != nil && s.width == width && s.height == height {
		return nil
	}
	s.release()

	tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "preview_surface",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        s.format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create surface texture: %w", err)
	}
	view, err := s.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "preview_surface_view",
		Format:        s.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		s.device.DestroyTexture(tex)
		return fmt.Errorf("create surface view: %w", err)
	}
	s.tex, s.view = tex, view
	s.width, s.height = width, height
	return nil
}

// Acquire returns the backing view.
func (s *TextureSurface) Acquire() (hal.TextureView, error) {
	if s.view == nil {
		return nil, ErrSurfaceOutdated
	}
	return s.view, nil
}

// Present counts the frame. Offscreen surfaces have nothing to flip.
func (s *TextureSurface) Present() error {
	s.presents++
	return nil
}

// SetVisible records the requested visibility.
func (s *TextureSurface) SetVisible(visible bool) { s.visible = visible }

// Visible reports the last visibility set by the compositor.
func (s *TextureSurface) Visible() bool { return s.visible }

// Presents returns the number of presented frames.
func (s *TextureSurface) Presents() int { return s.presents }

// SetPosition records the overlay position.
func (s *TextureSurface) SetPosition(x, y int) { s.x, s.y = x, y }

// Position returns the last position set by the compositor.
func (s *TextureSurface) Position() (int, int) { return s.x, s.y }

// ReadPixels copies the surface contents back to the CPU as RGBA.
func (s *TextureSurface) ReadPixels(caps Caps) (*image.RGBA, error) {
	if s.tex == nil {
		return nil, ErrSurfaceOutdated
	}
	w, h := s.width, s.height
	bytesPerRow := w * 4
	aligned := caps.AlignedRow(w)
	size := uint64(aligned) * uint64(h)

	staging, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "preview_surface_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer s.device.DestroyBuffer(staging)

	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "preview_readback"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("preview_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: s.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(s.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: aligned, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: s.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: s.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer s.device.FreeCommandBuffer(cmd)

	if err := submitAndWait(s.device, s.queue, cmd); err != nil {
		return nil, err
	}

	mapping, err := s.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	defer func() { _ = s.device.UnmapBuffer(staging) }()
	readback := unsafe.Slice((*byte)(mapping.Ptr), size)

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	bgra := s.format == gputypes.TextureFormatBGRA8Unorm || s.format == gputypes.TextureFormatBGRA8UnormSrgb
	for row := 0; row < int(h); row++ {
		src := readback[row*int(aligned) : row*int(aligned)+int(bytesPerRow)]
		dst := img.Pix[row*img.Stride : row*img.Stride+int(bytesPerRow)]
		copy(dst, src)
		if bgra {
			for i := 0; i < len(dst); i += 4 {
				dst[i], dst[i+2] = dst[i+2], dst[i]
			}
		}
	}
	return img, nil
}

// Destroy releases the backing texture.
func (s *TextureSurface) Destroy() { s.release() }

func (s *TextureSurface) release() {
	if s.view != nil {
		s.device.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.tex != nil {
		s.device.DestroyTexture(s.tex)
		s.tex = nil
	}
	s.width, s.height = 0, 0
}

// submitAndWait submits one command buffer and blocks until the GPU is done.
func submitAndWait(device hal.Device, queue hal.Queue, cmd hal.CommandBuffer) error {
	if _, err := queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	return nil
}

var (
	_ Surface    = (*TextureSurface)(nil)
	_ Positioner = (*TextureSurface)(nil)
)
