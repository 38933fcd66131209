// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/preview/placement"
)

const (
	quadVertexStride  = 16 // pos.xy, uv.xy as float32
	quadVertexCount   = 6
	layerUniformSize  = 32 // scale.xy, center.xy, cos, sin, opacity, aspect
	borderUniformSize = 80 // 4 rects + color
)

// GPUOption configures a GPUCompositor during creation.
type GPUOption func(*gpuOptions)

type gpuOptions struct {
	caps   Caps
	format gputypes.TextureFormat
}

// WithCaps overrides the device capabilities used for row alignment and
// the surface size limit.
func WithCaps(c Caps) GPUOption {
	return func(o *gpuOptions) {
		o.caps = c
	}
}

// WithTargetFormat overrides the render target format. By default the
// surface format is used.
func WithTargetFormat(f gputypes.TextureFormat) GPUOption {
	return func(o *gpuOptions) {
		o.format = f
	}
}

// gpuLayer holds the GPU resources of one layer slot. Slots are reused
// across frames; the texture is only recreated when the frame size changes.
type gpuLayer struct {
	tex     hal.Texture
	view    hal.TextureView
	texBind hal.BindGroup
	width   uint32
	height  uint32

	uniform     hal.Buffer
	uniformBind hal.BindGroup

	placement placement.Placement
}

// GPUStats counts GPU compositor work.
type GPUStats struct {
	Frames         uint64
	Uploads        uint64
	TextureCreates uint64
	BytesUploaded  uint64
	Reconfigures   uint64
}

// GPUCompositor draws layer stacks onto an overlay Surface.
//
// Each layer's raster is uploaded as an RGBA texture and drawn as a quad
// whose scale, center, rotation and opacity come from a per-layer uniform.
// Layer drawing is scissored to the canvas, and a one device pixel border
// is drawn around it as four thin quads in surface space.
type GPUCompositor struct {
	device  hal.Device
	queue   hal.Queue
	surface Surface
	caps    Caps
	format  gputypes.TextureFormat

	// Layer texture format and overlay colors, matched to the target so
	// the output bytes equal the software compositor's.
	texFormat   gputypes.TextureFormat
	clearColor  gputypes.Color
	borderColor [4]float32

	layerShader      hal.ShaderModule
	borderShader     hal.ShaderModule
	textureLayout    hal.BindGroupLayout
	uniformLayout    hal.BindGroupLayout
	borderLayout     hal.BindGroupLayout
	layerPipeLayout  hal.PipelineLayout
	borderPipeLayout hal.PipelineLayout
	layerPipeline    hal.RenderPipeline
	borderPipeline   hal.RenderPipeline
	sampler          hal.Sampler
	quad             hal.Buffer
	borderUniform    hal.Buffer
	borderBind       hal.BindGroup

	slots   []*gpuLayer
	active  int
	canvasW int
	canvasH int
	scratch []byte

	visible   bool
	overLimit bool
	stats     GPUStats
}

// NewGPUCompositor creates a compositor drawing onto surface with the
// given device and queue.
func NewGPUCompositor(device hal.Device, queue hal.Queue, surface Surface, opts ...GPUOption) (*GPUCompositor, error) {
	if device == nil || queue == nil {
		return nil, ErrNoDevice
	}
	if surface == nil {
		return nil, errors.New("render: nil surface")
	}

	o := gpuOptions{caps: DefaultCaps(), format: surface.Format()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.format == gputypes.TextureFormatUndefined {
		o.format = gputypes.TextureFormatBGRA8Unorm
	}

	border := targetColor(BorderColor, o.format)
	c := &GPUCompositor{
		device:      device,
		queue:       queue,
		surface:     surface,
		caps:        o.caps.normalized(),
		format:      o.format,
		texFormat:   layerTextureFormat(o.format),
		clearColor:  targetColor(SurroundColor, o.format),
		borderColor: [4]float32{float32(border.R), float32(border.G), float32(border.B), float32(border.A)},
	}
	if err := c.init(); err != nil {
		c.Destroy()
		return nil, err
	}
	slogger().Info("render: GPU compositor ready", "format", c.format, "rowAlignment", c.caps.RowAlignment,
		"maxTexture", c.caps.MaxTextureDimension)
	return c, nil
}

// halAccess is implemented by devices that expose their hal device and
// queue, such as *wgpu.Device.
type halAccess interface {
	HalDevice() hal.Device
	HalQueue() hal.Queue
}

// limitsReporter is implemented by devices that report their limits, such
// as *wgpu.Device.
type limitsReporter interface {
	Limits() gputypes.Limits
}

// NewGPUCompositorFromProvider creates a compositor from a host device
// provider. The provider's device (or the provider itself) must expose
// the hal device and queue through HalDevice and HalQueue. When the device
// reports its limits, the texture size limit is taken from them.
func NewGPUCompositorFromProvider(provider DeviceHandle, surface Surface, opts ...GPUOption) (*GPUCompositor, error) {
	if provider == nil {
		return nil, ErrNoDevice
	}
	dev := provider.Device()
	ha, ok := dev.(halAccess)
	if !ok {
		ha, ok = provider.(halAccess)
	}
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose a hal device", ErrNoDevice)
	}
	device, queue := ha.HalDevice(), ha.HalQueue()
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: provider has no hal device or queue", ErrNoDevice)
	}

	var derived []GPUOption
	if lr, ok := dev.(limitsReporter); ok {
		derived = append(derived, WithCaps(Caps{MaxTextureDimension: lr.Limits().MaxTextureDimension2D}))
	}
	if surface != nil && surface.Format() == gputypes.TextureFormatUndefined {
		if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			derived = append(derived, WithTargetFormat(f))
		}
	}
	return NewGPUCompositor(device, queue, surface, append(derived, opts...)...)
}

// CapsFromAdapter returns the capabilities an enumerated adapter reports:
// its buffer copy pitch alignment and its 2D texture limit.
func CapsFromAdapter(a hal.ExposedAdapter) Caps {
	return Caps{
		RowAlignment:        uint32(a.Capabilities.AlignmentsMask.BufferCopyPitch),
		MaxTextureDimension: a.Capabilities.Limits.MaxTextureDimension2D,
	}.normalized()
}

func (c *GPUCompositor) init() error {
	var err error
	if c.layerShader, err = createShader(c.device, "preview_layer_shader", layerShaderSource); err != nil {
		return err
	}
	if c.borderShader, err = createShader(c.device, "preview_border_shader", borderShaderSource); err != nil {
		return err
	}
	if err := c.createLayouts(); err != nil {
		return err
	}
	if err := c.createPipelines(); err != nil {
		return err
	}

	c.sampler, err = c.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "preview_layer_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}

	if c.quad, err = c.createAndUploadBuffer("preview_quad", quadVertices(),
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst); err != nil {
		return err
	}
	if c.borderUniform, err = c.createAndUploadBuffer("preview_border_uniform", make([]byte, borderUniformSize),
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst); err != nil {
		return err
	}
	c.borderBind, err = c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "preview_border_bind",
		Layout: c.borderLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: c.borderUniform.NativeHandle(), Offset: 0, Size: borderUniformSize,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create border bind group: %w", err)
	}
	return nil
}

func (c *GPUCompositor) createLayouts() error {
	var err error
	c.textureLayout, err = c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "preview_texture_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create texture layout: %w", err)
	}

	uniformEntry := []gputypes.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
	}
	c.uniformLayout, err = c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "preview_layer_uniform_layout",
		Entries: uniformEntry,
	})
	if err != nil {
		return fmt.Errorf("create layer uniform layout: %w", err)
	}
	c.borderLayout, err = c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "preview_border_uniform_layout",
		Entries: uniformEntry,
	})
	if err != nil {
		return fmt.Errorf("create border uniform layout: %w", err)
	}

	c.layerPipeLayout, err = c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "preview_layer_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{c.textureLayout, c.uniformLayout},
	})
	if err != nil {
		return fmt.Errorf("create layer pipeline layout: %w", err)
	}
	c.borderPipeLayout, err = c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "preview_border_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{c.borderLayout},
	})
	if err != nil {
		return fmt.Errorf("create border pipeline layout: %w", err)
	}
	return nil
}

func (c *GPUCompositor) createPipelines() error {
	var err error
	premulBlend := gputypes.BlendStatePremultiplied()
	c.layerPipeline, err = c.device.CreateRenderPipeline(c.pipelineDescriptor(
		"preview_layer_pipeline", c.layerPipeLayout, c.layerShader, &premulBlend))
	if err != nil {
		return fmt.Errorf("create layer pipeline: %w", err)
	}
	c.borderPipeline, err = c.device.CreateRenderPipeline(c.pipelineDescriptor(
		"preview_border_pipeline", c.borderPipeLayout, c.borderShader, nil))
	if err != nil {
		return fmt.Errorf("create border pipeline: %w", err)
	}
	return nil
}

func (c *GPUCompositor) pipelineDescriptor(label string, layout hal.PipelineLayout, shader hal.ShaderModule, blend *gputypes.BlendState) *hal.RenderPipelineDescriptor {
	return &hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    c.format,
					Blend:     blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
}

// ApplyBounds sizes the overlay to the preview region. It returns false
// when the physical size exceeds the device texture limit, in which case
// the overlay is hidden and OverLimit reports true until a smaller bound
// is applied.
func (c *GPUCompositor) ApplyBounds(b Bounds) bool {
	x, y, w, h := b.Physical()
	if w > c.caps.MaxTextureDimension || h > c.caps.MaxTextureDimension {
		if !c.overLimit {
			slogger().Warn("render: preview surface over texture limit",
				"width", w, "height", h, "limit", c.caps.MaxTextureDimension)
		}
		c.overLimit = true
		c.setVisible(false)
		return false
	}
	c.overLimit = false

	if p, ok := c.surface.(Positioner); ok {
		p.SetPosition(x, y)
	}
	if sw, sh := c.surface.Size(); sw != w || sh != h {
		if err := c.surface.Configure(w, h); err != nil {
			slogger().Warn("render: configure surface", "width", w, "height", h, "err", err)
			c.setVisible(false)
			return false
		}
	}
	c.setVisible(c.active > 0)
	return true
}

// Upload replaces the drawn layers with stack. Each layer texture is
// rewritten in place and only recreated when its size changes; slots left
// over from a larger previous stack are released.
//
// An empty stack clears the layers, hides the overlay and returns true.
// Otherwise Upload reports whether at least one layer was uploaded; the
// overlay is shown exactly when it was.
func (c *GPUCompositor) Upload(stack Stack) bool {
	if stack.Empty() {
		c.Clear()
		return true
	}
	if c.overLimit {
		return false
	}
	c.canvasW, c.canvasH = max(stack.CanvasWidth, 1), max(stack.CanvasHeight, 1)

	n := 0
	for i := range stack.Layers {
		l := &stack.Layers[i]
		if l.Image == nil || l.Image.Bounds().Empty() {
			continue
		}
		b := l.Image.Bounds()
		w, h := uint32(b.Dx()), uint32(b.Dy())
		if w > c.caps.MaxTextureDimension || h > c.caps.MaxTextureDimension {
			slogger().Warn("render: layer over texture limit", "width", w, "height", h)
			continue
		}
		slot, err := c.slot(n, w, h)
		if err != nil {
			slogger().Warn("render: layer texture", "index", n, "err", err)
			continue
		}
		if err := c.writeTexture(slot, l.Image); err != nil {
			slogger().Warn("render: layer upload", "index", n, "err", err)
			continue
		}
		slot.placement = l.Placement
		n++
	}
	c.truncate(n)
	c.active = n
	c.stats.Uploads++
	c.setVisible(n > 0)
	return n > 0
}

// Clear drops the current layers and hides the overlay. Slot resources
// are kept for reuse.
func (c *GPUCompositor) Clear() {
	c.active = 0
	c.setVisible(false)
}

// Render draws the uploaded layers and presents the frame.
//
// A lost or outdated surface is reconfigured and the frame is skipped
// without error. Nothing is drawn while the overlay is hidden.
func (c *GPUCompositor) Render() error {
	if c.active == 0 || !c.visible || c.overLimit {
		return nil
	}

	target, err := c.surface.Acquire()
	if err != nil {
		if errors.Is(err, ErrSurfaceLost) || errors.Is(err, ErrSurfaceOutdated) {
			sw, sh := c.surface.Size()
			if cerr := c.surface.Configure(max(sw, 1), max(sh, 1)); cerr != nil {
				slogger().Warn("render: reconfigure surface", "err", cerr)
			}
			c.stats.Reconfigures++
			slogger().Debug("render: surface reconfigured, frame skipped", "reason", err)
			return nil
		}
		return fmt.Errorf("acquire surface: %w", err)
	}

	sw, sh := c.surface.Size()
	view := placement.Viewport(int(sw), int(sh), c.canvasW, c.canvasH)
	for _, s := range c.slots[:c.active] {
		u := LayerUniform(view, s.placement)
		if err := c.queue.WriteBuffer(s.uniform, 0, float32Bytes(u[:])); err != nil {
			return fmt.Errorf("write layer uniform: %w", err)
		}
	}
	if err := c.queue.WriteBuffer(c.borderUniform, 0, borderUniformBytes(view, c.borderColor)); err != nil {
		return fmt.Errorf("write border uniform: %w", err)
	}

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "preview_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("preview_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "preview_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: c.clearColor,
		}},
	})

	sx, sy, sW, sH := clampScissor(view, sw, sh)
	rp.SetScissorRect(sx, sy, sW, sH)
	rp.SetPipeline(c.layerPipeline)
	rp.SetVertexBuffer(0, c.quad, 0)
	for _, s := range c.slots[:c.active] {
		rp.SetBindGroup(0, s.texBind, nil)
		rp.SetBindGroup(1, s.uniformBind, nil)
		rp.Draw(quadVertexCount, 1, 0, 0)
	}

	// The border sits outside the canvas scissor.
	rp.SetScissorRect(0, 0, sw, sh)
	rp.SetPipeline(c.borderPipeline)
	rp.SetBindGroup(0, c.borderBind, nil)
	rp.SetVertexBuffer(0, c.quad, 0)
	rp.Draw(quadVertexCount, 4, 0, 0)
	rp.End()

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmd)

	if err := submitAndWait(c.device, c.queue, cmd); err != nil {
		return err
	}
	if err := c.surface.Present(); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	c.stats.Frames++
	return nil
}

// Visible reports whether the overlay is shown.
func (c *GPUCompositor) Visible() bool { return c.visible }

// OverLimit reports whether the last applied bounds exceeded the device
// texture limit.
func (c *GPUCompositor) OverLimit() bool { return c.overLimit }

// Layers returns the number of layers drawn by the next Render.
func (c *GPUCompositor) Layers() int { return c.active }

// Caps returns the capabilities in use.
func (c *GPUCompositor) Caps() Caps { return c.caps }

// Stats returns compositor counters.
func (c *GPUCompositor) Stats() GPUStats { return c.stats }

// Destroy releases all GPU resources. It is safe to call more than once.
func (c *GPUCompositor) Destroy() {
	if c.device == nil {
		return
	}
	c.truncate(0)
	c.active = 0

	d := c.device
	if c.borderBind != nil {
		d.DestroyBindGroup(c.borderBind)
		c.borderBind = nil
	}
	if c.borderUniform != nil {
		d.DestroyBuffer(c.borderUniform)
		c.borderUniform = nil
	}
	if c.quad != nil {
		d.DestroyBuffer(c.quad)
		c.quad = nil
	}
	if c.sampler != nil {
		d.DestroySampler(c.sampler)
		c.sampler = nil
	}
	for _, p := range []*hal.RenderPipeline{&c.layerPipeline, &c.borderPipeline} {
		if *p != nil {
			d.DestroyRenderPipeline(*p)
			*p = nil
		}
	}
	for _, l := range []*hal.PipelineLayout{&c.layerPipeLayout, &c.borderPipeLayout} {
		if *l != nil {
			d.DestroyPipelineLayout(*l)
			*l = nil
		}
	}
	for _, l := range []*hal.BindGroupLayout{&c.textureLayout, &c.uniformLayout, &c.borderLayout} {
		if *l != nil {
			d.DestroyBindGroupLayout(*l)
			*l = nil
		}
	}
	for _, m := range []*hal.ShaderModule{&c.layerShader, &c.borderShader} {
		if *m != nil {
			d.DestroyShaderModule(*m)
			*m = nil
		}
	}
}

// slot returns layer slot i with a texture of exactly w x h.
func (c *GPUCompositor) slot(i int, w, h uint32) (*gpuLayer, error) {
	for len(c.slots) <= i {
		c.slots = append(c.slots, &gpuLayer{})
	}
	s := c.slots[i]

	if s.uniform == nil {
		buf, err := c.createAndUploadBuffer("preview_layer_uniform", make([]byte, layerUniformSize),
			gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
		if err != nil {
			return nil, err
		}
		bind, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "preview_layer_uniform_bind",
			Layout: c.uniformLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: buf.NativeHandle(), Offset: 0, Size: layerUniformSize,
				}},
			},
		})
		if err != nil {
			c.device.DestroyBuffer(buf)
			return nil, fmt.Errorf("create layer uniform bind group: %w", err)
		}
		s.uniform, s.uniformBind = buf, bind
	}

	if s.tex != nil && s.width == w && s.height == h {
		return s, nil
	}
	c.releaseTexture(s)

	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "preview_layer",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        c.texFormat,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create layer texture: %w", err)
	}
	view, err := c.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "preview_layer_view",
		Format:        c.texFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		c.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create layer view: %w", err)
	}
	bind, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "preview_layer_texture_bind",
		Layout: c.textureLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{
				TextureView: view.NativeHandle(),
			}},
			{Binding: 1, Resource: gputypes.SamplerBinding{
				Sampler: c.sampler.NativeHandle(),
			}},
		},
	})
	if err != nil {
		c.device.DestroyTextureView(view)
		c.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create layer texture bind group: %w", err)
	}

	s.tex, s.view, s.texBind = tex, view, bind
	s.width, s.height = w, h
	c.stats.TextureCreates++
	return s, nil
}

// writeTexture uploads img into the slot texture. Rows are padded to the
// device row alignment through a reused scratch buffer when needed.
func (c *GPUCompositor) writeTexture(s *gpuLayer, img *image.RGBA) error {
	b := img.Bounds()
	w, h := uint32(b.Dx()), uint32(b.Dy())
	bytesPerRow := int(w) * 4
	aligned := c.caps.AlignedRow(w)
	start := img.PixOffset(b.Min.X, b.Min.Y)

	var data []byte
	if int(aligned) == bytesPerRow && img.Stride == bytesPerRow {
		data = img.Pix[start : start+bytesPerRow*int(h)]
	} else {
		need := int(aligned) * int(h)
		if cap(c.scratch) < need {
			c.scratch = make([]byte, need)
		}
		data = c.scratch[:need]
		for row := 0; row < int(h); row++ {
			src := start + row*img.Stride
			copy(data[row*int(aligned):], img.Pix[src:src+bytesPerRow])
		}
	}

	err := c.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: s.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: aligned, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return err
	}
	c.stats.BytesUploaded += uint64(len(data))
	return nil
}

// truncate releases every slot from n on.
func (c *GPUCompositor) truncate(n int) {
	if n >= len(c.slots) {
		return
	}
	for _, s := range c.slots[n:] {
		c.releaseTexture(s)
		if s.uniformBind != nil {
			c.device.DestroyBindGroup(s.uniformBind)
		}
		if s.uniform != nil {
			c.device.DestroyBuffer(s.uniform)
		}
	}
	clear(c.slots[n:])
	c.slots = c.slots[:n]
}

func (c *GPUCompositor) releaseTexture(s *gpuLayer) {
	if s.texBind != nil {
		c.device.DestroyBindGroup(s.texBind)
		s.texBind = nil
	}
	if s.view != nil {
		c.device.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.tex != nil {
		c.device.DestroyTexture(s.tex)
		s.tex = nil
	}
	s.width, s.height = 0, 0
}

func (c *GPUCompositor) setVisible(v bool) {
	c.visible = v
	c.surface.SetVisible(v)
}

func (c *GPUCompositor) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if err := c.queue.WriteBuffer(buf, 0, data); err != nil {
		c.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("upload %s: %w", label, err)
	}
	return buf, nil
}

// LayerUniform returns the shader uniform for a placed layer on a surface:
// scale.xy and center.xy in NDC, then cos, sin, opacity and the surface
// aspect ratio. Rotation is negated because NDC has y pointing up while
// positive degrees turn clockwise on screen.
func LayerUniform(v placement.View, p placement.Placement) [8]float32 {
	x, y, w, h := v.Rect(p)
	cx, cy := v.NDC(x+w*0.5, y+h*0.5)
	sin, cos := math.Sincos(-p.Rotation * math.Pi / 180)
	return [8]float32{
		float32(w / v.SurfaceW * 2), float32(h / v.SurfaceH * 2),
		float32(cx), float32(cy),
		float32(cos), float32(sin), float32(p.Opacity), float32(v.Aspect()),
	}
}

// BorderRects returns the four border quads (top, bottom, left, right) in
// NDC as x, y, width, height with x, y at the bottom-left corner. Each is
// one surface pixel thick and hugs the pixel-snapped canvas edge.
func BorderRects(v placement.View) [4][4]float32 {
	sx, sy, sw, sh := clampScissor(v, uint32(v.SurfaceW), uint32(v.SurfaceH))
	l, top := v.NDC(float64(sx), float64(sy))
	r, bot := v.NDC(float64(sx+sw), float64(sy+sh))
	pw := 2 / v.SurfaceW
	ph := 2 / v.SurfaceH

	f := func(x, y, w, h float64) [4]float32 {
		return [4]float32{float32(x), float32(y), float32(w), float32(h)}
	}
	return [4][4]float32{
		f(l, top-ph, r-l, ph),
		f(l, bot, r-l, ph),
		f(l, bot, pw, top-bot),
		f(r-pw, bot, pw, top-bot),
	}
}

// clampScissor returns the canvas scissor limited to the surface.
func clampScissor(v placement.View, sw, sh uint32) (x, y, w, h uint32) {
	sw, sh = max(sw, 1), max(sh, 1)
	x, y, w, h = v.Scissor()
	x, y = min(x, sw-1), min(y, sh-1)
	w, h = min(w, sw-x), min(h, sh-y)
	return x, y, w, h
}

func borderUniformBytes(v placement.View, rgba [4]float32) []byte {
	rects := BorderRects(v)
	vals := make([]float32, 0, borderUniformSize/4)
	for _, r := range rects {
		vals = append(vals, r[:]...)
	}
	vals = append(vals, rgba[:]...)
	return float32Bytes(vals)
}

// targetColor returns c as the value a clear or a fragment output must
// carry to store c's bytes in a target of the given format. sRGB formats
// encode on store and take linear values; other formats store as is.
func targetColor(c color.RGBA, format gputypes.TextureFormat) gputypes.Color {
	v := gputypes.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255,
	}
	if isSRGB(format) {
		v.R, v.G, v.B = srgbToLinear(v.R), srgbToLinear(v.G), srgbToLinear(v.B)
	}
	return v
}

// layerTextureFormat returns the layer texture format for a target. Layer
// texels are sRGB bytes; an sRGB target gets sRGB textures so sampling
// decodes what the target encodes again.
func layerTextureFormat(target gputypes.TextureFormat) gputypes.TextureFormat {
	if isSRGB(target) {
		return gputypes.TextureFormatRGBA8UnormSrgb
	}
	return gputypes.TextureFormatRGBA8Unorm
}

func isSRGB(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatRGBA8UnormSrgb || f == gputypes.TextureFormatBGRA8UnormSrgb
}

func srgbToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func float32Bytes(vals []float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// quadVertices returns two triangles covering the unit square, with uv
// equal to position.
func quadVertices() []byte {
	corners := [quadVertexCount][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 0}, {1, 1}, {0, 1}}
	vals := make([]float32, 0, quadVertexCount*4)
	for _, p := range corners {
		vals = append(vals, p[0], p[1], p[0], p[1])
	}
	return float32Bytes(vals)
}

func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: quadVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1}, // uv
			},
		},
	}
}
