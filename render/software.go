// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"
	"math"

	intImage "github.com/gogpu/preview/internal/image"
)

// minRotation is the smallest rotation, in degrees, worth resampling for.
const minRotation = 0.01

// SoftwareCompositor rasterizes layers on the CPU.
//
// Each layer is faded, resized with a bilinear filter, rotated about its
// center when needed, and blended over the canvas. A border is drawn over
// the canvas edge once all layers are in.
//
// The zero value is not usable; create one with NewSoftwareCompositor.
type SoftwareCompositor struct {
	plates *Plates
}

// NewSoftwareCompositor creates a CPU compositor with its own plate cache.
func NewSoftwareCompositor() *SoftwareCompositor {
	return NewSoftwareCompositorWithPlates(&Plates{})
}

// NewSoftwareCompositorWithPlates creates a CPU compositor that shares an
// existing plate cache.
func NewSoftwareCompositorWithPlates(p *Plates) *SoftwareCompositor {
	if p == nil {
		p = &Plates{}
	}
	return &SoftwareCompositor{plates: p}
}

// Plates returns the compositor's plate cache.
func (c *SoftwareCompositor) Plates() *Plates { return c.plates }

// Render composites layers onto a fresh w x h canvas filled with the
// plate color and returns it.
func (c *SoftwareCompositor) Render(w, h int, layers []SourceLayer, previewScale float64) *image.RGBA {
	fill, border := c.plates.Get(w, h)
	if len(layers) == 0 {
		return intImage.Clone(border)
	}
	canvas := intImage.Clone(fill)
	c.Composite(canvas, layers, previewScale)
	return canvas
}

// Composite draws layers onto canvas in order, bottom first, and then the
// canvas border. It returns the number of layers drawn.
func (c *SoftwareCompositor) Composite(canvas *image.RGBA, layers []SourceLayer, previewScale float64) int {
	cb := canvas.Bounds()
	drawn := 0
	for i := range layers {
		p, ok := layers[i].Place(previewScale, cb.Dx(), cb.Dy())
		if !ok {
			continue
		}
		if drawLayer(canvas, layers[i].Image, p.OffsetX, p.OffsetY, p.Width, p.Height, p.Rotation, p.Opacity) {
			drawn++
		}
	}
	intImage.DrawBorder(canvas, BorderColor, BorderWidth)
	return drawn
}

// drawLayer blends one placed raster onto canvas. Returns false when the
// layer ends up empty.
func drawLayer(canvas, src *image.RGBA, x, y, w, h, rotation, opacity float64) bool {
	if opacity <= 0 {
		return false
	}
	img := src
	if opacity < 1 {
		img = intImage.Clone(src)
		intImage.ApplyOpacity(img, opacity)
	}

	tw := max(1, int(math.Round(w)))
	th := max(1, int(math.Round(h)))
	img = intImage.Resize(img, tw, th)

	dx, dy := math.Round(x), math.Round(y)
	if math.Abs(rotation) > minRotation {
		img = intImage.Rotate(img, rotation)
		// Keep the rotated image centered where the unrotated one was.
		rb := img.Bounds()
		dx = math.Round(x + float64(tw)*0.5 - float64(rb.Dx())*0.5)
		dy = math.Round(y + float64(th)*0.5 - float64(rb.Dy())*0.5)
	}

	intImage.Overlay(canvas, img, canvas.Bounds().Min.X+int(dx), canvas.Bounds().Min.Y+int(dy))
	return true
}
