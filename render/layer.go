// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"

	"github.com/gogpu/preview/placement"
	"github.com/gogpu/preview/timeline"
)

// SourceLayer is a decoded frame awaiting placement: the raster, the size
// of the source it was decoded from, and the clip transform.
type SourceLayer struct {
	Image        *image.RGBA
	SourceWidth  int
	SourceHeight int
	Transform    timeline.Transform
}

// Place computes where the layer lands on a canvasW x canvasH canvas.
// The second result is false when the layer has nothing to draw.
func (l SourceLayer) Place(previewScale float64, canvasW, canvasH int) (placement.Placement, bool) {
	if l.Image == nil || l.Image.Bounds().Empty() {
		return placement.Placement{}, false
	}
	b := l.Image.Bounds()
	return placement.Compute(b.Dx(), b.Dy(), l.SourceWidth, l.SourceHeight, l.Transform,
		previewScale, float64(canvasW), float64(canvasH))
}

// Layer is a placed raster ready for the GPU compositor. The raster is
// uploaded at its decoded size and scaled by the shader.
type Layer struct {
	Image     *image.RGBA
	Placement placement.Placement
}

// Stack is a GPU-ready layer list in paint order, bottom first.
type Stack struct {
	CanvasWidth  int
	CanvasHeight int
	Layers       []Layer
}

// Empty reports whether the stack has no layers.
func (s Stack) Empty() bool { return len(s.Layers) == 0 }

// NewStack places layers on a canvasW x canvasH canvas. When plate is not
// nil it becomes the first layer, stretched over the whole canvas. Layers
// without a valid placement are dropped.
func NewStack(canvasW, canvasH int, plate *image.RGBA, layers []SourceLayer, previewScale float64) Stack {
	s := Stack{CanvasWidth: canvasW, CanvasHeight: canvasH}
	s.Layers = make([]Layer, 0, len(layers)+1)
	if plate != nil {
		s.Layers = append(s.Layers, Layer{Image: plate, Placement: placement.FullCanvas(canvasW, canvasH)})
	}
	for _, l := range layers {
		p, ok := l.Place(previewScale, canvasW, canvasH)
		if !ok {
			continue
		}
		s.Layers = append(s.Layers, Layer{Image: l.Image, Placement: p})
	}
	return s
}
