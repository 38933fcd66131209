// Package placement maps decoded frames and user transforms onto the
// preview canvas.
//
// Every function here is pure. The CPU and GPU compositors both consume
// Placement values produced by Compute, so a layer lands on the same
// pixels regardless of which back end draws it.
package placement

import (
	"math"

	"github.com/gogpu/preview/timeline"
)

// MinScale is the floor applied to preview and user scale factors so a
// layer never collapses to a degenerate or mirrored size.
const MinScale = 0.01

// Placement is the on-canvas geometry of one layer in canvas pixels.
type Placement struct {
	OffsetX float64 // left edge before rotation
	OffsetY float64 // top edge before rotation
	Width   float64
	Height  float64

	// Rotation in degrees, clockwise, about the layer center.
	Rotation float64

	// Opacity in [0, 1].
	Opacity float64
}

// CenterX returns the horizontal center of the unrotated layer.
func (p Placement) CenterX() float64 { return p.OffsetX + p.Width*0.5 }

// CenterY returns the vertical center of the unrotated layer.
func (p Placement) CenterY() float64 { return p.OffsetY + p.Height*0.5 }

// FullCanvas returns an opaque, unrotated placement covering the canvas.
func FullCanvas(canvasW, canvasH int) Placement {
	return Placement{Width: float64(canvasW), Height: float64(canvasH), Opacity: 1}
}

// CanvasSize fits the project frame inside maxW x maxH preserving aspect
// ratio. The preview never upscales: scale is at most 1 and at least
// MinScale. A project with a zero dimension gets the full bound at scale 1.
func CanvasSize(projectW, projectH, maxW, maxH int) (w, h int, scale float64) {
	if projectW <= 0 || projectH <= 0 {
		return maxW, maxH, 1
	}
	scale = math.Min(float64(maxW)/float64(projectW), float64(maxH)/float64(projectH))
	scale = math.Max(math.Min(scale, 1), MinScale)
	w = max(1, int(math.Round(float64(projectW)*scale)))
	h = max(1, int(math.Round(float64(projectH)*scale)))
	return w, h, scale
}

// Compute returns the placement of a decoded frame on the canvas.
//
// The decoded raster may be smaller than the source when the decoder
// pre-scaled it, so the base scale is derived from the source size first:
// base = source*previewScale/decoded. The user scale is applied on top,
// then the layer is centered and shifted by the transform position.
//
// The second result is false when the computed size is not positive.
func Compute(decodedW, decodedH, sourceW, sourceH int, t timeline.Transform, previewScale float64, canvasW, canvasH float64) (Placement, bool) {
	dw := float64(max(decodedW, 1))
	dh := float64(max(decodedH, 1))
	sw, sh := float64(sourceW), float64(sourceH)
	if sourceW <= 0 {
		sw = dw
	}
	if sourceH <= 0 {
		sh = dh
	}

	baseX := sw * previewScale / dw
	baseY := sh * previewScale / dh
	w := dw * baseX * math.Max(t.ScaleX, MinScale)
	h := dh * baseY * math.Max(t.ScaleY, MinScale)
	if !(w > 0) || !(h > 0) {
		return Placement{}, false
	}

	return Placement{
		OffsetX:  (canvasW-w)*0.5 + t.PositionX*previewScale,
		OffsetY:  (canvasH-h)*0.5 + t.PositionY*previewScale,
		Width:    w,
		Height:   h,
		Rotation: t.Rotation,
		Opacity:  clamp01(t.Opacity),
	}, true
}

// Fit scales w x h down to fit inside maxW x maxH preserving aspect ratio.
// Sizes already inside the bound are returned unchanged.
func Fit(w, h, maxW, maxH int) (int, int) {
	maxW, maxH = max(maxW, 1), max(maxH, 1)
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	scale = math.Max(scale, MinScale)
	return max(1, int(math.Round(float64(w)*scale))), max(1, int(math.Round(float64(h)*scale)))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}
