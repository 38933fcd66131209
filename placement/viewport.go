package placement

import "math"

// View describes where the logical canvas lands on a physical surface:
// uniformly scaled to fit and centered.
type View struct {
	SurfaceW, SurfaceH float64
	Scale              float64
	OffsetX, OffsetY   float64
	Width, Height      float64 // canvas size in surface pixels
}

// Viewport fits a canvasW x canvasH canvas inside a surfaceW x surfaceH
// surface. Zero sizes are treated as 1.
func Viewport(surfaceW, surfaceH, canvasW, canvasH int) View {
	sw := float64(max(surfaceW, 1))
	sh := float64(max(surfaceH, 1))
	cw := float64(max(canvasW, 1))
	ch := float64(max(canvasH, 1))

	scale := math.Max(math.Min(sw/cw, sh/ch), 0)
	w, h := cw*scale, ch*scale
	return View{
		SurfaceW: sw,
		SurfaceH: sh,
		Scale:    scale,
		OffsetX:  (sw - w) * 0.5,
		OffsetY:  (sh - h) * 0.5,
		Width:    w,
		Height:   h,
	}
}

// Rect maps a placement from canvas pixels to surface pixels.
func (v View) Rect(p Placement) (x, y, w, h float64) {
	return v.OffsetX + p.OffsetX*v.Scale, v.OffsetY + p.OffsetY*v.Scale, p.Width * v.Scale, p.Height * v.Scale
}

// Scissor returns the canvas rectangle rounded to whole surface pixels,
// at least 1x1.
func (v View) Scissor() (x, y, w, h uint32) {
	x = uint32(math.Max(math.Round(v.OffsetX), 0))
	y = uint32(math.Max(math.Round(v.OffsetY), 0))
	w = uint32(math.Max(math.Round(v.Width), 1))
	h = uint32(math.Max(math.Round(v.Height), 1))
	return x, y, w, h
}

// NDC converts a surface pixel position to normalized device
// coordinates, with y pointing up.
func (v View) NDC(x, y float64) (float64, float64) {
	return x/v.SurfaceW*2 - 1, 1 - y/v.SurfaceH*2
}

// Aspect returns the surface width to height ratio.
func (v View) Aspect() float64 { return v.SurfaceW / v.SurfaceH }
