// Package image provides the raster operations behind the software
// compositor: opacity, resampling, rotation, overlay and borders on
// premultiplied *image.RGBA values, plus still-image loading.
package image

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Affine is a 2D affine transform mapping source pixels to destination
// pixels:
//
//	x' = a*x + b*y + c
//	y' = d*x + e*y + f
type Affine struct {
	a, b, c float64
	d, e, f float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{a: 1, e: 1}
}

// Translate returns a transform shifting points by (tx, ty).
func Translate(tx, ty float64) Affine {
	return Affine{a: 1, c: tx, e: 1, f: ty}
}

// rotation returns a rotation by angle radians about the origin. Image
// space has y pointing down, so positive angles turn clockwise on screen.
func rotation(angle float64) Affine {
	sin, cos := math.Sincos(angle)
	return Affine{
		a: cos, b: -sin,
		d: sin, e: cos,
	}
}

// RotateAt returns a rotation by angle radians about (cx, cy).
func RotateAt(angle, cx, cy float64) Affine {
	return Translate(cx, cy).Then(rotation(angle)).Then(Translate(-cx, -cy))
}

// Then returns the transform applying other first and then m.
func (m Affine) Then(other Affine) Affine {
	return Affine{
		a: m.a*other.a + m.b*other.d,
		b: m.a*other.b + m.b*other.e,
		c: m.a*other.c + m.b*other.f + m.c,
		d: m.d*other.a + m.e*other.d,
		e: m.d*other.b + m.e*other.e,
		f: m.d*other.c + m.e*other.f + m.f,
	}
}

// Apply maps (x, y) through the transform.
func (m Affine) Apply(x, y float64) (float64, float64) {
	return m.a*x + m.b*y + m.c, m.d*x + m.e*y + m.f
}

// Aff3 converts to the source-to-destination matrix used by
// golang.org/x/image/draw transformers.
func (m Affine) Aff3() f64.Aff3 {
	return f64.Aff3{m.a, m.b, m.c, m.d, m.e, m.f}
}
