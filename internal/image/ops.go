package image

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/preview/placement"
)

// Clone returns a deep copy of img anchored at the origin.
func Clone(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()*4], img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return out
}

// ApplyOpacity scales every channel of a premultiplied raster by opacity,
// rounding to nearest. Opacity is clamped to [0, 1].
func ApplyOpacity(img *image.RGBA, opacity float64) {
	opacity = math.Min(math.Max(opacity, 0), 1)
	if opacity == 1 {
		return
	}
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(math.Round(float64(i) * opacity))
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y) : img.PixOffset(b.Min.X, y)+b.Dx()*4]
		for i := range row {
			row[i] = lut[row[i]]
		}
	}
}

// Resize resamples src to w x h with a bilinear (triangle) filter.
// Returns src itself when the size already matches.
func Resize(src *image.RGBA, w, h int) *image.RGBA {
	if b := src.Bounds(); b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// RotatedBounds returns the size of the axis-aligned box enclosing a
// w x h rectangle rotated by deg degrees.
func RotatedBounds(w, h int, deg float64) (int, int) {
	sin, cos := math.Sincos(deg * math.Pi / 180)
	sin, cos = math.Abs(sin), math.Abs(cos)
	fw, fh := float64(max(w, 1)), float64(max(h, 1))
	nw := max(1, int(math.Ceil(fw*cos+fh*sin-1e-9)))
	nh := max(1, int(math.Ceil(fw*sin+fh*cos-1e-9)))
	return nw, nh
}

// Rotate returns src rotated clockwise by deg degrees about its center on
// a transparent canvas just large enough to hold the result.
func Rotate(src *image.RGBA, deg float64) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	nw, nh := RotatedBounds(w, h, deg)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))

	// Center the source in the expanded canvas, then turn about its middle.
	ox := float64(nw-w) * 0.5
	oy := float64(nh-h) * 0.5
	m := RotateAt(deg*math.Pi/180, float64(nw)*0.5, float64(nh)*0.5).
		Then(Translate(ox-float64(b.Min.X), oy-float64(b.Min.Y)))

	xdraw.BiLinear.Transform(dst, m.Aff3(), src, b, xdraw.Over, nil)
	return dst
}

// Overlay composites src over dst with its top-left corner at (x, y).
// Parts falling outside dst are clipped.
func Overlay(dst, src *image.RGBA, x, y int) {
	sb := src.Bounds()
	r := image.Rect(x, y, x+sb.Dx(), y+sb.Dy())
	draw.Draw(dst, r, src, sb.Min, draw.Over)
}

// Fill sets every pixel of img to c.
func Fill(img *image.RGBA, c color.RGBA) {
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// DrawBorder paints a solid frame of the given width along the edges of
// img. The width is limited to the image size.
func DrawBorder(img *image.RGBA, c color.RGBA, width int) {
	b := img.Bounds()
	if b.Empty() || width <= 0 {
		return
	}
	width = min(width, b.Dx(), b.Dy())
	u := image.NewUniform(c)
	edges := [4]image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+width), // top
		image.Rect(b.Min.X, b.Max.Y-width, b.Max.X, b.Max.Y), // bottom
		image.Rect(b.Min.X, b.Min.Y, b.Min.X+width, b.Max.Y), // left
		image.Rect(b.Max.X-width, b.Min.Y, b.Max.X, b.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(img, e, u, image.Point{}, draw.Src)
	}
}

// FitTo downscales img to fit within maxW x maxH preserving aspect ratio.
// Images already inside the bound are returned unchanged.
func FitTo(img *image.RGBA, maxW, maxH int) *image.RGBA {
	b := img.Bounds()
	w, h := placement.Fit(b.Dx(), b.Dy(), maxW, maxH)
	return Resize(img, w, h)
}
