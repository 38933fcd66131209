package placement

import (
	"math"
	"testing"

	"github.com/gogpu/preview/timeline"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestCanvasSize(t *testing.T) {
	tests := []struct {
		name           string
		pw, ph, mw, mh int
		w, h           int
		scale          float64
	}{
		{"1080p into 960x540", 1920, 1080, 960, 540, 960, 540, 0.5},
		{"never upscales", 640, 360, 960, 540, 640, 360, 1},
		{"portrait", 1080, 1920, 960, 540, 304, 540, 0.28125},
		{"zero project", 0, 1080, 960, 540, 960, 540, 1},
		{"tiny bound floors scale", 100000, 100000, 1, 1, 1000, 1000, MinScale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, s := CanvasSize(tt.pw, tt.ph, tt.mw, tt.mh)
			if w != tt.w || h != tt.h || !near(s, tt.scale) {
				t.Errorf("CanvasSize = (%d, %d, %v), want (%d, %d, %v)", w, h, s, tt.w, tt.h, tt.scale)
			}
		})
	}
}

func TestComputeIdentityCenters(t *testing.T) {
	p, ok := Compute(1920, 1080, 1920, 1080, timeline.DefaultTransform(), 0.5, 960, 540)
	if !ok {
		t.Fatal("Compute returned no placement")
	}
	if !near(p.Width, 960) || !near(p.Height, 540) {
		t.Errorf("size = %vx%v, want 960x540", p.Width, p.Height)
	}
	if !near(p.OffsetX, 0) || !near(p.OffsetY, 0) {
		t.Errorf("offset = (%v, %v), want (0, 0)", p.OffsetX, p.OffsetY)
	}
	if p.Opacity != 1 || p.Rotation != 0 {
		t.Errorf("opacity/rotation = %v/%v", p.Opacity, p.Rotation)
	}
}

func TestComputeSmallImageCentered(t *testing.T) {
	p, _ := Compute(200, 100, 200, 100, timeline.DefaultTransform(), 1, 960, 540)
	if !near(p.CenterX(), 480) || !near(p.CenterY(), 270) {
		t.Errorf("center = (%v, %v), want (480, 270)", p.CenterX(), p.CenterY())
	}
}

func TestComputeRecoversSourceSize(t *testing.T) {
	// Decoder pre-scaled a 1920x1080 source to 960x540.
	p, ok := Compute(960, 540, 1920, 1080, timeline.DefaultTransform(), 0.25, 480, 270)
	if !ok {
		t.Fatal("Compute returned no placement")
	}
	if !near(p.Width, 480) || !near(p.Height, 270) {
		t.Errorf("size = %vx%v, want 480x270", p.Width, p.Height)
	}
}

func TestComputeZeroSourceFallsBackToDecoded(t *testing.T) {
	p, _ := Compute(100, 50, 0, 0, timeline.DefaultTransform(), 1, 100, 50)
	if !near(p.Width, 100) || !near(p.Height, 50) {
		t.Errorf("size = %vx%v, want 100x50", p.Width, p.Height)
	}
}

func TestComputeTransform(t *testing.T) {
	tr := timeline.Transform{PositionX: 100, PositionY: -40, ScaleX: 2, ScaleY: 0.5, Rotation: 30, Opacity: 1.7}
	p, _ := Compute(100, 100, 100, 100, tr, 0.5, 400, 300)
	if !near(p.Width, 100) || !near(p.Height, 25) {
		t.Errorf("size = %vx%v, want 100x25", p.Width, p.Height)
	}
	if !near(p.OffsetX, 150+50) || !near(p.OffsetY, 137.5-20) {
		t.Errorf("offset = (%v, %v), want (200, 117.5)", p.OffsetX, p.OffsetY)
	}
	if p.Opacity != 1 {
		t.Errorf("opacity = %v, want clamped 1", p.Opacity)
	}
	if p.Rotation != 30 {
		t.Errorf("rotation = %v, want 30", p.Rotation)
	}
}

func TestComputeScaleFloor(t *testing.T) {
	tr := timeline.Transform{ScaleX: -3, ScaleY: 0, Opacity: -1}
	p, ok := Compute(100, 100, 100, 100, tr, 1, 100, 100)
	if !ok {
		t.Fatal("floored scale should still place the layer")
	}
	if !near(p.Width, 1) || !near(p.Height, 1) {
		t.Errorf("size = %vx%v, want 1x1", p.Width, p.Height)
	}
	if p.Opacity != 0 {
		t.Errorf("opacity = %v, want 0", p.Opacity)
	}
}

func TestComputeDegenerateScaleDropped(t *testing.T) {
	if _, ok := Compute(100, 100, 100, 100, timeline.DefaultTransform(), 0, 100, 100); ok {
		t.Error("zero preview scale should produce no placement")
	}
	if _, ok := Compute(100, 100, 100, 100, timeline.DefaultTransform(), math.NaN(), 100, 100); ok {
		t.Error("NaN preview scale should produce no placement")
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, mw, mh, ww, wh int
	}{
		{1920, 1080, 960, 540, 960, 540},
		{400, 300, 960, 540, 400, 300},
		{4000, 1000, 960, 540, 960, 240},
		{10, 10, 0, 0, 1, 1},
	}
	for _, tt := range tests {
		w, h := Fit(tt.w, tt.h, tt.mw, tt.mh)
		if w != tt.ww || h != tt.wh {
			t.Errorf("Fit(%d, %d, %d, %d) = (%d, %d), want (%d, %d)", tt.w, tt.h, tt.mw, tt.mh, w, h, tt.ww, tt.wh)
		}
	}
}

func TestViewport(t *testing.T) {
	v := Viewport(1000, 500, 960, 540)
	wantScale := 500.0 / 540.0
	if !near(v.Scale, wantScale) {
		t.Errorf("Scale = %v, want %v", v.Scale, wantScale)
	}
	if !near(v.OffsetY, 0) || !near(v.OffsetX, (1000-960*wantScale)/2) {
		t.Errorf("offset = (%v, %v)", v.OffsetX, v.OffsetY)
	}

	x, y, w, h := v.Rect(FullCanvas(960, 540))
	if !near(x, v.OffsetX) || !near(y, 0) || !near(w, v.Width) || !near(h, 500) {
		t.Errorf("Rect(full) = (%v, %v, %v, %v)", x, y, w, h)
	}

	sx, sy, sw, sh := v.Scissor()
	if sx != uint32(math.Round(v.OffsetX)) || sy != 0 || sh != 500 || sw != uint32(math.Round(v.Width)) {
		t.Errorf("Scissor = (%d, %d, %d, %d)", sx, sy, sw, sh)
	}

	nx, ny := v.NDC(0, 0)
	if nx != -1 || ny != 1 {
		t.Errorf("NDC(0,0) = (%v, %v), want (-1, 1)", nx, ny)
	}
	nx, ny = v.NDC(1000, 500)
	if nx != 1 || ny != -1 {
		t.Errorf("NDC(max) = (%v, %v), want (1, -1)", nx, ny)
	}
	if !near(v.Aspect(), 2) {
		t.Errorf("Aspect = %v, want 2", v.Aspect())
	}
}
