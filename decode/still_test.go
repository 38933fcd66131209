package decode

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadStill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.png")
	writePNG(t, path, 200, 100)

	res, err := LoadStill(path, 100, 100)
	if err != nil {
		t.Fatalf("LoadStill: %v", err)
	}
	if b := res.Image.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("image = %v, want 100x50", b)
	}
	if res.SourceWidth != 200 || res.SourceHeight != 100 {
		t.Errorf("source = %dx%d, want 200x100", res.SourceWidth, res.SourceHeight)
	}
	if res.UsedHW {
		t.Error("stills never use hardware decode")
	}
}

func TestLoadStillKeepsSmallImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icon.png")
	writePNG(t, path, 16, 8)

	res, err := LoadStill(path, 960, 540)
	if err != nil {
		t.Fatalf("LoadStill: %v", err)
	}
	if b := res.Image.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("image = %v, want 16x8 (never upscaled)", b)
	}
}

func TestLoadStillErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadStill(filepath.Join(dir, "missing.png"), 10, 10); err == nil {
		t.Error("missing file should fail")
	}

	bad := filepath.Join(dir, "bad.jpg")
	if err := os.WriteFile(bad, []byte("not a jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadStill(bad, 10, 10); err == nil {
		t.Error("corrupt file should fail")
	}
}
