package preview

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/preview/cache"
	"github.com/gogpu/preview/decode"
	"github.com/gogpu/preview/placement"
	"github.com/gogpu/preview/timeline"
)

func pixelAt(t *testing.T, r *Renderer, version uint64, x, y int) color.RGBA {
	t.Helper()
	f, ok := r.Store().Get(version)
	if !ok {
		t.Fatal("frame not stored")
	}
	return f.Image().RGBAAt(x, y)
}

func TestRenderFrameDecodesAndCaches(t *testing.T) {
	svc := newFakeService()
	r := newTestRenderer(t, svc)

	tp := newTestProject("/proj")
	asset := tp.addAsset(timeline.Asset{Name: "a", Kind: timeline.KindVideo, Path: "clips/a.mp4"})
	tp.addClip(tp.video1, asset, 0, 10)

	ctx := context.Background()
	out, err := r.RenderFrame(ctx, tp.Project, 2.0, Params{Mode: decode.Seek, AllowHW: true})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if out.Frame == nil || out.Frame.Width != 96 || out.Frame.Height != 54 {
		t.Fatalf("frame = %+v, want 96x54", out.Frame)
	}

	reqs := svc.requests()
	if len(reqs) != 1 {
		t.Fatalf("decode requests = %d, want 1", len(reqs))
	}
	want := decode.Request{
		Path:    filepath.Join("/proj", "clips/a.mp4"),
		Time:    2.0,
		Lane:    timeline.LaneID(tp.video1),
		Mode:    decode.Seek,
		AllowHW: true,
	}
	if reqs[0] != want {
		t.Errorf("request = %+v, want %+v", reqs[0], want)
	}
	if !r.Cache().Contains(cache.FrameKey{Path: want.Path, Index: 60}) {
		t.Error("frame 60 should be cached")
	}
	if out.Stats.CacheMisses != 1 || out.Stats.HWFrames != 1 || out.Stats.Layers != 1 {
		t.Errorf("stats = %+v", out.Stats)
	}
	if got := pixelAt(t, r, out.Frame.Version, 48, 27); got != red {
		t.Errorf("center pixel = %v, want red", got)
	}

	// 2.01s is still frame 60.
	out, err = r.RenderFrame(ctx, tp.Project, 2.01, Params{})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if n := len(svc.requests()); n != 1 {
		t.Errorf("decode requests = %d after a same-frame render, want 1", n)
	}
	if out.Stats.CacheHits != 1 || out.Stats.CacheMisses != 0 {
		t.Errorf("stats = %+v, want one hit", out.Stats)
	}
	if s := r.Stats(); s.Frames != 2 || s.Total.CacheHits != 1 || s.Total.CacheMisses != 1 {
		t.Errorf("renderer stats = %+v", s)
	}
}

func TestRenderFrameTrackOrder(t *testing.T) {
	svc := newFakeService()
	r := newTestRenderer(t, svc)

	tp := newTestProject("/proj")
	lower := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/lower.mp4"})
	upper := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/upper.mp4"})
	svc.colors["/m/lower.mp4"] = blue
	svc.colors["/m/upper.mp4"] = red

	// The upper clip is listed first and starts earlier; track order wins.
	tp.addClip(tp.video2, upper, 0, 5)
	tp.addClip(tp.video1, lower, 1, 5)

	out, err := r.RenderFrame(context.Background(), tp.Project, 2, Params{})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if len(out.Layers) != 2 {
		t.Fatalf("layers = %d, want 2", len(out.Layers))
	}
	if out.Layers[0].Track != 0 || out.Layers[1].Track != 1 {
		t.Errorf("tracks = %d,%d, want bottom track first", out.Layers[0].Track, out.Layers[1].Track)
	}
	if got := pixelAt(t, r, out.Frame.Version, 48, 27); got != red {
		t.Errorf("center pixel = %v, want the Video 2 layer on top", got)
	}
}

func TestRenderFrameSameTrackOrdersByStart(t *testing.T) {
	svc := newFakeService()
	r := newTestRenderer(t, svc)

	tp := newTestProject("/proj")
	a := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/a.mp4"})
	b := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/b.mp4"})
	late := tp.addClip(tp.video1, a, 1, 5)
	early := tp.addClip(tp.video1, b, 0, 5)

	out, err := r.RenderLayers(context.Background(), tp.Project, 2, Params{})
	if err != nil {
		t.Fatalf("RenderLayers: %v", err)
	}
	if len(out.Layers) != 2 || out.Layers[0].ClipID != early || out.Layers[1].ClipID != late {
		t.Errorf("layers should be ordered by clip start: %+v", out.Layers)
	}
}

func TestRenderFrameGenerativeInvalidate(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "gen", "sunset")
	writePNG(t, filepath.Join(folder, "v1.png"), 192, 108, red)

	stills := &countingStills{}
	r := newTestRenderer(t, newFakeService(), WithStillLoader(stills.load))

	tp := newTestProject(root)
	gen := tp.addAsset(timeline.Asset{
		Kind:          timeline.KindGenerativeImage,
		Folder:        "gen/sunset",
		ActiveVersion: "v1",
	})
	tp.addClip(tp.video1, gen, 0, 5)

	ctx := context.Background()
	v1 := filepath.Join(folder, "v1.png")
	v2 := filepath.Join(folder, "v2.png")

	out, err := r.RenderFrame(ctx, tp.Project, 1, Params{})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if len(out.Layers) != 1 || out.Layers[0].Path != v1 {
		t.Fatalf("layers = %+v, want %s", out.Layers, v1)
	}
	if _, err := r.RenderFrame(ctx, tp.Project, 3, Params{}); err != nil {
		t.Fatal(err)
	}
	if n := stills.count(v1); n != 1 {
		t.Fatalf("still loads = %d, want 1 (second render is a hit)", n)
	}

	// Replace the active version on disk. The cache still has v1 until
	// the folder is invalidated.
	if err := os.Remove(v1); err != nil {
		t.Fatal(err)
	}
	writePNG(t, v2, 192, 108, blue)

	if n := r.InvalidateFolder(folder); n != 1 {
		t.Errorf("InvalidateFolder dropped %d frames, want 1", n)
	}

	out, err = r.RenderFrame(ctx, tp.Project, 1, Params{})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if len(out.Layers) != 1 || out.Layers[0].Path != v2 {
		t.Fatalf("layers = %+v, want fallback to %s", out.Layers, v2)
	}
	if n := stills.count(v2); n != 1 {
		t.Errorf("v2 loads = %d, want 1", n)
	}
	if got := pixelAt(t, r, out.Frame.Version, 48, 27); got != blue {
		t.Errorf("center pixel = %v, want the new version", got)
	}
}

func TestRenderFrameNothingToRender(t *testing.T) {
	r := newTestRenderer(t, newFakeService())

	tp := newTestProject("/proj")
	song := tp.addAsset(timeline.Asset{Kind: timeline.KindAudio, Path: "song.wav"})
	tp.addClip(tp.audio, song, 0, 10)

	out, err := r.RenderFrame(context.Background(), tp.Project, 1, Params{})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if !out.Empty() {
		t.Errorf("audio-only project should have nothing to render, got %+v", out.Frame)
	}
	if _, ok := r.Store().Latest(); ok {
		t.Error("nothing should be stored")
	}
}

func TestRenderFrameEmptyInstant(t *testing.T) {
	svc := newFakeService()
	r := newTestRenderer(t, svc)

	tp := newTestProject("/proj")
	a := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/a.mp4"})
	tp.addClip(tp.video1, a, 5, 5)

	out, err := r.RenderFrame(context.Background(), tp.Project, 1, Params{})
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if out.Frame == nil {
		t.Fatal("a gap in a visual project should still render the canvas")
	}
	if got := pixelAt(t, r, out.Frame.Version, 48, 27); got != (color.RGBA{A: 0xff}) {
		t.Errorf("center pixel = %v, want the black plate", got)
	}
	if len(svc.requests()) != 0 {
		t.Error("no clip is visible; nothing should be decoded")
	}

	// Clip end is exclusive.
	out, _ = r.RenderFrame(context.Background(), tp.Project, 10, Params{})
	if len(out.Layers) != 0 {
		t.Error("clip should not be visible at its end time")
	}
}

func TestRenderFrameDegradesOnFailures(t *testing.T) {
	svc := newFakeService()
	svc.fail["/m/broken.mp4"] = true
	r := newTestRenderer(t, svc)

	tp := newTestProject(t.TempDir())
	broken := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/broken.mp4"})
	missing := tp.addAsset(timeline.Asset{Kind: timeline.KindGenerativeVideo, Folder: "gen/none"})
	badStill := tp.addAsset(timeline.Asset{Kind: timeline.KindImage, Path: "nope.png"})
	good := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/good.mp4"})
	tp.addClip(tp.video1, broken, 0, 5)
	tp.addClip(tp.video1, missing, 0, 5)
	tp.addClip(tp.video2, badStill, 0, 5)
	tp.addClip(tp.video2, good, 0, 5)

	out, err := r.RenderFrame(context.Background(), tp.Project, 1, Params{})
	if err != nil {
		t.Fatalf("failures must not surface as errors: %v", err)
	}
	if out.Frame == nil || len(out.Layers) != 1 || out.Layers[0].Path != "/m/good.mp4" {
		t.Fatalf("only the good clip should render: %+v", out.Layers)
	}
	if out.Stats.Dropped != 2 || out.Stats.Unresolved != 1 {
		t.Errorf("stats = %+v, want 2 dropped, 1 unresolved", out.Stats)
	}
}

func TestRenderFrameCanceled(t *testing.T) {
	r := newTestRenderer(t, newFakeService())

	tp := newTestProject("/proj")
	a := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/a.mp4"})
	tp.addClip(tp.video1, a, 0, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RenderFrame(ctx, tp.Project, 1, Params{}); !errors.Is(err, context.Canceled) {
		t.Errorf("RenderFrame err = %v, want context.Canceled", err)
	}
	if _, err := r.RenderLayers(ctx, tp.Project, 1, Params{}); !errors.Is(err, context.Canceled) {
		t.Errorf("RenderLayers err = %v, want context.Canceled", err)
	}
}

func TestRenderLayersStack(t *testing.T) {
	r := newTestRenderer(t, newFakeService())

	tp := newTestProject("/proj")
	a := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/a.mp4"})
	id := tp.addClip(tp.video1, a, 0, 5)
	tp.Clips[0].Transform.ScaleX = 0.5
	tp.Clips[0].Transform.ScaleY = 0.5

	out, err := r.RenderLayers(context.Background(), tp.Project, 1, Params{})
	if err != nil {
		t.Fatalf("RenderLayers: %v", err)
	}
	if out.Frame != nil || out.Stack == nil {
		t.Fatalf("RenderLayers should return a stack only: %+v", out)
	}
	s := out.Stack
	if s.CanvasWidth != 96 || s.CanvasHeight != 54 || len(s.Layers) != 2 {
		t.Fatalf("stack = %dx%d with %d layers", s.CanvasWidth, s.CanvasHeight, len(s.Layers))
	}
	if s.Layers[0].Placement != placement.FullCanvas(96, 54) {
		t.Errorf("first layer should be the full-canvas plate: %+v", s.Layers[0].Placement)
	}
	if got := s.Layers[0].Image.RGBAAt(0, 0); got != (color.RGBA{A: 0xff}) {
		t.Errorf("plate pixel = %v, want opaque black without border", got)
	}
	p := s.Layers[1].Placement
	if p.Width != 48 || p.Height != 27 || p.OffsetX != 24 || p.OffsetY != 13.5 {
		t.Errorf("layer placement = %+v", p)
	}
	if out.Layers[0].ClipID != id {
		t.Error("layer should carry its clip id")
	}
	if ps := r.PlateStats(); ps.Width != 96 || ps.Height != 54 {
		t.Errorf("plate stats = %+v", ps)
	}
}

func TestRendererClose(t *testing.T) {
	svc := newFakeService()
	r := NewRenderer(WithDecoder(svc))
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if svc.closed {
		t.Error("an injected decoder belongs to the caller and must not be closed")
	}
}

func TestRendererProjectRoot(t *testing.T) {
	svc := newFakeService()
	r := newTestRenderer(t, svc, WithProjectRoot("/fallback"))

	tp := newTestProject("")
	a := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "a.mp4"})
	tp.addClip(tp.video1, a, 0, 5)

	if _, err := r.RenderFrame(context.Background(), tp.Project, 0, Params{}); err != nil {
		t.Fatal(err)
	}
	if reqs := svc.requests(); len(reqs) != 1 || reqs[0].Path != filepath.Join("/fallback", "a.mp4") {
		t.Errorf("requests = %+v", reqs)
	}
}
