package preview

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/gogpu/preview/decode"
	"github.com/gogpu/preview/timeline"
)

var (
	red  = color.RGBA{R: 0xff, A: 0xff}
	blue = color.RGBA{B: 0xff, A: 0xff}
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// fakeService decodes every request to a solid frame without touching
// the file system. Frames are 96x54 decoded from a 1920x1080 source.
type fakeService struct {
	mu     sync.Mutex
	calls  []decode.Request
	colors map[string]color.RGBA
	fail   map[string]bool
	closed bool
}

func newFakeService() *fakeService {
	return &fakeService{colors: make(map[string]color.RGBA), fail: make(map[string]bool)}
}

func (s *fakeService) DecodeAsync(ctx context.Context, req decode.Request) <-chan decode.Result {
	ch := make(chan decode.Result, 1)
	res, err := s.Decode(ctx, req)
	res.Err = err
	ch <- res
	close(ch)
	return ch
}

func (s *fakeService) Decode(_ context.Context, req decode.Request) (decode.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.fail[req.Path] {
		return decode.Result{}, errors.New("corrupt stream")
	}
	c, ok := s.colors[req.Path]
	if !ok {
		c = red
	}
	return decode.Result{
		Image:        solid(96, 54, c),
		SourceWidth:  1920,
		SourceHeight: 1080,
		UsedHW:       req.AllowHW,
	}, nil
}

func (s *fakeService) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeService) requests() []decode.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]decode.Request(nil), s.calls...)
}

// testProject is a 1920x1080 30 fps project with two video tracks and an
// audio track, rooted at root. It has no clips or assets.
type testProject struct {
	*timeline.Project
	video1, video2, audio uuid.UUID
}

func newTestProject(root string) *testProject {
	tp := &testProject{
		Project: &timeline.Project{
			Name:     "test",
			Root:     root,
			Settings: timeline.Settings{Width: 1920, Height: 1080, FPS: 30},
		},
		video1: uuid.New(),
		video2: uuid.New(),
		audio:  uuid.New(),
	}
	tp.Tracks = []timeline.Track{
		{ID: tp.video1, Name: "Video 1", Kind: timeline.TrackVideo},
		{ID: tp.audio, Name: "Audio 1", Kind: timeline.TrackAudio},
		{ID: tp.video2, Name: "Video 2", Kind: timeline.TrackVideo},
	}
	return tp
}

// addAsset appends an asset and returns its id.
func (tp *testProject) addAsset(a timeline.Asset) uuid.UUID {
	a.ID = uuid.New()
	tp.Assets = append(tp.Assets, a)
	return a.ID
}

// addClip places asset on track over [start, start+dur) and returns the
// clip id.
func (tp *testProject) addClip(track, asset uuid.UUID, start, dur float64) uuid.UUID {
	c := timeline.Clip{
		ID:        uuid.New(),
		AssetID:   asset,
		TrackID:   track,
		Start:     start,
		Duration:  dur,
		Transform: timeline.DefaultTransform(),
	}
	tp.Clips = append(tp.Clips, c)
	return c.ID
}

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, solid(w, h, c)); err != nil {
		t.Fatal(err)
	}
}

// countingStills wraps decode.LoadStill and counts loads per path.
type countingStills struct {
	mu    sync.Mutex
	loads map[string]int
}

func (c *countingStills) load(path string, maxW, maxH int) (decode.Result, error) {
	c.mu.Lock()
	if c.loads == nil {
		c.loads = make(map[string]int)
	}
	c.loads[path]++
	c.mu.Unlock()
	return decode.LoadStill(path, maxW, maxH)
}

func (c *countingStills) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads[path]
}

func newTestRenderer(t *testing.T, svc decode.Service, opts ...Option) *Renderer {
	t.Helper()
	opts = append([]Option{WithDecoder(svc), WithMaxSize(96, 54), WithCacheBytes(64 << 20)}, opts...)
	r := NewRenderer(opts...)
	t.Cleanup(func() { _ = r.Close() })
	return r
}
