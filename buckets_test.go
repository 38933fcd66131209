package preview

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/gogpu/preview/timeline"
)

func TestCachedBucketsVideo(t *testing.T) {
	r := newTestRenderer(t, newFakeService())

	tp := newTestProject("/proj")
	a := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/a.mp4"})
	id := tp.addClip(tp.video1, a, 0, 4)

	got := r.CachedBuckets(tp.Project, 1)
	if want := []bool{false, false, false, false}; !slices.Equal(got[id], want) {
		t.Fatalf("cold buckets = %v, want %v", got[id], want)
	}

	if _, err := r.RenderFrame(context.Background(), tp.Project, 2, Params{}); err != nil {
		t.Fatal(err)
	}
	got = r.CachedBuckets(tp.Project, 1)
	if want := []bool{false, false, true, false}; !slices.Equal(got[id], want) {
		t.Errorf("buckets = %v, want %v", got[id], want)
	}
}

func TestCachedBucketsTrimIn(t *testing.T) {
	r := newTestRenderer(t, newFakeService())

	tp := newTestProject("/proj")
	a := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/a.mp4"})
	id := tp.addClip(tp.video1, a, 10, 2)
	tp.Clips[0].TrimIn = 5

	// Timeline 10.5s is source 5.5s: half a second into the clip.
	if _, err := r.RenderFrame(context.Background(), tp.Project, 10.5, Params{}); err != nil {
		t.Fatal(err)
	}
	got := r.CachedBuckets(tp.Project, 0.5)
	if want := []bool{false, true, false, false}; !slices.Equal(got[id], want) {
		t.Errorf("buckets = %v, want %v", got[id], want)
	}
}

func TestCachedBucketsStill(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "logo.png"), 8, 8, red)
	r := newTestRenderer(t, newFakeService())

	tp := newTestProject(root)
	logo := tp.addAsset(timeline.Asset{Kind: timeline.KindImage, Path: "logo.png"})
	id := tp.addClip(tp.video1, logo, 0, 3)

	if got := r.CachedBuckets(tp.Project, 1); !slices.Equal(got[id], []bool{false, false, false}) {
		t.Fatalf("cold still buckets = %v", got[id])
	}
	if _, err := r.RenderFrame(context.Background(), tp.Project, 0, Params{}); err != nil {
		t.Fatal(err)
	}
	if got := r.CachedBuckets(tp.Project, 1); !slices.Equal(got[id], []bool{true, true, true}) {
		t.Errorf("still buckets = %v, want all true", got[id])
	}
}

func TestCachedBucketsSizing(t *testing.T) {
	r := newTestRenderer(t, newFakeService())

	tp := newTestProject("/proj")
	a := tp.addAsset(timeline.Asset{Kind: timeline.KindVideo, Path: "/m/a.mp4"})
	song := tp.addAsset(timeline.Asset{Kind: timeline.KindAudio, Path: "/m/a.wav"})
	gone := tp.addAsset(timeline.Asset{Kind: timeline.KindGenerativeImage, Folder: "/nonexistent/folder"})
	long := tp.addClip(tp.video1, a, 0, 600)
	short := tp.addClip(tp.video1, a, 0, 0.01)
	empty := tp.addClip(tp.video1, a, 0, 0)
	audio := tp.addClip(tp.audio, song, 0, 5)
	missing := tp.addClip(tp.video2, gone, 0, 5)

	got := r.CachedBuckets(tp.Project, 0)
	if n := len(got[long]); n != 120 {
		t.Errorf("long clip buckets = %d, want capped at 120", n)
	}
	if n := len(got[short]); n != 1 {
		t.Errorf("short clip buckets = %d, want 1", n)
	}
	for name, id := range map[string]uuid.UUID{"empty": empty, "audio": audio, "missing": missing} {
		if _, ok := got[id]; ok {
			t.Errorf("%s clip should be omitted", name)
		}
	}
}
