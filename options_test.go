package preview

import (
	"testing"

	"github.com/gogpu/preview/cache"
	"github.com/gogpu/preview/decode"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.config.Preview.MaxWidth != 960 || o.cacheBytes != 512<<20 {
		t.Errorf("options = %+v", o)
	}
	if o.decoder != nil || o.cache != nil || o.still == nil {
		t.Error("defaults should leave decoder and cache to NewRenderer")
	}
}

func TestOptionsApply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.MaxMB = 8
	shared := cache.New(1 << 20)
	svc := newFakeService()
	still := func(string, int, int) (decode.Result, error) { return decode.Result{}, nil }

	o := defaultOptions()
	for _, opt := range []Option{
		WithConfig(cfg),
		WithMaxSize(320, 180),
		WithMaxSize(0, 10), // ignored
		WithCacheBytes(-5),
		WithFrameCache(shared),
		WithDecoder(svc),
		WithStillLoader(still),
		WithStillLoader(nil), // ignored
		WithProjectRoot("/root"),
	} {
		opt(&o)
	}

	if o.config.Preview.MaxWidth != 320 || o.config.Preview.MaxHeight != 180 {
		t.Errorf("max size = %+v", o.config.Preview)
	}
	if o.cacheBytes != 0 {
		t.Errorf("cacheBytes = %d, want clamped to 0", o.cacheBytes)
	}
	if o.cache != shared || o.decoder != svc || o.still == nil || o.root != "/root" {
		t.Errorf("options = %+v", o)
	}
}

func TestNewRendererOptions(t *testing.T) {
	shared := cache.New(1 << 20)
	r := newTestRenderer(t, newFakeService(), WithFrameCache(shared))
	if r.Cache() != shared {
		t.Error("shared cache not used")
	}
	if r.Config().Preview.MaxWidth != 96 {
		t.Errorf("config = %+v", r.Config())
	}

	owned := NewRenderer(WithCacheBytes(1024))
	defer owned.Close()
	if !owned.owned || owned.CacheStats().MaxBytes != 1024 {
		t.Errorf("default renderer should own its decoder and honor the budget: %+v", owned.CacheStats())
	}
}
