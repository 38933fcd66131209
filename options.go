package preview

import (
	"github.com/gogpu/preview/cache"
	"github.com/gogpu/preview/decode"
)

// Option configures a Renderer during creation.
//
// Example:
//
//	// Defaults: 960x540 preview, ffmpeg decode pool, 512 MB cache.
//	r := preview.NewRenderer()
//
//	// Injected decoder and a smaller cache.
//	r := preview.NewRenderer(preview.WithDecoder(svc), preview.WithCacheBytes(64<<20))
type Option func(*options)

// StillLoader decodes a still image and fits it within maxW x maxH.
type StillLoader func(path string, maxW, maxH int) (decode.Result, error)

// options holds optional configuration for Renderer creation.
type options struct {
	config     Config
	cacheBytes int64
	cache      *cache.FrameCache
	decoder    decode.Service
	still      StillLoader
	root       string
}

// defaultOptions returns the default renderer options.
func defaultOptions() options {
	cfg := DefaultConfig()
	return options{
		config:     cfg,
		cacheBytes: cfg.CacheBytes(),
		still:      decode.LoadStill,
	}
}

// WithConfig applies a loaded configuration. Options given after it
// override individual fields.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
		o.cacheBytes = cfg.CacheBytes()
	}
}

// WithMaxSize bounds the preview canvas. Project frames larger than
// w x h are scaled down to fit.
func WithMaxSize(w, h int) Option {
	return func(o *options) {
		if w > 0 && h > 0 {
			o.config.Preview.MaxWidth = w
			o.config.Preview.MaxHeight = h
		}
	}
}

// WithCacheBytes sets the frame cache budget in bytes. Zero disables
// caching. Ignored when WithFrameCache is also given.
func WithCacheBytes(n int64) Option {
	return func(o *options) {
		o.cacheBytes = max(n, 0)
	}
}

// WithFrameCache shares an existing frame cache, for example between a
// CPU and a GPU preview of the same project.
func WithFrameCache(c *cache.FrameCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithDecoder sets the video decode service. The renderer does not close
// an injected service; the caller owns it.
//
// Example:
//
//	svc := decode.NewFFmpegPool(decode.FFmpegConfig{MaxWidth: 640, MaxHeight: 360}, 2)
//	defer svc.Close()
//	r := preview.NewRenderer(preview.WithDecoder(svc))
func WithDecoder(svc decode.Service) Option {
	return func(o *options) {
		o.decoder = svc
	}
}

// WithStillLoader replaces the still image loader. The default is
// decode.LoadStill.
func WithStillLoader(fn StillLoader) Option {
	return func(o *options) {
		if fn != nil {
			o.still = fn
		}
	}
}

// WithProjectRoot sets the directory relative asset paths resolve against
// when a project carries no Root of its own.
func WithProjectRoot(dir string) Option {
	return func(o *options) {
		o.root = dir
	}
}
