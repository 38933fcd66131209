package preview

import (
	"context"
	"sync"
	"time"

	"github.com/gogpu/preview/cache"
	"github.com/gogpu/preview/decode"
	"github.com/gogpu/preview/placement"
	"github.com/gogpu/preview/render"
	"github.com/gogpu/preview/timeline"
)

// Params are the per-request render settings.
type Params struct {
	// FPS overrides the project frame rate used to quantize video time.
	// Zero uses the project setting.
	FPS float64

	Mode    decode.Mode
	AllowHW bool
}

func (p Params) frameRate(proj *timeline.Project) float64 {
	if p.FPS > 0 {
		return max(p.FPS, 1)
	}
	return max(proj.Settings.FPS, 1)
}

// FrameInfo identifies a composited frame in the renderer's FrameStore.
type FrameInfo struct {
	Version uint64
	Width   int
	Height  int
}

// Output is the result of RenderFrame or RenderLayers.
//
// When the project has no visual content at all, Frame and Stack are both
// nil so the caller can show a placeholder rather than a stale frame. A
// time where merely no clip is visible still yields a frame: the empty
// canvas.
type Output struct {
	Frame  *FrameInfo    // set by RenderFrame
	Stack  *render.Stack // set by RenderLayers
	Layers []Layer
	Stats  Stats
}

// Empty reports whether there was nothing to render.
func (o Output) Empty() bool { return o.Frame == nil && o.Stack == nil }

// Renderer assembles preview frames for timeline positions.
//
// It owns the decoded frame cache, the canvas plates and the store of
// recently rendered frames. Video is decoded through a decode.Service;
// by default an ffmpeg pool that the renderer closes on Close.
//
// All methods are safe for concurrent use. Projects passed in are only
// read.
type Renderer struct {
	cfg     Config
	root    string
	cache   *cache.FrameCache
	decoder decode.Service
	owned   bool
	still   StillLoader
	cpu     *render.SoftwareCompositor
	store   *FrameStore

	mu    sync.Mutex
	stats RendererStats

	prefetchMu     sync.Mutex
	prefetchCancel context.CancelFunc
	prefetchWG     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewRenderer creates a renderer.
//
// Example:
//
//	r := preview.NewRenderer(preview.WithMaxSize(1280, 720))
//	defer r.Close()
//
//	out, err := r.RenderFrame(ctx, project, 2.0, preview.Params{AllowHW: true})
func NewRenderer(opts ...Option) *Renderer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{
		cfg:     o.config,
		root:    o.root,
		cache:   o.cache,
		decoder: o.decoder,
		still:   o.still,
		cpu:     render.NewSoftwareCompositor(),
		store:   NewFrameStore(),
	}
	if r.cache == nil {
		r.cache = cache.New(o.cacheBytes)
	}
	if r.decoder == nil {
		r.decoder = decode.NewFFmpegPool(o.config.FFmpegConfig(), o.config.Decode.Workers)
		r.owned = true
	}

	Logger().Info("preview: renderer created",
		"max_width", r.cfg.Preview.MaxWidth,
		"max_height", r.cfg.Preview.MaxHeight,
		"cache_bytes", r.cache.MaxBytes(),
		"owned_decoder", r.owned)
	return r
}

// RenderFrame composites every visible layer at time t on the CPU and
// stores the result in the FrameStore.
//
// The error is non-nil only when ctx is done. Unresolvable assets and
// failed decodes drop their layer.
func (r *Renderer) RenderFrame(ctx context.Context, p *timeline.Project, t float64, params Params) (Output, error) {
	start := time.Now()
	var out Output

	layers, err := r.collect(ctx, p, t, params, &out.Stats)
	if err != nil {
		return Output{}, err
	}
	out.Stats.Collect = time.Since(start)
	out.Layers = layers

	if len(layers) == 0 && !p.HasVisualAssets() {
		out.Stats.Total = time.Since(start)
		return out, nil
	}

	w, h, scale := r.canvasSize(p)
	cs := time.Now()
	img := r.cpu.Render(w, h, sourceLayers(layers), scale)
	out.Stats.Composite = time.Since(cs)

	version, err := r.store.Push(w, h, img.Pix)
	if err != nil {
		Logger().Warn("preview: frame not stored", "err", err)
	} else {
		out.Frame = &FrameInfo{Version: version, Width: w, Height: h}
	}

	out.Stats.Total = time.Since(start)
	r.record(out.Stats)
	return out, nil
}

// RenderLayers returns the layers visible at time t placed for the GPU
// compositor. The first layer is the full-canvas plate; the border is
// drawn by the compositor itself.
func (r *Renderer) RenderLayers(ctx context.Context, p *timeline.Project, t float64, params Params) (Output, error) {
	start := time.Now()
	var out Output

	layers, err := r.collect(ctx, p, t, params, &out.Stats)
	if err != nil {
		return Output{}, err
	}
	out.Stats.Collect = time.Since(start)
	out.Layers = layers

	if len(layers) == 0 && !p.HasVisualAssets() {
		out.Stats.Total = time.Since(start)
		return out, nil
	}

	w, h, scale := r.canvasSize(p)
	fill, _ := r.cpu.Plates().Get(w, h)
	stack := render.NewStack(w, h, fill, sourceLayers(layers), scale)
	out.Stack = &stack

	out.Stats.Total = time.Since(start)
	r.record(out.Stats)
	return out, nil
}

// InvalidateFolder drops every cached frame decoded from a file under
// folder, along with whatever the decoder remembers about those files.
// Call it after generative output in folder changed. It returns the
// number of frames dropped.
func (r *Renderer) InvalidateFolder(folder string) int {
	n := r.cache.InvalidateFolder(folder)
	if f, ok := r.decoder.(interface{ ForgetFolder(string) }); ok {
		f.ForgetFolder(folder)
	}
	Logger().Debug("preview: folder invalidated", "folder", folder, "frames", n)
	return n
}

// InvalidatePath drops every cached frame decoded from path.
func (r *Renderer) InvalidatePath(path string) int {
	return r.cache.InvalidatePath(path)
}

// Store returns the store RenderFrame writes to.
func (r *Renderer) Store() *FrameStore { return r.store }

// Cache returns the decoded frame cache.
func (r *Renderer) Cache() *cache.FrameCache { return r.cache }

// Config returns the renderer's configuration.
func (r *Renderer) Config() Config { return r.cfg }

// CacheStats returns frame cache diagnostics.
func (r *Renderer) CacheStats() cache.Stats { return r.cache.Stats() }

// PlateStats returns canvas plate cache diagnostics.
func (r *Renderer) PlateStats() render.PlateStats { return r.cpu.Plates().Stats() }

// Stats returns the counters of frames rendered so far.
func (r *Renderer) Stats() RendererStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Close stops background prefetching and closes the decode service when
// the renderer created it. Close is safe to call more than once.
func (r *Renderer) Close() error {
	r.closeOnce.Do(func() {
		r.prefetchMu.Lock()
		if r.prefetchCancel != nil {
			r.prefetchCancel()
			r.prefetchCancel = nil
		}
		r.prefetchMu.Unlock()
		r.prefetchWG.Wait()

		if r.owned {
			r.closeErr = r.decoder.Close()
		}
	})
	return r.closeErr
}

func (r *Renderer) record(s Stats) {
	r.mu.Lock()
	r.stats.Frames++
	r.stats.Last = s
	r.stats.Total.add(s)
	r.mu.Unlock()

	Logger().Debug("preview: frame",
		"layers", s.Layers,
		"hits", s.CacheHits,
		"misses", s.CacheMisses,
		"still", s.StillLoad,
		"video", s.Video.Total(),
		"hw", s.HWFrames,
		"sw", s.SWFrames,
		"total", s.Total)
}

func (r *Renderer) canvasSize(p *timeline.Project) (w, h int, scale float64) {
	return placement.CanvasSize(p.Settings.Width, p.Settings.Height,
		r.cfg.Preview.MaxWidth, r.cfg.Preview.MaxHeight)
}

// rootFor returns the directory p's relative asset paths resolve against.
func (r *Renderer) rootFor(p *timeline.Project) string {
	if p.Root != "" {
		return p.Root
	}
	return r.root
}
