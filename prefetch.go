package preview

import (
	"context"

	"github.com/gogpu/preview/decode"
	"github.com/gogpu/preview/timeline"
)

// Prefetch warms the frame cache for the window frames after (direction
// > 0) or before (direction < 0) time t. Every clip visible at a stepped
// frame is resolved and, on a cache miss, decoded synchronously and
// cached. Failures are ignored. The walk stops at frame zero or when ctx
// is done.
//
// It returns the number of frames decoded.
func (r *Renderer) Prefetch(ctx context.Context, p *timeline.Project, t float64, direction, window int, params Params) int {
	if window <= 0 || direction == 0 {
		return 0
	}

	order := p.VideoTrackOrder()
	fps := params.frameRate(p)
	root := r.rootFor(p)
	step := int64(1)
	if direction < 0 {
		step = -1
	}
	first := frameIndex(t, fps)

	decoded := 0
	for offset := int64(1); offset <= int64(window); offset++ {
		if ctx.Err() != nil {
			break
		}
		idx := first + step*offset
		if idx < 0 {
			break
		}
		ft := frameTime(idx, fps)
		for i := range p.Clips {
			clip := &p.Clips[i]
			if _, ok := order[clip.TrackID]; !ok || !clip.Contains(ft) {
				continue
			}
			if r.warm(ctx, p, clip, root, ft, fps, params) {
				decoded++
			}
		}
	}
	Logger().Debug("preview: prefetched", "from", t, "direction", direction, "window", window, "decoded", decoded)
	return decoded
}

// PrefetchAsync runs Prefetch on its own goroutine, canceling any
// prefetch still running from an earlier call. The returned channel
// yields the decoded frame count once and is then closed.
func (r *Renderer) PrefetchAsync(ctx context.Context, p *timeline.Project, t float64, direction, window int, params Params) <-chan int {
	done := make(chan int, 1)

	r.prefetchMu.Lock()
	if r.prefetchCancel != nil {
		r.prefetchCancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.prefetchCancel = cancel
	r.prefetchWG.Add(1)
	r.prefetchMu.Unlock()

	go func() {
		defer r.prefetchWG.Done()
		defer cancel()
		done <- r.Prefetch(ctx, p, t, direction, window, params)
		close(done)
	}()
	return done
}

// warm makes sure the frame of clip shown at timeline time ft is cached.
// It reports whether a frame was decoded.
func (r *Renderer) warm(ctx context.Context, p *timeline.Project, clip *timeline.Clip, root string, ft, fps float64, params Params) bool {
	asset, ok := p.Asset(clip.AssetID)
	if !ok || !asset.IsVisual() {
		return false
	}
	tg, ok := locate(asset, root, clip.SourceTime(ft), fps)
	if !ok || r.cache.Contains(tg.key) {
		return false
	}

	if !tg.motion {
		_, _, err := r.loadStill(tg.key)
		return err == nil
	}

	res, err := r.decoder.Decode(ctx, decode.Request{
		Path:    tg.key.Path,
		Time:    tg.time,
		Lane:    timeline.LaneID(clip.TrackID),
		Mode:    params.Mode,
		AllowHW: params.AllowHW,
	})
	if err != nil || res.Image == nil {
		return false
	}
	r.cache.Insert(tg.key, res.Image, res.SourceWidth, res.SourceHeight)
	return true
}
