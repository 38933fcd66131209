package preview

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/preview/cache"
	"github.com/gogpu/preview/decode"
	"github.com/gogpu/preview/render"
	"github.com/gogpu/preview/timeline"
)

// Layer is a visible clip at the requested time with its decoded frame.
type Layer struct {
	ClipID    uuid.UUID
	Track     int     // video track index, 0 = bottom
	Start     float64 // clip start on the timeline
	Path      string
	Index     int64 // frame index, 0 for stills
	Frame     *cache.Frame
	Transform timeline.Transform
}

func (l *Layer) source() render.SourceLayer {
	return render.SourceLayer{
		Image:        l.Frame.Image,
		SourceWidth:  l.Frame.SourceWidth,
		SourceHeight: l.Frame.SourceHeight,
		Transform:    l.Transform,
	}
}

func sourceLayers(layers []Layer) []render.SourceLayer {
	out := make([]render.SourceLayer, len(layers))
	for i := range layers {
		out[i] = layers[i].source()
	}
	return out
}

// pendingDecode is a video layer waiting on the decode service.
type pendingDecode struct {
	layer Layer
	key   cache.FrameKey
	time  float64
	lane  uint64
}

// target is a clip's source file and the frame to show from it.
type target struct {
	key    cache.FrameKey
	time   float64 // start of the frame; 0 for stills
	motion bool
}

// locate resolves asset and quantizes sourceTime to a frame of it.
func locate(asset *timeline.Asset, root string, sourceTime, fps float64) (target, bool) {
	src, ok := resolve(asset, root)
	if !ok {
		return target{}, false
	}
	tg := target{key: cache.FrameKey{Path: src.path}, motion: src.motion}
	if src.motion {
		dur, known := asset.DurationSeconds()
		tg.key.Index = frameIndex(clampTime(sourceTime, dur, known), fps)
		tg.time = frameTime(tg.key.Index, fps)
	}
	return tg, true
}

// collect gathers the layers visible at t in paint order. Cache misses
// are decoded here: stills inline, video through the decode service with
// every request dispatched before the first is awaited.
//
// The only error is ctx's.
func (r *Renderer) collect(ctx context.Context, p *timeline.Project, t float64, params Params, stats *Stats) ([]Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order := p.VideoTrackOrder()
	fps := params.frameRate(p)
	root := r.rootFor(p)

	var (
		layers  []Layer
		pending []pendingDecode
	)
	for i := range p.Clips {
		clip := &p.Clips[i]
		z, ok := order[clip.TrackID]
		if !ok || !clip.Contains(t) {
			continue
		}
		asset, ok := p.Asset(clip.AssetID)
		if !ok || !asset.IsVisual() {
			continue
		}

		tg, ok := locate(asset, root, clip.SourceTime(t), fps)
		if !ok {
			stats.Unresolved++
			Logger().Warn("preview: asset source not found", "asset", asset.ID, "name", asset.Name)
			continue
		}

		layer := Layer{
			ClipID:    clip.ID,
			Track:     z,
			Start:     clip.Start,
			Path:      tg.key.Path,
			Index:     tg.key.Index,
			Transform: clip.Transform,
		}

		if f, ok := r.cache.Get(tg.key); ok {
			stats.CacheHits++
			layer.Frame = f
			layers = append(layers, layer)
			continue
		}
		stats.CacheMisses++

		if !tg.motion {
			f, took, err := r.loadStill(tg.key)
			stats.StillLoad += took
			if err != nil {
				stats.Dropped++
				Logger().Warn("preview: still decode failed", "path", tg.key.Path, "err", err)
				continue
			}
			layer.Frame = f
			layers = append(layers, layer)
			continue
		}

		pending = append(pending, pendingDecode{
			layer: layer,
			key:   tg.key,
			time:  tg.time,
			lane:  timeline.LaneID(clip.TrackID),
		})
	}

	results := make([]<-chan decode.Result, len(pending))
	for i, pd := range pending {
		results[i] = r.decoder.DecodeAsync(ctx, decode.Request{
			Path:    pd.key.Path,
			Time:    pd.time,
			Lane:    pd.lane,
			Mode:    params.Mode,
			AllowHW: params.AllowHW,
		})
	}

	for i, ch := range results {
		var res decode.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stats.Video.Add(res.Timings)
		pd := pending[i]
		if res.Err != nil || res.Image == nil {
			stats.Dropped++
			Logger().Warn("preview: video decode failed", "path", pd.key.Path, "frame", pd.key.Index, "err", res.Err)
			continue
		}
		if res.UsedHW {
			stats.HWFrames++
		} else {
			stats.SWFrames++
		}
		pd.layer.Frame = r.cache.Insert(pd.key, res.Image, res.SourceWidth, res.SourceHeight)
		layers = append(layers, pd.layer)
	}

	sortLayers(layers)
	stats.Layers = len(layers)
	return layers, nil
}

// loadStill decodes a still image, fits it to the preview bound and
// caches it.
func (r *Renderer) loadStill(key cache.FrameKey) (*cache.Frame, time.Duration, error) {
	start := time.Now()
	res, err := r.still(key.Path, r.cfg.Preview.MaxWidth, r.cfg.Preview.MaxHeight)
	took := time.Since(start)
	if err != nil {
		return nil, took, err
	}
	if res.Image == nil {
		return nil, took, decode.ErrNoFrame
	}
	return r.cache.Insert(key, res.Image, res.SourceWidth, res.SourceHeight), took, nil
}

// sortLayers orders layers bottom track first, then by clip start.
func sortLayers(layers []Layer) {
	slices.SortStableFunc(layers, func(a, b Layer) int {
		if c := cmp.Compare(a.Track, b.Track); c != 0 {
			return c
		}
		return cmp.Compare(a.Start, b.Start)
	})
}
