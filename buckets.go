package preview

import (
	"math"

	"github.com/google/uuid"

	"github.com/gogpu/preview/timeline"
)

// maxCacheBuckets caps the number of buckets per clip.
const maxCacheBuckets = 120

// CachedBuckets reports, per clip, which stretches of the clip have a
// decoded frame in the cache. Each clip is split into equal buckets of at
// least hint seconds (and at least one frame); a bucket is true when any
// cached frame falls inside it. A still clip is all true or all false.
//
// Clips without duration, with a non-visual asset, or whose source
// cannot be resolved are left out.
func (r *Renderer) CachedBuckets(p *timeline.Project, hint float64) map[uuid.UUID][]bool {
	fps := max(p.Settings.FPS, 1)
	minBucket := max(1/fps, 0.001)
	hint = max(hint, minBucket)
	root := r.rootFor(p)

	out := make(map[uuid.UUID][]bool)
	for i := range p.Clips {
		clip := &p.Clips[i]
		asset, ok := p.Asset(clip.AssetID)
		if !ok || !asset.IsVisual() {
			continue
		}
		src, ok := resolve(asset, root)
		if !ok {
			continue
		}
		dur := max(clip.Duration, 0)
		if dur <= 0 {
			continue
		}

		bucket := max(hint, dur/maxCacheBuckets, minBucket)
		buckets := make([]bool, max(int(math.Ceil(dur/bucket)), 1))
		out[clip.ID] = buckets

		cached := r.cache.BucketMembership(src.path)
		if len(cached) == 0 {
			continue
		}
		if !src.motion {
			if cached[0] == 0 {
				for b := range buckets {
					buckets[b] = true
				}
			}
			continue
		}

		in := max(clip.TrimIn, 0)
		for _, idx := range cached {
			ft := frameTime(idx, fps)
			if ft < in || ft > in+dur {
				continue
			}
			if b := int(math.Floor((ft - in) / bucket)); b < len(buckets) {
				buckets[b] = true
			}
		}
	}
	return out
}
