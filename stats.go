package preview

import (
	"time"

	"github.com/gogpu/preview/decode"
)

// Stats breaks down the work done for one rendered frame.
type Stats struct {
	Layers int

	// Frame cache lookups.
	CacheHits   int
	CacheMisses int

	// Layers skipped because the asset could not be resolved or decoded.
	Unresolved int
	Dropped    int

	StillLoad time.Duration
	Video     decode.Timings
	HWFrames  int
	SWFrames  int

	Collect   time.Duration
	Composite time.Duration
	Total     time.Duration
}

// add accumulates o into s.
func (s *Stats) add(o Stats) {
	s.Layers += o.Layers
	s.CacheHits += o.CacheHits
	s.CacheMisses += o.CacheMisses
	s.Unresolved += o.Unresolved
	s.Dropped += o.Dropped
	s.StillLoad += o.StillLoad
	s.Video.Add(o.Video)
	s.HWFrames += o.HWFrames
	s.SWFrames += o.SWFrames
	s.Collect += o.Collect
	s.Composite += o.Composite
	s.Total += o.Total
}

// RendererStats summarizes a renderer's lifetime.
type RendererStats struct {
	Frames uint64 // RenderFrame and RenderLayers calls that produced output
	Last   Stats
	Total  Stats
}
