package cache

import (
	"image"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// FrameKey identifies one decoded frame: the absolute source path and the
// frame index at the project frame rate. Stills always use index 0.
type FrameKey struct {
	Path  string
	Index int64
}

// Frame is a decoded raster plus the dimensions of the source it came
// from. The raster may be smaller than the source when the decoder
// downscaled it. A Frame is immutable once it has been inserted and may be
// shared by any number of readers.
type Frame struct {
	Image        *image.RGBA
	SourceWidth  int
	SourceHeight int
}

// Size returns the number of bytes the frame is charged against the
// cache budget: width*height*4.
func (f *Frame) Size() int64 {
	if f == nil || f.Image == nil {
		return 0
	}
	b := f.Image.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// FrameCache is a byte-bounded LRU cache of decoded frames.
//
// Besides the key map it keeps a per-path index of cached frame indices,
// used for folder invalidation and cache coverage queries. A single mutex
// guards all state; decoding must happen outside the cache.
//
// FrameCache is safe for concurrent use. It must not be copied.
type FrameCache struct {
	mu       sync.Mutex
	entries  map[FrameKey]*recencyNode
	byPath   map[string]map[int64]struct{}
	recency  recencyList
	bytes    int64
	maxBytes int64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding at most maxBytes of decoded pixels.
// A budget of zero or less disables caching: every Insert is dropped.
func New(maxBytes int64) *FrameCache {
	return &FrameCache{
		entries:  make(map[FrameKey]*recencyNode),
		byPath:   make(map[string]map[int64]struct{}),
		maxBytes: max(maxBytes, 0),
	}
}

// Get returns the cached frame for key and marks it most recently used.
// A miss has no side effects besides the miss counter.
func (c *FrameCache) Get(key FrameKey) (*Frame, bool) {
	c.mu.Lock()
	n, ok := c.entries[key]
	if ok {
		c.recency.touch(n)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return n.frame, true
}

// Insert stores img under key, replacing any previous frame for the key,
// and evicts least recently used frames until the byte total is within
// budget again.
//
// Empty images, a zero budget, and frames larger than the whole budget are
// not cached. The returned Frame wraps img either way so callers can use
// it for the current render.
func (c *FrameCache) Insert(key FrameKey, img *image.RGBA, sourceW, sourceH int) *Frame {
	f := &Frame{Image: img, SourceWidth: sourceW, SourceHeight: sourceH}
	size := f.Size()

	c.mu.Lock()
	defer c.mu.Unlock()

	if size == 0 || c.maxBytes == 0 || size > c.maxBytes {
		return f
	}

	if old, ok := c.entries[key]; ok {
		c.removeLocked(old)
	}

	n := &recencyNode{key: key, size: size, frame: f}
	c.entries[key] = n
	c.recency.pushFront(n)
	c.bytes += size

	idx := c.byPath[key.Path]
	if idx == nil {
		idx = make(map[int64]struct{})
		c.byPath[key.Path] = idx
	}
	idx[key.Index] = struct{}{}

	for c.bytes > c.maxBytes {
		victim := c.recency.oldest()
		if victim == nil {
			break
		}
		c.removeLocked(victim)
		c.evictions.Add(1)
	}
	return f
}

// InvalidatePath drops every cached frame decoded from path.
// It returns the number of frames removed.
func (c *FrameCache) InvalidatePath(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidateLocked(path)
}

// InvalidateFolder drops every cached frame whose source path lies under
// folder. Matching is component-wise: "/media/a" covers "/media/a/x.png"
// but not "/media/ab/x.png". It returns the number of frames removed.
func (c *FrameCache) InvalidateFolder(folder string) int {
	folder = filepath.Clean(folder)
	prefix := folder
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for path := range c.byPath {
		if path == folder || strings.HasPrefix(path, prefix) {
			removed += c.invalidateLocked(path)
		}
	}
	return removed
}

// BucketMembership returns the sorted frame indices cached for path.
func (c *FrameCache) BucketMembership(path string) []int64 {
	c.mu.Lock()
	idx := c.byPath[path]
	out := make([]int64, 0, len(idx))
	for i := range idx {
		out = append(out, i)
	}
	c.mu.Unlock()

	slices.Sort(out)
	return out
}

// Contains reports whether key is cached without touching recency or the
// hit counters.
func (c *FrameCache) Contains(key FrameKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of cached frames.
func (c *FrameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Bytes returns the byte total currently charged against the budget.
func (c *FrameCache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// MaxBytes returns the configured budget.
func (c *FrameCache) MaxBytes() int64 {
	return c.maxBytes
}

// Clear drops every frame. Counters are kept.
func (c *FrameCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[FrameKey]*recencyNode)
	c.byPath = make(map[string]map[int64]struct{})
	c.recency.reset()
	c.bytes = 0
}

// Stats returns a snapshot of cache diagnostics.
func (c *FrameCache) Stats() Stats {
	c.mu.Lock()
	entries, bytes, paths := len(c.entries), c.bytes, len(c.byPath)
	c.mu.Unlock()

	return Stats{
		Entries:   entries,
		Paths:     paths,
		Bytes:     bytes,
		MaxBytes:  c.maxBytes,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// ResetStats zeroes the hit, miss and eviction counters.
func (c *FrameCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

// invalidateLocked removes all frames for path. Caller holds c.mu.
func (c *FrameCache) invalidateLocked(path string) int {
	idx := c.byPath[path]
	n := 0
	for i := range idx {
		if node, ok := c.entries[FrameKey{Path: path, Index: i}]; ok {
			c.removeLocked(node)
			n++
		}
	}
	delete(c.byPath, path)
	return n
}

// removeLocked unlinks one node from every index. Caller holds c.mu.
func (c *FrameCache) removeLocked(n *recencyNode) {
	c.recency.unlink(n)
	delete(c.entries, n.key)
	c.bytes -= n.size
	if idx := c.byPath[n.key.Path]; idx != nil {
		delete(idx, n.key.Index)
		if len(idx) == 0 {
			delete(c.byPath, n.key.Path)
		}
	}
}

// Stats contains frame cache diagnostics.
type Stats struct {
	// Entries is the number of cached frames.
	Entries int
	// Paths is the number of distinct source paths with cached frames.
	Paths int
	// Bytes is the current byte total.
	Bytes int64
	// MaxBytes is the configured budget.
	MaxBytes int64
	// Hits is the number of Get calls that found a frame.
	Hits uint64
	// Misses is the number of Get calls that did not.
	Misses uint64
	// Evictions is the number of frames dropped to stay within budget.
	Evictions uint64
}

// HitRate returns hits/(hits+misses), or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
