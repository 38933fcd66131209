// Package cache holds decoded preview frames.
//
// FrameCache is a byte-bounded LRU keyed by (source path, frame index).
// It charges width*height*4 bytes per frame and evicts least recently used
// frames until the running total is back within budget, so the total never
// exceeds the budget once Insert returns.
//
//	fc := cache.New(512 << 20)
//	key := cache.FrameKey{Path: "/media/shot.mp4", Index: 60}
//	if f, ok := fc.Get(key); ok {
//	    use(f.Image)
//	}
//
// A secondary index from source path to cached frame indices backs folder
// invalidation (InvalidateFolder) and cache coverage queries
// (BucketMembership).
//
// # Thread Safety
//
// FrameCache is safe for concurrent use from render and decode-completion
// goroutines. Frames are immutable after insertion.
package cache
