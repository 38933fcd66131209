package preview

import "math"

// endGuard keeps clamped source times strictly inside a clip's media so
// the last requested frame still exists.
const endGuard = 0.001

// frameEpsilon absorbs the rounding in t*fps so that a frame's own start
// time quantizes back to that frame.
const frameEpsilon = 1e-6

// clampTime limits a source time to [0, dur-endGuard]. Without a known
// duration only the lower bound applies.
func clampTime(t, dur float64, known bool) float64 {
	t = max(t, 0)
	if known {
		t = min(t, max(dur-endGuard, 0))
	}
	return t
}

// frameIndex quantizes a time to a frame index at fps. Frame rates below
// one are treated as one. frameIndex(frameTime(i, fps), fps) == i.
func frameIndex(t, fps float64) int64 {
	return int64(math.Floor(max(t, 0)*max(fps, 1) + frameEpsilon))
}

// frameTime is the start time of frame i at fps.
func frameTime(i int64, fps float64) float64 {
	return float64(max(i, 0)) / max(fps, 1)
}
