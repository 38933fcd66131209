package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
)

// storeDepth is how many rendered frames a FrameStore keeps.
const storeDepth = 2

// ErrFrameSize is returned by FrameStore.Push for a pixel buffer that does
// not match its dimensions.
var ErrFrameSize = errors.New("preview: frame size mismatch")

// StoredFrame is a rendered preview frame. Pix is straight-from-canvas
// RGBA, row-major without padding, and must not be modified.
type StoredFrame struct {
	Version uint64
	Width   int
	Height  int
	Pix     []byte
}

// Image wraps the frame as an *image.RGBA sharing Pix.
func (f *StoredFrame) Image() *image.RGBA {
	return &image.RGBA{Pix: f.Pix, Stride: f.Width * 4, Rect: image.Rect(0, 0, f.Width, f.Height)}
}

// FrameStore holds the most recent rendered frames so a UI can fetch a
// frame by the version RenderFrame reported, even if a newer one has
// landed since. Versions start at 1 and never repeat zero.
//
// FrameStore is safe for concurrent use.
type FrameStore struct {
	mu     sync.RWMutex
	latest uint64
	frames []*StoredFrame // oldest first
}

// NewFrameStore creates an empty store.
func NewFrameStore() *FrameStore {
	return &FrameStore{frames: make([]*StoredFrame, 0, storeDepth+1)}
}

// Push stores a w x h frame and returns its version. The store takes
// ownership of pix.
func (s *FrameStore) Push(w, h int, pix []byte) (uint64, error) {
	if w <= 0 || h <= 0 || len(pix) != w*h*4 {
		return 0, fmt.Errorf("%w: %dx%d with %d bytes", ErrFrameSize, w, h, len(pix))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest++
	if s.latest == 0 {
		s.latest = 1
	}
	s.frames = append(s.frames, &StoredFrame{Version: s.latest, Width: w, Height: h, Pix: pix})
	if n := len(s.frames); n > storeDepth {
		copy(s.frames, s.frames[n-storeDepth:])
		clear(s.frames[storeDepth:])
		s.frames = s.frames[:storeDepth]
	}
	return s.latest, nil
}

// Get returns the frame with the given version, or the latest frame when
// that version has been dropped. It reports false only for an empty store.
func (s *FrameStore) Get(version uint64) (*StoredFrame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.frames {
		if f.Version == version {
			return f, true
		}
	}
	return s.latestLocked()
}

// Latest returns the most recent frame.
func (s *FrameStore) Latest() (*StoredFrame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestLocked()
}

func (s *FrameStore) latestLocked() (*StoredFrame, bool) {
	if len(s.frames) == 0 {
		return nil, false
	}
	return s.frames[len(s.frames)-1], true
}

// PNG encodes the frame Get(version) would return.
func (s *FrameStore) PNG(version uint64) ([]byte, error) {
	f, ok := s.Get(version)
	if !ok {
		return nil, errors.New("preview: no frame stored")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Image()); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Version, err)
	}
	return buf.Bytes(), nil
}
