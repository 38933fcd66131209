package preview

import (
	"bytes"
	"errors"
	"image/png"
	"testing"
)

func TestFrameStore(t *testing.T) {
	s := NewFrameStore()
	if _, ok := s.Latest(); ok {
		t.Fatal("empty store should have no latest frame")
	}
	if _, err := s.PNG(1); err == nil {
		t.Error("PNG on an empty store should fail")
	}

	var versions []uint64
	for i := range 3 {
		v, err := s.Push(2, 1, bytes.Repeat([]byte{byte(i)}, 8))
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
		versions = append(versions, v)
	}
	if versions[0] != 1 || versions[2] != 3 {
		t.Errorf("versions = %v, want 1..3", versions)
	}

	if f, ok := s.Get(2); !ok || f.Version != 2 || f.Pix[0] != 1 {
		t.Errorf("Get(2) = %+v", f)
	}
	// Version 1 was dropped; Get falls back to the latest.
	if f, ok := s.Get(1); !ok || f.Version != 3 {
		t.Errorf("Get(1) = %+v, want latest", f)
	}
	if f, _ := s.Latest(); f.Version != 3 {
		t.Errorf("Latest = %d, want 3", f.Version)
	}
}

func TestFrameStoreRejectsBadSizes(t *testing.T) {
	s := NewFrameStore()
	for _, tc := range []struct {
		w, h int
		n    int
	}{
		{2, 2, 15},
		{0, 2, 0},
		{2, -1, 8},
	} {
		if _, err := s.Push(tc.w, tc.h, make([]byte, tc.n)); !errors.Is(err, ErrFrameSize) {
			t.Errorf("Push(%d, %d, %d bytes) err = %v, want ErrFrameSize", tc.w, tc.h, tc.n, err)
		}
	}
}

func TestFrameStoreVersionSkipsZero(t *testing.T) {
	s := NewFrameStore()
	s.latest = ^uint64(0)
	v, err := s.Push(1, 1, make([]byte, 4))
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("version after wrap = %d, want 1", v)
	}
}

func TestFrameStorePNG(t *testing.T) {
	s := NewFrameStore()
	v, err := s.Push(3, 2, solid(3, 2, red).Pix)
	if err != nil {
		t.Fatal(err)
	}
	data, err := s.PNG(v)
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Errorf("bounds = %v", b)
	}
	if r, g, _, a := img.At(1, 1).RGBA(); r != 0xffff || g != 0 || a != 0xffff {
		t.Errorf("pixel = %v, want red", img.At(1, 1))
	}
}
