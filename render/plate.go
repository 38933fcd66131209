// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"
	"image/color"
	"sync"

	intImage "github.com/gogpu/preview/internal/image"
)

// Preview frame colors.
var (
	// PlateColor fills the canvas behind all layers.
	PlateColor = color.RGBA{A: 0xff}

	// BorderColor outlines the canvas edge.
	BorderColor = color.RGBA{R: 0x27, G: 0x27, B: 0x2a, A: 0xff}

	// SurroundColor fills a GPU overlay outside the letterboxed canvas.
	SurroundColor = color.RGBA{R: 0x0a, G: 0x0a, B: 0x0b, A: 0xff}
)

// BorderWidth is the canvas border width in canvas pixels.
const BorderWidth = 1

// Plates caches the canvas background rasters for the current canvas size:
// a solid fill and the same fill with the border already drawn. A size
// change replaces both.
//
// Plates is safe for concurrent use. Returned images are shared and must
// not be modified.
type Plates struct {
	mu     sync.Mutex
	w, h   int
	fill   *image.RGBA
	border *image.RGBA

	hits, builds uint64
}

// Get returns the fill and bordered plates for a w x h canvas.
func (p *Plates) Get(w, h int) (fill, border *image.RGBA) {
	w, h = max(w, 1), max(h, 1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fill != nil && p.w == w && p.h == h {
		p.hits++
		return p.fill, p.border
	}

	p.fill = image.NewRGBA(image.Rect(0, 0, w, h))
	intImage.Fill(p.fill, PlateColor)
	p.border = intImage.Clone(p.fill)
	intImage.DrawBorder(p.border, BorderColor, BorderWidth)
	p.w, p.h = w, h
	p.builds++

	slogger().Debug("render: plates rebuilt", "width", w, "height", h)
	return p.fill, p.border
}

// PlateStats describes plate cache usage.
type PlateStats struct {
	Width, Height int
	Hits          uint64
	Builds        uint64
}

// Stats returns a snapshot of plate cache usage.
func (p *Plates) Stats() PlateStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PlateStats{Width: p.w, Height: p.h, Hits: p.hits, Builds: p.builds}
}
