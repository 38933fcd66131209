package timeline

import (
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidProject is returned when a snapshot fails validation.
var ErrInvalidProject = errors.New("timeline: invalid project")

// TrackKind is the type of a timeline track.
type TrackKind uint8

const (
	TrackVideo TrackKind = iota
	TrackAudio
	TrackMarker
)

func (k TrackKind) String() string {
	switch k {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	case TrackMarker:
		return "marker"
	default:
		return "unknown"
	}
}

// Settings holds the project's output format.
type Settings struct {
	Width  int
	Height int
	FPS    float64
}

// Track is a row on the timeline. Tracks are ordered bottom-up: the first
// video track in Project.Tracks is painted first.
type Track struct {
	ID   uuid.UUID
	Name string
	Kind TrackKind
}

// Transform is the user-authored 2D transform of a clip.
// Position is in project pixels relative to the canvas center.
type Transform struct {
	PositionX float64
	PositionY float64
	ScaleX    float64
	ScaleY    float64
	Rotation  float64 // degrees, clockwise on screen
	Opacity   float64
}

// DefaultTransform returns the identity transform: unit scale, no
// rotation, fully opaque.
func DefaultTransform() Transform {
	return Transform{ScaleX: 1, ScaleY: 1, Opacity: 1}
}

// Clip places a span of an asset on a track.
type Clip struct {
	ID        uuid.UUID
	AssetID   uuid.UUID
	TrackID   uuid.UUID
	Start     float64 // timeline seconds
	Duration  float64 // seconds
	TrimIn    float64 // seconds into the source
	Transform Transform
}

// End returns the exclusive end time of the clip on the timeline.
func (c *Clip) End() float64 { return c.Start + c.Duration }

// Contains reports whether timeline time t falls in [Start, End).
func (c *Clip) Contains(t float64) bool {
	return t >= c.Start && t < c.End()
}

// SourceTime maps timeline time t to a time inside the clip's source,
// never negative.
func (c *Clip) SourceTime(t float64) float64 {
	return max(0, t-c.Start+c.TrimIn)
}

// Project is an immutable snapshot of the editor state.
type Project struct {
	Name     string
	Root     string // directory relative asset paths resolve against
	Settings Settings
	Tracks   []Track
	Clips    []Clip
	Assets   []Asset

	assetIndex map[uuid.UUID]int
}

// Asset returns the asset with the given id.
func (p *Project) Asset(id uuid.UUID) (*Asset, bool) {
	if p.assetIndex == nil || len(p.assetIndex) != len(p.Assets) {
		// Linear scan keeps hand-built projects working without Index().
		for i := range p.Assets {
			if p.Assets[i].ID == id {
				return &p.Assets[i], true
			}
		}
		return nil, false
	}
	i, ok := p.assetIndex[id]
	if !ok {
		return nil, false
	}
	return &p.Assets[i], true
}

// Index builds the asset lookup table. Call it once after constructing a
// project by hand; Load calls it automatically. It must not run
// concurrently with readers.
func (p *Project) Index() {
	p.assetIndex = make(map[uuid.UUID]int, len(p.Assets))
	for i := range p.Assets {
		p.assetIndex[p.Assets[i].ID] = i
	}
}

// VideoTrackOrder maps each video track id to its z-order index,
// counting only video tracks in timeline order (0 = bottom).
func (p *Project) VideoTrackOrder() map[uuid.UUID]int {
	order := make(map[uuid.UUID]int, len(p.Tracks))
	n := 0
	for _, t := range p.Tracks {
		if t.Kind == TrackVideo {
			order[t.ID] = n
			n++
		}
	}
	return order
}

// HasVisualAssets reports whether any clip references a visual asset.
// A project without one has nothing to render at all. Imported assets
// that no clip uses do not count.
func (p *Project) HasVisualAssets() bool {
	for i := range p.Clips {
		if a, ok := p.Asset(p.Clips[i].AssetID); ok && a.IsVisual() {
			return true
		}
	}
	return false
}

// LaneID derives the decode scheduling lane for a track.
// It folds the 128-bit UUID by XOR-ing its high and low halves.
func LaneID(trackID uuid.UUID) uint64 {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(trackID[i])
		lo = lo<<8 | uint64(trackID[i+8])
	}
	return hi ^ lo
}
