package timeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// projectFile is the YAML snapshot layout. IDs are kept as strings so
// parse errors can name the offending entry.
type projectFile struct {
	Name     string `yaml:"name"`
	Root     string `yaml:"root"`
	Settings struct {
		Width  int     `yaml:"width"`
		Height int     `yaml:"height"`
		FPS    float64 `yaml:"fps"`
	} `yaml:"settings"`
	Tracks []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
		Kind string `yaml:"kind"`
	} `yaml:"tracks"`
	Assets []struct {
		ID            string   `yaml:"id"`
		Name          string   `yaml:"name"`
		Kind          string   `yaml:"kind"`
		Path          string   `yaml:"path"`
		Folder        string   `yaml:"folder"`
		ActiveVersion string   `yaml:"active_version"`
		Duration      *float64 `yaml:"duration"`
	} `yaml:"assets"`
	Clips []struct {
		ID        string        `yaml:"id"`
		Asset     string        `yaml:"asset"`
		Track     string        `yaml:"track"`
		Start     float64       `yaml:"start"`
		Duration  float64       `yaml:"duration"`
		TrimIn    float64       `yaml:"trim_in"`
		Transform transformFile `yaml:"transform"`
	} `yaml:"clips"`
}

type transformFile struct {
	X        float64  `yaml:"x"`
	Y        float64  `yaml:"y"`
	ScaleX   *float64 `yaml:"scale_x"`
	ScaleY   *float64 `yaml:"scale_y"`
	Rotation float64  `yaml:"rotation"`
	Opacity  *float64 `yaml:"opacity"`
}

func (t transformFile) transform() Transform {
	out := DefaultTransform()
	out.PositionX = t.X
	out.PositionY = t.Y
	out.Rotation = t.Rotation
	if t.ScaleX != nil {
		out.ScaleX = *t.ScaleX
	}
	if t.ScaleY != nil {
		out.ScaleY = *t.ScaleY
	}
	if t.Opacity != nil {
		out.Opacity = *t.Opacity
	}
	return out
}

// Load reads a YAML project snapshot. When the snapshot has no root, the
// directory containing the file is used.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("timeline: read project: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if p.Root == "" {
		p.Root = filepath.Dir(path)
	}
	return p, nil
}

// Parse decodes a YAML project snapshot and validates references.
func Parse(data []byte) (*Project, error) {
	var f projectFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("timeline: parse project: %w", err)
	}

	p := &Project{
		Name: f.Name,
		Root: f.Root,
		Settings: Settings{
			Width:  f.Settings.Width,
			Height: f.Settings.Height,
			FPS:    f.Settings.FPS,
		},
	}

	for i, t := range f.Tracks {
		id, err := parseID("track", i, t.ID)
		if err != nil {
			return nil, err
		}
		kind, err := parseTrackKind(t.Kind)
		if err != nil {
			return nil, err
		}
		p.Tracks = append(p.Tracks, Track{ID: id, Name: t.Name, Kind: kind})
	}

	for i, a := range f.Assets {
		id, err := parseID("asset", i, a.ID)
		if err != nil {
			return nil, err
		}
		kind, err := ParseAssetKind(a.Kind)
		if err != nil {
			return nil, err
		}
		p.Assets = append(p.Assets, Asset{
			ID:            id,
			Name:          a.Name,
			Kind:          kind,
			Path:          a.Path,
			Folder:        a.Folder,
			ActiveVersion: a.ActiveVersion,
			Duration:      a.Duration,
		})
	}

	for i, c := range f.Clips {
		id, err := parseID("clip", i, c.ID)
		if err != nil {
			return nil, err
		}
		assetID, err := parseID("clip asset", i, c.Asset)
		if err != nil {
			return nil, err
		}
		trackID, err := parseID("clip track", i, c.Track)
		if err != nil {
			return nil, err
		}
		p.Clips = append(p.Clips, Clip{
			ID:        id,
			AssetID:   assetID,
			TrackID:   trackID,
			Start:     c.Start,
			Duration:  c.Duration,
			TrimIn:    c.TrimIn,
			Transform: c.Transform.transform(),
		})
	}

	p.Index()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that every clip references a known track and asset and
// that settings are not negative.
func (p *Project) Validate() error {
	if p.Settings.Width < 0 || p.Settings.Height < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%d", ErrInvalidProject, p.Settings.Width, p.Settings.Height)
	}
	tracks := make(map[uuid.UUID]bool, len(p.Tracks))
	for _, t := range p.Tracks {
		tracks[t.ID] = true
	}
	for _, c := range p.Clips {
		if !tracks[c.TrackID] {
			return fmt.Errorf("%w: clip %s references unknown track %s", ErrInvalidProject, c.ID, c.TrackID)
		}
		if _, ok := p.Asset(c.AssetID); !ok {
			return fmt.Errorf("%w: clip %s references unknown asset %s", ErrInvalidProject, c.ID, c.AssetID)
		}
	}
	return nil
}

func parseID(what string, i int, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %d: bad id %q: %w", ErrInvalidProject, what, i, s, err)
	}
	return id, nil
}

func parseTrackKind(s string) (TrackKind, error) {
	switch s {
	case "video", "":
		return TrackVideo, nil
	case "audio":
		return TrackAudio, nil
	case "marker":
		return TrackMarker, nil
	default:
		return 0, fmt.Errorf("%w: unknown track kind %q", ErrInvalidProject, s)
	}
}
