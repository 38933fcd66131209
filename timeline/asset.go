package timeline

import (
	"fmt"

	"github.com/google/uuid"
)

// AssetKind identifies the kind of media an asset refers to.
type AssetKind uint8

const (
	// KindImage is a single still image file.
	KindImage AssetKind = iota

	// KindVideo is an encoded video file.
	KindVideo

	// KindAudio is an audio-only file. Audio assets are never composited.
	KindAudio

	// KindGenerativeImage is a folder of generated still images.
	KindGenerativeImage

	// KindGenerativeVideo is a folder of generated video clips.
	KindGenerativeVideo

	// KindGenerativeAudio is a folder of generated audio clips.
	KindGenerativeAudio
)

var kindNames = [...]string{
	KindImage:           "image",
	KindVideo:           "video",
	KindAudio:           "audio",
	KindGenerativeImage: "generative_image",
	KindGenerativeVideo: "generative_video",
	KindGenerativeAudio: "generative_audio",
}

// String returns the snake_case name used in project snapshots.
func (k AssetKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("AssetKind(%d)", k)
}

// ParseAssetKind is the inverse of AssetKind.String.
func ParseAssetKind(s string) (AssetKind, error) {
	for k, name := range kindNames {
		if name == s {
			return AssetKind(k), nil //nolint:gosec // index bounded by kindNames
		}
	}
	return 0, fmt.Errorf("%w: unknown asset kind %q", ErrInvalidProject, s)
}

// IsVisual reports whether assets of this kind produce pixels.
func (k AssetKind) IsVisual() bool {
	switch k {
	case KindImage, KindVideo, KindGenerativeImage, KindGenerativeVideo:
		return true
	default:
		return false
	}
}

// IsAudio reports whether assets of this kind are audio-only.
func (k AssetKind) IsAudio() bool {
	return k == KindAudio || k == KindGenerativeAudio
}

// IsGenerative reports whether the asset is backed by a version folder.
func (k AssetKind) IsGenerative() bool {
	return k == KindGenerativeImage || k == KindGenerativeVideo || k == KindGenerativeAudio
}

// IsMotion reports whether frames vary over time and must be decoded per
// frame index.
func (k AssetKind) IsMotion() bool {
	return k == KindVideo || k == KindGenerativeVideo
}

// Asset is a media source referenced by clips.
//
// Plain kinds use Path. Generative kinds use Folder and, optionally,
// ActiveVersion: the file stem of the selected generation inside Folder.
// Relative paths are resolved against the project root.
type Asset struct {
	ID            uuid.UUID
	Name          string
	Kind          AssetKind
	Path          string
	Folder        string
	ActiveVersion string

	// Duration is the cached media duration in seconds, if known.
	Duration *float64
}

// IsVisual reports whether the asset produces pixels.
func (a *Asset) IsVisual() bool { return a.Kind.IsVisual() }

// IsAudio reports whether the asset is audio-only.
func (a *Asset) IsAudio() bool { return a.Kind.IsAudio() }

// IsGenerative reports whether the asset is backed by a version folder.
func (a *Asset) IsGenerative() bool { return a.Kind.IsGenerative() }

// DurationSeconds returns the cached duration and whether it is known.
func (a *Asset) DurationSeconds() (float64, bool) {
	if a.Duration == nil {
		return 0, false
	}
	return *a.Duration, true
}
