// Package timeline describes the read-only project snapshot the preview
// engine renders from: tracks, clips, their 2D transforms, and the media
// assets clips reference.
//
// The preview engine never mutates a Project. Editors build one snapshot per
// edit (or load one from YAML with Load) and hand it to the renderer, which
// may read it from several goroutines at once.
//
// # Assets
//
// AssetKind is a closed set: plain image/video/audio files and their
// generative counterparts, which point at a folder of generated versions
// instead of a single file. Capability queries (IsVisual, IsAudio,
// IsGenerative) replace type switches in callers.
//
// # Lanes
//
// LaneID folds a track UUID into a 64-bit scheduling tag. Decode services
// use it to keep requests for the same track on the same worker.
package timeline
