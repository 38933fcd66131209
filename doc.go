// Package preview renders live preview frames of a video editing timeline.
//
// # Overview
//
// Given a project snapshot and a timeline position, a Renderer collects
// every clip visible at that instant, resolves its media (a still, a video
// or the active version of a generative asset), fetches the frame from a
// byte-bounded cache or decodes it, and composites the layers in track
// order. Decoding is the expensive part; everything else is arranged
// around not repeating it.
//
// # Quick Start
//
//	project, err := timeline.Load("project.yaml")
//	if err != nil {
//	    return err
//	}
//
//	r := preview.NewRenderer(preview.WithMaxSize(960, 540))
//	defer r.Close()
//
//	out, err := r.RenderFrame(ctx, project, 2.0, preview.Params{AllowHW: true})
//	if err != nil {
//	    return err // ctx canceled
//	}
//	if out.Frame == nil {
//	    // project has no visual content: show a placeholder
//	}
//	png, err := r.Store().PNG(out.Frame.Version)
//
// # Rendering paths
//
// RenderFrame composites on the CPU (render.SoftwareCompositor) and keeps
// the last two frames in a FrameStore. RenderLayers returns a placed
// render.Stack for render.GPUCompositor instead, leaving the pixel work to
// the GPU.
//
// # Coordinate System
//
// Clip positions are project pixels relative to the canvas center, with
// Y growing down. Positive rotation turns clockwise on screen. The canvas
// is the project frame scaled down to fit the configured maximum size.
//
// # Cache maintenance
//
// Frames are keyed by absolute source path and frame index at the
// project frame rate. When generative output in a folder changes, call
// InvalidateFolder so the next render resolves and decodes again.
// CachedBuckets reports cache coverage per clip for timeline display, and
// Prefetch/PrefetchAsync warm frames ahead of the playhead.
package preview
