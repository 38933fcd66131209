// Package decode turns media files into preview-sized RGBA frames.
//
// Service is the asynchronous contract the preview renderer consumes:
// a request names a file, a time, a scheduling lane, a decode Mode and
// whether hardware decoding is allowed, and yields one Result carrying
// the frame, its source dimensions and a timing breakdown.
//
// Pool implements Service on top of any FrameDecoder. It keeps one worker
// queue per slot and routes each lane to a fixed worker, so a track's
// requests run one at a time while tracks decode in parallel. Identical
// requests in flight together are decoded once.
//
// FFmpeg is the FrameDecoder used in production. It drives the ffmpeg and
// ffprobe binaries, either seeking per request or reading a long-running
// per-lane stream.
//
// LoadStill decodes png, jpeg and webp stills synchronously.
//
// # Usage
//
//	svc := decode.NewFFmpegPool(decode.FFmpegConfig{MaxWidth: 960, MaxHeight: 540}, 4)
//	defer svc.Close()
//
//	res, err := svc.Decode(ctx, decode.Request{Path: "clip.mp4", Time: 2, Lane: lane})
package decode
