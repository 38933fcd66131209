package decode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// Errors returned by decoders and the pool.
var (
	// ErrClosed is returned for requests made after Close.
	ErrClosed = errors.New("decode: service closed")

	// ErrNoFrame is returned when the source has no frame at the
	// requested time, for example past the end of the stream.
	ErrNoFrame = errors.New("decode: no frame")
)

// Mode selects how a video frame is reached.
type Mode uint8

const (
	// Seek decodes each request independently from the nearest keyframe.
	// It is the right choice for scrubbing.
	Seek Mode = iota

	// Sequential keeps a decoder open per lane and reads forward from the
	// previous request. It is the right choice for playback.
	Sequential
)

// String returns the mode name used in configuration files.
func (m Mode) String() string {
	switch m {
	case Seek:
		return "seek"
	case Sequential:
		return "sequential"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "seek", "":
		return Seek, nil
	case "sequential":
		return Sequential, nil
	default:
		return Seek, fmt.Errorf("decode: unknown mode %q", s)
	}
}

// Request asks for the frame of Path at Time seconds.
//
// Lane groups requests that belong together, usually one timeline track.
// Requests on the same lane are decoded one at a time, in order; requests
// on different lanes may run in parallel.
type Request struct {
	Path    string
	Time    float64
	Lane    uint64
	Mode    Mode
	AllowHW bool
}

// key identifies duplicate requests for coalescing. Lane is left out so
// two tracks showing the same frame share one decode.
func (r Request) key() string {
	return fmt.Sprintf("%s\x00%.6f\x00%d\x00%t", r.Path, r.Time, r.Mode, r.AllowHW)
}

// Timings breaks down where decode time went. Stages a decoder cannot
// observe separately are left at zero.
type Timings struct {
	Seek     time.Duration
	Packet   time.Duration
	Transfer time.Duration
	Scale    time.Duration
	Copy     time.Duration
}

// Total returns the sum of all stages.
func (t Timings) Total() time.Duration {
	return t.Seek + t.Packet + t.Transfer + t.Scale + t.Copy
}

// Add accumulates o into t.
func (t *Timings) Add(o Timings) {
	t.Seek += o.Seek
	t.Packet += o.Packet
	t.Transfer += o.Transfer
	t.Scale += o.Scale
	t.Copy += o.Copy
}

// Result is a decoded frame. Image is premultiplied RGBA, possibly
// downscaled; SourceWidth and SourceHeight are the dimensions of the
// stream before scaling. Err is set when the decode failed, in which case
// Image is nil.
type Result struct {
	Image        *image.RGBA
	SourceWidth  int
	SourceHeight int
	UsedHW       bool
	Timings      Timings
	Err          error
}

// Service decodes video frames asynchronously.
type Service interface {
	// DecodeAsync starts a decode and returns a channel that receives
	// exactly one Result.
	DecodeAsync(ctx context.Context, req Request) <-chan Result

	// Decode decodes synchronously.
	Decode(ctx context.Context, req Request) (Result, error)

	// Close stops the service. Pending requests fail with ErrClosed.
	Close() error
}

// FrameDecoder decodes a single frame on the calling goroutine. The Pool
// never calls it concurrently for the same lane.
type FrameDecoder interface {
	DecodeFrame(ctx context.Context, req Request) (Result, error)
}

// FrameDecoderFunc adapts a function to FrameDecoder.
type FrameDecoderFunc func(ctx context.Context, req Request) (Result, error)

// DecodeFrame calls f.
func (f FrameDecoderFunc) DecodeFrame(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
