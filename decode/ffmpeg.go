package decode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	intImage "github.com/gogpu/preview/internal/image"
	"github.com/gogpu/preview/placement"
)

// DefaultMaxSkipFrames is how far ahead a sequential stream reads through
// before restarting with a seek.
const DefaultMaxSkipFrames = 90

// FFmpegConfig configures the ffmpeg subprocess decoder.
type FFmpegConfig struct {
	FFmpegPath  string // default "ffmpeg"
	FFprobePath string // default "ffprobe"

	// Frames are scaled inside ffmpeg to fit MaxWidth x MaxHeight.
	MaxWidth  int
	MaxHeight int

	// MaxSkipFrames bounds the forward gap a sequential stream reads
	// through. Larger jumps restart the stream.
	MaxSkipFrames int
}

// StreamInfo describes the first video stream of a file.
type StreamInfo struct {
	Width    int
	Height   int
	FPS      float64
	Rate     string // frame rate as reported, e.g. "30000/1001"
	Duration float64
}

// FFmpeg decodes video frames by running ffmpeg and reading raw RGBA from
// its stdout. Stream properties come from ffprobe and are cached per path.
//
// In Seek mode every request runs a short-lived ffmpeg that seeks and
// emits one frame. In Sequential mode a long-running ffmpeg per lane keeps
// emitting frames, and requests that move forward read from it; going
// backwards, switching file or jumping far ahead restarts it.
//
// ffmpeg scales the frames itself and does not report stage timings, so
// Seek and Sequential results only fill the Seek, Packet and Copy stages.
type FFmpeg struct {
	cfg FFmpegConfig

	mu      sync.Mutex
	probes  map[string]StreamInfo
	streams map[uint64]*frameStream
	closed  bool
}

// NewFFmpeg creates a decoder. Zero config fields get defaults.
func NewFFmpeg(cfg FFmpegConfig) *FFmpeg {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.MaxSkipFrames <= 0 {
		cfg.MaxSkipFrames = DefaultMaxSkipFrames
	}
	return &FFmpeg{
		cfg:     cfg,
		probes:  make(map[string]StreamInfo),
		streams: make(map[uint64]*frameStream),
	}
}

// NewFFmpegPool returns a Pool decoding with ffmpeg.
func NewFFmpegPool(cfg FFmpegConfig, workers int) *Pool {
	return NewPool(NewFFmpeg(cfg), workers)
}

// Available reports whether both ffmpeg and ffprobe are on PATH.
func (f *FFmpeg) Available() bool {
	if _, err := exec.LookPath(f.cfg.FFmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(f.cfg.FFprobePath)
	return err == nil
}

// Probe returns the stream info of path, running ffprobe on first use.
func (f *FFmpeg) Probe(ctx context.Context, path string) (StreamInfo, error) {
	f.mu.Lock()
	info, ok := f.probes[path]
	f.mu.Unlock()
	if ok {
		return info, nil
	}

	//nolint:gosec // the binary and path come from local configuration
	cmd := exec.CommandContext(ctx, f.cfg.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate:format=duration",
		"-of", "default=noprint_wrappers=1",
		path)
	out, err := cmd.Output()
	if err != nil {
		return StreamInfo{}, fmt.Errorf("decode: ffprobe %s: %w", path, commandError(err))
	}
	info, err = parseProbe(out)
	if err != nil {
		return StreamInfo{}, fmt.Errorf("decode: ffprobe %s: %w", path, err)
	}

	f.mu.Lock()
	f.probes[path] = info
	f.mu.Unlock()
	slogger().Debug("decode: probed", "path", path, "width", info.Width, "height", info.Height, "fps", info.FPS)
	return info, nil
}

// Forget drops the cached probe result for path so the next decode
// probes the file again. Open streams are owned by their lane worker and
// are left alone.
func (f *FFmpeg) Forget(path string) {
	f.mu.Lock()
	delete(f.probes, path)
	f.mu.Unlock()
}

// ForgetFolder drops cached probe results for every file under folder,
// matched per path component.
func (f *FFmpeg) ForgetFolder(folder string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for path := range f.probes {
		if underFolder(path, folder) {
			delete(f.probes, path)
		}
	}
}

// DecodeFrame implements FrameDecoder. With AllowHW set it first asks
// ffmpeg for hardware decoding and retries in software when that fails.
func (f *FFmpeg) DecodeFrame(ctx context.Context, req Request) (Result, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return Result{}, ErrClosed
	}

	info, err := f.Probe(ctx, req.Path)
	if err != nil {
		return Result{}, err
	}
	w, h := info.Width, info.Height
	if f.cfg.MaxWidth > 0 && f.cfg.MaxHeight > 0 {
		w, h = placement.Fit(w, h, f.cfg.MaxWidth, f.cfg.MaxHeight)
	}

	run := f.seek
	if req.Mode == Sequential {
		run = f.sequential
	}
	res, err := run(ctx, req, info, w, h, req.AllowHW)
	if err != nil && req.AllowHW && !errors.Is(err, ErrNoFrame) {
		slogger().Debug("decode: hardware decode failed, retrying in software", "path", req.Path, "err", err)
		res, err = run(ctx, req, info, w, h, false)
	}
	if err != nil {
		return Result{}, err
	}
	res.SourceWidth, res.SourceHeight = info.Width, info.Height
	return res, nil
}

func (f *FFmpeg) seek(ctx context.Context, req Request, info StreamInfo, w, h int, hw bool) (Result, error) {
	start := time.Now()
	//nolint:gosec // the binary and path come from local configuration
	cmd := exec.CommandContext(ctx, f.cfg.FFmpegPath, seekArgs(req.Path, req.Time, w, h, hw)...)
	out, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("decode: ffmpeg %s at %.3fs: %w", req.Path, req.Time, commandError(err))
	}
	elapsed := time.Since(start)

	size := w * h * 4
	if len(out) < size {
		return Result{}, fmt.Errorf("%w: %s at %.3fs", ErrNoFrame, req.Path, req.Time)
	}
	start = time.Now()
	img, err := intImage.FromRaw(out[:size], w, h)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Image:   img,
		UsedHW:  hw,
		Timings: Timings{Seek: elapsed, Copy: time.Since(start)},
	}, nil
}

func (f *FFmpeg) sequential(_ context.Context, req Request, info StreamInfo, w, h int, hw bool) (Result, error) {
	index := int64(math.Floor(max(req.Time, 0)*max(info.FPS, 1) + 1e-6))

	f.mu.Lock()
	s := f.streams[req.Lane]
	f.mu.Unlock()

	var t Timings
	if s == nil || !s.reaches(req.Path, hw, w, h, index, int64(f.cfg.MaxSkipFrames)) {
		if s != nil {
			s.stop()
		}
		start := time.Now()
		var err error
		s, err = startFrameStream(f.cfg.FFmpegPath, req.Path, info, index, w, h, hw)
		if err != nil {
			f.dropStream(req.Lane)
			return Result{}, err
		}
		t.Seek = time.Since(start)
		f.mu.Lock()
		f.streams[req.Lane] = s
		f.mu.Unlock()
	}

	start := time.Now()
	pix, err := s.readTo(index)
	t.Packet = time.Since(start)
	if err != nil {
		s.stop()
		f.dropStream(req.Lane)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Result{}, fmt.Errorf("%w: %s at %.3fs", ErrNoFrame, req.Path, req.Time)
		}
		return Result{}, fmt.Errorf("decode: read frame: %w", err)
	}

	start = time.Now()
	img, err := intImage.FromRaw(pix, w, h)
	if err != nil {
		return Result{}, err
	}
	t.Copy = time.Since(start)
	return Result{Image: img, UsedHW: hw, Timings: t}, nil
}

func (f *FFmpeg) dropStream(lane uint64) {
	f.mu.Lock()
	delete(f.streams, lane)
	f.mu.Unlock()
}

// Close stops every open stream. Later decodes fail with ErrClosed.
func (f *FFmpeg) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for lane, s := range f.streams {
		s.stop()
		delete(f.streams, lane)
	}
	return nil
}

// frameStream is a running ffmpeg emitting consecutive raw RGBA frames.
type frameStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc

	path string
	hw   bool
	w, h int
	next int64 // index of the next frame on stdout
	skip []byte
}

func startFrameStream(bin, path string, info StreamInfo, index int64, w, h int, hw bool) (*frameStream, error) {
	// The stream outlives the request that started it.
	ctx, cancel := context.WithCancel(context.Background())
	at := float64(index) / max(info.FPS, 1)

	//nolint:gosec // the binary and path come from local configuration
	cmd := exec.CommandContext(ctx, bin, streamArgs(path, at, info.Rate, w, h, hw)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("decode: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("decode: start ffmpeg: %w", err)
	}
	slogger().Debug("decode: stream started", "path", path, "at", at, "hw", hw)
	return &frameStream{
		cmd:    cmd,
		stdout: stdout,
		cancel: cancel,
		path:   path,
		hw:     hw,
		w:      w,
		h:      h,
		next:   index,
	}, nil
}

// reaches reports whether the stream can serve index by reading forward
// at most maxSkip frames.
func (s *frameStream) reaches(path string, hw bool, w, h int, index, maxSkip int64) bool {
	return s.path == path && s.hw == hw && s.w == w && s.h == h &&
		index >= s.next && index-s.next <= maxSkip
}

// readTo discards frames up to index and returns frame index.
func (s *frameStream) readTo(index int64) ([]byte, error) {
	size := s.w * s.h * 4
	for s.next < index {
		if len(s.skip) != size {
			s.skip = make([]byte, size)
		}
		if _, err := io.ReadFull(s.stdout, s.skip); err != nil {
			return nil, err
		}
		s.next++
	}
	// Returned frames are handed out, so never reuse their buffer.
	pix := make([]byte, size)
	if _, err := io.ReadFull(s.stdout, pix); err != nil {
		return nil, err
	}
	s.next++
	return pix, nil
}

// stop kills ffmpeg and waits for it to exit.
func (s *frameStream) stop() {
	s.cancel()
	//nolint:errcheck // the process was killed, its exit status is moot
	s.cmd.Wait()
}

func baseArgs(hw bool) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if hw {
		args = append(args, "-hwaccel", "auto")
	}
	return args
}

func seekArgs(path string, at float64, w, h int, hw bool) []string {
	return append(baseArgs(hw),
		"-ss", formatSeconds(at),
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", w, h),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
}

func streamArgs(path string, at float64, rate string, w, h int, hw bool) []string {
	vf := fmt.Sprintf("scale=%d:%d", w, h)
	if rate != "" {
		// Pin the output rate so frame n on stdout is frame index n.
		vf = fmt.Sprintf("fps=%s,%s", rate, vf)
	}
	return append(baseArgs(hw),
		"-ss", formatSeconds(at),
		"-i", path,
		"-an",
		"-vf", vf,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
}

func formatSeconds(t float64) string {
	return strconv.FormatFloat(max(t, 0), 'f', 6, 64)
}

// parseProbe parses ffprobe's key=value output.
func parseProbe(out []byte) (StreamInfo, error) {
	var info StreamInfo
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "width":
			info.Width, _ = strconv.Atoi(val)
		case "height":
			info.Height, _ = strconv.Atoi(val)
		case "r_frame_rate":
			info.Rate = val
			info.FPS = parseRate(val)
		case "duration":
			info.Duration, _ = strconv.ParseFloat(val, 64)
		}
	}
	if info.Width <= 0 || info.Height <= 0 {
		return StreamInfo{}, fmt.Errorf("%w: no video stream", ErrNoFrame)
	}
	if info.FPS <= 0 {
		info.FPS, info.Rate = 30, ""
	}
	return info, nil
}

// parseRate parses "num/den" or a plain number. It returns 0 when the
// rate is missing or invalid.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// commandError adds ffmpeg's stderr to an exit error.
func commandError(err error) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) && len(ee.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(ee.Stderr)))
	}
	return err
}

var (
	_ FrameDecoder = (*FFmpeg)(nil)
	_ io.Closer    = (*FFmpeg)(nil)
)

// underFolder reports whether path is folder or lies below it.
func underFolder(path, folder string) bool {
	folder = filepath.Clean(folder)
	rel, err := filepath.Rel(folder, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
