package preview

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/preview/decode"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("preview: invalid config")

// Config is the YAML configuration of a preview renderer.
//
//	preview:
//	  max_width: 960
//	  max_height: 540
//	cache:
//	  max_mb: 512
//	decode:
//	  workers: 4
//	  ffmpeg: ffmpeg
//	  ffprobe: ffprobe
//	  hw_decode: true
//	  mode: seek
//	  max_skip_frames: 90
//	prefetch:
//	  window: 12
type Config struct {
	Preview  PreviewConfig  `yaml:"preview"`
	Cache    CacheConfig    `yaml:"cache"`
	Decode   DecodeConfig   `yaml:"decode"`
	Prefetch PrefetchConfig `yaml:"prefetch"`
}

// PreviewConfig bounds the preview canvas.
type PreviewConfig struct {
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
}

// CacheConfig sizes the decoded frame cache.
type CacheConfig struct {
	MaxMB int `yaml:"max_mb"`
}

// DecodeConfig configures the video decode pool.
type DecodeConfig struct {
	Workers       int    `yaml:"workers"` // 0 = GOMAXPROCS
	FFmpeg        string `yaml:"ffmpeg"`
	FFprobe       string `yaml:"ffprobe"`
	HWDecode      bool   `yaml:"hw_decode"`
	Mode          string `yaml:"mode"` // seek | sequential
	MaxSkipFrames int    `yaml:"max_skip_frames"`
}

// PrefetchConfig sizes the warm-ahead window.
type PrefetchConfig struct {
	Window int `yaml:"window"` // frames
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Preview: PreviewConfig{MaxWidth: 960, MaxHeight: 540},
		Cache:   CacheConfig{MaxMB: 512},
		Decode: DecodeConfig{
			FFmpeg:        "ffmpeg",
			FFprobe:       "ffprobe",
			HWDecode:      true,
			Mode:          decode.Seek.String(),
			MaxSkipFrames: decode.DefaultMaxSkipFrames,
		},
		Prefetch: PrefetchConfig{Window: 12},
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	if c.Preview.MaxWidth <= 0 || c.Preview.MaxHeight <= 0 {
		return fmt.Errorf("%w: preview size must be > 0, got %dx%d",
			ErrInvalidConfig, c.Preview.MaxWidth, c.Preview.MaxHeight)
	}
	if c.Cache.MaxMB < 0 {
		return fmt.Errorf("%w: cache.max_mb must be >= 0", ErrInvalidConfig)
	}
	if c.Decode.Workers < 0 {
		return fmt.Errorf("%w: decode.workers must be >= 0", ErrInvalidConfig)
	}
	if c.Decode.MaxSkipFrames < 0 {
		return fmt.Errorf("%w: decode.max_skip_frames must be >= 0", ErrInvalidConfig)
	}
	if _, err := decode.ParseMode(c.Decode.Mode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Prefetch.Window < 0 {
		return fmt.Errorf("%w: prefetch.window must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// CacheBytes returns the cache budget in bytes.
func (c *Config) CacheBytes() int64 { return int64(c.Cache.MaxMB) * 1024 * 1024 }

// Params returns the default per-frame render parameters. A zero FPS
// means the project frame rate.
func (c *Config) Params() Params {
	mode, err := decode.ParseMode(c.Decode.Mode)
	if err != nil {
		mode = decode.Seek
	}
	return Params{Mode: mode, AllowHW: c.Decode.HWDecode}
}

// FFmpegConfig returns the ffmpeg decoder settings for this config.
func (c *Config) FFmpegConfig() decode.FFmpegConfig {
	return decode.FFmpegConfig{
		FFmpegPath:    c.Decode.FFmpeg,
		FFprobePath:   c.Decode.FFprobe,
		MaxWidth:      c.Preview.MaxWidth,
		MaxHeight:     c.Preview.MaxHeight,
		MaxSkipFrames: c.Decode.MaxSkipFrames,
	}
}
