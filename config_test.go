package preview

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/preview/decode"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Preview.MaxWidth != 960 || cfg.Preview.MaxHeight != 540 {
		t.Errorf("preview = %+v, want 960x540", cfg.Preview)
	}
	if cfg.CacheBytes() != 512<<20 {
		t.Errorf("CacheBytes = %d", cfg.CacheBytes())
	}
	if p := cfg.Params(); p.Mode != decode.Seek || !p.AllowHW {
		t.Errorf("Params = %+v", p)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.yaml")
	data := []byte(`
preview:
  max_width: 1280
  max_height: 720
decode:
  mode: sequential
  hw_decode: false
  workers: 2
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Preview.MaxWidth != 1280 || cfg.Decode.Workers != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Cache.MaxMB != 512 || cfg.Decode.FFmpeg != "ffmpeg" || cfg.Prefetch.Window != 12 {
		t.Error("unset fields should keep their defaults")
	}
	if p := cfg.Params(); p.Mode != decode.Sequential || p.AllowHW {
		t.Errorf("Params = %+v", p)
	}

	fc := cfg.FFmpegConfig()
	if fc.MaxWidth != 1280 || fc.MaxHeight != 720 || fc.MaxSkipFrames != decode.DefaultMaxSkipFrames {
		t.Errorf("FFmpegConfig = %+v", fc)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("preview: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Error("malformed yaml should fail")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Preview.MaxWidth = 0 }},
		{"negative cache", func(c *Config) { c.Cache.MaxMB = -1 }},
		{"negative workers", func(c *Config) { c.Decode.Workers = -2 }},
		{"negative skip", func(c *Config) { c.Decode.MaxSkipFrames = -1 }},
		{"unknown mode", func(c *Config) { c.Decode.Mode = "scrub" }},
		{"negative window", func(c *Config) { c.Prefetch.Window = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
