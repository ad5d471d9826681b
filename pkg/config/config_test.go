package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/pipeline"
	"github.com/user/mediaplay/pkg/ports"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mediaplay.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
input:
  locator: rtsp://camera/stream
  probe_packets: 128
video:
  stream: 2
  pixel_format: rgba
  width: 320
audio:
  enabled: false
output:
  snapshot_dir: ./snaps
  image_format: png
logging:
  level: debug
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Input.Locator != "rtsp://camera/stream" || cfg.Input.ProbePackets != 128 {
		t.Errorf("input = %+v", cfg.Input)
	}
	if cfg.Video.Stream == nil || *cfg.Video.Stream != 2 {
		t.Errorf("video.stream = %v, want 2", cfg.Video.Stream)
	}
	if cfg.AudioEnabled() {
		t.Error("expected audio to be disabled")
	}
	// untouched keys keep their defaults
	if cfg.Output.Every != 30 || cfg.Output.Quality != 85 {
		t.Errorf("output defaults lost: %+v", cfg.Output)
	}
	if cfg.LogLevel() != ports.LevelDebug {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected ErrNotExist, got %v", err)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, "video:\n  colour: red\n")
		if _, err := LoadFromFile(path); err == nil {
			t.Error("expected error for unknown key")
		}
	})

	t.Run("empty", func(t *testing.T) {
		cfg, err := LoadFromFile(writeConfig(t, ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Input.ProbePackets != 64 {
			t.Errorf("ProbePackets = %d, want default 64", cfg.Input.ProbePackets)
		}
	})
}

func TestMerge(t *testing.T) {
	off := false
	zero := 0

	base := Defaults()
	base.Input.Locator = "file.mp4"
	base.Output.PCMPath = "keep.wav"

	var over Config
	over.Input.Locator = "other.ts"
	over.Video.Stream = &zero
	over.Audio.Enabled = &off
	over.Relay.Target = "udp://127.0.0.1:5000"

	got := base.Merge(over)

	if got.Input.Locator != "other.ts" {
		t.Errorf("Locator = %q, want other.ts", got.Input.Locator)
	}
	if got.Video.Stream == nil || *got.Video.Stream != 0 {
		t.Errorf("video.stream = %v, want 0", got.Video.Stream)
	}
	if got.AudioEnabled() {
		t.Error("expected audio to be disabled by override")
	}
	if got.Output.PCMPath != "keep.wav" || got.Output.Every != 30 {
		t.Errorf("zero overrides replaced values: %+v", got.Output)
	}
	if got.Relay.Target != "udp://127.0.0.1:5000" {
		t.Errorf("Target = %q", got.Relay.Target)
	}

	// the override's pointers are not shared
	zero = 5
	if *got.Video.Stream != 0 {
		t.Error("Merge kept a reference to the override")
	}
}

func TestValidate(t *testing.T) {
	off := false
	neg := -1

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative probe packets", func(c *Config) { c.Input.ProbePackets = -1 }},
		{"negative stream", func(c *Config) { c.Video.Stream = &neg }},
		{"unknown pixel format", func(c *Config) { c.Video.PixelFormat = "yuv444p12" }},
		{"unknown sample format", func(c *Config) { c.Audio.SampleFormat = "s24" }},
		{"too many channels", func(c *Config) { c.Audio.Channels = 9 }},
		{"all disabled", func(c *Config) { c.Video.Enabled = &off; c.Audio.Enabled = &off }},
		{"image format", func(c *Config) { c.Output.ImageFormat = "gif" }},
		{"quality", func(c *Config) { c.Output.Quality = 101 }},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestToOrchestratorConfig(t *testing.T) {
	off := false
	one := 1

	cfg := Defaults()
	cfg.Input.Locator = "clip.mp4"
	cfg.Video.PixelFormat = "rgba"
	cfg.Audio.Stream = &one
	cfg.Audio.SampleFormat = "f32"
	cfg.Output.ImageFormat = "png"

	oc := cfg.ToOrchestratorConfig()
	if oc.VideoStream != pipeline.StreamAuto || oc.AudioStream != 1 {
		t.Errorf("streams = %d/%d, want auto/1", oc.VideoStream, oc.AudioStream)
	}
	if oc.PixelFormat != av.PixelFormatRGBA || oc.SampleFormat != av.SampleFormatF32 {
		t.Errorf("formats = %s/%s", oc.PixelFormat, oc.SampleFormat)
	}
	if oc.ImageFormat != ports.FormatPNG || oc.SnapshotEvery != 30 || oc.ImageQuality != 85 {
		t.Errorf("snapshot config = %v every %d quality %d", oc.ImageFormat, oc.SnapshotEvery, oc.ImageQuality)
	}

	cfg.Video.Enabled = &off
	if got := cfg.ToOrchestratorConfig().VideoStream; got != pipeline.StreamOff {
		t.Errorf("disabled video = %d, want StreamOff", got)
	}
}
