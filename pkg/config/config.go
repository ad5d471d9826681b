// Package config provides configuration loading and management.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/orchestrator"
	"github.com/user/mediaplay/pkg/pipeline"
	"github.com/user/mediaplay/pkg/ports"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid configuration")

// Config represents the full configuration for mediaplay.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Video   VideoConfig   `yaml:"video"`
	Audio   AudioConfig   `yaml:"audio"`
	Decoder DecoderConfig `yaml:"decoder"`
	Output  OutputConfig  `yaml:"output"`
	Relay   RelayConfig   `yaml:"relay"`
	Logging LoggingConfig `yaml:"logging"`
}

// InputConfig selects the source.
type InputConfig struct {
	Locator      string `yaml:"locator"`
	ProbePackets int    `yaml:"probe_packets"`
	// MaxFrames stops each stream after this many frames.
	MaxFrames int `yaml:"max_frames"`
}

// VideoConfig selects and converts the video stream. A nil Stream picks the
// best video stream.
type VideoConfig struct {
	Enabled     *bool  `yaml:"enabled"`
	Stream      *int   `yaml:"stream"`
	PixelFormat string `yaml:"pixel_format"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
}

// AudioConfig selects and converts the audio stream.
type AudioConfig struct {
	Enabled      *bool  `yaml:"enabled"`
	Stream       *int   `yaml:"stream"`
	SampleFormat string `yaml:"sample_format"`
	SampleRate   int    `yaml:"sample_rate"`
	Channels     int    `yaml:"channels"`
}

// DecoderConfig configures backend selection.
type DecoderConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
	Prefer     string `yaml:"prefer"`
	Threads    int    `yaml:"threads"`
}

// OutputConfig configures the play sinks.
type OutputConfig struct {
	SnapshotDir   string `yaml:"snapshot_dir"`
	Every         int    `yaml:"every"`
	SnapshotWidth int    `yaml:"snapshot_width"`
	ImageFormat   string `yaml:"image_format"`
	Quality       int    `yaml:"quality"`
	PCMPath       string `yaml:"pcm_path"`
}

// RelayConfig configures the push command.
type RelayConfig struct {
	Target     string `yaml:"target"`
	MaxPackets int    `yaml:"max_packets"`
}

// LoggingConfig configures the console logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Input: InputConfig{
			ProbePackets: 64,
		},
		Output: OutputConfig{
			Every:         30,
			SnapshotWidth: 640,
			ImageFormat:   "jpg",
			Quality:       85,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of Defaults.
// Unknown keys are rejected.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Merge returns c with every non-zero field of o applied on top.
func (c Config) Merge(o Config) Config {
	mergeString(&c.Input.Locator, o.Input.Locator)
	mergeInt(&c.Input.ProbePackets, o.Input.ProbePackets)
	mergeInt(&c.Input.MaxFrames, o.Input.MaxFrames)

	mergeBool(&c.Video.Enabled, o.Video.Enabled)
	mergeIndex(&c.Video.Stream, o.Video.Stream)
	mergeString(&c.Video.PixelFormat, o.Video.PixelFormat)
	mergeInt(&c.Video.Width, o.Video.Width)
	mergeInt(&c.Video.Height, o.Video.Height)

	mergeBool(&c.Audio.Enabled, o.Audio.Enabled)
	mergeIndex(&c.Audio.Stream, o.Audio.Stream)
	mergeString(&c.Audio.SampleFormat, o.Audio.SampleFormat)
	mergeInt(&c.Audio.SampleRate, o.Audio.SampleRate)
	mergeInt(&c.Audio.Channels, o.Audio.Channels)

	mergeString(&c.Decoder.FFmpegPath, o.Decoder.FFmpegPath)
	mergeString(&c.Decoder.Prefer, o.Decoder.Prefer)
	mergeInt(&c.Decoder.Threads, o.Decoder.Threads)

	mergeString(&c.Output.SnapshotDir, o.Output.SnapshotDir)
	mergeInt(&c.Output.Every, o.Output.Every)
	mergeInt(&c.Output.SnapshotWidth, o.Output.SnapshotWidth)
	mergeString(&c.Output.ImageFormat, o.Output.ImageFormat)
	mergeInt(&c.Output.Quality, o.Output.Quality)
	mergeString(&c.Output.PCMPath, o.Output.PCMPath)

	mergeString(&c.Relay.Target, o.Relay.Target)
	mergeInt(&c.Relay.MaxPackets, o.Relay.MaxPackets)

	mergeString(&c.Logging.Level, o.Logging.Level)
	return c
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeBool(dst **bool, v *bool) {
	if v != nil {
		b := *v
		*dst = &b
	}
}

func mergeIndex(dst **int, v *int) {
	if v != nil {
		i := *v
		*dst = &i
	}
}

// Validate reports every invalid field, joined, wrapped in ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Input.ProbePackets >= 0, "input.probe_packets must not be negative")
	check(c.Input.MaxFrames >= 0, "input.max_frames must not be negative")

	check(c.Video.Stream == nil || *c.Video.Stream >= 0, "video.stream must not be negative")
	check(c.Video.PixelFormat == "" || av.ParsePixelFormat(c.Video.PixelFormat) != av.PixelFormatNone,
		"video.pixel_format %q is unknown", c.Video.PixelFormat)
	check(c.Video.Width >= 0 && c.Video.Height >= 0, "video size must not be negative")

	check(c.Audio.Stream == nil || *c.Audio.Stream >= 0, "audio.stream must not be negative")
	check(c.Audio.SampleFormat == "" || av.ParseSampleFormat(c.Audio.SampleFormat) != av.SampleFormatNone,
		"audio.sample_format %q is unknown", c.Audio.SampleFormat)
	check(c.Audio.SampleRate >= 0, "audio.sample_rate must not be negative")
	check(c.Audio.Channels >= 0 && c.Audio.Channels <= 8, "audio.channels must be between 0 and 8")

	check(c.VideoEnabled() || c.AudioEnabled(), "video and audio are both disabled")

	check(c.Decoder.Threads >= 0, "decoder.threads must not be negative")

	check(c.Output.Every >= 0, "output.every must not be negative")
	check(c.Output.SnapshotWidth >= 0, "output.snapshot_width must not be negative")
	switch strings.ToLower(c.Output.ImageFormat) {
	case "", "jpg", "jpeg", "png":
	default:
		check(false, "output.image_format %q is not jpg or png", c.Output.ImageFormat)
	}
	check(c.Output.Quality >= 0 && c.Output.Quality <= 100, "output.quality must be between 0 and 100")

	check(c.Relay.MaxPackets >= 0, "relay.max_packets must not be negative")

	if c.Logging.Level != "" {
		_, err := ports.LookupLogLevel(c.Logging.Level)
		check(err == nil, "logging.level %q is unknown", c.Logging.Level)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// VideoEnabled reports whether video is played. Video is on unless disabled.
func (c Config) VideoEnabled() bool {
	return c.Video.Enabled == nil || *c.Video.Enabled
}

// AudioEnabled reports whether audio is played.
func (c Config) AudioEnabled() bool {
	return c.Audio.Enabled == nil || *c.Audio.Enabled
}

// LogLevel returns the configured log level.
func (c Config) LogLevel() ports.LogLevel {
	return ports.ParseLogLevel(c.Logging.Level)
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Locator:      c.Input.Locator,
		ProbePackets: c.Input.ProbePackets,
		VideoStream:  selection(c.VideoEnabled(), c.Video.Stream),
		AudioStream:  selection(c.AudioEnabled(), c.Audio.Stream),

		PixelFormat: av.ParsePixelFormat(c.Video.PixelFormat),
		Width:       c.Video.Width,
		Height:      c.Video.Height,

		SampleFormat: av.ParseSampleFormat(c.Audio.SampleFormat),
		SampleRate:   c.Audio.SampleRate,
		Channels:     c.Audio.Channels,

		MaxFrames: c.Input.MaxFrames,

		SnapshotDir:   c.Output.SnapshotDir,
		SnapshotEvery: c.Output.Every,
		SnapshotWidth: c.Output.SnapshotWidth,
		ImageFormat:   ports.ParseImageFormat(c.Output.ImageFormat),
		ImageQuality:  c.Output.Quality,
		PCMPath:       c.Output.PCMPath,

		Target:     c.Relay.Target,
		MaxPackets: c.Relay.MaxPackets,
	}
}

func selection(enabled bool, stream *int) int {
	switch {
	case !enabled:
		return pipeline.StreamOff
	case stream == nil:
		return pipeline.StreamAuto
	default:
		return *stream
	}
}
