// Package orchestrator coordinates the probe, play and relay stages.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/user/mediaplay/pkg/adapters/filesink"
	"github.com/user/mediaplay/pkg/adapters/nullsink"
	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/pipeline"
	"github.com/user/mediaplay/pkg/ports"
	"github.com/user/mediaplay/pkg/source"
)

// Config contains all configuration for the orchestrator.
type Config struct {
	// Input
	Locator      string
	ProbePackets int
	VideoStream  int // stream index, pipeline.StreamAuto or pipeline.StreamOff
	AudioStream  int // stream index, pipeline.StreamAuto or pipeline.StreamOff

	// Video format adapter
	PixelFormat av.PixelFormat
	Width       int
	Height      int

	// Audio format adapter
	SampleFormat av.SampleFormat
	SampleRate   int
	Channels     int

	MaxFrames int

	// Snapshots are written under SnapshotDir/<run id> when SnapshotDir is set.
	SnapshotDir   string
	SnapshotEvery int
	SnapshotWidth int
	ImageFormat   ports.ImageFormat
	ImageQuality  int

	// PCMPath receives decoded audio as WAV when set.
	PCMPath string

	// Relay
	Target     string
	MaxPackets int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ProbePackets:  source.DefaultProbePackets,
		VideoStream:   pipeline.StreamAuto,
		AudioStream:   pipeline.StreamAuto,
		SnapshotEvery: 30,
		SnapshotWidth: 640,
		ImageFormat:   ports.FormatJPEG,
		ImageQuality:  85,
	}
}

// Orchestrator coordinates the execution of the pipeline stages.
type Orchestrator struct {
	probeStage pipeline.Stage[pipeline.ProbeInput, pipeline.ProbeResult]
	playStage  pipeline.Stage[pipeline.PlayInput, pipeline.PlayResult]
	relayStage pipeline.Stage[pipeline.RelayInput, pipeline.RelayResult]
	fs         ports.FileSystem
	renderer   ports.FrameRenderer
	logger     ports.Logger
	newID      func() string
}

// New creates a new Orchestrator.
func New(
	probeStage pipeline.Stage[pipeline.ProbeInput, pipeline.ProbeResult],
	playStage pipeline.Stage[pipeline.PlayInput, pipeline.PlayResult],
	relayStage pipeline.Stage[pipeline.RelayInput, pipeline.RelayResult],
	fs ports.FileSystem,
	renderer ports.FrameRenderer,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		probeStage: probeStage,
		playStage:  playStage,
		relayStage: relayStage,
		fs:         fs,
		renderer:   renderer,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

// RunResult contains the results of a run for the summary.
type RunResult struct {
	RunID   string
	Format  string
	Streams []av.StreamInfo

	Play  *pipeline.PlayResult
	Relay *pipeline.RelayResult

	// Snapshots lists the image files written during play.
	Snapshots []string
	// PCMSamples is the number of samples per channel written to PCMPath.
	PCMSamples int64
}

// Probe opens the source and writes its stream table to w.
func (o *Orchestrator) Probe(ctx context.Context, config Config, w io.Writer) (RunResult, error) {
	result, log := o.begin()

	probed, err := o.probe(ctx, config, log)
	if err != nil {
		return result, err
	}
	defer probed.Source.Close()

	result.Format = probed.Format
	result.Streams = probed.Streams
	if err := probed.Source.Dump(w); err != nil {
		return result, fmt.Errorf("dump streams: %w", err)
	}
	return result, nil
}

// Play decodes the selected streams with pacing into the configured sinks.
func (o *Orchestrator) Play(ctx context.Context, config Config) (RunResult, error) {
	result, log := o.begin()

	probed, err := o.probe(ctx, config, log)
	if err != nil {
		return result, err
	}
	defer probed.Source.Close()
	result.Format = probed.Format
	result.Streams = probed.Streams

	sinks, err := o.buildSinks(config, result.RunID)
	if err != nil {
		log.Error("Failed to create sinks: %s", err.Error())
		return result, fmt.Errorf("create sinks: %w", err)
	}

	input := o.buildPlayInput(config, probed, sinks)
	played, err := o.playStage.Execute(ctx, input)
	result.Play = &played
	closeErr := sinks.close()
	result.Snapshots = sinks.files()
	result.PCMSamples = sinks.samples()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Playback interrupted")
		} else {
			log.Error("Failed to play: %s", err.Error())
		}
		return result, fmt.Errorf("play stage: %w", err)
	}
	if closeErr != nil {
		log.Error("Failed to finish output: %s", closeErr.Error())
		return result, fmt.Errorf("close sinks: %w", closeErr)
	}

	if played.Video != nil && played.Video.Err == nil {
		log.Info("Video: %d frames, %d late (max %s)", played.Video.Frames, played.Video.Late, played.Video.MaxLate)
	}
	if played.Audio != nil && played.Audio.Err == nil {
		log.Info("Audio: %d frames", played.Audio.Frames)
	}
	if len(result.Snapshots) > 0 {
		log.Info("Saved %d snapshots to %s", len(result.Snapshots), sinks.snapshotDir)
	}
	if config.PCMPath != "" && result.PCMSamples > 0 {
		log.Info("Audio saved to %s", config.PCMPath)
	}
	log.Info("Playback completed in %s", played.Duration)
	return result, nil
}

// Push relays the compressed streams to config.Target, paced by the
// selected video stream.
func (o *Orchestrator) Push(ctx context.Context, config Config) (RunResult, error) {
	result, log := o.begin()

	probed, err := o.probe(ctx, config, log)
	if err != nil {
		return result, err
	}
	defer probed.Source.Close()
	result.Format = probed.Format
	result.Streams = probed.Streams

	relayed, err := o.relayStage.Execute(ctx, pipeline.RelayInput{
		Source:     probed.Source,
		Target:     config.Target,
		PaceStream: probed.VideoStream,
		MaxPackets: config.MaxPackets,
	})
	result.Relay = &relayed
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Relay interrupted")
		} else {
			log.Error("Failed to relay: %s", err.Error())
		}
		return result, fmt.Errorf("relay stage: %w", err)
	}
	log.Info("Relayed %d packets (%d bytes) in %s", relayed.Packets, relayed.Bytes, relayed.Duration)
	return result, nil
}

func (o *Orchestrator) begin() (RunResult, ports.Logger) {
	id := o.newID()
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return RunResult{RunID: id}, o.logger.WithComponent("run " + short)
}

func (o *Orchestrator) probe(ctx context.Context, config Config, log ports.Logger) (pipeline.ProbeResult, error) {
	log.Info("Opening %s", config.Locator)
	probed, err := o.probeStage.Execute(ctx, o.buildProbeInput(config))
	if err != nil {
		log.Error("Failed to open source: %s", err.Error())
		return probed, fmt.Errorf("probe stage: %w", err)
	}
	log.Info("Opened %s with %d streams", probed.Format, len(probed.Streams))
	return probed, nil
}

func (o *Orchestrator) buildProbeInput(config Config) pipeline.ProbeInput {
	input := pipeline.DefaultProbeInput()
	input.Locator = config.Locator
	if config.ProbePackets > 0 {
		input.ProbePackets = config.ProbePackets
	}
	input.VideoStream = config.VideoStream
	input.AudioStream = config.AudioStream
	return input
}

func (o *Orchestrator) buildPlayInput(config Config, probed pipeline.ProbeResult, sinks *sinkSet) pipeline.PlayInput {
	sampleFormat := config.SampleFormat
	if config.PCMPath != "" {
		// WAV carries interleaved samples only.
		if sampleFormat == av.SampleFormatNone {
			sampleFormat = av.SampleFormatS16
		}
		sampleFormat = sampleFormat.Packed()
	}
	return pipeline.PlayInput{
		Source:       probed.Source,
		VideoStream:  probed.VideoStream,
		AudioStream:  probed.AudioStream,
		PixelFormat:  config.PixelFormat,
		Width:        config.Width,
		Height:       config.Height,
		SampleFormat: sampleFormat,
		SampleRate:   config.SampleRate,
		Channels:     config.Channels,
		MaxFrames:    config.MaxFrames,
		VideoSink:    sinks.video,
		AudioSink:    sinks.audio,
	}
}

// sinkSet holds the sinks of one play run.
type sinkSet struct {
	video       ports.VideoSink
	audio       ports.AudioSink
	snapshots   *filesink.SnapshotSink
	wav         *filesink.WAVSink
	snapshotDir string
}

func (o *Orchestrator) buildSinks(config Config, runID string) (*sinkSet, error) {
	null := nullsink.New()
	set := &sinkSet{video: null, audio: null}

	if config.SnapshotDir != "" {
		dir := filepath.Join(config.SnapshotDir, runID)
		snap, err := filesink.NewSnapshot(dir, o.fs, o.renderer, filesink.SnapshotOptions{
			Every:    config.SnapshotEvery,
			MaxWidth: config.SnapshotWidth,
			Format:   config.ImageFormat,
			Quality:  config.ImageQuality,
			Label:    filepath.Base(config.Locator),
		})
		if err != nil {
			return nil, err
		}
		set.video, set.snapshots, set.snapshotDir = snap, snap, dir
	}
	if config.PCMPath != "" {
		wav := filesink.NewWAV(config.PCMPath, o.fs)
		set.audio, set.wav = wav, wav
	}
	return set, nil
}

func (s *sinkSet) close() error {
	return errors.Join(s.video.Close(), s.audio.Close())
}

func (s *sinkSet) files() []string {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Files()
}

func (s *sinkSet) samples() int64 {
	if s.wav == nil {
		return 0
	}
	return s.wav.Samples()
}
