package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/mediaplay/pkg/adapters/logger"
	"github.com/user/mediaplay/pkg/adapters/nullsink"
	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/mocks"
	"github.com/user/mediaplay/pkg/pipeline"
	"github.com/user/mediaplay/pkg/ports"
	"github.com/user/mediaplay/pkg/source"
)

// mockProbeStage is a mock for the probe stage.
type mockProbeStage struct {
	result pipeline.ProbeResult
	err    error
	input  pipeline.ProbeInput
}

func (m *mockProbeStage) Execute(ctx context.Context, input pipeline.ProbeInput) (pipeline.ProbeResult, error) {
	m.input = input
	if m.err != nil {
		return pipeline.ProbeResult{}, m.err
	}
	return m.result, nil
}

// mockPlayStage is a mock for the play stage. When play is set it is called
// with the input so tests can drive the sinks.
type mockPlayStage struct {
	result pipeline.PlayResult
	err    error
	input  pipeline.PlayInput
	play   func(input pipeline.PlayInput) error
}

func (m *mockPlayStage) Execute(ctx context.Context, input pipeline.PlayInput) (pipeline.PlayResult, error) {
	m.input = input
	if m.play != nil {
		if err := m.play(input); err != nil {
			return m.result, err
		}
	}
	return m.result, m.err
}

// mockRelayStage is a mock for the relay stage.
type mockRelayStage struct {
	result pipeline.RelayResult
	err    error
	input  pipeline.RelayInput
}

func (m *mockRelayStage) Execute(ctx context.Context, input pipeline.RelayInput) (pipeline.RelayResult, error) {
	m.input = input
	return m.result, m.err
}

type fixture struct {
	container *mocks.Container
	probe     *mockProbeStage
	play      *mockPlayStage
	relay     *mockRelayStage
	fs        *mocks.FileSystem
	renderer  *mocks.Renderer
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := mocks.NewContainer(mocks.VideoAudioStreams(), nil)
	src, err := source.New(c)
	if err != nil {
		t.Fatalf("source.New failed: %v", err)
	}
	f := &fixture{
		container: c,
		probe: &mockProbeStage{result: pipeline.ProbeResult{
			Source:      src,
			Format:      "custom",
			Streams:     src.Streams(),
			VideoStream: 0,
			AudioStream: 1,
		}},
		play:     &mockPlayStage{},
		relay:    &mockRelayStage{},
		fs:       mocks.NewFileSystem(),
		renderer: &mocks.Renderer{},
	}
	f.orch = New(f.probe, f.play, f.relay, f.fs, f.renderer, logger.NewNoop())
	f.orch.newID = func() string { return "0123456789abcdef" }
	return f
}

func videoFrame(pts int64) *av.Frame {
	f := &av.Frame{
		Type:     av.MediaTypeVideo,
		PTS:      pts,
		TimeBase: av.Rational{Num: 1, Den: 90000},
	}
	f.Video.Alloc(av.PixelFormatYUV420P, 64, 48)
	return f
}

func audioFrame(format av.SampleFormat, n int) *av.Frame {
	f := &av.Frame{
		Type:        av.MediaTypeAudio,
		StreamIndex: 1,
		PTS:         0,
		TimeBase:    av.Rational{Num: 1, Den: 44100},
	}
	f.Audio.Alloc(format, 44100, 2, n)
	return f
}

func TestOrchestrator_Probe(t *testing.T) {
	f := newFixture(t)

	config := DefaultConfig()
	config.Locator = "clip.mp4"
	config.VideoStream = 0
	config.AudioStream = pipeline.StreamOff

	var out bytes.Buffer
	result, err := f.orch.Probe(context.Background(), config, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.probe.input.Locator != "clip.mp4" || f.probe.input.VideoStream != 0 || f.probe.input.AudioStream != pipeline.StreamOff {
		t.Errorf("probe input = %+v", f.probe.input)
	}
	if f.probe.input.ProbePackets != source.DefaultProbePackets {
		t.Errorf("ProbePackets = %d, want %d", f.probe.input.ProbePackets, source.DefaultProbePackets)
	}
	if result.RunID != "0123456789abcdef" || result.Format != "custom" || len(result.Streams) != 2 {
		t.Errorf("result = %+v", result)
	}
	for _, want := range []string{"Stream #0", "Stream #1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("dump missing %q:\n%s", want, out.String())
		}
	}
	if !f.container.Closed {
		t.Error("expected source to be closed")
	}
}

func TestOrchestrator_Play(t *testing.T) {
	f := newFixture(t)
	f.play.result = pipeline.PlayResult{
		Video: &pipeline.StreamStats{Index: 0, Frames: 2},
		Audio: &pipeline.StreamStats{Index: 1, Frames: 1},
	}
	f.play.play = func(input pipeline.PlayInput) error {
		for _, pts := range []int64{0, 3000} {
			if err := input.VideoSink.WriteVideo(videoFrame(pts)); err != nil {
				return err
			}
		}
		return input.AudioSink.WriteAudio(audioFrame(input.SampleFormat, 100))
	}

	config := DefaultConfig()
	config.Locator = "media/clip.mp4"
	config.SnapshotDir = "snaps"
	config.SnapshotEvery = 1
	config.ImageFormat = ports.FormatPNG
	config.PCMPath = "out.wav"
	config.MaxFrames = 10

	result, err := f.orch.Play(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := f.play.input
	if in.VideoStream != 0 || in.AudioStream != 1 || in.MaxFrames != 10 {
		t.Errorf("play input streams = %d/%d max %d", in.VideoStream, in.AudioStream, in.MaxFrames)
	}
	if in.SampleFormat != av.SampleFormatS16 {
		t.Errorf("SampleFormat = %s, want s16 for WAV output", in.SampleFormat)
	}

	dir := filepath.Join("snaps", "0123456789abcdef")
	want := []string{
		filepath.Join(dir, "0_0000000000.png"),
		filepath.Join(dir, "0_0000003000.png"),
	}
	if len(result.Snapshots) != len(want) {
		t.Fatalf("snapshots = %v, want %v", result.Snapshots, want)
	}
	for i, path := range want {
		if result.Snapshots[i] != path {
			t.Errorf("snapshot %d = %s, want %s", i, result.Snapshots[i], path)
		}
		if _, ok := f.fs.GetFile(path); !ok {
			t.Errorf("expected %s to be written", path)
		}
	}
	if len(f.renderer.Overlays) != 2 || f.renderer.Overlays[0].Lines[0] != "clip.mp4" {
		t.Errorf("overlays = %+v", f.renderer.Overlays)
	}

	wav, ok := f.fs.GetFile("out.wav")
	if !ok {
		t.Fatal("expected out.wav to be written")
	}
	if len(wav) != 44+100*2*2 {
		t.Errorf("wav size = %d, want %d", len(wav), 44+100*2*2)
	}
	if result.PCMSamples != 100 {
		t.Errorf("PCMSamples = %d, want 100", result.PCMSamples)
	}
	if result.Play == nil || result.Play.Video.Frames != 2 {
		t.Errorf("play result = %+v", result.Play)
	}
	if !f.container.Closed {
		t.Error("expected source to be closed")
	}
}

func TestOrchestrator_Play_NullSinks(t *testing.T) {
	f := newFixture(t)

	config := DefaultConfig()
	config.SampleFormat = av.SampleFormatF32P

	if _, err := f.orch.Play(context.Background(), config); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.play.input.VideoSink.(*nullsink.Sink); !ok {
		t.Errorf("VideoSink = %T, want *nullsink.Sink", f.play.input.VideoSink)
	}
	if _, ok := f.play.input.AudioSink.(*nullsink.Sink); !ok {
		t.Errorf("AudioSink = %T, want *nullsink.Sink", f.play.input.AudioSink)
	}
	if f.play.input.SampleFormat != av.SampleFormatF32P {
		t.Errorf("SampleFormat = %s, want fltp kept without WAV output", f.play.input.SampleFormat)
	}
	if len(f.fs.GetAllFiles()) != 0 {
		t.Errorf("expected no files, got %v", f.fs.GetAllFiles())
	}
}

func TestOrchestrator_Play_PlanarToPacked(t *testing.T) {
	f := newFixture(t)

	config := DefaultConfig()
	config.SampleFormat = av.SampleFormatF32P
	config.PCMPath = "out.wav"

	if _, err := f.orch.Play(context.Background(), config); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.play.input.SampleFormat != av.SampleFormatF32 {
		t.Errorf("SampleFormat = %s, want f32", f.play.input.SampleFormat)
	}
	// no audio arrived, so no file
	if _, ok := f.fs.GetFile("out.wav"); ok {
		t.Error("expected no WAV file without audio")
	}
}

func TestOrchestrator_Errors(t *testing.T) {
	errProbe := errors.New("no such file")
	errPlay := errors.New("decoder crashed")

	t.Run("probe", func(t *testing.T) {
		f := newFixture(t)
		f.probe.err = errProbe

		_, err := f.orch.Play(context.Background(), DefaultConfig())
		if !errors.Is(err, errProbe) {
			t.Fatalf("expected probe error, got %v", err)
		}
		if !strings.HasPrefix(err.Error(), "probe stage:") {
			t.Errorf("error = %q, want probe stage prefix", err.Error())
		}
	})

	t.Run("play", func(t *testing.T) {
		f := newFixture(t)
		f.play.err = errPlay

		result, err := f.orch.Play(context.Background(), DefaultConfig())
		if !errors.Is(err, errPlay) {
			t.Fatalf("expected play error, got %v", err)
		}
		if result.Play == nil {
			t.Error("expected partial play result")
		}
		if !f.container.Closed {
			t.Error("expected source to be closed")
		}
	})

	t.Run("canceled", func(t *testing.T) {
		f := newFixture(t)
		f.play.err = context.Canceled

		_, err := f.orch.Play(context.Background(), DefaultConfig())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("relay", func(t *testing.T) {
		f := newFixture(t)
		f.relay.err = errPlay

		result, err := f.orch.Push(context.Background(), DefaultConfig())
		if !errors.Is(err, errPlay) || !strings.HasPrefix(err.Error(), "relay stage:") {
			t.Fatalf("expected relay stage error, got %v", err)
		}
		if result.Relay == nil {
			t.Error("expected partial relay result")
		}
	})
}

func TestOrchestrator_Push(t *testing.T) {
	f := newFixture(t)
	f.relay.result = pipeline.RelayResult{Muxer: "mpegts", Packets: 12, Bytes: 480}

	config := DefaultConfig()
	config.Locator = "clip.mp4"
	config.Target = "udp://127.0.0.1:5000"
	config.MaxPackets = 12

	result, err := f.orch.Push(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := f.relay.input
	if in.Target != config.Target || in.PaceStream != 0 || in.MaxPackets != 12 {
		t.Errorf("relay input = %+v", in)
	}
	if in.Source != f.probe.result.Source {
		t.Error("expected the probed source to be relayed")
	}
	if result.Relay == nil || result.Relay.Packets != 12 {
		t.Errorf("relay result = %+v", result.Relay)
	}
	if !f.container.Closed {
		t.Error("expected source to be closed")
	}
}
