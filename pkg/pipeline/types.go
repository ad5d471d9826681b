package pipeline

import (
	"time"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
	"github.com/user/mediaplay/pkg/source"
)

// Stream selection values for ProbeInput.
const (
	// StreamAuto picks the best stream of the media type.
	StreamAuto = -1
	// StreamOff disables the media type.
	StreamOff = -2
)

// =============================================================================
// Probe Stage Types
// =============================================================================

// ProbeInput names the source and the streams to play.
type ProbeInput struct {
	Locator      string
	ProbePackets int
	VideoStream  int // stream index, StreamAuto or StreamOff
	AudioStream  int // stream index, StreamAuto or StreamOff
}

// DefaultProbeInput returns ProbeInput with default values.
func DefaultProbeInput() ProbeInput {
	return ProbeInput{
		ProbePackets: source.DefaultProbePackets,
		VideoStream:  StreamAuto,
		AudioStream:  StreamAuto,
	}
}

// ProbeResult holds the opened source and the selected streams. The caller
// closes Source.
type ProbeResult struct {
	Source      *source.Source
	Format      string
	Streams     []av.StreamInfo
	VideoStream int // -1 when there is no video to play
	AudioStream int // -1 when there is no audio to play
}

// =============================================================================
// Play Stage Types
// =============================================================================

// PlayInput configures decoding of the selected streams into sinks.
type PlayInput struct {
	Source      *source.Source
	VideoStream int // -1 skips video
	AudioStream int // -1 skips audio

	// Video format adapter targets. Zero values keep the native format.
	PixelFormat av.PixelFormat
	Width       int
	Height      int

	// Audio format adapter targets. Zero values keep the native format.
	SampleFormat av.SampleFormat
	SampleRate   int
	Channels     int

	// MaxFrames stops each stream after this many frames. 0 plays to the end.
	MaxFrames int

	VideoSink ports.VideoSink
	AudioSink ports.AudioSink
}

// StreamStats summarizes one played stream.
type StreamStats struct {
	Index      int
	Codec      av.CodecID
	Backend    string
	Packets    int64
	Frames     int64
	SendErrors int64
	Late       int64
	MaxLate    time.Duration
	Err        error // set when the stream could not be opened or failed
}

// PlayResult contains the playback statistics.
type PlayResult struct {
	Video    *StreamStats
	Audio    *StreamStats
	Routing  source.Stats
	Duration time.Duration
}

// =============================================================================
// Relay Stage Types
// =============================================================================

// RelayInput configures re-streaming of compressed packets.
type RelayInput struct {
	Source *source.Source
	Target string
	// PaceStream is the stream whose timestamps pace the relay, normally
	// the video stream. -1 relays as fast as packets are read.
	PaceStream int
	// MaxPackets stops after this many packets. 0 relays to the end.
	MaxPackets int
}

// RelayResult contains the relay statistics.
type RelayResult struct {
	Muxer    string
	Packets  int64
	Bytes    int64
	Skipped  int64 // packets of streams the output cannot carry
	Duration time.Duration
}
