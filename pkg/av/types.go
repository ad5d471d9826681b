// Package av defines the media data model shared by containers, codecs and
// format converters: stream descriptors, compressed packets and raw frames.
package av

import (
	"fmt"
	"math"
	"time"
)

// NoPTS marks a packet or frame that carries no presentation timestamp.
const NoPTS int64 = math.MinInt64

// MediaType is the kind of data a stream carries.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeVideo
	MediaTypeAudio
	MediaTypeSubtitle
	MediaTypeData
)

// String returns the string representation of the media type.
func (m MediaType) String() string {
	switch m {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeSubtitle:
		return "subtitle"
	case MediaTypeData:
		return "data"
	default:
		return "unknown"
	}
}

// CodecID identifies the compression format of a stream.
type CodecID string

const (
	CodecUnknown CodecID = ""
	CodecH264    CodecID = "h264"
	CodecHEVC    CodecID = "hevc"
	CodecAV1     CodecID = "av1"
	CodecMJPEG   CodecID = "mjpeg"
	CodecAAC     CodecID = "aac"
	CodecMP3     CodecID = "mp3"
	CodecOpus    CodecID = "opus"
	// CodecPCMS16LE is raw signed 16-bit little-endian PCM.
	CodecPCMS16LE CodecID = "pcm_s16le"
	// CodecPCMF32LE is raw 32-bit float little-endian PCM.
	CodecPCMF32LE CodecID = "pcm_f32le"
	CodecPCMU8    CodecID = "pcm_u8"
)

// Rational is a fraction used for time bases (seconds per tick).
type Rational struct {
	Num int
	Den int
}

// Valid reports whether the rational can be used for conversions.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Microseconds converts ts ticks of this time base to microseconds:
// ts × 1e6 × num / den.
func (r Rational) Microseconds(ts int64) int64 {
	if !r.Valid() {
		return 0
	}
	return int64(float64(ts) * 1e6 * float64(r.Num) / float64(r.Den))
}

// Duration converts ts ticks of this time base to a time.Duration.
func (r Rational) Duration(ts int64) time.Duration {
	return time.Duration(r.Microseconds(ts)) * time.Microsecond
}

// StreamInfo describes one entry of a container's stream table.
type StreamInfo struct {
	Index     int
	Type      MediaType
	Codec     CodecID
	TimeBase  Rational
	Duration  int64 // in TimeBase ticks, 0 if unknown
	Bitrate   int64
	ExtraData []byte

	// Video
	Width       int
	Height      int
	PixelFormat PixelFormat

	// Audio
	SampleRate   int
	Channels     int
	SampleFormat SampleFormat

	// Native carries a backend-specific handle (codec parameters) that a
	// matching codec backend may use. Other backends ignore it.
	Native any
}

func (s StreamInfo) String() string {
	switch s.Type {
	case MediaTypeVideo:
		return fmt.Sprintf("#%d video %s %dx%d tb=%s", s.Index, s.Codec, s.Width, s.Height, s.TimeBase)
	case MediaTypeAudio:
		return fmt.Sprintf("#%d audio %s %dHz %dch tb=%s", s.Index, s.Codec, s.SampleRate, s.Channels, s.TimeBase)
	default:
		return fmt.Sprintf("#%d %s %s tb=%s", s.Index, s.Type, s.Codec, s.TimeBase)
	}
}

// Packet is a unit of compressed data belonging to one stream.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	Data        []byte
	Key         bool
	// Pos is the byte position in the container, -1 if unknown.
	Pos int64
}

// HasPTS reports whether the packet carries a presentation timestamp.
func (p *Packet) HasPTS() bool {
	return p.PTS != NoPTS
}
