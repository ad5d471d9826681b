package decode

import (
	"fmt"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/convert"
)

// AudioSession is a decode session whose frames are converted to a
// requested sample format. Sample rate and channel count are kept unless
// WithSampleRate or WithChannels ask otherwise.
type AudioSession struct {
	*Session
	adapter *audioAdapter
}

// NewAudio opens an audio session. format may be av.SampleFormatNone to
// keep the codec's native format.
func NewAudio(src PacketSource, index int, format av.SampleFormat, opts ...Option) (*AudioSession, error) {
	stream, ok := src.Stream(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoStream, index)
	}
	if stream.Type != av.MediaTypeAudio {
		return nil, fmt.Errorf("%w: stream %d is %s, want audio", ErrMediaType, index, stream.Type)
	}

	o := buildOptions(opts)
	a := &audioAdapter{format: format, rate: o.sampleRate, channels: o.channels}
	if stream.SampleFormat != av.SampleFormatNone && stream.SampleRate > 0 && stream.Channels > 0 {
		native := convert.AudioSpec{SampleRate: stream.SampleRate, Channels: stream.Channels, Format: stream.SampleFormat}
		if err := a.setup(native); err != nil {
			return nil, err
		}
	}

	s, err := Init(src, index, append(opts, WithConverter(a))...)
	if err != nil {
		return nil, err
	}
	return &AudioSession{Session: s, adapter: a}, nil
}

// SampleRate returns the rate of returned frames.
func (s *AudioSession) SampleRate() int { return s.adapter.output().SampleRate }

// Channels returns the channel count of returned frames.
func (s *AudioSession) Channels() int { return s.adapter.output().Channels }

// SampleFormat returns the sample format of returned frames.
func (s *AudioSession) SampleFormat() av.SampleFormat { return s.adapter.output().Format }

// BytesPerSample returns the size of one sample of one channel.
func (s *AudioSession) BytesPerSample() int { return s.adapter.output().Format.BytesPerSample() }

// HasConverter reports whether frames go through a converter.
func (s *AudioSession) HasConverter() bool { return s.adapter.conv != nil }

type audioAdapter struct {
	format   av.SampleFormat
	rate     int
	channels int

	ready  bool
	native convert.AudioSpec

	conv *convert.AudioConverter
	dst  av.Frame
}

func (a *audioAdapter) target(native convert.AudioSpec) convert.AudioSpec {
	t := native
	if a.format != av.SampleFormatNone {
		t.Format = a.format
	}
	if a.rate > 0 {
		t.SampleRate = a.rate
	}
	if a.channels > 0 {
		t.Channels = a.channels
	}
	return t
}

func (a *audioAdapter) setup(native convert.AudioSpec) error {
	a.native = native
	a.ready = true
	a.conv = nil

	target := a.target(native)
	if target == native {
		return nil
	}
	conv, err := convert.NewAudioConverter(native, target)
	if err != nil {
		return fmt.Errorf("decode: audio converter: %w", err)
	}
	a.conv = conv
	return nil
}

func (a *audioAdapter) output() convert.AudioSpec {
	if !a.ready {
		return a.target(convert.AudioSpec{})
	}
	return a.target(a.native)
}

func (a *audioAdapter) Convert(f *av.Frame) (*av.Frame, error) {
	in := &f.Audio
	native := convert.AudioSpec{SampleRate: in.SampleRate, Channels: in.Channels, Format: in.Format}
	if !a.ready || native != a.native {
		if err := a.setup(native); err != nil {
			return nil, err
		}
	}
	if a.conv == nil {
		return f, nil
	}
	if err := a.conv.Convert(in, &a.dst.Audio); err != nil {
		return nil, err
	}
	a.dst.Type = f.Type
	a.dst.StreamIndex = f.StreamIndex
	a.dst.PTS = f.PTS
	a.dst.TimeBase = f.TimeBase
	a.dst.Key = f.Key
	return &a.dst, nil
}
