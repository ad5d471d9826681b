// Package pcmcodec passes raw PCM packets through as audio frames.
package pcmcodec

import (
	"errors"
	"fmt"
	"io"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// ErrLayout is returned when a PCM stream has no sample rate or channel count.
var ErrLayout = errors.New("pcmcodec: unknown sample layout")

var formats = map[av.CodecID]av.SampleFormat{
	av.CodecPCMS16LE: av.SampleFormatS16,
	av.CodecPCMF32LE: av.SampleFormatF32,
	av.CodecPCMU8:    av.SampleFormatU8,
}

// Factory opens PCM codecs. It implements ports.CodecFactory.
type Factory struct{}

// New creates a factory.
func New() *Factory {
	return &Factory{}
}

func (f *Factory) Name() string { return "pcm" }

func (f *Factory) Supports(id av.CodecID) bool {
	_, ok := formats[id]
	return ok
}

func (f *Factory) Open(stream av.StreamInfo) (ports.Codec, error) {
	format, ok := formats[stream.Codec]
	if !ok {
		return nil, fmt.Errorf("pcmcodec: unsupported codec %s", stream.Codec)
	}
	if stream.SampleRate <= 0 || stream.Channels <= 0 {
		return nil, fmt.Errorf("%w: stream %d", ErrLayout, stream.Index)
	}
	return &codec{stream: stream, format: format}, nil
}

var _ ports.CodecFactory = (*Factory)(nil)

type codec struct {
	stream   av.StreamInfo
	format   av.SampleFormat
	pending  *av.Packet
	draining bool
}

func (c *codec) SendPacket(pkt *av.Packet) error {
	if pkt == nil {
		c.draining = true
		return nil
	}
	frameSize := c.stream.Channels * c.format.BytesPerSample()
	if len(pkt.Data) == 0 || len(pkt.Data)%frameSize != 0 {
		return fmt.Errorf("pcmcodec: %d bytes is not a whole number of %d-byte sample frames", len(pkt.Data), frameSize)
	}
	c.pending = pkt
	return nil
}

func (c *codec) ReceiveFrame(dst *av.Frame) error {
	if c.pending == nil {
		if c.draining {
			return io.EOF
		}
		return ports.ErrAgain
	}
	pkt := c.pending
	c.pending = nil

	n := len(pkt.Data) / (c.stream.Channels * c.format.BytesPerSample())
	dst.Audio.Alloc(c.format, c.stream.SampleRate, c.stream.Channels, n)
	copy(dst.Audio.Data, pkt.Data)
	dst.Type = av.MediaTypeAudio
	dst.StreamIndex = pkt.StreamIndex
	dst.PTS = pkt.PTS
	dst.TimeBase = c.stream.TimeBase
	dst.Key = true
	return nil
}

func (c *codec) Close() error {
	c.pending = nil
	return nil
}

var _ ports.Codec = (*codec)(nil)
