//go:build ffmpeg

// Package avcodec decodes through libavcodec via go-astiav. It accepts
// streams from any container; native avformat streams are configured from
// their codec parameters, others from the stream description.
package avcodec

import (
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"

	"github.com/user/mediaplay/pkg/adapters/avformat"
	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// ErrNoDecoder is returned when libavcodec has no decoder for the codec.
var ErrNoDecoder = errors.New("avcodec: no decoder available")

// Factory opens libavcodec decoders. It implements ports.CodecFactory.
type Factory struct {
	threads int
}

// New creates a factory. threads <= 0 lets libavcodec choose.
func New(threads int) *Factory {
	return &Factory{threads: threads}
}

func (f *Factory) Name() string { return "libavcodec" }

func (f *Factory) Supports(id av.CodecID) bool {
	lid, ok := avformat.LibavCodecID(id)
	return ok && astiav.FindDecoder(lid) != nil
}

func (f *Factory) Open(stream av.StreamInfo) (ports.Codec, error) {
	lid, ok := avformat.LibavCodecID(stream.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDecoder, stream.Codec)
	}
	dec := astiav.FindDecoder(lid)
	if dec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDecoder, stream.Codec)
	}
	ctx := astiav.AllocCodecContext(dec)
	if ctx == nil {
		return nil, errors.New("avcodec: failed to allocate codec context")
	}

	if err := configure(ctx, stream); err != nil {
		ctx.Free()
		return nil, err
	}
	if f.threads > 0 {
		ctx.SetThreadCount(f.threads)
	}
	if err := ctx.Open(dec, nil); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("avcodec: open %s: %w", dec.Name(), err)
	}
	return &codec{
		stream: stream,
		ctx:    ctx,
		pkt:    astiav.AllocPacket(),
		frame:  astiav.AllocFrame(),
	}, nil
}

var _ ports.CodecFactory = (*Factory)(nil)

func configure(ctx *astiav.CodecContext, stream av.StreamInfo) error {
	cp := astiav.AllocCodecParameters()
	defer cp.Free()
	if err := avformat.FillCodecParameters(cp, stream); err != nil {
		return fmt.Errorf("avcodec: %w", err)
	}
	if err := cp.ToCodecContext(ctx); err != nil {
		return fmt.Errorf("avcodec: codec parameters: %w", err)
	}
	return nil
}

type codec struct {
	stream av.StreamInfo
	ctx    *astiav.CodecContext
	pkt    *astiav.Packet
	frame  *astiav.Frame
	scaler *astiav.SoftwareScaleContext
	scaled *astiav.Frame
}

func (c *codec) SendPacket(pkt *av.Packet) error {
	if c.ctx == nil {
		return io.ErrClosedPipe
	}
	if pkt == nil {
		return c.ctx.SendPacket(nil)
	}
	defer c.pkt.Unref()
	if err := c.pkt.FromData(pkt.Data); err != nil {
		return fmt.Errorf("avcodec: packet data: %w", err)
	}
	c.pkt.SetPts(libavTimestamp(pkt.PTS))
	c.pkt.SetDts(libavTimestamp(pkt.DTS))
	c.pkt.SetStreamIndex(pkt.StreamIndex)
	if pkt.Key {
		c.pkt.SetFlags(c.pkt.Flags().Add(astiav.PacketFlagKey))
	}
	if err := c.ctx.SendPacket(c.pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return fmt.Errorf("avcodec: send packet: %w", err)
	}
	return nil
}

func (c *codec) ReceiveFrame(dst *av.Frame) error {
	if c.ctx == nil {
		return io.ErrClosedPipe
	}
	err := c.ctx.ReceiveFrame(c.frame)
	switch {
	case errors.Is(err, astiav.ErrEagain):
		return ports.ErrAgain
	case errors.Is(err, astiav.ErrEof):
		return io.EOF
	case err != nil:
		return fmt.Errorf("avcodec: receive frame: %w", err)
	}
	defer c.frame.Unref()

	dst.StreamIndex = c.stream.Index
	dst.TimeBase = c.stream.TimeBase
	dst.PTS = av.NoPTS
	if pts := c.frame.Pts(); pts != astiav.NoPtsValue {
		dst.PTS = pts
	}
	dst.Key = c.frame.KeyFrame()

	if c.stream.Type == av.MediaTypeAudio {
		dst.Type = av.MediaTypeAudio
		return c.copyAudio(&dst.Audio)
	}
	dst.Type = av.MediaTypeVideo
	return c.copyVideo(&dst.Video)
}

// copyVideo packs the picture into dst. Formats without a native mapping
// are converted to yuv420p with swscale.
func (c *codec) copyVideo(dst *av.VideoFrame) error {
	src := c.frame
	format := avformat.PixelFormat(src.PixelFormat())
	if format == av.PixelFormatNone {
		if err := c.ensureScaler(src); err != nil {
			return err
		}
		if err := c.scaler.ScaleFrame(src, c.scaled); err != nil {
			return fmt.Errorf("avcodec: scale frame: %w", err)
		}
		src, format = c.scaled, av.PixelFormatYUV420P
	}

	dst.Alloc(format, src.Width(), src.Height())
	n, err := src.ImageBufferSize(1)
	if err != nil {
		return fmt.Errorf("avcodec: image buffer size: %w", err)
	}
	buf := make([]byte, n)
	if _, err := src.ImageCopyToBuffer(buf, 1); err != nil {
		return fmt.Errorf("avcodec: copy image: %w", err)
	}
	off := 0
	for i := 0; i < format.Planes(); i++ {
		off += copy(dst.Planes[i], buf[off:])
	}
	return nil
}

func (c *codec) ensureScaler(src *astiav.Frame) error {
	if c.scaler != nil && c.scaled.Width() == src.Width() && c.scaled.Height() == src.Height() {
		return nil
	}
	c.freeScaler()
	ssc, err := astiav.CreateSoftwareScaleContext(
		src.Width(), src.Height(), src.PixelFormat(),
		src.Width(), src.Height(), astiav.PixelFormatYuv420P,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("avcodec: create scaler: %w", err)
	}
	scaled := astiav.AllocFrame()
	scaled.SetWidth(src.Width())
	scaled.SetHeight(src.Height())
	scaled.SetPixelFormat(astiav.PixelFormatYuv420P)
	if err := scaled.AllocBuffer(1); err != nil {
		ssc.Free()
		scaled.Free()
		return fmt.Errorf("avcodec: scaled frame buffer: %w", err)
	}
	c.scaler, c.scaled = ssc, scaled
	return nil
}

func (c *codec) copyAudio(dst *av.AudioFrame) error {
	format := avformat.SampleFormat(c.frame.SampleFormat())
	if format == av.SampleFormatNone {
		return fmt.Errorf("avcodec: unsupported sample format %s", c.frame.SampleFormat())
	}
	dst.Alloc(format, c.frame.SampleRate(), c.frame.ChannelLayout().Channels(), c.frame.NbSamples())
	if _, err := c.frame.SamplesCopyToBuffer(dst.Data, 1); err != nil {
		return fmt.Errorf("avcodec: copy samples: %w", err)
	}
	return nil
}

func (c *codec) freeScaler() {
	if c.scaler != nil {
		c.scaler.Free()
		c.scaler = nil
	}
	if c.scaled != nil {
		c.scaled.Free()
		c.scaled = nil
	}
}

func (c *codec) Close() error {
	if c.ctx == nil {
		return nil
	}
	c.freeScaler()
	c.frame.Free()
	c.pkt.Free()
	c.ctx.Free()
	c.ctx = nil
	return nil
}

var _ ports.Codec = (*codec)(nil)

func libavTimestamp(v int64) int64 {
	if v == av.NoPTS {
		return astiav.NoPtsValue
	}
	return v
}
