// Package jpegcodec decodes Motion JPEG streams, one picture per packet.
package jpegcodec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/convert"
	"github.com/user/mediaplay/pkg/ports"
)

// Factory opens MJPEG codecs. It implements ports.CodecFactory.
type Factory struct{}

// New creates a factory.
func New() *Factory {
	return &Factory{}
}

func (f *Factory) Name() string { return "jpeg" }

func (f *Factory) Supports(id av.CodecID) bool {
	return id == av.CodecMJPEG
}

func (f *Factory) Open(stream av.StreamInfo) (ports.Codec, error) {
	return &codec{stream: stream}, nil
}

var _ ports.CodecFactory = (*Factory)(nil)

type codec struct {
	stream   av.StreamInfo
	pending  *av.Packet
	draining bool
}

// SendPacket holds one packet. JPEG has no inter-picture dependencies, so
// decoding happens in ReceiveFrame.
func (c *codec) SendPacket(pkt *av.Packet) error {
	if pkt == nil {
		c.draining = true
		return nil
	}
	if len(pkt.Data) < 2 || pkt.Data[0] != 0xff || pkt.Data[1] != 0xd8 {
		return fmt.Errorf("jpegcodec: packet without SOI marker on stream %d", pkt.StreamIndex)
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

	img, err := jpeg.Decode(bytes.NewReader(pkt.Data))
	if err != nil {
		return fmt.Errorf("jpegcodec: %w", err)
	}
	if err := toFrame(img, &dst.Video); err != nil {
		return err
	}
	dst.Type = av.MediaTypeVideo
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

// toFrame stores a decoded picture. JFIF samples are full range and are
// compressed to the limited range used by the rest of the pipeline.
func toFrame(img image.Image, v *av.VideoFrame) error {
	switch m := img.(type) {
	case *image.YCbCr:
		if m.SubsampleRatio != image.YCbCrSubsampleRatio420 {
			break
		}
		w, h := m.Rect.Dx(), m.Rect.Dy()
		v.Alloc(av.PixelFormatYUV420P, w, h)
		for y := 0; y < h; y++ {
			in := m.Y[m.YOffset(m.Rect.Min.X, m.Rect.Min.Y+y):]
			out := v.Planes[0][y*v.Strides[0]:]
			for x := 0; x < w; x++ {
				out[x] = limitLuma(in[x])
			}
		}
		cw, ch := (w+1)/2, (h+1)/2
		for y := 0; y < ch; y++ {
			off := m.COffset(m.Rect.Min.X, m.Rect.Min.Y+2*y)
			for x := 0; x < cw; x++ {
				v.Planes[1][y*v.Strides[1]+x] = limitChroma(m.Cb[off+x])
				v.Planes[2][y*v.Strides[2]+x] = limitChroma(m.Cr[off+x])
			}
		}
		return nil
	case *image.Gray:
		w, h := m.Rect.Dx(), m.Rect.Dy()
		v.Alloc(av.PixelFormatGray, w, h)
		for y := 0; y < h; y++ {
			in := m.Pix[m.PixOffset(m.Rect.Min.X, m.Rect.Min.Y+y):]
			out := v.Planes[0][y*v.Strides[0]:]
			for x := 0; x < w; x++ {
				out[x] = limitLuma(in[x])
			}
		}
		return nil
	}
	return convert.FromImage(img, av.PixelFormatYUV420P, v)
}

func limitLuma(y byte) byte {
	return byte(16 + (int(y)*219+127)/255)
}

func limitChroma(c byte) byte {
	return byte(16 + (int(c)*224+127)/255)
}
