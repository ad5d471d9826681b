package decode

import (
	"fmt"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/convert"
)

// VideoSession is a decode session whose frames are converted to a
// requested pixel format and size.
type VideoSession struct {
	*Session
	adapter *videoAdapter
}

// NewVideo opens a video session. format may be av.PixelFormatNone to keep
// the codec's native format. A converter is only set up when the native
// format or size differs from the requested one.
func NewVideo(src PacketSource, index int, format av.PixelFormat, opts ...Option) (*VideoSession, error) {
	stream, ok := src.Stream(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoStream, index)
	}
	if stream.Type != av.MediaTypeVideo {
		return nil, fmt.Errorf("%w: stream %d is %s, want video", ErrMediaType, index, stream.Type)
	}

	o := buildOptions(opts)
	a := &videoAdapter{format: format, width: o.width, height: o.height}
	if stream.PixelFormat != av.PixelFormatNone && stream.Width > 0 && stream.Height > 0 {
		if err := a.setup(stream.PixelFormat, stream.Width, stream.Height); err != nil {
			return nil, err
		}
	}

	s, err := Init(src, index, append(opts, WithConverter(a))...)
	if err != nil {
		return nil, err
	}
	return &VideoSession{Session: s, adapter: a}, nil
}

// Width returns the width of returned frames, or 0 before the native size
// is known.
func (v *VideoSession) Width() int {
	w, _ := v.adapter.size()
	return w
}

// Height returns the height of returned frames, or 0 before the native size
// is known.
func (v *VideoSession) Height() int {
	_, h := v.adapter.size()
	return h
}

// PixelFormat returns the format of returned frames: the requested format
// when one is configured, else the native one.
func (v *VideoSession) PixelFormat() av.PixelFormat {
	if v.adapter.format != av.PixelFormatNone {
		return v.adapter.format
	}
	return v.adapter.native
}

// HasConverter reports whether frames go through a converter.
func (v *VideoSession) HasConverter() bool {
	return v.adapter.conv != nil
}

type videoAdapter struct {
	format av.PixelFormat
	width  int
	height int

	ready        bool
	native       av.PixelFormat
	nativeWidth  int
	nativeHeight int

	conv *convert.VideoConverter
	dst  av.Frame
}

func (a *videoAdapter) setup(native av.PixelFormat, w, h int) error {
	a.native, a.nativeWidth, a.nativeHeight = native, w, h
	a.ready = true
	a.conv = nil

	target := convert.VideoSpec{Width: a.width, Height: a.height, Format: a.format}
	if target.Width <= 0 {
		target.Width = w
	}
	if target.Height <= 0 {
		target.Height = h
	}
	if target.Format == av.PixelFormatNone {
		target.Format = native
	}
	if target.Format == native && target.Width == w && target.Height == h {
		return nil
	}

	conv, err := convert.NewVideoConverter(convert.VideoSpec{Width: w, Height: h, Format: native}, target)
	if err != nil {
		return fmt.Errorf("decode: video converter: %w", err)
	}
	a.conv = conv
	return nil
}

func (a *videoAdapter) size() (int, int) {
	if a.conv != nil {
		t := a.conv.Target()
		return t.Width, t.Height
	}
	return a.nativeWidth, a.nativeHeight
}

func (a *videoAdapter) Convert(f *av.Frame) (*av.Frame, error) {
	v := &f.Video
	if !a.ready || v.Format != a.native || v.Width != a.nativeWidth || v.Height != a.nativeHeight {
		if err := a.setup(v.Format, v.Width, v.Height); err != nil {
			return nil, err
		}
	}
	if a.conv == nil {
		return f, nil
	}
	if err := a.conv.Convert(v, &a.dst.Video); err != nil {
		return nil, err
	}
	a.dst.Type = f.Type
	a.dst.StreamIndex = f.StreamIndex
	a.dst.PTS = f.PTS
	a.dst.TimeBase = f.TimeBase
	a.dst.Key = f.Key
	return &a.dst, nil
}
