//go:build ffmpeg

package avformat

import (
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/user/mediaplay/pkg/av"
)

var pixelFormats = map[astiav.PixelFormat]av.PixelFormat{
	astiav.PixelFormatYuv420P:  av.PixelFormatYUV420P,
	astiav.PixelFormatYuvj420P: av.PixelFormatYUV420P,
	astiav.PixelFormatNv12:     av.PixelFormatNV12,
	astiav.PixelFormatRgba:     av.PixelFormatRGBA,
	astiav.PixelFormatBgra:     av.PixelFormatBGRA,
	astiav.PixelFormatGray8:    av.PixelFormatGray,
}

var sampleFormats = map[astiav.SampleFormat]av.SampleFormat{
	astiav.SampleFormatU8:   av.SampleFormatU8,
	astiav.SampleFormatS16:  av.SampleFormatS16,
	astiav.SampleFormatS32:  av.SampleFormatS32,
	astiav.SampleFormatFlt:  av.SampleFormatF32,
	astiav.SampleFormatDbl:  av.SampleFormatF64,
	astiav.SampleFormatU8P:  av.SampleFormatU8P,
	astiav.SampleFormatS16P: av.SampleFormatS16P,
	astiav.SampleFormatS32P: av.SampleFormatS32P,
	astiav.SampleFormatFltp: av.SampleFormatF32P,
	astiav.SampleFormatDblp: av.SampleFormatF64P,
}

// PixelFormat maps a libav pixel format. Unmapped formats are
// av.PixelFormatNone.
func PixelFormat(f astiav.PixelFormat) av.PixelFormat {
	return pixelFormats[f]
}

// SampleFormat maps a libav sample format. Unmapped formats are
// av.SampleFormatNone.
func SampleFormat(f astiav.SampleFormat) av.SampleFormat {
	return sampleFormats[f]
}

// LibavCodecID is the reverse of CodecID.
func LibavCodecID(id av.CodecID) (astiav.CodecID, bool) {
	for k, v := range codecIDs {
		if v == id {
			return k, true
		}
	}
	return 0, false
}

// FillCodecParameters describes st in dst. Streams opened by this package
// carry their native parameters, which are copied as is; others are built
// from the stream description.
func FillCodecParameters(dst *astiav.CodecParameters, st av.StreamInfo) error {
	if cp, ok := st.Native.(*astiav.CodecParameters); ok {
		return cp.Copy(dst)
	}
	lid, ok := LibavCodecID(st.Codec)
	if !ok {
		return fmt.Errorf("no libav codec for %s", st.Codec)
	}
	dst.SetCodecID(lid)
	switch st.Type {
	case av.MediaTypeVideo:
		dst.SetMediaType(astiav.MediaTypeVideo)
		dst.SetWidth(st.Width)
		dst.SetHeight(st.Height)
	case av.MediaTypeAudio:
		dst.SetMediaType(astiav.MediaTypeAudio)
		dst.SetSampleRate(st.SampleRate)
		switch st.Channels {
		case 1:
			dst.SetChannelLayout(astiav.ChannelLayoutMono)
		case 2:
			dst.SetChannelLayout(astiav.ChannelLayoutStereo)
		}
	}
	if len(st.ExtraData) > 0 {
		if err := dst.SetExtraData(st.ExtraData); err != nil {
			return fmt.Errorf("extradata: %w", err)
		}
	}
	return nil
}
