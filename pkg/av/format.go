package av

import "strings"

// PixelFormat is the memory layout of a decoded video frame.
type PixelFormat int

const (
	PixelFormatNone PixelFormat = iota
	PixelFormatYUV420P
	PixelFormatNV12
	PixelFormatRGBA
	PixelFormatBGRA
	PixelFormatGray
)

var pixelFormatNames = map[PixelFormat]string{
	PixelFormatNone:    "none",
	PixelFormatYUV420P: "yuv420p",
	PixelFormatNV12:    "nv12",
	PixelFormatRGBA:    "rgba",
	PixelFormatBGRA:    "bgra",
	PixelFormatGray:    "gray",
}

func (f PixelFormat) String() string {
	if s, ok := pixelFormatNames[f]; ok {
		return s
	}
	return "unknown"
}

// ParsePixelFormat parses a pixel format name. Empty and unknown names map
// to PixelFormatNone, which means "keep the native format".
func ParsePixelFormat(s string) PixelFormat {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, name := range pixelFormatNames {
		if name == s {
			return f
		}
	}
	return PixelFormatNone
}

// Planes returns the number of data planes used by the format.
func (f PixelFormat) Planes() int {
	switch f {
	case PixelFormatYUV420P:
		return 3
	case PixelFormatNV12:
		return 2
	case PixelFormatRGBA, PixelFormatBGRA, PixelFormatGray:
		return 1
	default:
		return 0
	}
}

// PlaneSize returns stride and height of plane i for a width×height image.
func (f PixelFormat) PlaneSize(i, width, height int) (stride, rows int) {
	cw, ch := (width+1)/2, (height+1)/2
	switch f {
	case PixelFormatYUV420P:
		if i == 0 {
			return width, height
		}
		return cw, ch
	case PixelFormatNV12:
		if i == 0 {
			return width, height
		}
		return cw * 2, ch
	case PixelFormatRGBA, PixelFormatBGRA:
		return width * 4, height
	case PixelFormatGray:
		return width, height
	}
	return 0, 0
}

// SampleFormat is the memory layout of decoded audio samples.
type SampleFormat int

const (
	SampleFormatNone SampleFormat = iota
	SampleFormatU8
	SampleFormatS16
	SampleFormatS32
	SampleFormatF32
	SampleFormatF64
	SampleFormatU8P
	SampleFormatS16P
	SampleFormatS32P
	SampleFormatF32P
	SampleFormatF64P
)

var sampleFormatNames = map[SampleFormat]string{
	SampleFormatNone: "none",
	SampleFormatU8:   "u8",
	SampleFormatS16:  "s16",
	SampleFormatS32:  "s32",
	SampleFormatF32:  "flt",
	SampleFormatF64:  "dbl",
	SampleFormatU8P:  "u8p",
	SampleFormatS16P: "s16p",
	SampleFormatS32P: "s32p",
	SampleFormatF32P: "fltp",
	SampleFormatF64P: "dblp",
}

func (f SampleFormat) String() string {
	if s, ok := sampleFormatNames[f]; ok {
		return s
	}
	return "unknown"
}

// ParseSampleFormat parses a sample format name. "f32" and "f64" are
// accepted as aliases of "flt" and "dbl".
func ParseSampleFormat(s string) SampleFormat {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "f32":
		s = "flt"
	case "f32p":
		s = "fltp"
	case "f64":
		s = "dbl"
	case "f64p":
		s = "dblp"
	}
	for f, name := range sampleFormatNames {
		if name == s {
			return f
		}
	}
	return SampleFormatNone
}

// BytesPerSample returns the size of one sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatU8, SampleFormatU8P:
		return 1
	case SampleFormatS16, SampleFormatS16P:
		return 2
	case SampleFormatS32, SampleFormatS32P, SampleFormatF32, SampleFormatF32P:
		return 4
	case SampleFormatF64, SampleFormatF64P:
		return 8
	default:
		return 0
	}
}

// Planar reports whether each channel is stored in its own plane.
func (f SampleFormat) Planar() bool {
	return f >= SampleFormatU8P
}

// Packed returns the interleaved variant of a planar format.
func (f SampleFormat) Packed() SampleFormat {
	if f.Planar() {
		return f - (SampleFormatU8P - SampleFormatU8)
	}
	return f
}
