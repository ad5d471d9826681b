package convert

import (
	"encoding/binary"
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/user/mediaplay/pkg/av"
)

// AudioSpec describes one side of an audio conversion.
type AudioSpec struct {
	SampleRate int
	Channels   int
	Format     av.SampleFormat
}

func (s AudioSpec) String() string {
	return fmt.Sprintf("%d Hz %dch %s", s.SampleRate, s.Channels, s.Format)
}

// AudioConverter converts sample format, channel count and sample rate.
// Samples pass through a float64 interleaved intermediate. The resampler
// is stateful, so a converter must only be fed frames of one stream in
// order.
type AudioConverter struct {
	src AudioSpec
	dst AudioSpec

	resampler resampling.Resampler

	buf   []float64
	mixed []float64
}

// NewAudioConverter creates a converter from src to dst.
func NewAudioConverter(src, dst AudioSpec) (*AudioConverter, error) {
	for _, s := range []AudioSpec{src, dst} {
		if s.Format.BytesPerSample() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.Format)
		}
		if s.Channels <= 0 || s.SampleRate <= 0 {
			return nil, fmt.Errorf("convert: invalid audio format %s", s)
		}
	}
	c := &AudioConverter{src: src, dst: dst}
	if src.SampleRate != dst.SampleRate {
		rs, err := resampling.New(&resampling.Config{
			InputRate:  float64(src.SampleRate),
			OutputRate: float64(dst.SampleRate),
			Channels:   dst.Channels,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("convert: create resampler: %w", err)
		}
		c.resampler = rs
	}
	return c, nil
}

// Source returns the source format.
func (c *AudioConverter) Source() AudioSpec { return c.src }

// Target returns the destination format.
func (c *AudioConverter) Target() AudioSpec { return c.dst }

// Convert writes src into dst. When resampling, dst may hold a different
// number of samples than src, including zero while the resampler fills.
func (c *AudioConverter) Convert(src, dst *av.AudioFrame) error {
	if src.Format != c.src.Format || src.Channels != c.src.Channels {
		return fmt.Errorf("%w: got %dch %s, want %s", ErrFrameMismatch, src.Channels, src.Format, c.src)
	}

	c.buf = decodeSamples(src, c.buf[:0])
	samples := c.remix(c.buf, src.Samples)

	if c.resampler != nil {
		out, err := c.resampler.Process(samples)
		if err != nil {
			return fmt.Errorf("convert: resample: %w", err)
		}
		samples = out
	}

	n := len(samples) / c.dst.Channels
	dst.Alloc(c.dst.Format, c.dst.SampleRate, c.dst.Channels, n)
	encodeSamples(samples[:n*c.dst.Channels], dst)
	return nil
}

// remix maps interleaved samples from the source to the target channel
// count. Mono is duplicated, downmix to mono averages, other layouts keep
// the leading channels and repeat the last one.
func (c *AudioConverter) remix(in []float64, n int) []float64 {
	sc, dc := c.src.Channels, c.dst.Channels
	if sc == dc {
		return in
	}
	if cap(c.mixed) < n*dc {
		c.mixed = make([]float64, n*dc)
	}
	out := c.mixed[:n*dc]
	for i := 0; i < n; i++ {
		frame := in[i*sc : (i+1)*sc]
		if dc == 1 {
			var sum float64
			for _, s := range frame {
				sum += s
			}
			out[i] = sum / float64(sc)
			continue
		}
		for ch := 0; ch < dc; ch++ {
			from := ch
			if from >= sc {
				from = sc - 1
			}
			out[i*dc+ch] = frame[from]
		}
	}
	return out
}

// decodeSamples appends src as interleaved float64 samples in [-1, 1].
func decodeSamples(src *av.AudioFrame, out []float64) []float64 {
	bps := src.BytesPerSample()
	packed := src.Format.Packed()
	for i := 0; i < src.Samples; i++ {
		for ch := 0; ch < src.Channels; ch++ {
			var b []byte
			if src.Format.Planar() {
				b = src.Plane(ch)[i*bps:]
			} else {
				b = src.Data[(i*src.Channels+ch)*bps:]
			}
			out = append(out, readSample(packed, b))
		}
	}
	return out
}

func encodeSamples(in []float64, dst *av.AudioFrame) {
	bps := dst.BytesPerSample()
	packed := dst.Format.Packed()
	for i := 0; i < dst.Samples; i++ {
		for ch := 0; ch < dst.Channels; ch++ {
			var b []byte
			if dst.Format.Planar() {
				b = dst.Plane(ch)[i*bps:]
			} else {
				b = dst.Data[(i*dst.Channels+ch)*bps:]
			}
			writeSample(packed, b, in[i*dst.Channels+ch])
		}
	}
}

func readSample(f av.SampleFormat, b []byte) float64 {
	switch f {
	case av.SampleFormatU8:
		return (float64(b[0]) - 128) / 128
	case av.SampleFormatS16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case av.SampleFormatS32:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	case av.SampleFormatF32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case av.SampleFormatF64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

func writeSample(f av.SampleFormat, b []byte, s float64) {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	switch f {
	case av.SampleFormatU8:
		b[0] = byte(math.Round(s*127) + 128)
	case av.SampleFormatS16:
		binary.LittleEndian.PutUint16(b, uint16(int16(math.Round(s*32767))))
	case av.SampleFormatS32:
		binary.LittleEndian.PutUint32(b, uint32(int32(math.Round(s*2147483647))))
	case av.SampleFormatF32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(s)))
	case av.SampleFormatF64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(s))
	}
}
