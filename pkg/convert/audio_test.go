package convert

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/user/mediaplay/pkg/av"
)

func s16Frame(channels int, samples ...int16) *av.AudioFrame {
	f := &av.AudioFrame{}
	f.Alloc(av.SampleFormatS16, 48000, channels, len(samples)/channels)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(f.Data[i*2:], uint16(s))
	}
	return f
}

func f32At(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func TestS16ToPlanarFloat(t *testing.T) {
	src := s16Frame(2, 16384, -32768, 0, 8192)

	c, err := NewAudioConverter(
		AudioSpec{SampleRate: 48000, Channels: 2, Format: av.SampleFormatS16},
		AudioSpec{SampleRate: 48000, Channels: 2, Format: av.SampleFormatF32P},
	)
	if err != nil {
		t.Fatalf("NewAudioConverter failed: %v", err)
	}
	var dst av.AudioFrame
	if err := c.Convert(src, &dst); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if dst.Samples != 2 {
		t.Fatalf("Samples = %d, want 2", dst.Samples)
	}

	left, right := dst.Plane(0), dst.Plane(1)
	if got := f32At(left, 0); got != 0.5 {
		t.Errorf("left[0] = %v, want 0.5", got)
	}
	if got := f32At(left, 1); got != 0 {
		t.Errorf("left[1] = %v, want 0", got)
	}
	if got := f32At(right, 0); got != -1 {
		t.Errorf("right[0] = %v, want -1", got)
	}
	if got := f32At(right, 1); got != 0.25 {
		t.Errorf("right[1] = %v, want 0.25", got)
	}
}

func TestFloatToS16Clamps(t *testing.T) {
	src := &av.AudioFrame{}
	src.Alloc(av.SampleFormatF32, 8000, 1, 3)
	for i, v := range []float32{2, -2, 0} {
		binary.LittleEndian.PutUint32(src.Data[i*4:], math.Float32bits(v))
	}

	c, err := NewAudioConverter(
		AudioSpec{SampleRate: 8000, Channels: 1, Format: av.SampleFormatF32},
		AudioSpec{SampleRate: 8000, Channels: 1, Format: av.SampleFormatS16},
	)
	if err != nil {
		t.Fatalf("NewAudioConverter failed: %v", err)
	}
	var dst av.AudioFrame
	if err := c.Convert(src, &dst); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	want := []int16{32767, -32767, 0}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(dst.Data[i*2:])); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestChannelRemix(t *testing.T) {
	tests := []struct {
		name     string
		in       []int16
		from, to int
		want     []int16
	}{
		{"stereo to mono averages", []int16{16384, -16384, 16384, 16384}, 2, 1, []int16{0, 16384}},
		{"mono to stereo duplicates", []int16{100, -200}, 1, 2, []int16{100, 100, -200, -200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewAudioConverter(
				AudioSpec{SampleRate: 48000, Channels: tt.from, Format: av.SampleFormatS16},
				AudioSpec{SampleRate: 48000, Channels: tt.to, Format: av.SampleFormatS16},
			)
			if err != nil {
				t.Fatalf("NewAudioConverter failed: %v", err)
			}
			var dst av.AudioFrame
			if err := c.Convert(s16Frame(tt.from, tt.in...), &dst); err != nil {
				t.Fatalf("Convert failed: %v", err)
			}
			if dst.Channels != tt.to {
				t.Fatalf("Channels = %d, want %d", dst.Channels, tt.to)
			}
			for i, w := range tt.want {
				got := int16(binary.LittleEndian.Uint16(dst.Data[i*2:]))
				if d := int(got) - int(w); d < -1 || d > 1 {
					t.Errorf("sample %d = %d, want %d", i, got, w)
				}
			}
		})
	}
}

func TestResampleChangesRate(t *testing.T) {
	const n = 48000
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/48000))
	}

	c, err := NewAudioConverter(
		AudioSpec{SampleRate: 48000, Channels: 1, Format: av.SampleFormatS16},
		AudioSpec{SampleRate: 16000, Channels: 1, Format: av.SampleFormatS16},
	)
	if err != nil {
		t.Fatalf("NewAudioConverter failed: %v", err)
	}
	var dst av.AudioFrame
	if err := c.Convert(s16Frame(1, samples...), &dst); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if dst.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", dst.SampleRate)
	}
	if dst.Samples == 0 || dst.Samples > n/3+64 {
		t.Errorf("Samples = %d, want about %d", dst.Samples, n/3)
	}
}

func TestNewAudioConverterRejectsUnknownFormat(t *testing.T) {
	_, err := NewAudioConverter(
		AudioSpec{SampleRate: 48000, Channels: 2, Format: av.SampleFormatNone},
		AudioSpec{SampleRate: 48000, Channels: 2, Format: av.SampleFormatS16},
	)
	if err == nil {
		t.Fatal("expected error")
	}
}
