package tscontainer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Eyevinn/mp4ff/aac"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

var (
	testSPS = []byte{
		0x67, 0x4d, 0x40, 0x1f, 0xb9, 0x08, 0x08, 0x0c, 0xd8, 0x0b, 0x50, 0x10,
		0x10, 0x14, 0x00, 0x00, 0x0f, 0xa4, 0x00, 0x02, 0xee, 0x03, 0x81, 0x80,
		0x04, 0x93, 0xc0, 0x02, 0x49, 0xe8, 0xa0, 0xc0, 0x3a, 0x8e, 0x18, 0xc9,
	}
	testPPS = []byte{0x68, 0xce, 0x3c, 0x80}
)

func testStreams() []av.StreamInfo {
	return []av.StreamInfo{
		{Index: 0, Type: av.MediaTypeVideo, Codec: av.CodecH264, TimeBase: av.Rational{Num: 1, Den: 90000}},
		{Index: 1, Type: av.MediaTypeAudio, Codec: av.CodecAAC, TimeBase: av.Rational{Num: 1, Den: 44100}, SampleRate: 44100, Channels: 2},
		{Index: 2, Type: av.MediaTypeVideo, Codec: av.CodecAV1, TimeBase: av.Rational{Num: 1, Den: 90000}},
	}
}

func videoAU(key bool, seq byte) []byte {
	var b []byte
	if key {
		b = append(b, 0, 0, 0, 1)
		b = append(b, testSPS...)
		b = append(b, 0, 0, 0, 1)
		b = append(b, testPPS...)
		b = append(b, 0, 0, 0, 1, 0x65, seq, 0x88, 0x84)
		return b
	}
	return append(b, 0, 0, 0, 1, 0x41, seq, 0x9a, 0x02)
}

func audioAU(t *testing.T, seq byte) []byte {
	t.Helper()
	payload := bytes.Repeat([]byte{seq}, 32)
	hdr, err := aac.NewADTSHeader(44100, 2, 2, uint16(len(payload)))
	if err != nil {
		t.Fatalf("NewADTSHeader failed: %v", err)
	}
	return append(hdr.Encode(), payload...)
}

// buildTS muxes three video and three audio access units.
func buildTS(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(context.Background(), &buf, testStreams())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if w.Supports(2) {
		t.Error("AV1 stream should not be muxed")
	}
	for i := 0; i < 3; i++ {
		pkts := []*av.Packet{
			{StreamIndex: 0, PTS: int64(i * 3000), DTS: int64(i * 3000), Key: i == 0, Data: videoAU(i == 0, byte(i))},
			{StreamIndex: 1, PTS: int64(i * 1024), DTS: int64(i * 1024), Key: true, Data: audioAU(t, byte(i))},
			{StreamIndex: 2, PTS: int64(i * 3000), Data: []byte{1, 2, 3}},
		}
		for _, p := range pkts {
			if err := w.WritePacket(p); err != nil {
				t.Fatalf("WritePacket failed: %v", err)
			}
		}
	}
	return buf.Bytes()
}

func TestProbe(t *testing.T) {
	head := make([]byte, 3*packetSize)
	head[0], head[packetSize], head[2*packetSize] = 0x47, 0x47, 0x47

	o := New()
	tests := []struct {
		name    string
		locator string
		head    []byte
		want    int
	}{
		{"sync bytes", "stream", head, 100},
		{"udp locator", "udp://:5000", nil, 50},
		{"tcp locator", "tcp://127.0.0.1:9000", nil, 50},
		{"extension", "capture.m2ts", nil, 20},
		{"mp4", "clip.mp4", []byte("\x00\x00\x00\x18ftypisom"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.Probe(tt.locator, tt.head); got != tt.want {
				t.Errorf("Probe = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	data := buildTS(t)

	c, err := New().Open("capture.ts", bytes.NewReader(data), ports.ContainerOptions{ProbePackets: 16})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	streams := c.Streams()
	if len(streams) != 2 {
		t.Fatalf("got %d streams, want 2", len(streams))
	}
	video, audio := streams[0], streams[1]
	if video.Codec != av.CodecH264 || video.Width != 256 || video.Height != 192 {
		t.Errorf("video = %s %dx%d, want h264 256x192", video.Codec, video.Width, video.Height)
	}
	if audio.Codec != av.CodecAAC || audio.SampleRate != 44100 || audio.Channels != 2 {
		t.Errorf("audio = %s %d Hz %dch, want aac 44100 Hz 2ch", audio.Codec, audio.SampleRate, audio.Channels)
	}
	if video.TimeBase != timeBase || audio.TimeBase != timeBase {
		t.Errorf("time bases = %s, %s, want 1/90000", video.TimeBase, audio.TimeBase)
	}

	got := map[int][]int64{}
	keys := 0
	for {
		pkt, err := c.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket failed: %v", err)
		}
		got[pkt.StreamIndex] = append(got[pkt.StreamIndex], pkt.PTS)
		if pkt.StreamIndex == 0 && pkt.Key {
			keys++
		}
	}

	wantVideo := []int64{0, 3000, 6000}
	// 1024 ticks at 44100 Hz rescaled to 90 kHz.
	wantAudio := []int64{0, 2089, 4179}
	if !equal(got[0], wantVideo) {
		t.Errorf("video pts = %v, want %v", got[0], wantVideo)
	}
	if !equal(got[1], wantAudio) {
		t.Errorf("audio pts = %v, want %v", got[1], wantAudio)
	}
	if keys != 1 {
		t.Errorf("video keyframes = %d, want 1", keys)
	}
}

func TestOpen_NoProgram(t *testing.T) {
	_, err := New().Open("empty.ts", bytes.NewReader(nil), ports.ContainerOptions{})
	if !errors.Is(err, ports.ErrNoStreamInfo) {
		t.Errorf("expected ErrNoStreamInfo, got %v", err)
	}
}

func TestNewWriter_NoMuxableStreams(t *testing.T) {
	streams := []av.StreamInfo{{Index: 0, Type: av.MediaTypeVideo, Codec: av.CodecAV1}}
	if _, err := NewWriter(context.Background(), io.Discard, streams); !errors.Is(err, ErrNoMuxableStreams) {
		t.Errorf("expected ErrNoMuxableStreams, got %v", err)
	}
}

func TestRescale(t *testing.T) {
	tests := []struct {
		ts   int64
		tb   av.Rational
		want int64
	}{
		{3000, av.Rational{Num: 1, Den: 90000}, 3000},
		{1000, av.Rational{Num: 1, Den: 1000}, 90000},
		{1024, av.Rational{Num: 1, Den: 44100}, 2089},
		{42, av.Rational{}, 42},
	}
	for _, tt := range tests {
		if got := rescale(tt.ts, tt.tb); got != tt.want {
			t.Errorf("rescale(%d, %s) = %d, want %d", tt.ts, tt.tb, got, tt.want)
		}
	}
}

func equal(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
