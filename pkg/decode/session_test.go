package decode

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/mocks"
	"github.com/user/mediaplay/pkg/ports"
	"github.com/user/mediaplay/pkg/source"
)

type fixture struct {
	src     *source.Source
	clock   *mocks.Clock
	factory *mocks.CodecFactory
	opts    []Option
}

func newFixture(t *testing.T, pkts []*av.Packet) *fixture {
	t.Helper()
	clock := mocks.NewClock()
	src, err := source.New(mocks.NewContainer(mocks.VideoAudioStreams(), pkts), source.WithNow(clock.Now))
	if err != nil {
		t.Fatalf("source.New failed: %v", err)
	}
	factory := &mocks.CodecFactory{Codecs: []av.CodecID{av.CodecH264, av.CodecAAC}}
	return &fixture{
		src:     src,
		clock:   clock,
		factory: factory,
		opts:    []Option{WithRegistry(NewRegistry(factory)), WithClock(clock)},
	}
}

func (f *fixture) codec(t *testing.T) *mocks.Codec {
	t.Helper()
	if len(f.factory.Opened) == 0 {
		t.Fatal("no codec opened")
	}
	return f.factory.Opened[len(f.factory.Opened)-1]
}

func videoPackets(n int, step int64) []*av.Packet {
	var pkts []*av.Packet
	for i := 0; i < n; i++ {
		pts := int64(i) * step
		if step < 0 {
			pts = av.NoPTS
		}
		pkts = append(pkts, mocks.Packet(0, pts, byte(i+1)))
	}
	return pkts
}

func TestNextFrame_SkipsUntilDecodable(t *testing.T) {
	f := newFixture(t, videoPackets(6, 3000))
	s, err := Init(f.src, 0, f.opts...)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	codec := f.codec(t)
	codec.Decodable = func(p *av.Packet) bool { return p.Data[0] == 6 }

	frame, err := s.NextFrame()
	if err != nil {
		t.Fatalf("NextFrame failed: %v", err)
	}
	if frame.PTS != 15000 {
		t.Errorf("PTS = %d, want 15000", frame.PTS)
	}
	if frame.Video.Planes[0][0] != 6 {
		t.Errorf("frame came from packet %d, want 6", frame.Video.Planes[0][0])
	}
	if len(codec.Sent) != 6 {
		t.Errorf("sent %d packets, want 6", len(codec.Sent))
	}
	if codec.Received != 1 {
		t.Errorf("received %d frames, want 1", codec.Received)
	}

	if _, err := s.NextFrame(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream, got %v", err)
	}
	if st := s.Stats(); st.Packets != 6 || st.Frames != 1 {
		t.Errorf("stats = %+v, want 6 packets and 1 frame", st)
	}
}

func TestNextFrame_PacesByPTS(t *testing.T) {
	// 9000 ticks at 1/90000 is 100ms.
	f := newFixture(t, videoPackets(4, 9000))
	s, err := Init(f.src, 0, f.opts...)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		frame, err := s.NextFrame()
		if err != nil {
			t.Fatalf("NextFrame %d failed: %v", i, err)
		}
		start, ok := f.src.ReadStart()
		if !ok {
			t.Fatal("read start not set")
		}
		due := start.Add(time.Duration(frame.PTS) * time.Second / 90000)
		if now := f.clock.Now(); now.Before(due) {
			t.Errorf("frame %d returned at %v, before due time %v", i, now.Sub(start), due.Sub(start))
		}
		// decode work
		f.clock.Advance(10 * time.Millisecond)
	}

	want := []time.Duration{90 * time.Millisecond, 90 * time.Millisecond, 90 * time.Millisecond}
	if len(f.clock.Sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", f.clock.Sleeps, want)
	}
	for i, d := range want {
		if f.clock.Sleeps[i] != d {
			t.Errorf("sleep %d = %v, want %v", i, f.clock.Sleeps[i], d)
		}
	}
}

func TestNextFrame_LateFramesAreNotSkipped(t *testing.T) {
	f := newFixture(t, videoPackets(3, 900))
	s, err := Init(f.src, 0, f.opts...)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		frame, err := s.NextFrame()
		if err != nil {
			t.Fatalf("NextFrame %d failed: %v", i, err)
		}
		if frame.Video.Planes[0][0] != byte(i+1) {
			t.Errorf("frame %d came from packet %d", i, frame.Video.Planes[0][0])
		}
		f.clock.Advance(50 * time.Millisecond)
	}

	if n := f.clock.SleepCount(); n != 0 {
		t.Errorf("slept %d times, want 0", n)
	}
	st := s.Stats()
	if st.Late != 2 {
		t.Errorf("late = %d, want 2", st.Late)
	}
	if st.MaxLate != 80*time.Millisecond {
		t.Errorf("max late = %v, want 80ms", st.MaxLate)
	}
}

func TestNextFrame_NoPTSSpacing(t *testing.T) {
	tests := []struct {
		name       string
		work       time.Duration
		wantSleeps int
	}{
		{"fast decode waits", 5 * time.Millisecond, 3},
		{"slow decode never waits", 40 * time.Millisecond, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, videoPackets(4, -1))
			s, err := Init(f.src, 0, f.opts...)
			if err != nil {
				t.Fatalf("Init failed: %v", err)
			}

			var returned []time.Time
			for i := 0; i < 4; i++ {
				if _, err := s.NextFrame(); err != nil {
					t.Fatalf("NextFrame %d failed: %v", i, err)
				}
				returned = append(returned, f.clock.Now())
				f.clock.Advance(tt.work)
			}

			for i := 1; i < len(returned); i++ {
				if gap := returned[i].Sub(returned[i-1]); gap < NominalInterval {
					t.Errorf("gap %d = %v, want at least %v", i, gap, NominalInterval)
				}
			}
			if n := f.clock.SleepCount(); n != tt.wantSleeps {
				t.Errorf("slept %d times, want %d", n, tt.wantSleeps)
			}
		})
	}
}

func TestNextFrame_FirstFrameWithoutPTSDoesNotWait(t *testing.T) {
	f := newFixture(t, videoPackets(1, -1))
	s, err := Init(f.src, 0, f.opts...)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, err := s.NextFrame(); err != nil {
		t.Fatalf("NextFrame failed: %v", err)
	}
	if n := f.clock.SleepCount(); n != 0 {
		t.Errorf("slept %d times, want 0", n)
	}
}

// delayCodec holds back one frame until drained and rejects packets whose
// first byte is listed in bad.
type delayCodec struct {
	bad      map[byte]bool
	pending  []*av.Packet
	draining bool
	closed   int
}

func (c *delayCodec) SendPacket(pkt *av.Packet) error {
	if pkt == nil {
		c.draining = true
		return nil
	}
	if c.bad[pkt.Data[0]] {
		return errors.New("invalid data")
	}
	c.pending = append(c.pending, pkt)
	return nil
}

func (c *delayCodec) ReceiveFrame(dst *av.Frame) error {
	if len(c.pending) == 0 {
		if c.draining {
			return io.EOF
		}
		return ports.ErrAgain
	}
	if len(c.pending) < 2 && !c.draining {
		return ports.ErrAgain
	}
	pkt := c.pending[0]
	c.pending = c.pending[1:]
	dst.Type = av.MediaTypeVideo
	dst.PTS = pkt.PTS
	dst.Video.Alloc(av.PixelFormatYUV420P, 64, 48)
	dst.Video.Planes[0][0] = pkt.Data[0]
	return nil
}

func (c *delayCodec) Close() error {
	c.closed++
	return nil
}

func TestNextFrame_FlushesCodecAtEndOfStream(t *testing.T) {
	f := newFixture(t, videoPackets(4, 3000))
	codec := &delayCodec{bad: map[byte]bool{2: true}}
	f.factory.OpenFunc = func(av.StreamInfo) (ports.Codec, error) { return codec, nil }

	s, err := Init(f.src, 0, f.opts...)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	var got []byte
	for {
		frame, err := s.NextFrame()
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		if err != nil {
			t.Fatalf("NextFrame failed: %v", err)
		}
		got = append(got, frame.Video.Planes[0][0])
	}

	want := []byte{1, 3, 4}
	if string(got) != string(want) {
		t.Errorf("frames = %v, want %v", got, want)
	}
	if st := s.Stats(); st.SendErrors != 1 {
		t.Errorf("send errors = %d, want 1", st.SendErrors)
	}
	if _, err := s.NextFrame(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream after drain, got %v", err)
	}
}

func TestInit_Errors(t *testing.T) {
	tests := []struct {
		name  string
		index int
		setup func(f *fixture)
		want  error
	}{
		{
			name:  "no such stream",
			index: 7,
			want:  ErrNoStream,
		},
		{
			name:  "unsupported codec",
			index: 0,
			setup: func(f *fixture) { f.factory.Codecs = []av.CodecID{av.CodecAAC} },
			want:  ErrUnsupportedCodec,
		},
		{
			name:  "codec open failure",
			index: 0,
			setup: func(f *fixture) {
				f.factory.OpenFunc = func(av.StreamInfo) (ports.Codec, error) { return nil, mocks.ErrMockOpen }
			},
			want: ErrCodecOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, videoPackets(1, 0))
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := Init(f.src, tt.index, f.opts...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if f.src.IsEnabled(0) {
				t.Error("stream enabled after failed Init")
			}
		})
	}
}

func TestInit_EmptyRegistry(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := Init(f.src, 0); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
}

func TestDestroy_Idempotent(t *testing.T) {
	f := newFixture(t, videoPackets(2, 3000))
	s, err := Init(f.src, 0, f.opts...)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	codec := f.codec(t)

	if err := s.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if err := s.Destroy(); err != nil {
		t.Fatalf("second Destroy failed: %v", err)
	}
	if codec.CloseCalls != 1 {
		t.Errorf("codec closed %d times, want 1", codec.CloseCalls)
	}
	if _, err := s.NextFrame(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("expected ErrDestroyed, got %v", err)
	}
}

func TestSessions_ShareSource(t *testing.T) {
	var pkts []*av.Packet
	for i := 0; i < 5; i++ {
		pkts = append(pkts,
			mocks.Packet(0, int64(i*3000), byte(2*i+1)),
			mocks.Packet(1, int64(i*1470), byte(2*i+2)),
		)
	}
	f := newFixture(t, pkts)

	video, err := Init(f.src, 0, f.opts...)
	if err != nil {
		t.Fatalf("Init video failed: %v", err)
	}
	audio, err := Init(f.src, 1, f.opts...)
	if err != nil {
		t.Fatalf("Init audio failed: %v", err)
	}

	videoDone, audioDone := false, false
	var frames [2]int
	for !videoDone || !audioDone {
		if !videoDone {
			frame, err := video.NextFrame()
			if errors.Is(err, ErrEndOfStream) {
				videoDone = true
			} else if err != nil {
				t.Fatalf("video NextFrame failed: %v", err)
			} else {
				if frame.StreamIndex != 0 || frame.Type != av.MediaTypeVideo {
					t.Fatalf("video session returned %s frame of stream %d", frame.Type, frame.StreamIndex)
				}
				frames[0]++
			}
		}
		if !audioDone {
			frame, err := audio.NextFrame()
			if errors.Is(err, ErrEndOfStream) {
				audioDone = true
			} else if err != nil {
				t.Fatalf("audio NextFrame failed: %v", err)
			} else {
				if frame.StreamIndex != 1 || frame.Type != av.MediaTypeAudio {
					t.Fatalf("audio session returned %s frame of stream %d", frame.Type, frame.StreamIndex)
				}
				frames[1]++
			}
		}
	}

	if frames != [2]int{5, 5} {
		t.Errorf("frames = %v, want [5 5]", frames)
	}
	st := f.src.Stats()
	if st.Read != 10 || st.Returned != 10 || st.Pending() != 0 {
		t.Errorf("source stats = %+v, want 10 read and 10 returned", st)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	first := &mocks.CodecFactory{NameValue: "first", Codecs: []av.CodecID{av.CodecH264}}
	second := &mocks.CodecFactory{NameValue: "second", Codecs: []av.CodecID{av.CodecH264, av.CodecAV1}}
	r := NewRegistry(first)
	r.Register(second)

	tests := []struct {
		codec av.CodecID
		want  string
	}{
		{av.CodecH264, "first"},
		{av.CodecAV1, "second"},
		{av.CodecOpus, ""},
		{av.CodecUnknown, ""},
	}
	for _, tt := range tests {
		f, ok := r.Lookup(tt.codec)
		if tt.want == "" {
			if ok {
				t.Errorf("Lookup(%q) found %s, want none", tt.codec, f.Name())
			}
			continue
		}
		if !ok || f.Name() != tt.want {
			t.Errorf("Lookup(%q) = %v, want %s", tt.codec, f, tt.want)
		}
	}
	if n := len(r.Factories()); n != 2 {
		t.Errorf("Factories() has %d entries, want 2", n)
	}
}
