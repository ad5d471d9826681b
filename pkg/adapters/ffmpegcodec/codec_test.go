package ffmpegcodec

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

type discardCloser struct {
	bytes.Buffer
	closed bool
}

func (d *discardCloser) Close() error {
	d.closed = true
	return nil
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name      string
		stream    av.StreamInfo
		wantInput string
		wantBytes int
		wantErr   error
	}{
		{
			name:      "h264",
			stream:    av.StreamInfo{Type: av.MediaTypeVideo, Codec: av.CodecH264, Width: 256, Height: 192},
			wantInput: "h264",
			wantBytes: 256*192 + 2*128*96,
		},
		{
			name:      "odd size hevc",
			stream:    av.StreamInfo{Type: av.MediaTypeVideo, Codec: av.CodecHEVC, Width: 5, Height: 3},
			wantInput: "hevc",
			wantBytes: 15 + 2*3*2,
		},
		{
			name:      "aac stereo",
			stream:    av.StreamInfo{Type: av.MediaTypeAudio, Codec: av.CodecAAC, SampleRate: 44100, Channels: 2},
			wantInput: "aac",
			wantBytes: 1024 * 2 * 2,
		},
		{
			name:      "mp3 mono",
			stream:    av.StreamInfo{Type: av.MediaTypeAudio, Codec: av.CodecMP3, SampleRate: 48000, Channels: 1},
			wantInput: "mp3",
			wantBytes: 1152 * 2,
		},
		{
			name:    "video without size",
			stream:  av.StreamInfo{Type: av.MediaTypeVideo, Codec: av.CodecH264},
			wantErr: ErrUnknownGeometry,
		},
		{
			name:    "audio without rate",
			stream:  av.StreamInfo{Type: av.MediaTypeAudio, Codec: av.CodecAAC, Channels: 2},
			wantErr: ErrUnknownGeometry,
		},
		{
			name:    "av1",
			stream:  av.StreamInfo{Type: av.MediaTypeVideo, Codec: av.CodecAV1, Width: 16, Height: 16},
			wantErr: ErrUnsupported,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, size, err := buildArgs(tt.stream)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildArgs failed: %v", err)
			}
			if size != tt.wantBytes {
				t.Errorf("frame bytes = %d, want %d", size, tt.wantBytes)
			}
			i := slices.Index(args, "-f")
			if i < 0 || args[i+1] != tt.wantInput {
				t.Errorf("args %v do not select input format %s", args, tt.wantInput)
			}
			if args[len(args)-1] != "pipe:1" {
				t.Errorf("output should be stdout, got %v", args)
			}
		})
	}
}

func TestCodec_FlushOrdersPTS(t *testing.T) {
	stream := av.StreamInfo{Index: 0, Type: av.MediaTypeVideo, Codec: av.CodecH264, Width: 4, Height: 2, TimeBase: av.Rational{Num: 1, Den: 90000}}
	_, size, err := buildArgs(stream)
	if err != nil {
		t.Fatalf("buildArgs failed: %v", err)
	}
	out := append(bytes.Repeat([]byte{10}, size), bytes.Repeat([]byte{20}, size)...)
	stdin := &discardCloser{}
	c := newCodec(stream, size, stdin, bytes.NewReader(out), func() error { return nil }, func() {})
	defer c.Close()

	// B-frame order: the later picture arrives first.
	for _, pts := range []int64{3000, 0} {
		if err := c.SendPacket(&av.Packet{PTS: pts, DTS: pts, Data: []byte{0, 0, 0, 1, 0x65}}); err != nil {
			t.Fatalf("SendPacket failed: %v", err)
		}
	}
	if err := c.SendPacket(nil); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	var frame av.Frame
	for i, want := range []struct {
		pts  int64
		luma byte
	}{{0, 10}, {3000, 20}} {
		if err := c.ReceiveFrame(&frame); err != nil {
			t.Fatalf("frame %d: ReceiveFrame failed: %v", i, err)
		}
		if frame.PTS != want.pts {
			t.Errorf("frame %d pts = %d, want %d", i, frame.PTS, want.pts)
		}
		if frame.Video.Format != av.PixelFormatYUV420P || frame.Video.Width != 4 {
			t.Errorf("frame %d = %s %dx%d", i, frame.Video.Format, frame.Video.Width, frame.Video.Height)
		}
		if frame.Video.Planes[0][0] != want.luma || frame.Video.Planes[2][1] != want.luma {
			t.Errorf("frame %d planes not copied", i)
		}
	}
	if err := c.ReceiveFrame(&frame); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after flush, got %v", err)
	}
	// the end of output is reported only after the input is written
	if !stdin.closed {
		t.Error("flush should close ffmpeg input")
	}
	if stdin.Len() != 10 {
		t.Errorf("wrote %d bytes to ffmpeg, want 10", stdin.Len())
	}
}

// fakeFFmpeg reads 8-byte packets from stdin and answers each with
// framesPerPacket frames on stdout, blocking on stdout like a real process.
func fakeFFmpeg(stdin io.Reader, stdout *io.PipeWriter, frameSize, framesPerPacket int) {
	pkt := make([]byte, 8)
	frame := make([]byte, frameSize)
	for {
		if _, err := io.ReadFull(stdin, pkt); err != nil {
			stdout.Close()
			return
		}
		for i := 0; i < framesPerPacket; i++ {
			if _, err := stdout.Write(frame); err != nil {
				return
			}
		}
	}
}

func TestCodec_OutputBurstDoesNotBlockInput(t *testing.T) {
	stream := av.StreamInfo{Index: 0, Type: av.MediaTypeVideo, Codec: av.CodecH264, Width: 4, Height: 2, TimeBase: av.Rational{Num: 1, Den: 90000}}
	_, size, err := buildArgs(stream)
	if err != nil {
		t.Fatalf("buildArgs failed: %v", err)
	}

	const packets, perPacket = 6, 2 * frameQueue
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	go fakeFFmpeg(stdinR, stdoutW, size, perPacket)
	stop := func() {
		stdinR.CloseWithError(io.ErrClosedPipe)
		stdoutW.CloseWithError(io.ErrClosedPipe)
	}
	c := newCodec(stream, size, stdinW, stdoutR, func() error { return nil }, stop)
	defer c.Close()

	done := make(chan int)
	errs := make(chan error, 1)
	go func() {
		var frame av.Frame
		n := 0
		// receive what is ready, else send the next packet
		for i := 0; i < packets; i++ {
			for {
				err := c.ReceiveFrame(&frame)
				if errors.Is(err, ports.ErrAgain) {
					break
				}
				if err != nil {
					errs <- err
					return
				}
				n++
			}
			if err := c.SendPacket(&av.Packet{PTS: int64(i * 3000), Data: bytes.Repeat([]byte{byte(i)}, 8)}); err != nil {
				errs <- err
				return
			}
		}
		if err := c.SendPacket(nil); err != nil {
			errs <- err
			return
		}
		for {
			err := c.ReceiveFrame(&frame)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errs <- err
				return
			}
			n++
		}
		done <- n
	}()

	select {
	case n := <-done:
		if n != packets*perPacket {
			t.Errorf("decoded %d frames, want %d", n, packets*perPacket)
		}
	case err := <-errs:
		t.Fatalf("decode failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("codec stalled with ffmpeg output pending")
	}
}

func TestCodec_AudioTail(t *testing.T) {
	stream := av.StreamInfo{Index: 1, Type: av.MediaTypeAudio, Codec: av.CodecAAC, SampleRate: 48000, Channels: 2}
	_, size, _ := buildArgs(stream)
	// one full chunk, two trailing samples and a torn half sample
	out := make([]byte, size+8+1)
	c := newCodec(stream, size, &discardCloser{}, bytes.NewReader(out), func() error { return nil }, func() {})
	defer c.Close()

	if err := c.SendPacket(nil); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	var frame av.Frame
	var got []int
	for {
		err := c.ReceiveFrame(&frame)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReceiveFrame failed: %v", err)
		}
		if frame.PTS != av.NoPTS {
			t.Errorf("pts = %d, want none", frame.PTS)
		}
		got = append(got, frame.Audio.Samples)
	}
	if want := []int{1024, 2}; !slices.Equal(got, want) {
		t.Errorf("chunk samples = %v, want %v", got, want)
	}
	if frame.Audio.Format != av.SampleFormatS16 || frame.Audio.Channels != 2 {
		t.Errorf("audio = %s %dch, want s16 2ch", frame.Audio.Format, frame.Audio.Channels)
	}
}

func TestCodec_ProcessFailure(t *testing.T) {
	errExit := errors.New("exit status 1")
	stream := av.StreamInfo{Type: av.MediaTypeVideo, Codec: av.CodecH264, Width: 2, Height: 2}
	c := newCodec(stream, 6, &discardCloser{}, bytes.NewReader(nil), func() error { return errExit }, func() {})
	defer c.Close()

	_ = c.SendPacket(nil)
	var frame av.Frame
	if err := c.ReceiveFrame(&frame); !errors.Is(err, errExit) {
		t.Errorf("expected process error, got %v", err)
	}
}

func TestCodec_Closed(t *testing.T) {
	stream := av.StreamInfo{Type: av.MediaTypeVideo, Codec: av.CodecH264, Width: 2, Height: 2}
	c := newCodec(stream, 6, &discardCloser{}, bytes.NewReader(nil), func() error { return nil }, func() {})
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := c.SendPacket(&av.Packet{}); !errors.Is(err, ErrClosed) {
		t.Errorf("SendPacket after Close: expected ErrClosed, got %v", err)
	}
	if err := c.ReceiveFrame(&av.Frame{}); !errors.Is(err, ErrClosed) {
		t.Errorf("ReceiveFrame after Close: expected ErrClosed, got %v", err)
	}
}

func TestFactory_Supports(t *testing.T) {
	f := New()
	for _, id := range []av.CodecID{av.CodecH264, av.CodecHEVC, av.CodecAAC, av.CodecMP3} {
		if !f.Supports(id) {
			t.Errorf("should support %s", id)
		}
	}
	if f.Supports(av.CodecAV1) || f.Supports(av.CodecUnknown) {
		t.Error("should not support av1 or unknown codecs")
	}
	var _ ports.CodecFactory = f
}

func TestFindFFmpeg_CustomPath(t *testing.T) {
	SetFFmpegPath("/nonexistent/ffmpeg")
	defer SetFFmpegPath("")

	if _, err := FindFFmpeg(); !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("expected ErrFFmpegNotFound, got %v", err)
	}
	if IsFFmpegAvailable() {
		t.Error("ffmpeg should be unavailable with a bad custom path")
	}
}
