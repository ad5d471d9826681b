// Package ffmpegcodec decodes H.264, HEVC, AAC and MP3 by streaming packets
// through a long-running ffmpeg process.
//
// Video is read back as yuv420p rawvideo, audio as interleaved s16le.
// Presentation timestamps are reassigned from the submitted packets in
// ascending order, which matches ffmpeg's output order.
package ffmpegcodec

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/user/mediaplay/pkg/adapters/logger"
	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

var (
	// ErrFFmpegNotFound is returned when no ffmpeg executable can be found.
	ErrFFmpegNotFound = errors.New("ffmpegcodec: ffmpeg not found in PATH")

	// ErrUnsupported is returned for codecs without an ffmpeg input mapping.
	ErrUnsupported = errors.New("ffmpegcodec: unsupported codec")

	// ErrUnknownGeometry is returned when the stream lacks the frame size or
	// sample layout needed to split ffmpeg's raw output.
	ErrUnknownGeometry = errors.New("ffmpegcodec: stream parameters unknown")

	// ErrClosed is returned by a codec after Close.
	ErrClosed = errors.New("ffmpegcodec: codec closed")
)

// frameQueue bounds decoded frames buffered between ffmpeg and the caller.
const frameQueue = 4

var inputFormats = map[av.CodecID]string{
	av.CodecH264: "h264",
	av.CodecHEVC: "hevc",
	av.CodecAAC:  "aac",
	av.CodecMP3:  "mp3",
}

// samples per decoded audio chunk
var chunkSamples = map[av.CodecID]int{
	av.CodecAAC: 1024,
	av.CodecMP3: 1152,
}

// Factory opens ffmpeg-backed codecs. It implements ports.CodecFactory.
type Factory struct {
	logger ports.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger used by opened codecs. A nil logger keeps
// the default.
func WithLogger(l ports.Logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a factory. ffmpeg is located when a codec is opened.
func New(opts ...Option) *Factory {
	f := &Factory{logger: logger.NewNoop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) Name() string { return "ffmpeg" }

func (f *Factory) Supports(id av.CodecID) bool {
	_, ok := inputFormats[id]
	return ok
}

// Open starts an ffmpeg process for the stream.
func (f *Factory) Open(stream av.StreamInfo) (ports.Codec, error) {
	args, frameBytes, err := buildArgs(stream)
	if err != nil {
		return nil, err
	}
	path, err := FindFFmpeg()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpegcodec: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpegcodec: stdout pipe: %w", err)
	}
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpegcodec: start %s: %w", path, err)
	}

	log := f.logger.WithComponent("ffmpeg")
	log.Debug("Started ffmpeg %s decoder for stream %d", stream.Codec, stream.Index)

	wait := func() error {
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("%w: %s", err, stderr.String())
		}
		return nil
	}
	stop := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	return newCodec(stream, frameBytes, stdin, stdout, wait, stop), nil
}

var _ ports.CodecFactory = (*Factory)(nil)

// buildArgs returns the ffmpeg arguments for the stream and the size in
// bytes of one decoded output unit.
func buildArgs(stream av.StreamInfo) ([]string, int, error) {
	input, ok := inputFormats[stream.Codec]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupported, stream.Codec)
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-f", input, "-i", "pipe:0"}

	switch stream.Type {
	case av.MediaTypeVideo:
		if stream.Width <= 0 || stream.Height <= 0 {
			return nil, 0, fmt.Errorf("%w: %s stream %d has no frame size", ErrUnknownGeometry, stream.Codec, stream.Index)
		}
		args = append(args, "-fps_mode", "passthrough", "-f", "rawvideo", "-pix_fmt", "yuv420p", "pipe:1")
		size := 0
		for i := 0; i < av.PixelFormatYUV420P.Planes(); i++ {
			stride, rows := av.PixelFormatYUV420P.PlaneSize(i, stream.Width, stream.Height)
			size += stride * rows
		}
		return args, size, nil

	case av.MediaTypeAudio:
		if stream.SampleRate <= 0 || stream.Channels <= 0 {
			return nil, 0, fmt.Errorf("%w: %s stream %d has no sample layout", ErrUnknownGeometry, stream.Codec, stream.Index)
		}
		args = append(args,
			"-f", "s16le", "-acodec", "pcm_s16le",
			"-ac", fmt.Sprint(stream.Channels),
			"-ar", fmt.Sprint(stream.SampleRate),
			"pipe:1")
		return args, chunkSamples[stream.Codec] * stream.Channels * 2, nil
	}
	return nil, 0, fmt.Errorf("%w: %s stream %d", ErrUnsupported, stream.Type, stream.Index)
}

// codec queues packets for a writer goroutine feeding ffmpeg's stdin while
// a reader goroutine splits its stdout into frames. Neither side blocks the
// caller, so ffmpeg may run ahead on output while input is still pending.
type codec struct {
	stream     av.StreamInfo
	frameBytes int
	stdin      io.WriteCloser
	stop       func()

	frames  chan []byte
	quit    chan struct{}
	readErr error // valid once frames is closed
	written chan struct{}

	mu       sync.Mutex
	cond     *sync.Cond
	input    [][]byte
	writeErr error
	pts      ptsHeap
	draining bool
	closed   bool
}

func newCodec(stream av.StreamInfo, frameBytes int, stdin io.WriteCloser, stdout io.Reader, wait func() error, stop func()) *codec {
	c := &codec{
		stream:     stream,
		frameBytes: frameBytes,
		stdin:      stdin,
		stop:       stop,
		frames:     make(chan []byte, frameQueue),
		quit:       make(chan struct{}),
		written:    make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	go c.writeLoop()
	go c.readLoop(stdout, wait)
	return c
}

// writeLoop writes queued packets in order. After a flush it closes stdin
// once the queue is empty.
func (c *codec) writeLoop() {
	defer close(c.written)
	for {
		c.mu.Lock()
		for len(c.input) == 0 && !c.draining && !c.closed {
			c.cond.Wait()
		}
		if c.closed {
			c.mu.Unlock()
			return
		}
		if len(c.input) == 0 {
			c.mu.Unlock()
			_ = c.stdin.Close()
			return
		}
		data := c.input[0]
		c.input[0] = nil
		c.input = c.input[1:]
		c.mu.Unlock()

		if _, err := c.stdin.Write(data); err != nil {
			c.mu.Lock()
			c.writeErr = err
			c.input = nil
			c.mu.Unlock()
			_ = c.stdin.Close()
			return
		}
	}
}

func (c *codec) readLoop(r io.Reader, wait func() error) {
	defer close(c.frames)
	unit := 1
	if c.stream.Type == av.MediaTypeAudio {
		unit = c.stream.Channels * 2
	}
	for {
		buf := make([]byte, c.frameBytes)
		n, err := io.ReadFull(r, buf)
		// A trailing partial video frame is garbage, a partial audio chunk
		// is the tail of the stream.
		if err == nil || (c.stream.Type == av.MediaTypeAudio && n >= unit) {
			select {
			case c.frames <- buf[:n-n%unit]:
			case <-c.quit:
				_ = wait()
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				c.readErr = err
			}
			if werr := wait(); werr != nil && c.readErr == nil {
				c.readErr = werr
			}
			return
		}
	}
}

// SendPacket queues the packet payload for ffmpeg. A nil packet closes
// ffmpeg's input, after the queued packets, so it flushes its buffered
// frames.
func (c *codec) SendPacket(pkt *av.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.writeErr != nil {
		return fmt.Errorf("ffmpegcodec: write packet: %w", c.writeErr)
	}
	if pkt == nil {
		if !c.draining {
			c.draining = true
			c.cond.Signal()
		}
		return nil
	}
	if c.draining {
		return fmt.Errorf("ffmpegcodec: packet sent after flush on stream %d", c.stream.Index)
	}
	if pkt.HasPTS() {
		heap.Push(&c.pts, pkt.PTS)
	}
	c.input = append(c.input, append([]byte(nil), pkt.Data...))
	c.cond.Signal()
	return nil
}

// ReceiveFrame returns ports.ErrAgain while ffmpeg has produced nothing.
// Once flushing it blocks until the next frame or the end of output.
func (c *codec) ReceiveFrame(dst *av.Frame) error {
	c.mu.Lock()
	closed, draining := c.closed, c.draining
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	var (
		buf []byte
		ok  bool
	)
	if draining {
		buf, ok = <-c.frames
	} else {
		select {
		case buf, ok = <-c.frames:
		default:
			return ports.ErrAgain
		}
	}
	if !ok {
		if draining {
			<-c.written
		}
		if c.readErr != nil {
			return fmt.Errorf("ffmpegcodec: %w", c.readErr)
		}
		return io.EOF
	}

	c.mu.Lock()
	pts := av.NoPTS
	if c.pts.Len() > 0 {
		pts = heap.Pop(&c.pts).(int64)
	}
	c.mu.Unlock()

	dst.Type = c.stream.Type
	dst.StreamIndex = c.stream.Index
	dst.TimeBase = c.stream.TimeBase
	dst.PTS = pts
	dst.Key = false
	if c.stream.Type == av.MediaTypeVideo {
		c.fillVideo(dst, buf)
	} else {
		dst.Audio.Alloc(av.SampleFormatS16, c.stream.SampleRate, c.stream.Channels, len(buf)/(c.stream.Channels*2))
		copy(dst.Audio.Data, buf)
	}
	return nil
}

func (c *codec) fillVideo(dst *av.Frame, buf []byte) {
	v := &dst.Video
	v.Alloc(av.PixelFormatYUV420P, c.stream.Width, c.stream.Height)
	off := 0
	for i := 0; i < av.PixelFormatYUV420P.Planes(); i++ {
		off += copy(v.Planes[i], buf[off:])
	}
}

// Close stops ffmpeg and waits for the writer and reader to finish.
func (c *codec) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.input = nil
	c.cond.Broadcast()
	c.mu.Unlock()

	close(c.quit)
	c.stop()
	// unblocks a pending write
	_ = c.stdin.Close()
	<-c.written
	for range c.frames {
	}
	return nil
}

var _ ports.Codec = (*codec)(nil)

// ptsHeap is a min-heap of presentation timestamps.
type ptsHeap []int64

func (h ptsHeap) Len() int           { return len(h) }
func (h ptsHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h ptsHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *ptsHeap) Push(x any)        { *h = append(*h, x.(int64)) }
func (h *ptsHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
