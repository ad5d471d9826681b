// Package decode turns the compressed packets of one stream into raw frames
// delivered at presentation pace.
package decode

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/mediaplay/pkg/adapters/logger"
	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// PacketSource is the part of a demuxing source a session pulls from.
// *source.Source implements it.
type PacketSource interface {
	Stream(index int) (av.StreamInfo, bool)
	EnableStream(index int)
	NextPacket(index int) (*av.Packet, error)
	ReadStart() (time.Time, bool)
}

// Option configures a session.
type Option func(*options)

type options struct {
	registry  *Registry
	clock     Clock
	logger    ports.Logger
	converter Converter

	// format adapter targets
	width      int
	height     int
	sampleRate int
	channels   int
}

func buildOptions(opts []Option) options {
	o := options{
		registry:  NewRegistry(),
		clock:     SystemClock{},
		logger:    logger.NewNoop(),
		converter: IdentityConverter{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithRegistry sets the codec registry. The default registry is empty, so
// callers normally provide one.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithClock sets the clock used for pacing.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConverter sets the post-decode conversion strategy.
func WithConverter(c Converter) Option {
	return func(o *options) { o.converter = c }
}

// WithSize scales video frames to width x height. Zero keeps the native
// dimension. Only NewVideo uses it.
func WithSize(width, height int) Option {
	return func(o *options) {
		o.width = width
		o.height = height
	}
}

// WithSampleRate resamples audio to rate. Only NewAudio uses it.
func WithSampleRate(rate int) Option {
	return func(o *options) { o.sampleRate = rate }
}

// WithChannels remixes audio to n channels. Only NewAudio uses it.
func WithChannels(n int) Option {
	return func(o *options) { o.channels = n }
}

// Stats counts what a session has done.
type Stats struct {
	Packets    int64
	Frames     int64
	SendErrors int64
	Waits      int64
	Late       int64
	TotalWait  time.Duration
	MaxLate    time.Duration
}

// Session decodes one stream of a PacketSource.
//
// NextFrame is not safe for concurrent use. Sessions for different streams
// of the same source may run on different goroutines.
type Session struct {
	src     PacketSource
	index   int
	stream  av.StreamInfo
	codec   ports.Codec
	backend string
	conv    Converter
	clock   Clock
	logger  ports.Logger

	frame av.Frame

	lastPaced time.Time
	paced     bool
	draining  bool
	finished  bool

	mu        sync.Mutex
	destroyed bool
	stats     Stats
}

// Init opens a codec for stream index and enables the stream on src.
func Init(src PacketSource, index int, opts ...Option) (*Session, error) {
	o := buildOptions(opts)

	stream, ok := src.Stream(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoStream, index)
	}

	factory, ok := o.registry.Lookup(stream.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: %q on stream %d", ErrUnsupportedCodec, stream.Codec, index)
	}

	codec, err := factory.Open(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: %s via %s: %v", ErrCodecOpen, stream.Codec, factory.Name(), err)
	}

	src.EnableStream(index)

	s := &Session{
		src:     src,
		index:   index,
		stream:  stream,
		codec:   codec,
		backend: factory.Name(),
		conv:    o.converter,
		clock:   o.clock,
		logger:  o.logger.WithComponent("decode"),
	}
	s.logger.Debug("Opened %s decoder for stream %d using %s", stream.Codec, index, s.backend)
	return s, nil
}

// Stream returns the descriptor of the decoded stream.
func (s *Session) Stream() av.StreamInfo { return s.stream }

// Index returns the decoded stream index.
func (s *Session) Index() int { return s.index }

// Backend returns the name of the codec backend in use.
func (s *Session) Backend() string { return s.backend }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// NextFrame returns the next decoded, converted and paced frame.
//
// Packets that produce no frame are consumed until one does. At the end of
// the stream the codec is drained before ErrEndOfStream is returned. The
// returned frame is reused by the next call.
func (s *Session) NextFrame() (*av.Frame, error) {
	if s.isDestroyed() {
		return nil, ErrDestroyed
	}
	if s.finished {
		return nil, ErrEndOfStream
	}

	for {
		err := s.codec.ReceiveFrame(&s.frame)
		switch {
		case err == nil:
			return s.deliver()
		case errors.Is(err, ErrEndOfStream):
			s.finished = true
			return nil, ErrEndOfStream
		case !errors.Is(err, ports.ErrAgain):
			s.logger.Debug("Dropped undecodable frame on stream %d: %s", s.index, err.Error())
		}

		if s.draining {
			s.finished = true
			return nil, ErrEndOfStream
		}

		pkt, err := s.src.NextPacket(s.index)
		if err != nil && !errors.Is(err, ErrEndOfStream) {
			return nil, fmt.Errorf("decode: next packet: %w", err)
		}
		if pkt == nil {
			s.draining = true
			if err := s.codec.SendPacket(nil); err != nil {
				s.logger.Debug("Codec flush failed on stream %d: %s", s.index, err.Error())
			}
			continue
		}

		s.count(func(st *Stats) { st.Packets++ })
		if err := s.codec.SendPacket(pkt); err != nil {
			s.count(func(st *Stats) { st.SendErrors++ })
			s.logger.Debug("Skipped malformed packet on stream %d: %s", s.index, err.Error())
		}
	}
}

func (s *Session) deliver() (*av.Frame, error) {
	s.frame.StreamIndex = s.index
	if !s.frame.TimeBase.Valid() {
		s.frame.TimeBase = s.stream.TimeBase
	}

	out, err := s.conv.Convert(&s.frame)
	if err != nil {
		return nil, fmt.Errorf("decode: convert: %w", err)
	}

	s.pace(out)
	s.count(func(st *Stats) { st.Frames++ })
	return out, nil
}

// pace blocks until the frame is due. Frames with a timestamp are due at
// read start plus pts; frames without one are spaced NominalInterval apart.
func (s *Session) pace(f *av.Frame) {
	now := s.clock.Now()

	if !f.HasPTS() || !s.stream.TimeBase.Valid() {
		if s.paced {
			if elapsed := now.Sub(s.lastPaced); elapsed < NominalInterval {
				s.wait(NominalInterval - elapsed)
			}
		}
		s.mark()
		return
	}

	start, ok := s.src.ReadStart()
	if !ok {
		start = now
	}
	target := start.Add(s.stream.TimeBase.Duration(f.PTS))
	if d := target.Sub(now); d > 0 {
		s.wait(d)
	} else if d < 0 {
		s.count(func(st *Stats) {
			st.Late++
			if -d > st.MaxLate {
				st.MaxLate = -d
			}
		})
	}
	s.mark()
}

func (s *Session) wait(d time.Duration) {
	s.count(func(st *Stats) {
		st.Waits++
		st.TotalWait += d
	})
	s.clock.Sleep(d)
}

func (s *Session) mark() {
	s.lastPaced = s.clock.Now()
	s.paced = true
}

func (s *Session) count(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

func (s *Session) isDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy closes the codec and releases frame buffers. Calling it more than
// once is a no-op. It must not run concurrently with NextFrame.
func (s *Session) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	s.mu.Unlock()

	err := s.codec.Close()
	s.frame = av.Frame{}
	if err != nil {
		return fmt.Errorf("decode: close codec: %w", err)
	}
	return nil
}
