// Package source opens a media container and routes its packets to the
// decode sessions that consume them.
//
// A Source is shared by several consumers, typically one video and one audio
// decode session running on their own goroutines. Each consumer pulls packets
// for its stream with NextPacket. Packets read from the container for another
// enabled stream are parked in that stream's FIFO queue; packets of disabled
// streams are dropped. The queues are unbounded: a consumer that stops pulling
// while its sibling keeps reading lets its queue grow without limit.
package source

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/user/mediaplay/pkg/adapters/logger"
	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// maxStreams is the width of the enabled-stream mask.
const maxStreams = 64

// DefaultProbePackets bounds read-ahead for header-less formats.
const DefaultProbePackets = 64

// Option configures a Source.
type Option func(*options)

type options struct {
	logger       ports.Logger
	registry     *Registry
	probePackets int
	now          func() time.Time
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry sets the container backends used by Open.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithProbePackets bounds how many packets header-less formats may read
// ahead while inferring stream parameters.
func WithProbePackets(n int) Option {
	return func(o *options) { o.probePackets = n }
}

// WithNow replaces the wall clock used for the read-start timestamp.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Stats counts packet movement through the router.
type Stats struct {
	Read      int64 // packets read from the container
	Returned  int64 // packets handed to consumers, directly or from a queue
	Queued    int64 // packets parked for another enabled stream
	Discarded int64 // packets of disabled streams
	// QueueDepth is the current number of parked packets per stream.
	QueueDepth []int
}

// Pending returns the number of packets currently parked in queues.
func (s Stats) Pending() int {
	n := 0
	for _, d := range s.QueueDepth {
		n += d
	}
	return n
}

// Source is one open container with its packet router.
type Source struct {
	mu sync.Mutex

	container ports.Container
	format    string
	locator   string
	streams   []av.StreamInfo
	enabled   uint64
	queues    []packetQueue
	eof       bool
	closed    bool

	readStart time.Time
	started   bool

	stats  Stats
	now    func() time.Time
	logger ports.Logger
}

func buildOptions(opts []Option) options {
	o := options{
		probePackets: DefaultProbePackets,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.NewNoop()
	}
	return o
}

// Open resolves locator through the registry and parses its stream table.
// It fails with ErrOpen or ErrStreamInfo; neither is retried.
func Open(locator string, opts ...Option) (*Source, error) {
	o := buildOptions(opts)
	if o.registry == nil {
		return nil, fmt.Errorf("%w: %s: no container backends registered", ErrOpen, locator)
	}

	c, format, err := o.registry.Open(locator, ports.ContainerOptions{
		ProbePackets: o.probePackets,
		Logger:       o.logger,
	})
	if err != nil {
		return nil, err
	}

	s, err := newSource(c, o)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %s", err, locator)
	}
	s.locator = locator
	s.format = format
	s.logger.Debug("Opened %s (%s) with %d streams", locator, format, len(s.streams))
	return s, nil
}

// New wraps an already opened container.
func New(c ports.Container, opts ...Option) (*Source, error) {
	return newSource(c, buildOptions(opts))
}

func newSource(c ports.Container, o options) (*Source, error) {
	streams := c.Streams()
	if len(streams) == 0 {
		return nil, ErrStreamInfo
	}
	return &Source{
		container: c,
		format:    "custom",
		streams:   streams,
		queues:    make([]packetQueue, len(streams)),
		now:       o.now,
		logger:    o.logger.WithComponent("source"),
	}, nil
}

// Streams returns a copy of the stream table.
func (s *Source) Streams() []av.StreamInfo {
	out := make([]av.StreamInfo, len(s.streams))
	copy(out, s.streams)
	return out
}

// Stream returns the descriptor of stream i.
func (s *Source) Stream(i int) (av.StreamInfo, bool) {
	if i < 0 || i >= len(s.streams) {
		return av.StreamInfo{}, false
	}
	return s.streams[i], true
}

// BestStream returns the index of the first stream of the given type, or -1.
func (s *Source) BestStream(t av.MediaType) int {
	for i, st := range s.streams {
		if st.Type == t {
			return i
		}
	}
	return -1
}

// Format returns the name of the container backend.
func (s *Source) Format() string {
	return s.format
}

// Locator returns the locator the source was opened from.
func (s *Source) Locator() string {
	return s.locator
}

// EnableStream marks index as a stream whose packets are queued rather than
// dropped while another stream is being serviced. Out of range indexes are
// ignored with a warning.
func (s *Source) EnableStream(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.streams) || index >= maxStreams {
		s.logger.Warn("Ignoring stream index %d (stream count %d)", index, len(s.streams))
		return
	}
	s.enabled |= 1 << uint(index)
}

// DisableStream clears the enabled bit of index and drops its queued
// packets.
func (s *Source) DisableStream(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.streams) || index >= maxStreams {
		return
	}
	s.enabled &^= 1 << uint(index)
	s.queues[index].reset()
}

// IsEnabled reports whether index is enabled.
func (s *Source) IsEnabled(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isEnabled(index)
}

// EnabledMask returns the enabled-stream bitmask.
func (s *Source) EnabledMask() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Source) isEnabled(index int) bool {
	if index < 0 || index >= maxStreams {
		return false
	}
	return s.enabled&(1<<uint(index)) != 0
}

// NextPacket returns the next packet of stream index in container order.
//
// It returns nil, nil when index is not enabled and ErrEndOfStream once the
// container is exhausted and the stream's queue is empty. The first call by
// any consumer fixes the read-start timestamp.
func (s *Source) NextPacket(index int) (*av.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if !s.isEnabled(index) {
		return nil, nil
	}
	if !s.started {
		s.readStart = s.now()
		s.started = true
	}

	if pkt, ok := s.queues[index].pop(); ok {
		s.stats.Returned++
		return pkt, nil
	}

	for !s.eof {
		pkt, err := s.container.ReadPacket()
		if err != nil {
			s.eof = true
			if errors.Is(err, io.EOF) {
				return nil, ErrEndOfStream
			}
			s.logger.Warn("Read failed, treating as end of stream: %s", err)
			return nil, fmt.Errorf("%w: %v", ErrEndOfStream, err)
		}
		s.stats.Read++

		switch {
		case pkt.StreamIndex == index:
			s.stats.Returned++
			return pkt, nil
		case s.isEnabled(pkt.StreamIndex):
			s.queues[pkt.StreamIndex].push(pkt)
			s.stats.Queued++
		default:
			s.stats.Discarded++
		}
	}
	return nil, ErrEndOfStream
}

// ReadPacket returns the next packet of any stream in container order,
// bypassing the enabled mask and the queues. It serves consumers that take
// every packet, such as a relay, and must not be mixed with NextPacket.
func (s *Source) ReadPacket() (*av.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.eof {
		return nil, ErrEndOfStream
	}
	if !s.started {
		s.readStart = s.now()
		s.started = true
	}
	pkt, err := s.container.ReadPacket()
	if err != nil {
		s.eof = true
		if errors.Is(err, io.EOF) {
			return nil, ErrEndOfStream
		}
		return nil, fmt.Errorf("%w: %v", ErrEndOfStream, err)
	}
	s.stats.Read++
	s.stats.Returned++
	return pkt, nil
}

// ReadStart returns the playback-clock origin and whether it has been set.
func (s *Source) ReadStart() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readStart, s.started
}

// Stats returns a snapshot of the routing counters.
func (s *Source) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	st.QueueDepth = make([]int, len(s.queues))
	for i := range s.queues {
		st.QueueDepth[i] = s.queues[i].len()
	}
	return st
}

// Close releases the container and drops queued packets. It is idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for i := range s.queues {
		s.queues[i].reset()
	}
	return s.container.Close()
}
