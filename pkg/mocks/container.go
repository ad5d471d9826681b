package mocks

import (
	"io"
	"sync"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// Container is a mock implementation of ports.Container that replays a
// fixed packet list.
type Container struct {
	mu sync.Mutex

	StreamList []av.StreamInfo
	Packets    []*av.Packet
	pos        int

	ReadPacketFunc func() (*av.Packet, error)
	CloseFunc      func() error

	Reads  int
	Closed bool
}

// NewContainer creates a mock container replaying packets in order.
func NewContainer(streams []av.StreamInfo, packets []*av.Packet) *Container {
	return &Container{StreamList: streams, Packets: packets}
}

func (m *Container) Streams() []av.StreamInfo {
	return m.StreamList
}

func (m *Container) ReadPacket() (*av.Packet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadPacketFunc != nil {
		return m.ReadPacketFunc()
	}
	if m.pos >= len(m.Packets) {
		return nil, io.EOF
	}
	p := m.Packets[m.pos]
	m.pos++
	m.Reads++
	return p, nil
}

func (m *Container) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Remaining returns how many packets have not been read yet.
func (m *Container) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Packets) - m.pos
}

var _ ports.Container = (*Container)(nil)

// ContainerOpener is a mock implementation of ports.ContainerOpener.
type ContainerOpener struct {
	NameValue string
	ProbeFunc func(locator string, head []byte) int
	OpenFunc  func(locator string, r io.Reader, opts ports.ContainerOptions) (ports.Container, error)
}

func (m *ContainerOpener) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *ContainerOpener) Probe(locator string, head []byte) int {
	if m.ProbeFunc != nil {
		return m.ProbeFunc(locator, head)
	}
	return 1
}

func (m *ContainerOpener) Open(locator string, r io.Reader, opts ports.ContainerOptions) (ports.Container, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(locator, r, opts)
	}
	return NewContainer([]av.StreamInfo{{Index: 0, Type: av.MediaTypeVideo}}, nil), nil
}

var _ ports.ContainerOpener = (*ContainerOpener)(nil)

// VideoAudioStreams returns a two-stream table: H.264 video on a 1/90000
// time base and AAC audio at 44100 Hz.
func VideoAudioStreams() []av.StreamInfo {
	return []av.StreamInfo{
		{
			Index:       0,
			Type:        av.MediaTypeVideo,
			Codec:       av.CodecH264,
			TimeBase:    av.Rational{Num: 1, Den: 90000},
			Width:       64,
			Height:      48,
			PixelFormat: av.PixelFormatYUV420P,
		},
		{
			Index:        1,
			Type:         av.MediaTypeAudio,
			Codec:        av.CodecAAC,
			TimeBase:     av.Rational{Num: 1, Den: 44100},
			SampleRate:   44100,
			Channels:     2,
			SampleFormat: av.SampleFormatF32P,
		},
	}
}

// Packet builds a packet for stream with the given pts. The first data byte
// carries seq so tests can identify packets after decoding.
func Packet(stream int, pts int64, seq byte) *av.Packet {
	return &av.Packet{
		StreamIndex: stream,
		PTS:         pts,
		DTS:         pts,
		Data:        []byte{seq, 0, 0, 0},
		Pos:         -1,
	}
}
