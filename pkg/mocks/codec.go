package mocks

import (
	"errors"
	"io"
	"sync"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// Codec is a mock implementation of ports.Codec.
//
// By default every packet accepted by Decodable yields one frame whose PTS
// is the packet PTS and whose first sample (or luma byte) is the packet's
// first data byte. Packets rejected by Decodable are swallowed without
// output, like frames that depend on later packets.
type Codec struct {
	mu sync.Mutex

	Stream    av.StreamInfo
	Decodable func(pkt *av.Packet) bool

	SendPacketFunc   func(pkt *av.Packet) error
	ReceiveFrameFunc func(dst *av.Frame) error
	CloseFunc        func() error

	pending  []*av.Packet
	draining bool

	Sent       []*av.Packet
	Received   int
	CloseCalls int
}

// NewCodec creates a mock codec for the stream.
func NewCodec(stream av.StreamInfo) *Codec {
	return &Codec{Stream: stream}
}

func (m *Codec) SendPacket(pkt *av.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendPacketFunc != nil {
		return m.SendPacketFunc(pkt)
	}
	if pkt == nil {
		m.draining = true
		return nil
	}
	m.Sent = append(m.Sent, pkt)
	if m.Decodable == nil || m.Decodable(pkt) {
		m.pending = append(m.pending, pkt)
	}
	return nil
}

func (m *Codec) ReceiveFrame(dst *av.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReceiveFrameFunc != nil {
		return m.ReceiveFrameFunc(dst)
	}
	if len(m.pending) == 0 {
		if m.draining {
			return io.EOF
		}
		return ports.ErrAgain
	}
	pkt := m.pending[0]
	m.pending = m.pending[1:]
	m.Received++
	m.fill(dst, pkt)
	return nil
}

func (m *Codec) fill(dst *av.Frame, pkt *av.Packet) {
	dst.Type = m.Stream.Type
	dst.StreamIndex = pkt.StreamIndex
	dst.PTS = pkt.PTS
	dst.TimeBase = m.Stream.TimeBase
	dst.Key = pkt.Key
	var seq byte
	if len(pkt.Data) > 0 {
		seq = pkt.Data[0]
	}
	switch m.Stream.Type {
	case av.MediaTypeVideo:
		format := m.Stream.PixelFormat
		if format == av.PixelFormatNone {
			format = av.PixelFormatYUV420P
		}
		dst.Video.Alloc(format, m.Stream.Width, m.Stream.Height)
		for i := range dst.Video.Planes[0] {
			dst.Video.Planes[0][i] = seq
		}
	case av.MediaTypeAudio:
		format := m.Stream.SampleFormat
		if format == av.SampleFormatNone {
			format = av.SampleFormatS16
		}
		dst.Audio.Alloc(format, m.Stream.SampleRate, m.Stream.Channels, 4)
		for i := range dst.Audio.Data {
			dst.Audio.Data[i] = 0
		}
		if len(dst.Audio.Data) > 0 {
			dst.Audio.Data[0] = seq
		}
	}
}

func (m *Codec) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

var _ ports.Codec = (*Codec)(nil)

// CodecFactory is a mock implementation of ports.CodecFactory.
type CodecFactory struct {
	NameValue string
	Codecs    []av.CodecID
	OpenFunc  func(stream av.StreamInfo) (ports.Codec, error)

	mu     sync.Mutex
	Opened []*Codec
}

// ErrMockOpen is a canned failure for OpenFunc implementations.
var ErrMockOpen = errors.New("mocks: codec open failed")

func (m *CodecFactory) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *CodecFactory) Supports(id av.CodecID) bool {
	for _, c := range m.Codecs {
		if c == id {
			return true
		}
	}
	return false
}

func (m *CodecFactory) Open(stream av.StreamInfo) (ports.Codec, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(stream)
	}
	c := NewCodec(stream)
	m.mu.Lock()
	m.Opened = append(m.Opened, c)
	m.mu.Unlock()
	return c, nil
}

var _ ports.CodecFactory = (*CodecFactory)(nil)
