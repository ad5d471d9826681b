package mocks

import (
	"context"
	"sync"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// VideoSink is a mock implementation of ports.VideoSink. It keeps a clone
// of every frame it receives.
type VideoSink struct {
	mu sync.Mutex

	WriteVideoFunc func(frame *av.Frame) error
	CloseFunc      func() error

	Frames []*av.Frame
	Closed bool
}

func (m *VideoSink) WriteVideo(frame *av.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteVideoFunc != nil {
		return m.WriteVideoFunc(frame)
	}
	m.Frames = append(m.Frames, frame.Clone())
	return nil
}

func (m *VideoSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Count returns the number of frames written so far.
func (m *VideoSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Frames)
}

var _ ports.VideoSink = (*VideoSink)(nil)

// AudioSink is a mock implementation of ports.AudioSink.
type AudioSink struct {
	mu sync.Mutex

	WriteAudioFunc func(frame *av.Frame) error
	CloseFunc      func() error

	Frames []*av.Frame
	Closed bool
}

func (m *AudioSink) WriteAudio(frame *av.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteAudioFunc != nil {
		return m.WriteAudioFunc(frame)
	}
	m.Frames = append(m.Frames, frame.Clone())
	return nil
}

func (m *AudioSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Count returns the number of frames written so far.
func (m *AudioSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Frames)
}

var _ ports.AudioSink = (*AudioSink)(nil)

// PacketWriter is a mock implementation of ports.PacketWriter.
type PacketWriter struct {
	mu sync.Mutex

	Unsupported     map[int]bool
	WritePacketFunc func(pkt *av.Packet) error

	Packets []*av.Packet
	Closed  bool
}

func (m *PacketWriter) Supports(index int) bool {
	return !m.Unsupported[index]
}

func (m *PacketWriter) WritePacket(pkt *av.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WritePacketFunc != nil {
		return m.WritePacketFunc(pkt)
	}
	m.Packets = append(m.Packets, pkt)
	return nil
}

func (m *PacketWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

var _ ports.PacketWriter = (*PacketWriter)(nil)

// Muxer is a mock implementation of ports.Muxer.
type Muxer struct {
	NameValue  string
	AcceptFunc func(target string) bool
	Writer     *PacketWriter
	CreateFunc func(ctx context.Context, target string, streams []av.StreamInfo) (ports.PacketWriter, error)

	Targets []string
}

func (m *Muxer) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *Muxer) Accepts(target string) bool {
	if m.AcceptFunc != nil {
		return m.AcceptFunc(target)
	}
	return true
}

func (m *Muxer) Create(ctx context.Context, target string, streams []av.StreamInfo) (ports.PacketWriter, error) {
	m.Targets = append(m.Targets, target)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, target, streams)
	}
	if m.Writer == nil {
		m.Writer = &PacketWriter{}
	}
	return m.Writer, nil
}

var _ ports.Muxer = (*Muxer)(nil)
