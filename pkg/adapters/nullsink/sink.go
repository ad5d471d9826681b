// Package nullsink provides sinks that discard frames.
package nullsink

import (
	"sync/atomic"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// Sink discards video and audio frames, counting them.
type Sink struct {
	video atomic.Int64
	audio atomic.Int64
}

// New creates a new Sink.
func New() *Sink {
	return &Sink{}
}

// WriteVideo does nothing.
func (s *Sink) WriteVideo(frame *av.Frame) error {
	s.video.Add(1)
	return nil
}

// WriteAudio does nothing.
func (s *Sink) WriteAudio(frame *av.Frame) error {
	s.audio.Add(1)
	return nil
}

// Counts returns the number of video and audio frames discarded.
func (s *Sink) Counts() (video, audio int64) {
	return s.video.Load(), s.audio.Load()
}

func (s *Sink) Close() error {
	return nil
}

var (
	_ ports.VideoSink = (*Sink)(nil)
	_ ports.AudioSink = (*Sink)(nil)
)
