package ports

import (
	"github.com/user/mediaplay/pkg/av"
)

// VideoSink consumes paced video frames, standing in for a renderer.
// The frame is only valid for the duration of the call.
type VideoSink interface {
	WriteVideo(frame *av.Frame) error
	Close() error
}

// AudioSink consumes paced audio frames, standing in for an audio output.
// The frame is only valid for the duration of the call.
type AudioSink interface {
	WriteAudio(frame *av.Frame) error
	Close() error
}
