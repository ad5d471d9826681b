package ports

import (
	"errors"

	"github.com/user/mediaplay/pkg/av"
)

// ErrAgain is returned by Codec.ReceiveFrame when the codec needs more input
// before it can produce a frame.
var ErrAgain = errors.New("codec: need more input")

// Codec abstracts a send/receive decoder bound to one stream.
type Codec interface {
	// SendPacket submits compressed data. A nil packet starts draining:
	// buffered frames are flushed through ReceiveFrame.
	SendPacket(pkt *av.Packet) error

	// ReceiveFrame writes the next decoded frame into dst.
	// It returns ErrAgain when no frame is ready and io.EOF once a drained
	// codec has nothing left.
	ReceiveFrame(dst *av.Frame) error

	// Close releases codec resources.
	Close() error
}

// CodecFactory opens codecs for one or more codec IDs.
type CodecFactory interface {
	// Name identifies the backend in logs.
	Name() string

	// Supports reports whether the factory can decode the codec.
	Supports(id av.CodecID) bool

	// Open creates a codec configured from the stream parameters.
	Open(stream av.StreamInfo) (Codec, error)
}
