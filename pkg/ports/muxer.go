package ports

import (
	"context"

	"github.com/user/mediaplay/pkg/av"
)

// PacketWriter multiplexes compressed packets into an output.
type PacketWriter interface {
	// Supports reports whether packets of stream index are written.
	Supports(index int) bool

	// WritePacket writes one packet. Packets of unsupported streams are
	// ignored.
	WritePacket(pkt *av.Packet) error

	// Close flushes and releases the output.
	Close() error
}

// Muxer creates packet writers for output targets: file paths or network
// URLs.
type Muxer interface {
	// Name identifies the backend in logs.
	Name() string

	// Accepts reports whether the muxer can write to target.
	Accepts(target string) bool

	// Create opens target for the given stream table.
	Create(ctx context.Context, target string, streams []av.StreamInfo) (PacketWriter, error)
}
