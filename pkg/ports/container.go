package ports

import (
	"errors"
	"io"

	"github.com/user/mediaplay/pkg/av"
)

// ErrNoStreamInfo is returned by openers that parsed the container but could
// not build a usable stream table, even after probing.
var ErrNoStreamInfo = errors.New("container: no usable stream information")

// Container abstracts a demultiplexer over one opened media source.
// Implementations are not safe for concurrent use; the packet router
// serializes access.
type Container interface {
	// Streams returns the stream table in container order.
	Streams() []av.StreamInfo

	// ReadPacket returns the next packet in container order.
	// It returns io.EOF when the container is exhausted.
	ReadPacket() (*av.Packet, error)

	// Close releases the underlying resources.
	Close() error
}

// ContainerOptions are passed to a ContainerOpener.
type ContainerOptions struct {
	// ProbePackets bounds how many packets a header-less format may read
	// ahead to infer stream parameters.
	ProbePackets int
	Logger       Logger
}

// ContainerOpener creates containers for the locators it understands.
type ContainerOpener interface {
	// Name identifies the backend in logs.
	Name() string

	// Probe scores how well the opener handles a locator. head holds the
	// first bytes of the resource when it could be read, nil otherwise.
	// Zero means "cannot handle".
	Probe(locator string, head []byte) int

	// Open opens the locator. r is the already opened resource when the
	// locator was resolved by the caller, nil otherwise. r implements
	// io.Seeker for local files. The caller closes r.
	Open(locator string, r io.Reader, opts ContainerOptions) (Container, error)
}
