package source

import (
	"errors"
	"io"
)

var (
	// ErrOpen is returned when the locator is unreachable or no container
	// backend can parse it.
	ErrOpen = errors.New("source: open failed")

	// ErrStreamInfo is returned when no usable stream table could be built.
	ErrStreamInfo = errors.New("source: no stream information")

	// ErrEndOfStream signals that the container has nothing left for the
	// requested stream. It is io.EOF so callers can use either.
	ErrEndOfStream = io.EOF

	// ErrClosed is returned by NextPacket after Close.
	ErrClosed = errors.New("source: closed")
)
