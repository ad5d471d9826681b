package decode

import (
	"errors"
	"io"
)

var (
	// ErrUnsupportedCodec is returned when no registered backend can decode
	// the stream's codec.
	ErrUnsupportedCodec = errors.New("decode: unsupported codec")

	// ErrCodecOpen is returned when a backend fails to open a codec.
	ErrCodecOpen = errors.New("decode: failed to open codec")

	// ErrNoStream is returned when the stream index does not exist.
	ErrNoStream = errors.New("decode: no such stream")

	// ErrMediaType is returned when a format adapter is created for a
	// stream of the wrong type.
	ErrMediaType = errors.New("decode: unexpected media type")

	// ErrDestroyed is returned by NextFrame after Destroy.
	ErrDestroyed = errors.New("decode: session destroyed")

	// ErrEndOfStream is returned once the stream is exhausted and the codec
	// fully drained. It is io.EOF.
	ErrEndOfStream = io.EOF
)
