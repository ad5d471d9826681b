// Package smartdecoder assembles a decode registry from the codec backends
// available on this system and reports which backend serves each codec.
package smartdecoder

import (
	"errors"
	"fmt"

	"github.com/user/mediaplay/pkg/adapters/ffmpegcodec"
	"github.com/user/mediaplay/pkg/adapters/jpegcodec"
	"github.com/user/mediaplay/pkg/adapters/pcmcodec"
	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/decode"
	"github.com/user/mediaplay/pkg/ports"
)

// Backend names a decoding backend.
type Backend string

const (
	// BackendFFmpeg is the external ffmpeg process.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendLibav is libavcodec linked through go-astiav.
	BackendLibav Backend = "libavcodec"
	// BackendLibaom is libaom for AV1.
	BackendLibaom Backend = "libaom"
	// BackendJPEG is the pure Go MJPEG decoder.
	BackendJPEG Backend = "jpeg"
	// BackendPCM passes raw PCM through.
	BackendPCM Backend = "pcm"
)

// Info describes the backend selected for a codec.
type Info struct {
	Codec   av.CodecID
	Backend Backend
}

// Options configures backend selection.
type Options struct {
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string
	// Prefer moves a backend to the front of the lookup order.
	Prefer Backend
	// Threads is passed to backends that decode on their own threads.
	Threads int
	Logger  ports.Logger
}

var (
	// ErrUnsupportedCodec is returned when no backend supports the codec.
	ErrUnsupportedCodec = errors.New("smartdecoder: unsupported codec")
	// ErrNoDecoderAvailable is returned when no backend is usable at all.
	ErrNoDecoderAvailable = errors.New("smartdecoder: no decoder available")
	// ErrUnknownBackend is returned when Prefer names no known backend.
	ErrUnknownBackend = errors.New("smartdecoder: unknown backend")
)

// Candidate is a backend that may join the registry.
type Candidate struct {
	Backend   Backend
	Factory   ports.CodecFactory
	Available func() bool
}

// optional backends register themselves from build-tagged files
var optionalCandidates []func(Options) Candidate

// Candidates returns every backend compiled into this binary, in default
// lookup order: linked libraries first, then the ffmpeg process, then the
// pure Go decoders.
func Candidates(opts Options) []Candidate {
	var out []Candidate
	for _, fn := range optionalCandidates {
		out = append(out, fn(opts))
	}
	return append(out,
		Candidate{
			Backend:   BackendFFmpeg,
			Factory:   ffmpegcodec.New(ffmpegcodec.WithLogger(opts.Logger)),
			Available: ffmpegcodec.IsFFmpegAvailable,
		},
		Candidate{Backend: BackendJPEG, Factory: jpegcodec.New()},
		Candidate{Backend: BackendPCM, Factory: pcmcodec.New()},
	)
}

// NewRegistry builds a registry from the candidates that are available,
// with opts.Prefer first.
func NewRegistry(candidates []Candidate, opts Options) (*decode.Registry, error) {
	if opts.FFmpegPath != "" {
		ffmpegcodec.SetFFmpegPath(opts.FFmpegPath)
	}

	ordered := make([]Candidate, 0, len(candidates))
	if opts.Prefer != "" {
		found := false
		for _, c := range candidates {
			if c.Backend == opts.Prefer {
				ordered = append(ordered, c)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Prefer)
		}
	}
	for _, c := range candidates {
		if c.Backend != opts.Prefer {
			ordered = append(ordered, c)
		}
	}

	reg := decode.NewRegistry()
	for _, c := range ordered {
		if c.Available != nil && !c.Available() {
			if opts.Logger != nil {
				opts.Logger.Debug("Decoder backend %s is not available", string(c.Backend))
			}
			continue
		}
		reg.Register(c.Factory)
	}
	if len(reg.Factories()) == 0 {
		return nil, ErrNoDecoderAvailable
	}
	return reg, nil
}

// Describe reports the backend the registry selects for a codec.
func Describe(reg *decode.Registry, id av.CodecID) (Info, error) {
	f, ok := reg.Lookup(id)
	if !ok {
		return Info{Codec: id}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, id)
	}
	return Info{Codec: id, Backend: Backend(f.Name())}, nil
}
