package smartdecoder

import (
	"errors"
	"testing"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/mocks"
)

func candidate(b Backend, available bool, codecs ...av.CodecID) Candidate {
	return Candidate{
		Backend:   b,
		Factory:   &mocks.CodecFactory{NameValue: string(b), Codecs: codecs},
		Available: func() bool { return available },
	}
}

func TestNewRegistry_Order(t *testing.T) {
	candidates := []Candidate{
		candidate(BackendLibav, true, av.CodecH264, av.CodecAAC),
		candidate(BackendFFmpeg, true, av.CodecH264, av.CodecAAC, av.CodecMP3),
		candidate(BackendPCM, true, av.CodecPCMS16LE),
	}

	tests := []struct {
		name   string
		prefer Backend
		codec  av.CodecID
		want   Backend
	}{
		{"default order", "", av.CodecH264, BackendLibav},
		{"preferred first", BackendFFmpeg, av.CodecH264, BackendFFmpeg},
		{"falls through", BackendLibav, av.CodecMP3, BackendFFmpeg},
		{"pcm", BackendFFmpeg, av.CodecPCMS16LE, BackendPCM},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(candidates, Options{Prefer: tt.prefer})
			if err != nil {
				t.Fatalf("NewRegistry failed: %v", err)
			}
			info, err := Describe(reg, tt.codec)
			if err != nil {
				t.Fatalf("Describe failed: %v", err)
			}
			if info.Backend != tt.want || info.Codec != tt.codec {
				t.Errorf("got %+v, want backend %s", info, tt.want)
			}
		})
	}
}

func TestNewRegistry_SkipsUnavailable(t *testing.T) {
	candidates := []Candidate{
		candidate(BackendFFmpeg, false, av.CodecH264),
		candidate(BackendJPEG, true, av.CodecMJPEG),
	}
	reg, err := NewRegistry(candidates, Options{})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if _, err := Describe(reg, av.CodecH264); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
	if n := len(reg.Factories()); n != 1 {
		t.Errorf("registered %d factories, want 1", n)
	}
}

func TestNewRegistry_Errors(t *testing.T) {
	if _, err := NewRegistry([]Candidate{candidate(BackendFFmpeg, false)}, Options{}); !errors.Is(err, ErrNoDecoderAvailable) {
		t.Errorf("expected ErrNoDecoderAvailable, got %v", err)
	}
	if _, err := NewRegistry([]Candidate{candidate(BackendPCM, true)}, Options{Prefer: "vaapi"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestCandidates_Builtin(t *testing.T) {
	got := map[Backend]bool{}
	for _, c := range Candidates(Options{}) {
		got[c.Backend] = true
	}
	for _, b := range []Backend{BackendFFmpeg, BackendJPEG, BackendPCM} {
		if !got[b] {
			t.Errorf("missing built-in backend %s", b)
		}
	}
}
