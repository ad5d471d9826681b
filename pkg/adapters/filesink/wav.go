package filesink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

var (
	// ErrPlanarAudio is returned for planar frames; WAV stores interleaved
	// samples only.
	ErrPlanarAudio = errors.New("filesink: planar audio cannot be written to WAV")
	// ErrFormatChanged is returned when a frame's layout differs from the
	// first frame written.
	ErrFormatChanged = errors.New("filesink: audio format changed mid-stream")
)

const (
	wavHeaderSize   = 44
	waveFormatPCM   = 1
	waveFormatFloat = 3
)

// WAVSink writes interleaved audio frames to a WAV file. When the file
// supports seeking, samples are streamed and the header sizes are patched
// on Close; otherwise samples are buffered until Close.
type WAVSink struct {
	fs   ports.FileSystem
	path string

	w       io.WriteCloser
	seeker  io.WriteSeeker
	buf     []byte
	format  av.SampleFormat
	rate    int
	chans   int
	size    int64
	samples int64
	closed  bool
}

// NewWAV creates a WAV sink. The file is created on the first frame.
func NewWAV(path string, fs ports.FileSystem) *WAVSink {
	return &WAVSink{fs: fs, path: path}
}

// WriteAudio appends the frame's samples.
func (s *WAVSink) WriteAudio(frame *av.Frame) error {
	a := &frame.Audio
	if a.Format.Planar() {
		return fmt.Errorf("%w: %s", ErrPlanarAudio, a.Format)
	}
	if s.w == nil {
		if err := s.start(a); err != nil {
			return err
		}
	} else if a.Format != s.format || a.SampleRate != s.rate || a.Channels != s.chans {
		return fmt.Errorf("%w: %s %d Hz %dch, want %s %d Hz %dch", ErrFormatChanged,
			a.Format, a.SampleRate, a.Channels, s.format, s.rate, s.chans)
	}

	data := a.Data[:a.Samples*a.Channels*a.BytesPerSample()]
	if s.seeker != nil {
		if _, err := s.w.Write(data); err != nil {
			return fmt.Errorf("filesink: write %s: %w", s.path, err)
		}
	} else {
		s.buf = append(s.buf, data...)
	}
	s.size += int64(len(data))
	s.samples += int64(a.Samples)
	return nil
}

// Samples returns the number of samples per channel written so far.
func (s *WAVSink) Samples() int64 {
	return s.samples
}

// Close finalizes the header. A sink that never received audio writes no
// file.
func (s *WAVSink) Close() error {
	if s.closed || s.w == nil {
		s.closed = true
		return nil
	}
	s.closed = true

	var err error
	if s.seeker != nil {
		if _, err = s.seeker.Seek(0, io.SeekStart); err == nil {
			_, err = s.w.Write(s.header())
		}
	} else {
		if _, err = s.w.Write(s.header()); err == nil {
			_, err = s.w.Write(s.buf)
		}
		s.buf = nil
	}
	if cerr := s.w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("filesink: finish %s: %w", s.path, err)
	}
	return nil
}

func (s *WAVSink) start(a *av.AudioFrame) error {
	if a.BytesPerSample() == 0 || a.Channels <= 0 || a.SampleRate <= 0 {
		return fmt.Errorf("filesink: cannot write %s %d Hz %dch audio", a.Format, a.SampleRate, a.Channels)
	}
	w, err := s.fs.Create(s.path)
	if err != nil {
		return fmt.Errorf("filesink: create %s: %w", s.path, err)
	}
	s.w = w
	s.format, s.rate, s.chans = a.Format, a.SampleRate, a.Channels
	if ws, ok := w.(io.WriteSeeker); ok {
		s.seeker = ws
		// placeholder, rewritten on Close
		if _, err := w.Write(s.header()); err != nil {
			return fmt.Errorf("filesink: write %s: %w", s.path, err)
		}
	}
	return nil
}

// header builds the canonical 44-byte RIFF header for the current size.
func (s *WAVSink) header() []byte {
	bps := s.format.BytesPerSample()
	tag := uint16(waveFormatPCM)
	if s.format == av.SampleFormatF32 || s.format == av.SampleFormatF64 {
		tag = waveFormatFloat
	}

	h := make([]byte, wavHeaderSize)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+s.size))
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], tag)
	binary.LittleEndian.PutUint16(h[22:], uint16(s.chans))
	binary.LittleEndian.PutUint32(h[24:], uint32(s.rate))
	binary.LittleEndian.PutUint32(h[28:], uint32(s.rate*s.chans*bps))
	binary.LittleEndian.PutUint16(h[32:], uint16(s.chans*bps))
	binary.LittleEndian.PutUint16(h[34:], uint16(bps*8))
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(s.size))
	return h
}

var _ ports.AudioSink = (*WAVSink)(nil)
