//go:build ffmpeg

package avformat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/asticode/go-astiav"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// ErrNoOutputStreams is returned when no stream could be added to the
// output.
var ErrNoOutputStreams = errors.New("avformat: no stream can be written")

// Muxer pushes stream-copied packets through libavformat, e.g. FLV to
// rtmp:// servers. It implements ports.Muxer.
type Muxer struct {
	logger ports.Logger
}

// NewMuxer creates a muxer.
func NewMuxer(logger ports.Logger) *Muxer {
	return &Muxer{logger: logger.WithComponent("avformat")}
}

func (m *Muxer) Name() string { return "avformat" }

func (m *Muxer) Accepts(target string) bool {
	return outputFormat(target) != ""
}

// outputFormat picks the libavformat muxer name for target.
func outputFormat(target string) string {
	if i := strings.Index(target, "://"); i > 1 {
		switch strings.ToLower(target[:i]) {
		case "rtmp", "rtmps":
			return "flv"
		case "rtsp":
			return "rtsp"
		case "srt":
			return "mpegts"
		}
		return ""
	}
	switch strings.ToLower(filepath.Ext(target)) {
	case ".flv":
		return "flv"
	case ".mp4", ".mov":
		return "mp4"
	case ".mkv":
		return "matroska"
	}
	return ""
}

func (m *Muxer) Create(ctx context.Context, target string, streams []av.StreamInfo) (ports.PacketWriter, error) {
	format := outputFormat(target)
	if format == "" {
		return nil, fmt.Errorf("avformat: no muxer for %s", target)
	}
	oc, err := astiav.AllocOutputFormatContext(nil, format, target)
	if err != nil || oc == nil {
		return nil, fmt.Errorf("avformat: allocate output for %s: %v", target, err)
	}
	w := &Writer{oc: oc, index: make(map[int]outStream), pkt: astiav.AllocPacket()}

	for _, st := range streams {
		if st.Type != av.MediaTypeVideo && st.Type != av.MediaTypeAudio {
			continue
		}
		os := oc.NewStream(nil)
		if os == nil {
			continue
		}
		if err := FillCodecParameters(os.CodecParameters(), st); err != nil {
			m.logger.Debug("Skipping stream %d in output: %s", st.Index, err.Error())
			continue
		}
		// let the muxer choose a tag valid for its own format
		os.CodecParameters().SetCodecTag(0)
		os.SetTimeBase(astiav.NewRational(st.TimeBase.Num, st.TimeBase.Den))
		w.index[st.Index] = outStream{stream: os, tb: astiav.NewRational(st.TimeBase.Num, st.TimeBase.Den)}
	}
	if len(w.index) == 0 {
		w.free()
		return nil, ErrNoOutputStreams
	}

	// rtsp opens its own transport
	if format != "rtsp" {
		pb, err := astiav.OpenIOContext(target, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
		if err != nil {
			w.free()
			return nil, fmt.Errorf("avformat: open %s: %w", target, err)
		}
		oc.SetPb(pb)
		w.pb = pb
	}

	dict := astiav.NewDictionary()
	defer dict.Free()
	if format == "flv" {
		_ = dict.Set("flvflags", "no_duration_filesize", astiav.DictionaryFlags(0))
	}
	if err := oc.WriteHeader(dict); err != nil {
		w.free()
		return nil, fmt.Errorf("avformat: write header: %w", err)
	}
	w.header = true
	return w, nil
}

var _ ports.Muxer = (*Muxer)(nil)

type outStream struct {
	stream *astiav.Stream
	tb     astiav.Rational
}

// Writer is an open libavformat output.
type Writer struct {
	oc     *astiav.FormatContext
	pb     *astiav.IOContext
	pkt    *astiav.Packet
	index  map[int]outStream
	header bool
}

func (w *Writer) Supports(index int) bool {
	_, ok := w.index[index]
	return ok
}

// WritePacket rescales timestamps to the output stream time base and
// writes with interleaving.
func (w *Writer) WritePacket(pkt *av.Packet) error {
	out, ok := w.index[pkt.StreamIndex]
	if !ok || w.oc == nil {
		return nil
	}
	defer w.pkt.Unref()
	if err := w.pkt.FromData(pkt.Data); err != nil {
		return fmt.Errorf("avformat: packet data: %w", err)
	}
	w.pkt.SetPts(libavTimestamp(pkt.PTS))
	w.pkt.SetDts(libavTimestamp(pkt.DTS))
	w.pkt.SetStreamIndex(out.stream.Index())
	if pkt.Key {
		w.pkt.SetFlags(w.pkt.Flags().Add(astiav.PacketFlagKey))
	}
	w.pkt.RescaleTs(out.tb, out.stream.TimeBase())

	if err := w.oc.WriteInterleavedFrame(w.pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return fmt.Errorf("avformat: write packet: %w", err)
	}
	return nil
}

// Close writes the trailer and releases the output.
func (w *Writer) Close() error {
	if w.oc == nil {
		return nil
	}
	var err error
	if w.header {
		err = w.oc.WriteTrailer()
	}
	w.free()
	if err != nil {
		return fmt.Errorf("avformat: write trailer: %w", err)
	}
	return nil
}

func (w *Writer) free() {
	if w.pkt != nil {
		w.pkt.Free()
		w.pkt = nil
	}
	if w.pb != nil {
		_ = w.pb.Close()
		w.pb.Free()
		w.pb = nil
	}
	if w.oc != nil {
		w.oc.Free()
		w.oc = nil
	}
}

var _ ports.PacketWriter = (*Writer)(nil)

func libavTimestamp(v int64) int64 {
	if v == av.NoPTS {
		return astiav.NoPtsValue
	}
	return v
}
