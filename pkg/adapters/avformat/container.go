//go:build ffmpeg

// Package avformat opens any locator libavformat understands through
// go-astiav, including rtmp://, rtsp:// and srt:// live sources.
package avformat

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/asticode/go-astiav"

	"github.com/user/mediaplay/pkg/adapters/logger"
	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

var codecIDs = map[astiav.CodecID]av.CodecID{
	astiav.CodecIDH264:     av.CodecH264,
	astiav.CodecIDHevc:     av.CodecHEVC,
	astiav.CodecIDAv1:      av.CodecAV1,
	astiav.CodecIDMjpeg:    av.CodecMJPEG,
	astiav.CodecIDAac:      av.CodecAAC,
	astiav.CodecIDMp3:      av.CodecMP3,
	astiav.CodecIDOpus:     av.CodecOpus,
	astiav.CodecIDPcmS16Le: av.CodecPCMS16LE,
	astiav.CodecIDPcmF32Le: av.CodecPCMF32LE,
	astiav.CodecIDPcmU8:    av.CodecPCMU8,
}

// CodecID maps a libavcodec codec to the shared codec identity.
func CodecID(id astiav.CodecID) av.CodecID {
	return codecIDs[id]
}

// Opener is a catch-all ports.ContainerOpener. It scores low on plain
// files so the native demuxers win, and high on streaming schemes only
// libavformat handles.
type Opener struct{}

// New creates an opener.
func New() *Opener {
	return &Opener{}
}

func (o *Opener) Name() string { return "avformat" }

func (o *Opener) Probe(locator string, head []byte) int {
	if u, err := url.Parse(locator); err == nil {
		switch strings.ToLower(u.Scheme) {
		case "rtmp", "rtmps", "rtsp", "srt", "hls":
			return 60
		}
	}
	return 10
}

// Open ignores r and lets libavformat open the locator itself.
func (o *Opener) Open(locator string, r io.Reader, opts ports.ContainerOptions) (ports.Container, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}

	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("avformat: failed to allocate format context")
	}
	dict := astiav.NewDictionary()
	defer dict.Free()
	if opts.ProbePackets > 0 {
		_ = dict.Set("fpsprobesize", fmt.Sprint(opts.ProbePackets), astiav.DictionaryFlags(0))
	}

	if err := fc.OpenInput(locator, nil, dict); err != nil {
		fc.Free()
		return nil, fmt.Errorf("avformat: open input: %w", err)
	}
	c := &Container{fc: fc, pkt: astiav.AllocPacket(), logger: log.WithComponent("avformat")}
	if err := fc.FindStreamInfo(nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %v", ports.ErrNoStreamInfo, err)
	}
	for _, s := range fc.Streams() {
		c.streams = append(c.streams, c.describe(s))
	}
	if len(c.streams) == 0 {
		c.Close()
		return nil, ports.ErrNoStreamInfo
	}
	return c, nil
}

var _ ports.ContainerOpener = (*Opener)(nil)

// Container reads packets with av_read_frame. It implements ports.Container.
type Container struct {
	fc      *astiav.FormatContext
	pkt     *astiav.Packet
	streams []av.StreamInfo
	logger  ports.Logger
}

func (c *Container) describe(s *astiav.Stream) av.StreamInfo {
	cp := s.CodecParameters()
	tb := s.TimeBase()
	st := av.StreamInfo{
		Index:     s.Index(),
		Codec:     CodecID(cp.CodecID()),
		TimeBase:  av.Rational{Num: tb.Num(), Den: tb.Den()},
		Bitrate:   cp.BitRate(),
		ExtraData: cp.ExtraData(),
		Native:    cp,
	}
	if d := s.Duration(); d > 0 {
		st.Duration = d
	}
	switch cp.MediaType() {
	case astiav.MediaTypeVideo:
		st.Type = av.MediaTypeVideo
		st.Width = cp.Width()
		st.Height = cp.Height()
		st.PixelFormat = PixelFormat(cp.PixelFormat())
	case astiav.MediaTypeAudio:
		st.Type = av.MediaTypeAudio
		st.SampleRate = cp.SampleRate()
		st.Channels = cp.ChannelLayout().Channels()
		st.SampleFormat = SampleFormat(cp.SampleFormat())
	case astiav.MediaTypeSubtitle:
		st.Type = av.MediaTypeSubtitle
	case astiav.MediaTypeData:
		st.Type = av.MediaTypeData
	}
	if st.Codec == av.CodecUnknown {
		c.logger.Debug("Stream %d uses unmapped codec %s", st.Index, cp.CodecID().Name())
	}
	return st
}

func (c *Container) Streams() []av.StreamInfo {
	return c.streams
}

func (c *Container) ReadPacket() (*av.Packet, error) {
	if c.fc == nil {
		return nil, io.ErrClosedPipe
	}
	if err := c.fc.ReadFrame(c.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("avformat: read frame: %w", err)
	}
	defer c.pkt.Unref()

	pkt := &av.Packet{
		StreamIndex: c.pkt.StreamIndex(),
		PTS:         timestamp(c.pkt.Pts()),
		DTS:         timestamp(c.pkt.Dts()),
		Duration:    c.pkt.Duration(),
		Data:        c.pkt.Data(),
		Key:         c.pkt.Flags().Has(astiav.PacketFlagKey),
		Pos:         c.pkt.Pos(),
	}
	return pkt, nil
}

// Close releases the packet and the format context. Stream Native handles
// become invalid.
func (c *Container) Close() error {
	if c.pkt != nil {
		c.pkt.Free()
		c.pkt = nil
	}
	if c.fc != nil {
		c.fc.CloseInput()
		c.fc.Free()
		c.fc = nil
	}
	return nil
}

var _ ports.Container = (*Container)(nil)

func timestamp(v int64) int64 {
	if v == astiav.NoPtsValue {
		return av.NoPTS
	}
	return v
}
