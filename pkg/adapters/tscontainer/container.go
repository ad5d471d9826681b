// Package tscontainer demultiplexes and multiplexes MPEG transport streams
// with go-astits.
package tscontainer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/Eyevinn/mp4ff/aac"
	"github.com/Eyevinn/mp4ff/avc"
	"github.com/asticode/go-astits"

	"github.com/user/mediaplay/pkg/adapters/logger"
	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

const packetSize = 188

// timeBase is the 90 kHz MPEG system clock.
var timeBase = av.Rational{Num: 1, Den: 90000}

// ErrNoProgram is returned when no PMT is found while probing.
var ErrNoProgram = errors.New("tscontainer: no program map table found")

// Opener opens MPEG-TS files, URLs and tcp:// or udp:// live streams.
type Opener struct{}

// New creates an MPEG-TS opener.
func New() *Opener {
	return &Opener{}
}

func (o *Opener) Name() string { return "mpegts" }

// Probe checks for sync bytes at packet boundaries, then the locator.
func (o *Opener) Probe(locator string, head []byte) int {
	if len(head) > 2*packetSize && head[0] == 0x47 && head[packetSize] == 0x47 && head[2*packetSize] == 0x47 {
		return 100
	}
	if u, err := url.Parse(locator); err == nil {
		switch strings.ToLower(u.Scheme) {
		case "udp", "tcp":
			return 50
		}
	}
	switch strings.ToLower(filepath.Ext(locator)) {
	case ".ts", ".m2ts", ".mts":
		return 20
	}
	return 0
}

// Open starts demuxing. Stream parameters are inferred from the first PES
// packets of each stream, reading at most opts.ProbePackets packets.
func (o *Opener) Open(locator string, r io.Reader, opts ports.ContainerOptions) (ports.Container, error) {
	var closer io.Closer
	if r == nil {
		conn, err := dial(locator)
		if err != nil {
			return nil, fmt.Errorf("tscontainer: %s: %w", locator, err)
		}
		r, closer = conn, conn
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Container{
		dmx:    astits.NewDemuxer(ctx, r),
		cancel: cancel,
		closer: closer,
		pids:   make(map[uint16]int),
		logger: log.WithComponent("mpegts"),
	}
	if err := c.probe(opts.ProbePackets); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

var _ ports.ContainerOpener = (*Opener)(nil)

// Container is an opened transport stream. It implements ports.Container.
type Container struct {
	dmx     *astits.Demuxer
	cancel  context.CancelFunc
	closer  io.Closer
	streams []av.StreamInfo
	known   []bool
	pids    map[uint16]int
	pending []*av.Packet
	logger  ports.Logger
}

func (c *Container) Streams() []av.StreamInfo {
	return c.streams
}

// ReadPacket returns one packet per PES, first draining packets buffered
// while probing.
func (c *Container) ReadPacket() (*av.Packet, error) {
	if len(c.pending) > 0 {
		pkt := c.pending[0]
		c.pending = c.pending[1:]
		return pkt, nil
	}
	for {
		d, err := c.dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("tscontainer: next data: %w", err)
		}
		if pkt := c.packet(d); pkt != nil {
			return pkt, nil
		}
	}
}

// Close stops the demuxer and closes live connections.
func (c *Container) Close() error {
	c.cancel()
	c.pending = nil
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

var _ ports.Container = (*Container)(nil)

func (c *Container) probe(limit int) error {
	if limit <= 0 {
		limit = 64
	}
	resolved := 0
	for seen := 0; seen < limit; {
		d, err := c.dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				break
			}
			return fmt.Errorf("tscontainer: probe: %w", err)
		}
		if d.PMT != nil && c.streams == nil {
			c.addStreams(d.PMT)
			continue
		}
		if d.PES == nil {
			continue
		}
		seen++
		pkt := c.packet(d)
		if pkt == nil {
			continue
		}
		if !c.known[pkt.StreamIndex] && c.describe(&c.streams[pkt.StreamIndex], pkt.Data) {
			c.known[pkt.StreamIndex] = true
			resolved++
		}
		c.pending = append(c.pending, pkt)
		if resolved == len(c.streams) {
			break
		}
	}

	if len(c.streams) == 0 {
		return fmt.Errorf("%w: %v", ports.ErrNoStreamInfo, ErrNoProgram)
	}
	for i, ok := range c.known {
		if !ok {
			c.logger.Debug("Stream %d parameters unknown after probing", i)
		}
	}
	return nil
}

func (c *Container) addStreams(pmt *astits.PMTData) {
	for _, es := range pmt.ElementaryStreams {
		st := av.StreamInfo{Index: len(c.streams), TimeBase: timeBase}
		switch es.StreamType {
		case astits.StreamTypeH264Video:
			st.Type, st.Codec = av.MediaTypeVideo, av.CodecH264
		case astits.StreamTypeH265Video:
			st.Type, st.Codec = av.MediaTypeVideo, av.CodecHEVC
		case astits.StreamTypeAACAudio:
			st.Type, st.Codec = av.MediaTypeAudio, av.CodecAAC
		case astits.StreamTypeMPEG1Audio, astits.StreamTypeMPEG2Audio:
			st.Type, st.Codec = av.MediaTypeAudio, av.CodecMP3
		default:
			c.logger.Debug("Ignoring PID %d with stream type %d", es.ElementaryPID, es.StreamType)
			continue
		}
		c.pids[es.ElementaryPID] = st.Index
		c.streams = append(c.streams, st)
		c.known = append(c.known, false)
	}
}

func (c *Container) packet(d *astits.DemuxerData) *av.Packet {
	if d.PES == nil {
		return nil
	}
	idx, ok := c.pids[d.PID]
	if !ok {
		return nil
	}
	pkt := &av.Packet{
		StreamIndex: idx,
		PTS:         av.NoPTS,
		DTS:         av.NoPTS,
		Data:        d.PES.Data,
		Pos:         -1,
	}
	if h := d.PES.Header; h != nil && h.OptionalHeader != nil {
		if h.OptionalHeader.PTS != nil {
			pkt.PTS = h.OptionalHeader.PTS.Base
			pkt.DTS = pkt.PTS
		}
		if h.OptionalHeader.DTS != nil {
			pkt.DTS = h.OptionalHeader.DTS.Base
		}
	}
	switch c.streams[idx].Codec {
	case av.CodecH264:
		pkt.Key = hasIDR(pkt.Data)
	default:
		pkt.Key = true
	}
	return pkt
}

// describe fills stream parameters from an access unit and reports whether
// the stream is now fully described.
func (c *Container) describe(st *av.StreamInfo, data []byte) bool {
	switch st.Codec {
	case av.CodecH264:
		for _, nalu := range avc.ExtractNalusFromByteStream(data) {
			if len(nalu) == 0 || avc.GetNaluType(nalu[0]) != avc.NALU_SPS {
				continue
			}
			sps, err := avc.ParseSPSNALUnit(nalu, false)
			if err != nil {
				c.logger.Debug("Cannot parse SPS on stream %d: %s", st.Index, err.Error())
				continue
			}
			st.Width = int(sps.Width)
			st.Height = int(sps.Height)
			st.PixelFormat = av.PixelFormatYUV420P
			st.ExtraData = append([]byte(nil), nalu...)
			return true
		}
		return false
	case av.CodecAAC:
		hdr, _, err := aac.DecodeADTSHeader(bytes.NewReader(data))
		if err != nil {
			c.logger.Debug("Cannot parse ADTS header on stream %d: %s", st.Index, err.Error())
			return false
		}
		st.SampleRate = int(hdr.Frequency())
		st.Channels = int(hdr.ChannelConfig)
		return st.SampleRate > 0
	}
	// Other codecs report their parameters after decoding.
	return true
}

func hasIDR(data []byte) bool {
	for _, nalu := range avc.ExtractNalusFromByteStream(data) {
		if len(nalu) > 0 && avc.GetNaluType(nalu[0]) == avc.NALU_IDR {
			return true
		}
	}
	return false
}

// dial connects to a tcp:// server or listens on a udp:// address.
func dial(locator string) (io.ReadCloser, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(u.Scheme) {
	case "tcp":
		return net.Dial("tcp", u.Host)
	case "udp":
		conn, err := net.ListenPacket("udp", u.Host)
		if err != nil {
			return nil, err
		}
		return &datagramReader{conn: conn, buf: make([]byte, 64*1024)}, nil
	}
	return nil, fmt.Errorf("unsupported locator scheme %q", u.Scheme)
}

// datagramReader turns a packet connection into a byte stream without
// truncating datagrams that carry several TS packets.
type datagramReader struct {
	conn net.PacketConn
	buf  []byte
	data []byte
}

func (d *datagramReader) Read(p []byte) (int, error) {
	for len(d.data) == 0 {
		n, _, err := d.conn.ReadFrom(d.buf)
		if err != nil {
			return 0, err
		}
		d.data = d.buf[:n]
	}
	n := copy(p, d.data)
	d.data = d.data[n:]
	return n, nil
}

func (d *datagramReader) Close() error {
	return d.conn.Close()
}
