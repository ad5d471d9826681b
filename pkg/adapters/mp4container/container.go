// Package mp4container demultiplexes progressive and fragmented MP4 files
// using mp4ff.
package mp4container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Eyevinn/mp4ff/aac"
	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/mediaplay/pkg/adapters/logger"
	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// ErrNoTracks is returned when the file has no audio or video track.
var ErrNoTracks = errors.New("mp4container: no audio or video track")

// Opener opens MP4 containers.
type Opener struct{}

// New creates an MP4 opener.
func New() *Opener {
	return &Opener{}
}

func (o *Opener) Name() string { return "mp4" }

// Probe recognizes the ftyp, styp or moov box at the start of the file and
// falls back to the file extension.
func (o *Opener) Probe(locator string, head []byte) int {
	if len(head) >= 8 {
		switch string(head[4:8]) {
		case "ftyp", "styp", "moov":
			return 100
		}
	}
	switch strings.ToLower(filepath.Ext(locator)) {
	case ".mp4", ".m4v", ".m4a", ".mov", ".cmfv", ".cmfa":
		return 20
	}
	return 0
}

// Open parses the box structure and indexes every sample of every audio and
// video track.
func (o *Opener) Open(locator string, r io.Reader, opts ports.ContainerOptions) (ports.Container, error) {
	if r == nil {
		return nil, fmt.Errorf("mp4container: %s: locator is not a file or URL", locator)
	}
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("mp4container: read: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}

	f, err := mp4.DecodeFile(rs)
	if err != nil {
		return nil, fmt.Errorf("mp4container: decode mp4: %w", err)
	}

	c := &Container{reader: rs, logger: log.WithComponent("mp4")}
	if f.IsFragmented() {
		err = c.indexFragmented(f)
	} else {
		err = c.indexProgressive(f)
	}
	if err != nil {
		return nil, err
	}
	if len(c.streams) == 0 {
		return nil, fmt.Errorf("%w: %v", ports.ErrNoStreamInfo, ErrNoTracks)
	}
	return c, nil
}

var _ ports.ContainerOpener = (*Opener)(nil)

// track is one indexed audio or video track.
type track struct {
	id     uint32
	stream av.StreamInfo
	// paramSets holds SPS and PPS in Annex B form, prepended to keyframes.
	paramSets []byte
	trex      *mp4.TrexBox
}

// sample is one indexed access unit.
type sample struct {
	stream int
	dts    int64
	pts    int64
	dur    int64
	key    bool
	offset int64
	size   uint32
	data   []byte
}

// Container is an opened MP4 file. It implements ports.Container.
type Container struct {
	reader  io.ReadSeeker
	logger  ports.Logger
	streams []av.StreamInfo
	tracks  []*track
	samples []sample
	next    int
}

func (c *Container) Streams() []av.StreamInfo {
	return c.streams
}

// ReadPacket returns samples in file order, converted to elementary stream
// framing: Annex B for H.264 and ADTS for AAC.
func (c *Container) ReadPacket() (*av.Packet, error) {
	if c.next >= len(c.samples) {
		return nil, io.EOF
	}
	s := &c.samples[c.next]
	c.next++

	data := s.data
	if data == nil {
		data = make([]byte, s.size)
		if _, err := c.reader.Seek(s.offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("mp4container: seek to sample: %w", err)
		}
		if _, err := io.ReadFull(c.reader, data); err != nil {
			return nil, fmt.Errorf("mp4container: read sample: %w", err)
		}
	}

	t := c.tracks[s.stream]
	pkt := &av.Packet{
		StreamIndex: s.stream,
		PTS:         s.pts,
		DTS:         s.dts,
		Duration:    s.dur,
		Key:         s.key,
		Pos:         s.offset,
	}
	switch t.stream.Codec {
	case av.CodecH264, av.CodecHEVC:
		annexB := avccToAnnexB(data)
		if s.key && len(t.paramSets) > 0 {
			pkt.Data = make([]byte, 0, len(t.paramSets)+len(annexB))
			pkt.Data = append(pkt.Data, t.paramSets...)
			pkt.Data = append(pkt.Data, annexB...)
		} else {
			pkt.Data = annexB
		}
	case av.CodecAAC:
		framed, err := adtsFrame(t.stream, data)
		if err != nil {
			c.logger.Debug("Cannot frame AAC sample: %s", err.Error())
			pkt.Data = data
		} else {
			pkt.Data = framed
		}
	default:
		pkt.Data = data
	}
	return pkt, nil
}

// Close drops the sample index. The underlying reader belongs to the caller.
func (c *Container) Close() error {
	c.samples = nil
	return nil
}

var _ ports.Container = (*Container)(nil)

func (c *Container) addTracks(traks []*mp4.TrakBox) {
	for _, trak := range traks {
		t := newTrack(trak, len(c.streams))
		if t == nil {
			continue
		}
		c.tracks = append(c.tracks, t)
		c.streams = append(c.streams, t.stream)
	}
}

func (c *Container) trackByID(id uint32) (int, *track) {
	for i, t := range c.tracks {
		if t.id == id {
			return i, t
		}
	}
	return -1, nil
}

func (c *Container) indexProgressive(f *mp4.File) error {
	if f.Moov == nil {
		return fmt.Errorf("%w: no moov box found", ports.ErrNoStreamInfo)
	}
	c.addTracks(f.Moov.Traks)

	for i, t := range c.tracks {
		var trak *mp4.TrakBox
		for _, tb := range f.Moov.Traks {
			if tb.Tkhd != nil && tb.Tkhd.TrackID == t.id {
				trak = tb
				break
			}
		}
		if trak == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
			continue
		}
		stbl := trak.Mdia.Minf.Stbl
		if stbl.Stsz == nil {
			continue
		}

		syncSamples := make(map[uint32]bool)
		if stbl.Stss != nil {
			for _, nr := range stbl.Stss.SampleNumber {
				syncSamples[nr] = true
			}
		}

		for nr := uint32(1); nr <= stbl.Stsz.SampleNumber; nr++ {
			offset, err := sampleOffset(stbl, nr)
			if err != nil {
				c.logger.Debug("Skipping unreadable sample %d of track %d: %s", nr, t.id, err.Error())
				continue
			}
			var dts uint64
			var dur uint32
			if stbl.Stts != nil {
				dts, dur = stbl.Stts.GetDecodeTime(nr)
			}
			c.samples = append(c.samples, sample{
				stream: i,
				dts:    int64(dts),
				pts:    int64(dts),
				dur:    int64(dur),
				key:    syncSamples[nr] || len(syncSamples) == 0,
				offset: int64(offset),
				size:   stbl.Stsz.GetSampleSize(int(nr)),
			})
		}
	}

	// Demux order is file order.
	sort.SliceStable(c.samples, func(a, b int) bool {
		return c.samples[a].offset < c.samples[b].offset
	})
	return nil
}

func (c *Container) indexFragmented(f *mp4.File) error {
	if f.Init == nil || f.Init.Moov == nil {
		return fmt.Errorf("%w: no init segment found", ports.ErrNoStreamInfo)
	}
	c.addTracks(f.Init.Moov.Traks)
	if f.Init.Moov.Mvex != nil {
		for _, trex := range f.Init.Moov.Mvex.Trexs {
			if _, t := c.trackByID(trex.TrackID); t != nil {
				t.trex = trex
			}
		}
	}

	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil || len(frag.Moof.Trafs) == 0 {
				continue
			}
			if len(frag.Moof.Trafs) > 1 {
				c.logger.Warn("Skipping fragment %d with %d tracks", frag.Moof.Mfhd.SequenceNumber, len(frag.Moof.Trafs))
				continue
			}
			idx, t := c.trackByID(frag.Moof.Trafs[0].Tfhd.TrackID)
			if t == nil {
				continue
			}
			full, err := frag.GetFullSamples(t.trex)
			if err != nil {
				return fmt.Errorf("mp4container: get samples: %w", err)
			}
			for _, fs := range full {
				c.samples = append(c.samples, sample{
					stream: idx,
					dts:    int64(fs.DecodeTime),
					pts:    int64(fs.DecodeTime) + int64(fs.CompositionTimeOffset),
					dur:    int64(fs.Dur),
					key:    fs.Flags == mp4.SyncSampleFlags,
					offset: -1,
					size:   uint32(len(fs.Data)),
					data:   fs.Data,
				})
			}
		}
	}
	return nil
}

// newTrack describes a trak box, or returns nil for tracks other than audio
// and video.
func newTrack(trak *mp4.TrakBox, index int) *track {
	if trak.Tkhd == nil || trak.Mdia == nil || trak.Mdia.Hdlr == nil {
		return nil
	}
	t := &track{id: trak.Tkhd.TrackID}
	st := &t.stream
	st.Index = index
	st.TimeBase = av.Rational{Num: 1, Den: 1000}
	if trak.Mdia.Mdhd != nil {
		st.TimeBase.Den = int(trak.Mdia.Mdhd.Timescale)
		st.Duration = int64(trak.Mdia.Mdhd.Duration)
	}

	switch trak.Mdia.Hdlr.HandlerType {
	case "vide":
		st.Type = av.MediaTypeVideo
	case "soun":
		st.Type = av.MediaTypeAudio
	default:
		return nil
	}

	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return t
	}
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		switch entry := child.(type) {
		case *mp4.VisualSampleEntryBox:
			st.Width = int(entry.Width)
			st.Height = int(entry.Height)
			st.Codec = videoCodec(entry.Type())
			if entry.AvcC != nil {
				for _, sps := range entry.AvcC.SPSnalus {
					t.paramSets = append(t.paramSets, 0, 0, 0, 1)
					t.paramSets = append(t.paramSets, sps...)
				}
				for _, pps := range entry.AvcC.PPSnalus {
					t.paramSets = append(t.paramSets, 0, 0, 0, 1)
					t.paramSets = append(t.paramSets, pps...)
				}
				st.ExtraData = t.paramSets
			}
		case *mp4.AudioSampleEntryBox:
			st.SampleRate = int(entry.SampleRate)
			st.Channels = int(entry.ChannelCount)
			st.Codec = audioCodec(entry.Type())
		}
		break
	}
	return t
}

func videoCodec(boxType string) av.CodecID {
	switch boxType {
	case "avc1", "avc3":
		return av.CodecH264
	case "hvc1", "hev1":
		return av.CodecHEVC
	case "av01":
		return av.CodecAV1
	case "jpeg", "mjpa", "mjpg":
		return av.CodecMJPEG
	}
	return av.CodecUnknown
}

func audioCodec(boxType string) av.CodecID {
	switch boxType {
	case "mp4a":
		return av.CodecAAC
	case "Opus":
		return av.CodecOpus
	case ".mp3":
		return av.CodecMP3
	}
	return av.CodecUnknown
}

// sampleOffset finds the file offset of a progressive sample from the
// chunk tables.
func sampleOffset(stbl *mp4.StblBox, sampleNr uint32) (uint64, error) {
	if stbl.Stsc == nil || stbl.Stsz == nil {
		return 0, fmt.Errorf("missing stsc or stsz box")
	}

	chunkNr, firstSampleInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(sampleNr))
	if err != nil {
		return 0, fmt.Errorf("get chunk nr: %w", err)
	}

	var chunkOffset uint64
	switch {
	case stbl.Stco != nil:
		chunkOffset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return 0, fmt.Errorf("get chunk offset: %w", err)
		}
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return 0, fmt.Errorf("chunk nr out of range")
		}
		chunkOffset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return 0, fmt.Errorf("no stco or co64 box")
	}

	offset := chunkOffset
	for s := uint32(firstSampleInChunk); s < sampleNr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}
	return offset, nil
}

// avccToAnnexB converts length-prefixed NAL units to start-code framing.
func avccToAnnexB(data []byte) []byte {
	var result []byte
	offset := 0
	for offset+4 <= len(data) {
		naluLen := int(data[offset])<<24 | int(data[offset+1])<<16 |
			int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4
		if offset+naluLen > len(data) {
			break
		}
		result = append(result, 0, 0, 0, 1)
		result = append(result, data[offset:offset+naluLen]...)
		offset += naluLen
	}
	return result
}

// aacLC is the MPEG-4 audio object type of AAC low complexity.
const aacLC = 2

// adtsFrame prefixes a raw AAC-LC access unit with an ADTS header.
func adtsFrame(st av.StreamInfo, payload []byte) ([]byte, error) {
	hdr, err := aac.NewADTSHeader(st.SampleRate, byte(st.Channels), aacLC, uint16(len(payload)))
	if err != nil {
		return nil, err
	}
	out := hdr.Encode()
	return append(out, payload...), nil
}
