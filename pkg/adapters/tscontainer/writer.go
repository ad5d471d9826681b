package tscontainer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astits"

	"github.com/user/mediaplay/pkg/av"
)

// ErrNoMuxableStreams is returned when none of the streams can be carried
// in a transport stream.
var ErrNoMuxableStreams = errors.New("tscontainer: no streams can be muxed")

const basePID = 0x100

// Writer multiplexes elementary stream packets into MPEG-TS.
type Writer struct {
	mx      *astits.Muxer
	pids    map[int]uint16
	streams map[int]av.StreamInfo
}

// NewWriter creates a muxer writing to w. Streams whose codec has no
// transport stream mapping are skipped; Supports reports which remain.
func NewWriter(ctx context.Context, w io.Writer, streams []av.StreamInfo) (*Writer, error) {
	wr := &Writer{
		mx:      astits.NewMuxer(ctx, w),
		pids:    make(map[int]uint16),
		streams: make(map[int]av.StreamInfo),
	}

	// PCR rides on the first video stream, else the first stream.
	var pcrPID uint16
	pcrVideo := false
	for _, st := range streams {
		streamType, ok := streamTypeFor(st.Codec)
		if !ok {
			continue
		}
		pid := uint16(basePID + st.Index)
		if err := wr.mx.AddElementaryStream(astits.PMTElementaryStream{
			ElementaryPID: pid,
			StreamType:    streamType,
		}); err != nil {
			return nil, fmt.Errorf("tscontainer: add stream %d: %w", st.Index, err)
		}
		wr.pids[st.Index] = pid
		wr.streams[st.Index] = st
		if pcrPID == 0 || (!pcrVideo && st.Type == av.MediaTypeVideo) {
			pcrPID = pid
			pcrVideo = st.Type == av.MediaTypeVideo
		}
	}
	if len(wr.pids) == 0 {
		return nil, ErrNoMuxableStreams
	}
	wr.mx.SetPCRPID(pcrPID)
	return wr, nil
}

// Supports reports whether packets of stream index are muxed.
func (w *Writer) Supports(index int) bool {
	_, ok := w.pids[index]
	return ok
}

// WritePacket writes one packet as a PES. Timestamps are rescaled to the
// 90 kHz clock. Packets of unsupported streams are ignored.
func (w *Writer) WritePacket(pkt *av.Packet) error {
	pid, ok := w.pids[pkt.StreamIndex]
	if !ok {
		return nil
	}
	st := w.streams[pkt.StreamIndex]

	streamID := uint8(0xe0)
	if st.Type == av.MediaTypeAudio {
		streamID = 0xc0
	}
	opt := &astits.PESOptionalHeader{
		MarkerBits:      2,
		PTSDTSIndicator: astits.PTSDTSIndicatorNoPTSOrDTS,
	}
	if pkt.HasPTS() {
		pts := rescale(pkt.PTS, st.TimeBase)
		opt.PTSDTSIndicator = astits.PTSDTSIndicatorOnlyPTS
		opt.PTS = &astits.ClockReference{Base: pts}
		if pkt.DTS != av.NoPTS && pkt.DTS != pkt.PTS {
			opt.PTSDTSIndicator = astits.PTSDTSIndicatorBothPresent
			opt.DTS = &astits.ClockReference{Base: rescale(pkt.DTS, st.TimeBase)}
		}
	}

	data := &astits.MuxerData{
		PID: pid,
		PES: &astits.PESData{
			Header: &astits.PESHeader{
				OptionalHeader: opt,
				StreamID:       streamID,
			},
			Data: pkt.Data,
		},
	}
	if pkt.Key {
		data.AdaptationField = &astits.PacketAdaptationField{RandomAccessIndicator: true}
	}
	if _, err := w.mx.WriteData(data); err != nil {
		return fmt.Errorf("tscontainer: write packet: %w", err)
	}
	return nil
}

func streamTypeFor(codec av.CodecID) (astits.StreamType, bool) {
	switch codec {
	case av.CodecH264:
		return astits.StreamTypeH264Video, true
	case av.CodecHEVC:
		return astits.StreamTypeH265Video, true
	case av.CodecAAC:
		return astits.StreamTypeAACAudio, true
	case av.CodecMP3:
		return astits.StreamTypeMPEG1Audio, true
	}
	return 0, false
}

// rescale converts ts from tb to 90 kHz ticks.
func rescale(ts int64, tb av.Rational) int64 {
	if !tb.Valid() || tb == timeBase {
		return ts
	}
	return ts * 90000 * int64(tb.Num) / int64(tb.Den)
}
