//go:build libaom

// Package av1decoder provides an AV1 codec backend using libaom.
package av1decoder

/*
#cgo pkg-config: aom
#include <aom/aom_decoder.h>
#include <aom/aomdx.h>
#include <stdlib.h>
#include <string.h>

static aom_codec_iface_t* get_av1_decoder_interface() {
    return aom_codec_av1_dx();
}

static aom_codec_err_t init_decoder(aom_codec_ctx_t *ctx, aom_codec_iface_t *iface) {
    return aom_codec_dec_init(ctx, iface, NULL, 0);
}

static unsigned char* get_plane(aom_image_t *img, int plane) {
    return img->planes[plane];
}

static int get_stride(aom_image_t *img, int plane) {
    return img->stride[plane];
}

static unsigned int get_width(aom_image_t *img) {
    return img->d_w;
}

static unsigned int get_height(aom_image_t *img) {
    return img->d_h;
}

static int is_i420(aom_image_t *img) {
    return img->fmt == AOM_IMG_FMT_I420;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"io"
	"unsafe"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

var (
	// ErrInit is returned when libaom cannot create a decoder context.
	ErrInit = errors.New("av1decoder: failed to initialize decoder")

	// ErrPixelFormat is returned for pictures that are not 8-bit 4:2:0.
	ErrPixelFormat = errors.New("av1decoder: only 8-bit 4:2:0 output is supported")
)

// Factory opens libaom codecs. It implements ports.CodecFactory.
type Factory struct{}

// New creates a factory.
func New() *Factory {
	return &Factory{}
}

func (f *Factory) Name() string { return "libaom" }

func (f *Factory) Supports(id av.CodecID) bool {
	return id == av.CodecAV1
}

// Open creates a decoder context for the stream.
func (f *Factory) Open(stream av.StreamInfo) (ports.Codec, error) {
	ctx := (*C.aom_codec_ctx_t)(C.malloc(C.sizeof_aom_codec_ctx_t))
	if ctx == nil {
		return nil, ErrInit
	}
	C.memset(unsafe.Pointer(ctx), 0, C.sizeof_aom_codec_ctx_t)

	if res := C.init_decoder(ctx, C.get_av1_decoder_interface()); res != C.AOM_CODEC_OK {
		C.free(unsafe.Pointer(ctx))
		return nil, fmt.Errorf("%w: %d", ErrInit, res)
	}
	return &codec{stream: stream, ctx: ctx}, nil
}

var _ ports.CodecFactory = (*Factory)(nil)

type codec struct {
	stream   av.StreamInfo
	ctx      *C.aom_codec_ctx_t
	iter     C.aom_codec_iter_t
	pts      []int64
	draining bool
}

// SendPacket decodes one temporal unit. A nil packet flushes the decoder.
func (c *codec) SendPacket(pkt *av.Packet) error {
	if c.ctx == nil {
		return io.ErrClosedPipe
	}
	c.iter = nil
	if pkt == nil {
		c.draining = true
		if res := C.aom_codec_decode(c.ctx, nil, 0, nil); res != C.AOM_CODEC_OK {
			return fmt.Errorf("av1decoder: flush failed: %d", res)
		}
		return nil
	}
	if len(pkt.Data) == 0 {
		return fmt.Errorf("av1decoder: empty packet on stream %d", pkt.StreamIndex)
	}
	res := C.aom_codec_decode(
		c.ctx,
		(*C.uint8_t)(unsafe.Pointer(&pkt.Data[0])),
		C.size_t(len(pkt.Data)),
		nil,
	)
	if res != C.AOM_CODEC_OK {
		return fmt.Errorf("av1decoder: decode failed: %d", res)
	}
	c.pts = append(c.pts, pkt.PTS)
	return nil
}

// ReceiveFrame copies the next shown picture into dst as yuv420p.
func (c *codec) ReceiveFrame(dst *av.Frame) error {
	if c.ctx == nil {
		return io.ErrClosedPipe
	}
	img := C.aom_codec_get_frame(c.ctx, &c.iter)
	if img == nil {
		if c.draining {
			return io.EOF
		}
		return ports.ErrAgain
	}
	if C.is_i420(img) == 0 {
		return ErrPixelFormat
	}

	width := int(C.get_width(img))
	height := int(C.get_height(img))
	v := &dst.Video
	v.Alloc(av.PixelFormatYUV420P, width, height)
	for p := 0; p < 3; p++ {
		stride := int(C.get_stride(img, C.int(p)))
		rowBytes, rows := av.PixelFormatYUV420P.PlaneSize(p, width, height)
		src := unsafe.Slice((*byte)(unsafe.Pointer(C.get_plane(img, C.int(p)))), stride*(rows-1)+rowBytes)
		for y := 0; y < rows; y++ {
			copy(v.Planes[p][y*v.Strides[p]:(y+1)*v.Strides[p]], src[y*stride:y*stride+rowBytes])
		}
	}

	dst.Type = av.MediaTypeVideo
	dst.StreamIndex = c.stream.Index
	dst.TimeBase = c.stream.TimeBase
	dst.PTS = av.NoPTS
	if len(c.pts) > 0 {
		dst.PTS = c.pts[0]
		c.pts = c.pts[1:]
	}
	dst.Key = false
	return nil
}

// Close releases the decoder context.
func (c *codec) Close() error {
	if c.ctx != nil {
		C.aom_codec_destroy(c.ctx)
		C.free(unsafe.Pointer(c.ctx))
		c.ctx = nil
	}
	c.pts = nil
	return nil
}

var _ ports.Codec = (*codec)(nil)
