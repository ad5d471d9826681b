// Package convert implements pixel format, sample format and sample rate
// conversion between decoded frames.
package convert

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/user/mediaplay/pkg/av"
)

var (
	// ErrUnsupportedFormat is returned for formats the converters cannot handle.
	ErrUnsupportedFormat = errors.New("convert: unsupported format")

	// ErrFrameMismatch is returned when a frame does not match the
	// converter's source format.
	ErrFrameMismatch = errors.New("convert: frame does not match converter source")
)

// VideoSpec describes one side of a video conversion.
type VideoSpec struct {
	Width  int
	Height int
	Format av.PixelFormat
}

func (s VideoSpec) String() string {
	return fmt.Sprintf("%dx%d %s", s.Width, s.Height, s.Format)
}

// VideoConverter converts frames between pixel formats and sizes.
// Scaling uses Catmull-Rom (bicubic) interpolation.
type VideoConverter struct {
	src    VideoSpec
	dst    VideoSpec
	scaler draw.Interpolator

	// intermediates reused across calls
	rgba   *image.RGBA
	scaled *image.RGBA
}

// NewVideoConverter creates a converter from src to dst.
func NewVideoConverter(src, dst VideoSpec) (*VideoConverter, error) {
	for _, s := range []VideoSpec{src, dst} {
		if s.Format.Planes() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.Format)
		}
		if s.Width <= 0 || s.Height <= 0 {
			return nil, fmt.Errorf("convert: invalid size %dx%d", s.Width, s.Height)
		}
	}
	return &VideoConverter{src: src, dst: dst, scaler: draw.CatmullRom}, nil
}

// Source returns the source format.
func (c *VideoConverter) Source() VideoSpec { return c.src }

// Target returns the destination format.
func (c *VideoConverter) Target() VideoSpec { return c.dst }

// Convert writes src into dst, allocating dst planes as needed.
func (c *VideoConverter) Convert(src, dst *av.VideoFrame) error {
	if src.Format != c.src.Format || src.Width != c.src.Width || src.Height != c.src.Height {
		return fmt.Errorf("%w: got %dx%d %s, want %s", ErrFrameMismatch, src.Width, src.Height, src.Format, c.src)
	}
	dst.Alloc(c.dst.Format, c.dst.Width, c.dst.Height)

	sameSize := c.src.Width == c.dst.Width && c.src.Height == c.dst.Height
	if sameSize && c.convertDirect(src, dst) {
		return nil
	}

	c.rgba = ensureRGBA(c.rgba, c.src.Width, c.src.Height)
	if err := toRGBA(src, c.rgba); err != nil {
		return err
	}
	img := c.rgba
	if !sameSize {
		c.scaled = ensureRGBA(c.scaled, c.dst.Width, c.dst.Height)
		c.scaler.Scale(c.scaled, c.scaled.Bounds(), c.rgba, c.rgba.Bounds(), draw.Src, nil)
		img = c.scaled
	}
	return fromRGBA(img, dst)
}

// convertDirect handles same-size conversions that do not need an RGB
// intermediate. It reports false when no direct path exists.
func (c *VideoConverter) convertDirect(src, dst *av.VideoFrame) bool {
	w, h := src.Width, src.Height
	cw, ch := (w+1)/2, (h+1)/2

	switch {
	case src.Format == dst.Format:
		for i := 0; i < src.Format.Planes(); i++ {
			stride, rows := dst.Format.PlaneSize(i, w, h)
			copyPlane(dst.Planes[i], dst.Strides[i], src.Planes[i], src.Strides[i], stride, rows)
		}
		return true

	case src.Format == av.PixelFormatYUV420P && dst.Format == av.PixelFormatNV12:
		copyPlane(dst.Planes[0], dst.Strides[0], src.Planes[0], src.Strides[0], w, h)
		for y := 0; y < ch; y++ {
			u := src.Planes[1][y*src.Strides[1]:]
			v := src.Planes[2][y*src.Strides[2]:]
			uv := dst.Planes[1][y*dst.Strides[1]:]
			for x := 0; x < cw; x++ {
				uv[2*x] = u[x]
				uv[2*x+1] = v[x]
			}
		}
		return true

	case src.Format == av.PixelFormatNV12 && dst.Format == av.PixelFormatYUV420P:
		copyPlane(dst.Planes[0], dst.Strides[0], src.Planes[0], src.Strides[0], w, h)
		for y := 0; y < ch; y++ {
			uv := src.Planes[1][y*src.Strides[1]:]
			u := dst.Planes[1][y*dst.Strides[1]:]
			v := dst.Planes[2][y*dst.Strides[2]:]
			for x := 0; x < cw; x++ {
				u[x] = uv[2*x]
				v[x] = uv[2*x+1]
			}
		}
		return true

	case (src.Format == av.PixelFormatYUV420P || src.Format == av.PixelFormatNV12) && dst.Format == av.PixelFormatGray:
		copyPlane(dst.Planes[0], dst.Strides[0], src.Planes[0], src.Strides[0], w, h)
		return true

	case src.Format == av.PixelFormatGray && dst.Format == av.PixelFormatYUV420P:
		copyPlane(dst.Planes[0], dst.Strides[0], src.Planes[0], src.Strides[0], w, h)
		fill(dst.Planes[1], 128)
		fill(dst.Planes[2], 128)
		return true

	case src.Format == av.PixelFormatRGBA && dst.Format == av.PixelFormatBGRA,
		src.Format == av.PixelFormatBGRA && dst.Format == av.PixelFormatRGBA:
		for y := 0; y < h; y++ {
			s := src.Planes[0][y*src.Strides[0]:]
			d := dst.Planes[0][y*dst.Strides[0]:]
			for x := 0; x < w; x++ {
				d[4*x], d[4*x+1], d[4*x+2], d[4*x+3] = s[4*x+2], s[4*x+1], s[4*x], s[4*x+3]
			}
		}
		return true
	}
	return false
}

func copyPlane(dst []byte, dstStride int, src []byte, srcStride int, width, rows int) {
	for y := 0; y < rows; y++ {
		copy(dst[y*dstStride:y*dstStride+width], src[y*srcStride:y*srcStride+width])
	}
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

func ensureRGBA(img *image.RGBA, w, h int) *image.RGBA {
	if img != nil && img.Rect.Dx() == w && img.Rect.Dy() == h {
		return img
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}
