package convert

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/user/mediaplay/pkg/av"
)

// ToRGBA converts a video frame into a newly allocated RGBA image.
func ToRGBA(v *av.VideoFrame) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, v.Width, v.Height))
	if err := toRGBA(v, img); err != nil {
		return nil, err
	}
	return img, nil
}

// FromImage allocates dst with the image's size and the given format and
// fills it from img.
func FromImage(img image.Image, format av.PixelFormat, dst *av.VideoFrame) error {
	if format.Planes() == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	dst.Alloc(format, b.Dx(), b.Dy())
	return fromRGBA(rgba, dst)
}

// toRGBA writes v into img, which must have the frame's dimensions.
// YUV input is treated as BT.601 limited range.
func toRGBA(v *av.VideoFrame, img *image.RGBA) error {
	w, h := v.Width, v.Height
	switch v.Format {
	case av.PixelFormatYUV420P, av.PixelFormatNV12:
		for y := 0; y < h; y++ {
			yRow := v.Planes[0][y*v.Strides[0]:]
			out := img.Pix[y*img.Stride:]
			cy := y / 2
			for x := 0; x < w; x++ {
				var u, vv byte
				if v.Format == av.PixelFormatNV12 {
					uv := v.Planes[1][cy*v.Strides[1]:]
					u, vv = uv[(x/2)*2], uv[(x/2)*2+1]
				} else {
					u = v.Planes[1][cy*v.Strides[1]+x/2]
					vv = v.Planes[2][cy*v.Strides[2]+x/2]
				}
				r, g, b := yuvToRGB(yRow[x], u, vv)
				out[4*x], out[4*x+1], out[4*x+2], out[4*x+3] = r, g, b, 255
			}
		}
	case av.PixelFormatGray:
		for y := 0; y < h; y++ {
			in := v.Planes[0][y*v.Strides[0]:]
			out := img.Pix[y*img.Stride:]
			for x := 0; x < w; x++ {
				l, _, _ := yuvToRGB(in[x], 128, 128)
				out[4*x], out[4*x+1], out[4*x+2], out[4*x+3] = l, l, l, 255
			}
		}
	case av.PixelFormatRGBA:
		copyPlane(img.Pix, img.Stride, v.Planes[0], v.Strides[0], w*4, h)
	case av.PixelFormatBGRA:
		for y := 0; y < h; y++ {
			in := v.Planes[0][y*v.Strides[0]:]
			out := img.Pix[y*img.Stride:]
			for x := 0; x < w; x++ {
				out[4*x], out[4*x+1], out[4*x+2], out[4*x+3] = in[4*x+2], in[4*x+1], in[4*x], in[4*x+3]
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, v.Format)
	}
	return nil
}

// fromRGBA writes img into dst, which must already be allocated with the
// image's dimensions. Chroma is averaged over each 2x2 block.
func fromRGBA(img *image.RGBA, dst *av.VideoFrame) error {
	w, h := dst.Width, dst.Height
	switch dst.Format {
	case av.PixelFormatRGBA:
		copyPlane(dst.Planes[0], dst.Strides[0], img.Pix, img.Stride, w*4, h)
	case av.PixelFormatBGRA:
		for y := 0; y < h; y++ {
			in := img.Pix[y*img.Stride:]
			out := dst.Planes[0][y*dst.Strides[0]:]
			for x := 0; x < w; x++ {
				out[4*x], out[4*x+1], out[4*x+2], out[4*x+3] = in[4*x+2], in[4*x+1], in[4*x], in[4*x+3]
			}
		}
	case av.PixelFormatGray:
		for y := 0; y < h; y++ {
			in := img.Pix[y*img.Stride:]
			out := dst.Planes[0][y*dst.Strides[0]:]
			for x := 0; x < w; x++ {
				out[x] = rgbToY(in[4*x], in[4*x+1], in[4*x+2])
			}
		}
	case av.PixelFormatYUV420P, av.PixelFormatNV12:
		for y := 0; y < h; y++ {
			in := img.Pix[y*img.Stride:]
			out := dst.Planes[0][y*dst.Strides[0]:]
			for x := 0; x < w; x++ {
				out[x] = rgbToY(in[4*x], in[4*x+1], in[4*x+2])
			}
		}
		cw, ch := (w+1)/2, (h+1)/2
		for cy := 0; cy < ch; cy++ {
			for cx := 0; cx < cw; cx++ {
				var r, g, b, n int
				for dy := 0; dy < 2; dy++ {
					for dx := 0; dx < 2; dx++ {
						px, py := cx*2+dx, cy*2+dy
						if px >= w || py >= h {
							continue
						}
						off := py*img.Stride + px*4
						r += int(img.Pix[off])
						g += int(img.Pix[off+1])
						b += int(img.Pix[off+2])
						n++
					}
				}
				u, v := rgbToUV(r/n, g/n, b/n)
				if dst.Format == av.PixelFormatNV12 {
					row := dst.Planes[1][cy*dst.Strides[1]:]
					row[cx*2], row[cx*2+1] = u, v
				} else {
					dst.Planes[1][cy*dst.Strides[1]+cx] = u
					dst.Planes[2][cy*dst.Strides[2]+cx] = v
				}
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, dst.Format)
	}
	return nil
}

// yuvToRGB uses the BT.601 limited range integer approximation.
func yuvToRGB(y, u, v byte) (r, g, b byte) {
	c := int(y) - 16
	d := int(u) - 128
	e := int(v) - 128
	return clamp((298*c + 409*e + 128) >> 8),
		clamp((298*c - 100*d - 208*e + 128) >> 8),
		clamp((298*c + 516*d + 128) >> 8)
}

func rgbToY(r, g, b byte) byte {
	return clamp(((66*int(r) + 129*int(g) + 25*int(b) + 128) >> 8) + 16)
}

func rgbToUV(r, g, b int) (u, v byte) {
	u = clamp(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
	v = clamp(((112*r - 94*g - 18*b + 128) >> 8) + 128)
	return u, v
}

func clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
