// Package ggrenderer renders decoded video frames to images using the gg
// library.
package ggrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/convert"
	"github.com/user/mediaplay/pkg/ports"
)

const (
	defaultFontSize = 13
	overlayPadding  = 4
)

// Renderer implements ports.FrameRenderer using the gg library.
type Renderer struct{}

// New creates a new Renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render converts the frame to RGBA, scales it down to maxWidth and draws
// the overlay lines in a box at the top left.
func (r *Renderer) Render(frame *av.Frame, maxWidth int, overlay ports.Overlay) (image.Image, error) {
	if frame == nil || frame.Type != av.MediaTypeVideo {
		return nil, fmt.Errorf("ggrenderer: not a video frame")
	}
	img, err := convert.ToRGBA(&frame.Video)
	if err != nil {
		return nil, fmt.Errorf("ggrenderer: %w", err)
	}
	var out image.Image = img
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		out = r.ResizeImage(img, maxWidth)
	}
	if len(overlay.Lines) == 0 {
		return out, nil
	}

	dc := gg.NewContextForImage(out)
	size := overlay.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	if overlay.FontPath != "" {
		// the built-in face is used when the font cannot be loaded
		_ = dc.LoadFontFace(overlay.FontPath, size)
	}

	lineHeight := dc.FontHeight() * 1.4
	boxW := 0.0
	for _, line := range overlay.Lines {
		if w, _ := dc.MeasureString(line); w > boxW {
			boxW = w
		}
	}
	boxH := lineHeight * float64(len(overlay.Lines))

	bg := overlay.Background
	if bg == nil {
		bg = color.RGBA{A: 160}
	}
	dc.SetColor(bg)
	dc.DrawRectangle(0, 0, boxW+2*overlayPadding, boxH+2*overlayPadding)
	dc.Fill()

	fg := overlay.Color
	if fg == nil {
		fg = color.White
	}
	dc.SetColor(fg)
	for i, line := range overlay.Lines {
		y := overlayPadding + lineHeight*(float64(i)+0.5)
		dc.DrawStringAnchored(line, overlayPadding, y, 0, 0.5)
	}
	return dc.Image(), nil
}

// ResizeImage scales img to width, keeping the aspect ratio.
func (r *Renderer) ResizeImage(img image.Image, width int) image.Image {
	b := img.Bounds()
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// EncodeImage encodes an image to the specified format.
func (r *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case ports.FormatJPEG:
		opts := &jpeg.Options{Quality: quality}
		if err := jpeg.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case ports.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %d", format)
	}

	return buf.Bytes(), nil
}

// Ensure Renderer implements ports.FrameRenderer
var _ ports.FrameRenderer = (*Renderer)(nil)
