package ports

import (
	"image"
	"image/color"
	"strings"

	"github.com/user/mediaplay/pkg/av"
)

// FrameRenderer turns decoded video frames into images for snapshots.
type FrameRenderer interface {
	// Render converts frame to an image no wider than maxWidth (0 keeps the
	// native size) and draws the overlay on top of it.
	Render(frame *av.Frame, maxWidth int, overlay Overlay) (image.Image, error)

	// EncodeImage encodes an image to the specified format.
	EncodeImage(img image.Image, format ImageFormat, quality int) ([]byte, error)
}

// Overlay is the label drawn onto a snapshot.
type Overlay struct {
	Lines      []string
	FontSize   float64
	FontPath   string
	Color      color.Color
	Background color.Color
}

// ImageFormat specifies image encoding format.
type ImageFormat int

const (
	FormatJPEG ImageFormat = iota
	FormatPNG
)

// Ext returns the file extension for the format.
func (f ImageFormat) Ext() string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

// ParseImageFormat parses "png", "jpg" or "jpeg". Anything else is JPEG.
func ParseImageFormat(s string) ImageFormat {
	if strings.EqualFold(s, "png") {
		return FormatPNG
	}
	return FormatJPEG
}
