package mocks

import (
	"image"
	"sync"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// Renderer is a mock implementation of ports.FrameRenderer.
type Renderer struct {
	mu sync.Mutex

	RenderFunc      func(frame *av.Frame, maxWidth int, overlay ports.Overlay) (image.Image, error)
	EncodeImageFunc func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error)

	Overlays []ports.Overlay
	Encoded  []ports.ImageFormat
}

func (m *Renderer) Render(frame *av.Frame, maxWidth int, overlay ports.Overlay) (image.Image, error) {
	m.mu.Lock()
	m.Overlays = append(m.Overlays, overlay)
	m.mu.Unlock()
	if m.RenderFunc != nil {
		return m.RenderFunc(frame, maxWidth, overlay)
	}
	return image.NewRGBA(image.Rect(0, 0, frame.Video.Width, frame.Video.Height)), nil
}

func (m *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	m.mu.Lock()
	m.Encoded = append(m.Encoded, format)
	m.mu.Unlock()
	if m.EncodeImageFunc != nil {
		return m.EncodeImageFunc(img, format, quality)
	}
	return []byte(format.Ext()), nil
}

var _ ports.FrameRenderer = (*Renderer)(nil)
