package decode

import "github.com/user/mediaplay/pkg/av"

// Converter post-processes a decoded frame before it is returned.
// Implementations may return src itself or a frame they own.
type Converter interface {
	Convert(src *av.Frame) (*av.Frame, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(src *av.Frame) (*av.Frame, error)

func (f ConverterFunc) Convert(src *av.Frame) (*av.Frame, error) { return f(src) }

// IdentityConverter returns frames unchanged.
type IdentityConverter struct{}

func (IdentityConverter) Convert(src *av.Frame) (*av.Frame, error) { return src, nil }
