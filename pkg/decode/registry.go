package decode

import (
	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// Registry resolves codec IDs to codec factories. Factories are consulted
// in registration order; the first that supports a codec wins.
type Registry struct {
	factories []ports.CodecFactory
}

// NewRegistry creates a registry with the given factories.
func NewRegistry(factories ...ports.CodecFactory) *Registry {
	return &Registry{factories: factories}
}

// Register appends a factory.
func (r *Registry) Register(f ports.CodecFactory) {
	r.factories = append(r.factories, f)
}

// Lookup returns the first factory supporting id.
func (r *Registry) Lookup(id av.CodecID) (ports.CodecFactory, bool) {
	if id == av.CodecUnknown {
		return nil, false
	}
	for _, f := range r.factories {
		if f.Supports(id) {
			return f, true
		}
	}
	return nil, false
}

// Factories returns the registered factories in lookup order.
func (r *Registry) Factories() []ports.CodecFactory {
	out := make([]ports.CodecFactory, len(r.factories))
	copy(out, r.factories)
	return out
}
