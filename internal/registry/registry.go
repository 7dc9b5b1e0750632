package registry

import (
	"slices"

	"github.com/specialistvlad/mcugraph/internal/allocator"
)

// Module is the interface that all device type modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the device handlers of a single application instance.
type Registry struct {
	handlers map[string]allocator.Handler
	order    []string
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{handlers: make(map[string]allocator.Handler)}
}

// Groups returns the registered group names in registration order.
func (r *Registry) Groups() []string {
	return slices.Clone(r.order)
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	return len(r.order)
}
