package registry

import (
	"fmt"
	"log/slog"

	"github.com/specialistvlad/mcugraph/internal/allocator"
	"github.com/specialistvlad/mcugraph/internal/errcode"
)

// Register adds a handler under the group name it reports.
func (r *Registry) Register(h allocator.Handler) {
	name := h.Info().Group
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("device handler with name '%s' already registered", name))
	}
	slog.Debug("Registering device handler.", "group", name)
	r.handlers[name] = h
	r.order = append(r.order, name)
}

// Lookup returns the handler serving a configuration group.
func (r *Registry) Lookup(group string) (allocator.Handler, error) {
	h, ok := r.handlers[group]
	if !ok {
		return nil, errcode.New(errcode.UnsupportedDevice, group, "unsupported device type %s", group)
	}
	return h, nil
}
