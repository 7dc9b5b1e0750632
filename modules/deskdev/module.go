// Package deskdev allocates the front panel: four direction buttons and a
// quadrature encoder, all sampled through EXTI lines.
package deskdev

import (
	"context"

	"github.com/specialistvlad/mcugraph/internal/allocator"
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/registry"
	"github.com/specialistvlad/mcugraph/internal/resolver"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&Handler{})
}

// Handler allocates DeskDevCustomizer devices.
type Handler struct {
	allocator.Base
}

// Info describes the device type.
func (h *Handler) Info() allocator.Info {
	return allocator.Info{Group: "DeskDevCustomizer", Tag: "INFO_DEV_TYPE_DESKDEV", Prefix: "DESKDEV", MaxInstances: 1}
}

var buttons = []string{"up", "down", "left", "right"}

// SanityChecks requires every button and both encoder phases.
func (h *Handler) SanityChecks(_ context.Context, r *resolver.Resolver, dev *config.Device) error {
	for _, b := range buttons {
		if !dev.Requires.Has(b) {
			return r.Errorf("button %s is not specified for device %s", b, dev.Name)
		}
	}
	enc, ok := dev.Requires.Get("encoder")
	if !ok {
		return r.Errorf("encoder is not specified for device %s", dev.Name)
	}
	n, ok := enc.(catalog.Nested)
	if !ok || !n.Requires.Has("A") || !n.Requires.Has("B") {
		return r.Errorf("encoder of device %s must define both A and B pins", dev.Name)
	}
	return nil
}

// Allocate claims one EXTI line per button and encoder phase.
func (h *Handler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, _ int) (*allocator.Allocation, error) {
	a := allocator.NewAllocation()
	a.Descriptor.Add("dev_id", dev.DevID).Add("name", dev.Name)

	add := func(req catalog.Requires, role, key, claim string) error {
		name, err := r.Role(req, role, catalog.TypeGPIO)
		if err != nil {
			return err
		}
		pin, err := allocator.ResolveEXTIPin(r, name)
		if err != nil {
			return err
		}
		a.Claim(claim, catalog.TypeEXTILine, pin.Line)
		a.Descriptor.Add(key, pin)
		return nil
	}

	for _, b := range buttons {
		if err := add(dev.Requires, b, "btn_"+b, "exti_line_btn_"+b); err != nil {
			return nil, err
		}
	}
	enc, _ := dev.Requires.Get("encoder")
	encReq := enc.(catalog.Nested).Requires
	if err := add(encReq, "A", "enc_a", "exti_line_enc_a"); err != nil {
		return nil, err
	}
	if err := add(encReq, "B", "enc_b", "exti_line_enc_b"); err != nil {
		return nil, err
	}
	return a, nil
}
