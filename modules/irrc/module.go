// Package irrc allocates the infrared remote control receiver. The receiver
// decodes pulses on one input pin whose edges arrive through the shared
// EXTI hub.
package irrc

import (
	"context"
	"fmt"

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

// Handler allocates IRRCCustomizer devices.
type Handler struct {
	allocator.Base
}

// Info describes the device type. Only one receiver fits on an MCU.
func (h *Handler) Info() allocator.Info {
	return allocator.Info{Group: "IRRCCustomizer", Tag: "INFO_DEV_TYPE_IRRC", Prefix: "IRRC", MaxInstances: 1}
}

// SanityChecks has nothing to verify before resolution.
func (h *Handler) SanityChecks(context.Context, *resolver.Resolver, *config.Device) error {
	return nil
}

// Allocate routes the data pin to its EXTI line.
func (h *Handler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, _ int) (*allocator.Allocation, error) {
	a := allocator.NewAllocation()

	var s struct {
		BufferSize int64 `cty:"buffer_size"`
	}
	if err := r.Decode(dev.Fields, dev.Name, &s); err != nil {
		return nil, err
	}
	bufferSize := s.BufferSize
	if bufferSize <= 0 {
		return nil, r.Errorf("buffer_size must be greater than zero, %d is given", bufferSize)
	}

	name, err := r.Role(dev.Requires, "data", catalog.TypeGPIO)
	if err != nil {
		return nil, err
	}
	pin, err := allocator.ResolveEXTIPin(r, name)
	if err != nil {
		return nil, err
	}
	a.Claim("exti_line_irrc", catalog.TypeEXTILine, pin.Line)

	bufferName := fmt.Sprintf("g_%s_buffer", dev.Name)
	a.Descriptor.
		Add("dev_id", dev.DevID).
		Add("name", dev.Name).
		Add("buffer_size", bufferSize).
		Add("buffer_name", bufferName).
		Add("data_port", pin.Port).
		Add("data_pin", pin.Mask).
		Add("data_exti_line", pin.Line).
		Add("data_exti_cr", pin.EXTICR)

	a.Vocabulary.Set(bufferName, bufferSize)
	return a, nil
}
