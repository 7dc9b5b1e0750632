// Package gpiodev allocates the general purpose pin controller. Its pins are
// listed under "description" rather than "requires"; the requirement map is
// derived from that list.
package gpiodev

import (
	"context"
	"fmt"
	"strings"

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

// Handler allocates GPIODevCustomizer devices.
type Handler struct {
	allocator.Base
}

// Info describes the device type.
func (h *Handler) Info() allocator.Info {
	return allocator.Info{Group: "GPIODevCustomizer", Tag: "INFO_DEV_TYPE_GPIO", Prefix: "GPIODEV", MaxInstances: 1}
}

// SanityChecks rejects explicit requires, which would bypass the pin list.
func (h *Handler) SanityChecks(_ context.Context, r *resolver.Resolver, dev *config.Device) error {
	if dev.Requires.Len() != 0 {
		return r.Errorf("requires of %s are derived from its description and must not be specified", dev.Name)
	}
	if _, err := r.ObjectField(dev.Fields, "description"); err != nil {
		return err
	}
	return nil
}

// Pin is one controlled pin.
type Pin struct {
	Name    string `json:"name"`
	Define  string `json:"define"`
	Index   int    `json:"index"`
	Type    string `json:"type"`
	Input   bool   `json:"input"`
	Default int64  `json:"default"`
	Port    string `json:"port"`
	Number  int    `json:"pin"`
}

// pinSettings describes one pin. Inputs carry no default level.
type pinSettings struct {
	GPIO    string `cty:"gpio"`
	Type    string `cty:"type"`
	Default *int64 `cty:"default"`
}

// Allocate claims every described pin.
func (h *Handler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, _ int) (*allocator.Allocation, error) {
	p := r.Profile()
	a := allocator.NewAllocation()
	desc, err := r.ObjectField(dev.Fields, "description")
	if err != nil {
		return nil, err
	}

	var pins []any
	for i, name := range desc.Keys() {
		cfg, err := r.ObjectField(desc, name)
		if err != nil {
			return nil, err
		}
		var pc pinSettings
		if err := r.Decode(cfg, name, &pc); err != nil {
			return nil, err
		}
		pin, err := allocator.ResolvePin(r, pc.GPIO)
		if err != nil {
			return nil, err
		}
		pinType := pc.Type
		input, err := p.IsGPIOInput(pinType)
		if err != nil {
			return nil, r.Errorf("Device %s uses invalid pin type description (%s) for %s", dev.Name, pinType, p.MCU)
		}
		var def int64
		if !input {
			if pc.Default == nil {
				return nil, r.Errorf("has no 'default' value defined for '%s'. Must be defined", name)
			}
			def = *pc.Default
			if err := r.OneOf(name, "default", def, 0, 1); err != nil {
				return nil, err
			}
		}

		define := fmt.Sprintf("GPIODEV_%s_PIN", strings.ToUpper(name))
		a.Claim(define, catalog.TypeGPIO, pc.GPIO)
		pins = append(pins, Pin{
			Name:    name,
			Define:  define,
			Index:   i,
			Type:    pinType,
			Input:   input,
			Default: def,
			Port:    pin.Port,
			Number:  pin.Number,
		})
	}

	a.Descriptor.
		Add("dev_id", dev.DevID).
		Add("name", dev.Name).
		Add("pins", pins)
	a.Vocabulary.Set("__GPIO_PIN_COUNT__", int64(len(pins)))
	return a, nil
}
