// Package spwm allocates the software PWM generator: one timer toggles any
// number of output pins, updated a whole port at a time.
package spwm

import (
	"context"
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

// Handler allocates SPWMCustomizer devices.
type Handler struct {
	allocator.Base
}

// Info describes the device type.
func (h *Handler) Info() allocator.Info {
	return allocator.Info{Group: "SPWMCustomizer", Tag: "INFO_DEV_TYPE_SPWM", Prefix: "SPWM", MaxInstances: 1}
}

// SanityChecks requires the pin list.
func (h *Handler) SanityChecks(_ context.Context, r *resolver.Resolver, dev *config.Device) error {
	desc, err := r.ObjectField(dev.Fields, "description")
	if err != nil {
		return err
	}
	if desc.Len() == 0 {
		return r.Errorf("device %s must describe at least one pin", dev.Name)
	}
	return nil
}

// Port is the set of channels sharing one GPIO port.
type Port struct {
	Port          string `json:"port"`
	Bitmask       uint16 `json:"bitmask"`
	NBits         int    `json:"n_bits"`
	OpenDrainBits uint16 `json:"open_drain_bits"`
	DefVals       uint16 `json:"def_vals"`
}

// Channel is one PWM output.
type Channel struct {
	Name      string `json:"name"`
	Define    string `json:"define"`
	Index     int    `json:"index"`
	PortIndex int    `json:"port_index"`
	Pin       int    `json:"pin"`
	Default   bool   `json:"default"`
}

type pinSettings struct {
	GPIO    string `cty:"gpio"`
	Type    string `cty:"type"`
	Default int64  `cty:"default"`
}

// Allocate claims the timer vector and every output pin, then numbers the
// channels port by port in pin order.
func (h *Handler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, index int) (*allocator.Allocation, error) {
	p := r.Profile()
	a := allocator.NewAllocation()

	timer, err := allocator.Named(r, dev.Requires, catalog.TypeTimer, catalog.TypeTimer)
	if err != nil {
		return nil, err
	}
	irq, err := allocator.TimerHandler(r, timer)
	if err != nil {
		return nil, err
	}
	a.Claim("irq_handler", catalog.TypeIRQHandler, irq)
	a.AddISR(irq, "SPWM_COMMON_TIMER_IRQ_HANDLER", index)

	var timing struct {
		Prescaler int64 `cty:"prescaler"`
	}
	if err := r.Decode(dev.Fields, dev.Name, &timing); err != nil {
		return nil, err
	}
	prescaler := timing.Prescaler

	desc, err := r.ObjectField(dev.Fields, "description")
	if err != nil {
		return nil, err
	}
	var ports []*Port
	byPort := make(map[string]*Port)
	type slot struct {
		port string
		pin  int
	}
	names := make(map[slot]string)
	for _, name := range desc.Keys() {
		cfg, err := r.ObjectField(desc, name)
		if err != nil {
			return nil, err
		}
		var pinCfg pinSettings
		if err := r.Decode(cfg, name, &pinCfg); err != nil {
			return nil, err
		}
		pinType := pinCfg.Type
		input, err := p.IsGPIOInput(pinType)
		if err != nil {
			return nil, r.Errorf("Device %s uses invalid pin type description (%s) for %s", dev.Name, pinType, p.MCU)
		}
		if input {
			return nil, r.Errorf("Pin %s should be output ( %s was specified ) for SPWMCustomizer device", name, pinType)
		}
		openDrain, _ := p.IsGPIOOpenDrain(pinType)
		pin, err := allocator.ResolvePin(r, pinCfg.GPIO)
		if err != nil {
			return nil, err
		}
		def := pinCfg.Default

		port, ok := byPort[pin.Port]
		if !ok {
			port = &Port{Port: pin.Port}
			byPort[pin.Port] = port
			ports = append(ports, port)
		}
		mask := uint16(1) << pin.Number
		port.Bitmask |= mask
		port.NBits++
		if openDrain {
			port.OpenDrainBits |= mask
		}
		if def != 0 {
			port.DefVals |= mask
		}
		names[slot{pin.Port, pin.Number}] = name
		a.Claim(name, catalog.TypeGPIO, pinCfg.GPIO)
	}

	var channels []Channel
	for pi, port := range ports {
		for b := 0; b < 16; b++ {
			if port.Bitmask&(1<<b) == 0 {
				continue
			}
			name := names[slot{port.Port, b}]
			channels = append(channels, Channel{
				Name:      name,
				Define:    "SPWM_" + strings.ToUpper(name),
				Index:     len(channels),
				PortIndex: pi,
				Pin:       b,
				Default:   port.DefVals&(1<<b) != 0,
			})
		}
	}

	a.Descriptor.
		Add("dev_id", dev.DevID).
		Add("name", dev.Name).
		Add("timer", timer).
		Add("irq_handler", irq).
		Add("irqn", p.IRQn(irq)).
		Add("prescaler", prescaler).
		Add("port_count", int64(len(ports))).
		Add("ports", ports).
		Add("channel_count", int64(len(channels))).
		Add("max_pwm_entries", int64(len(channels)+1)).
		Add("channels", channels)
	return a, nil
}
