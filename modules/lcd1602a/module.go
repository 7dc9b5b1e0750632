// Package lcd1602a allocates a 16x2 character display driven over a 4-bit
// parallel bus.
package lcd1602a

import (
	"context"
	"unicode/utf8"

	"github.com/specialistvlad/mcugraph/internal/allocator"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/registry"
	"github.com/specialistvlad/mcugraph/internal/resolver"
)

// LineWidth is the number of characters on one display line.
const LineWidth = 16

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&Handler{})
}

// Handler allocates LCD1602aCustomizer devices.
type Handler struct {
	allocator.Base
}

// Info describes the device type.
func (h *Handler) Info() allocator.Info {
	return allocator.Info{Group: "LCD1602aCustomizer", Tag: "INFO_DEV_TYPE_LCD1602a", Prefix: "LCD1602a", MaxInstances: 1}
}

var pinRoles = []string{"enable", "reg_sel", "data4", "data5", "data6", "data7", "light"}

// SanityChecks validates the welcome message.
func (h *Handler) SanityChecks(_ context.Context, r *resolver.Resolver, dev *config.Device) error {
	_, err := welcome(r, dev)
	return err
}

// Allocate resolves the seven control pins.
func (h *Handler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, _ int) (*allocator.Allocation, error) {
	a := allocator.NewAllocation()
	a.Descriptor.Add("dev_id", dev.DevID).Add("name", dev.Name)
	for _, role := range pinRoles {
		pin, err := allocator.GPIORole(r, dev.Requires, role)
		if err != nil {
			return nil, err
		}
		a.Descriptor.Add(role, pin)
	}
	lines, err := welcome(r, dev)
	if err != nil {
		return nil, err
	}
	a.Descriptor.Add("welcome", lines)
	return a, nil
}

// welcome returns the two lines shown at power up. Missing lines are
// blank and lines past the second are ignored.
func welcome(r *resolver.Resolver, dev *config.Device) ([]string, error) {
	lines := []string{"", ""}
	var cfg struct {
		Wellcome []string `cty:"wellcome"`
	}
	if err := r.Decode(dev.Fields, dev.Name, &cfg); err != nil {
		return nil, err
	}
	for i := 0; i < len(cfg.Wellcome) && i < len(lines); i++ {
		s := cfg.Wellcome[i]
		if n := utf8.RuneCountInString(s); n > LineWidth {
			return nil, r.Errorf("Wellcome line %d '%s' is longer than %d characters (%d characters)", i, s, LineWidth, n)
		}
		lines[i] = s
	}
	return lines, nil
}
