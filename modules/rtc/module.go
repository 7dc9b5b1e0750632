// Package rtc allocates the real time clock together with the backup
// register it keeps its state in.
package rtc

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

// Handler allocates RTCCustomizer devices.
type Handler struct {
	allocator.Base
}

// Info describes the device type.
func (h *Handler) Info() allocator.Info {
	return allocator.Info{Group: "RTCCustomizer", Tag: "INFO_DEV_TYPE_RTC", Prefix: "RTC", MaxInstances: 1}
}

// SanityChecks has nothing to verify before resolution.
func (h *Handler) SanityChecks(context.Context, *resolver.Resolver, *config.Device) error {
	return nil
}

// Allocate validates the clock and backup register.
func (h *Handler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, _ int) (*allocator.Allocation, error) {
	rtc, err := allocator.Named(r, dev.Requires, catalog.TypeRTC, catalog.TypeRTC)
	if err != nil {
		return nil, err
	}
	bkp, err := allocator.Named(r, dev.Requires, catalog.TypeBKP, catalog.TypeBKP)
	if err != nil {
		return nil, err
	}
	a := allocator.NewAllocation()
	a.Descriptor.
		Add("dev_id", dev.DevID).
		Add("name", dev.Name).
		Add("rtc", rtc).
		Add("backup_reg", bkp)
	return a, nil
}
