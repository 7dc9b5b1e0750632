// Package can allocates bxCAN controllers. The controller may be given by
// its default or remapped name; either way the pins and the four interrupt
// vectors of the controller are claimed by the device.
package can

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

// Handler allocates CanCustomizer devices.
type Handler struct {
	allocator.Base
}

// Info describes the device type.
func (h *Handler) Info() allocator.Info {
	return allocator.Info{Group: "CanCustomizer", Tag: "INFO_DEV_TYPE_CAN", Prefix: "CAN"}
}

// SanityChecks has nothing to verify before resolution.
func (h *Handler) SanityChecks(context.Context, *resolver.Resolver, *config.Device) error {
	return nil
}

var vectors = []struct{ role, handler, claim, common string }{
	{"tx", "irq_tx_handler", "TX_IRQ", "CAN_COMMON_TX_IRQ_HANDLER"},
	{"rx0", "irq_rx0_handler", "RX0_IRQ", "CAN_COMMON_RX0_IRQ_HANDLER"},
	{"rx1", "irq_rx1_handler", "RX1_IRQ", "CAN_COMMON_RX1_IRQ_HANDLER"},
	{"sce", "irq_sce_handler", "SCE_IRQ", "CAN_COMMON_SCE_IRQ_HANDLER"},
}

// Allocate resolves the controller and its transitive requirements.
func (h *Handler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, index int) (*allocator.Allocation, error) {
	p := r.Profile()
	a := allocator.NewAllocation()

	var s struct {
		BufferedMsgCount int64 `cty:"buffered_msg_count"`
	}
	if err := r.Decode(dev.Fields, dev.Name, &s); err != nil {
		return nil, err
	}
	msgCount := s.BufferedMsgCount
	if msgCount <= 0 {
		return nil, r.Errorf("buffered_msg_count must be greater than zero, %d is given", msgCount)
	}

	can, err := allocator.Named(r, dev.Requires, catalog.TypeCAN, catalog.TypeCAN)
	if err != nil {
		return nil, err
	}
	canName, remap := p.IsRemapped(can)

	expanded, err := r.ExpandTransitiveRequirements(can, "_dev_"+dev.Name)
	if err != nil {
		return nil, err
	}
	for _, e := range expanded.Entries() {
		a.Claims.Set(e.Role, e.Req)
	}

	rxName, err := r.GetRequiredResource(can, "CANRX", catalog.TypeGPIO)
	if err != nil {
		return nil, err
	}
	txName, err := r.GetRequiredResource(can, "CANTX", catalog.TypeGPIO)
	if err != nil {
		return nil, err
	}
	rx, err := allocator.ResolvePin(r, rxName)
	if err != nil {
		return nil, err
	}
	tx, err := allocator.ResolvePin(r, txName)
	if err != nil {
		return nil, err
	}

	bufferSize := fmt.Sprintf("sizeof(CanRecvMessage)*%d", msgCount)
	bufferName := fmt.Sprintf("g_%s_buffer", dev.Name)
	a.Descriptor.
		Add("dev_id", dev.DevID).
		Add("name", dev.Name).
		Add("buffer_size", bufferSize).
		Add("buffered_msg_count", msgCount).
		Add("buffer_name", bufferName).
		Add("can", canName).
		Add("remap", remap).
		Add("canrx_port", rx.Port).
		Add("canrx_pin", int64(rx.Number)).
		Add("cantx_port", tx.Port).
		Add("cantx_pin", int64(tx.Number))

	for _, v := range vectors {
		irq, err := p.ResourceHandler(can, v.handler)
		if err != nil {
			return nil, r.Attribute(err)
		}
		if _, err := r.CheckResource(irq, catalog.TypeIRQHandler); err != nil {
			return nil, err
		}
		a.Claim(v.claim, catalog.TypeIRQHandler, irq)
		a.AddISR(irq, v.common, index)
		a.Descriptor.Add(v.role+"_irqn", p.IRQn(irq))
	}

	a.Vocabulary.Set(bufferName, bufferSize)
	return a, nil
}
