// Package uartproxy allocates buffered UART bridges. A device owns one USART
// together with its pins and interrupt vector.
package uartproxy

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

// Handler allocates UartProxyCustomizer devices.
type Handler struct {
	allocator.Base
}

// Info describes the device type.
func (h *Handler) Info() allocator.Info {
	return allocator.Info{Group: "UartProxyCustomizer", Tag: "INFO_DEV_TYPE_UART_PROXY", Prefix: "UART_PROXY"}
}

// SanityChecks rejects requirements other than the usart.
func (h *Handler) SanityChecks(_ context.Context, r *resolver.Resolver, dev *config.Device) error {
	for _, role := range dev.Requires.Roles() {
		if role != catalog.TypeUSART {
			return r.Errorf("unexpected requirement %s, only usart is allowed", role)
		}
	}
	return nil
}

// Allocate claims the USART vector and pins.
func (h *Handler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, index int) (*allocator.Allocation, error) {
	a := allocator.NewAllocation()

	var s struct {
		BaudRate   int64 `cty:"baud_rate"`
		BufferSize int64 `cty:"buffer_size"`
	}
	if err := r.Decode(dev.Fields, dev.Name, &s); err != nil {
		return nil, err
	}
	baud, bufferSize := s.BaudRate, s.BufferSize
	if baud <= 0 || bufferSize <= 0 {
		return nil, r.Errorf("baud_rate and buffer_size must be positive")
	}

	usart, err := allocator.Named(r, dev.Requires, catalog.TypeUSART, catalog.TypeUSART)
	if err != nil {
		return nil, err
	}
	irq, err := r.GetRequiredResource(usart, "irq_handler", catalog.TypeIRQHandler)
	if err != nil {
		return nil, err
	}
	rxName, err := r.GetRequiredResource(usart, "RX", catalog.TypeGPIO)
	if err != nil {
		return nil, err
	}
	txName, err := r.GetRequiredResource(usart, "TX", catalog.TypeGPIO)
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

	a.Claim("irq_handler", catalog.TypeIRQHandler, irq)
	a.Claim("rx", catalog.TypeGPIO, rx.Name)
	a.Claim("tx", catalog.TypeGPIO, tx.Name)
	a.AddISR(irq, "UART_PROXY_COMMON_IRQ_HANDLER", index)

	bufSizeDef := strings.ToUpper(dev.Name) + "_BUFFER_LEN"
	bufferName := fmt.Sprintf("g_%s_buffer", dev.Name)
	a.Descriptor.
		Add("dev_id", dev.DevID).
		Add("name", dev.Name).
		Add("usart", usart).
		Add("baud_rate", baud).
		Add("buffer_size", bufferSize).
		Add("buf_size_def", bufSizeDef).
		Add("buffer_name", bufferName).
		Add("irqn", r.Profile().IRQn(irq)).
		Add("rx_port", rx.Port).
		Add("rx_pin", rx.Mask).
		Add("tx_port", tx.Port).
		Add("tx_pin", tx.Mask)

	a.Vocabulary.Set(bufSizeDef, bufferSize)
	a.Vocabulary.Set(bufferName, bufSizeDef)
	return a, nil
}
