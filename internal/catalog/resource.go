package catalog

import "slices"

// Resource type tags. The set is closed: profiles declaring any other type
// are rejected at load time.
const (
	TypeGPIO       = "gpio"
	TypeTimer      = "timer"
	TypeIRQHandler = "irq_handler"
	TypeEXTILine   = "exti_line"
	TypeBKP        = "bkp"
	TypeUSART      = "usart"
	TypeI2C        = "i2c"
	TypeDMA        = "dma"
	TypeDMAChannel = "dma_channel"
	TypeADC        = "adc"
	TypeADCInput   = "adc_input"
	TypeSPI        = "spi"
	TypeCAN        = "can"
	TypeUSB        = "usb"
	TypeRTC        = "rtc"
)

// Types lists every known resource type tag.
var Types = []string{
	TypeGPIO, TypeTimer, TypeIRQHandler, TypeEXTILine, TypeBKP, TypeUSART,
	TypeI2C, TypeDMA, TypeDMAChannel, TypeADC, TypeADCInput, TypeSPI,
	TypeCAN, TypeUSB, TypeRTC,
}

// IsKnownType reports whether t is one of Types.
func IsKnownType(t string) bool {
	return slices.Contains(Types, t)
}

// Resource is one named hardware capability of an MCU.
type Resource struct {
	Name     string
	Type     string
	Subtype  string
	Requires Requires
	// Bus lists the clock-enable identifiers powering this resource.
	Bus      []string
	Features []string
	// DMADRAddress is the peripheral data register address used as a DMA
	// source, empty when the resource cannot be read by DMA.
	DMADRAddress string
	// UseADC pins an adc_input to a specific ADC (internal channels).
	UseADC string
	// Handlers maps a handler role (timer_handler, adc_handler, dma_handler)
	// to the irq_handler resource serving it.
	Handlers map[string]string
	// HandlerOrder keeps the declaration order of Handlers.
	HandlerOrder []string
}

// HasFeature reports whether the resource declares the capability tag.
func (r *Resource) HasFeature(feature string) bool {
	return slices.Contains(r.Features, feature)
}

// Handler returns the irq_handler bound to role.
func (r *Resource) Handler(role string) (string, bool) {
	h, ok := r.Handlers[role]
	return h, ok
}
