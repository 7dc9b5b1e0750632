// Package spiproxy allocates SPI master bridges. A device transfers through
// DMA or the SPI interrupt and may be transmit only, in which case the MISO
// pin and the receive DMA channel stay free.
package spiproxy

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

// Handler allocates SPIProxyCustomizer devices.
type Handler struct {
	allocator.Base
}

// Info describes the device type.
func (h *Handler) Info() allocator.Info {
	return allocator.Info{Group: "SPIProxyCustomizer", Tag: "INFO_DEV_TYPE_SPIPROXY", Prefix: "SPIPROXY"}
}

// SanityChecks rejects requirements other than the SPI controller.
func (h *Handler) SanityChecks(_ context.Context, r *resolver.Resolver, dev *config.Device) error {
	for _, role := range dev.Requires.Roles() {
		if role != roleSPI {
			return r.Errorf("unexpected requirement %s, only %s is allowed", role, roleSPI)
		}
	}
	return nil
}

const roleSPI = "SPI"

var (
	clockPhases     = map[string]string{"first": "SPI_CPHA_1Edge", "second": "SPI_CPHA_2Edge"}
	clockPolarities = map[string]string{"idle_low": "SPI_CPOL_Low", "idle_high": "SPI_CPOL_High"}
	frameFormats    = map[string]string{"msb": "SPI_FirstBit_MSB", "lsb": "SPI_FirstBit_LSB"}
	frameSizes      = map[int64]string{8: "SPI_DataSize_8b", 16: "SPI_DataSize_16b"}
)

// Allocate resolves the controller and prunes the branches of its
// requirement graph the transfer mode does not use.
func (h *Handler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, index int) (*allocator.Allocation, error) {
	p := r.Profile()
	a := allocator.NewAllocation()

	var cfg spiConfig
	if err := r.Decode(dev.Fields, dev.Name, &cfg); err != nil {
		return nil, err
	}
	useDMA, bidirectional := cfg.UseDMA, cfg.Bidirectional
	var bufferSize int64
	if cfg.BufferSize != nil {
		bufferSize = *cfg.BufferSize
	}
	if bufferSize <= 0 {
		return nil, r.Errorf("Device %s output buffer must be greater than zero: out_buffer_size=%d", dev.Name, bufferSize)
	}

	cfgSPI, err := allocator.Named(r, dev.Requires, roleSPI, catalog.TypeSPI)
	if err != nil {
		return nil, err
	}
	spi, remap := p.IsRemapped(cfgSPI)
	if _, err := r.CheckResource(spi, catalog.TypeSPI); err != nil {
		return nil, err
	}
	a.Claims.Set(roleSPI, catalog.Leaf{Name: spi})

	var exclude []string
	spiIRQ, err := r.GetRequiredResource(cfgSPI, "SPI_IRQ", catalog.TypeIRQHandler)
	if err != nil {
		return nil, err
	}

	misoPort, misoPin := "0", 0
	rxChannel, rxIRQn, rxIT := "0", "0", "0"
	if bidirectional {
		miso, err := r.GetRequiredResource(cfgSPI, "SPI_MISO", catalog.TypeGPIO)
		if err != nil {
			return nil, err
		}
		pin, err := allocator.ResolvePin(r, miso)
		if err != nil {
			return nil, err
		}
		misoPort, misoPin = pin.Port, pin.Number
		if rxChannel, err = p.DMAChannel(spi + "_RX"); err != nil {
			return nil, r.Attribute(err)
		}
		rxIRQ, err := p.ResourceHandler(rxChannel, "dma_handler")
		if err != nil {
			return nil, r.Attribute(err)
		}
		rxIRQn = p.IRQn(rxIRQ)
		if useDMA {
			a.AddISR(rxIRQ, "SPI_COMMON_RX_DMA_IRQ_HANDLER", index)
			a.Claim("RX_DMA_IRQ", catalog.TypeIRQHandler, rxIRQ)
			if rxIT, err = p.DMAITFlag(rxChannel, "TC"); err != nil {
				return nil, r.Attribute(err)
			}
		}
	} else {
		exclude = append(exclude, "SPI_MISO", "SPI_RX_DMA")
	}

	txChannel, err := p.DMAChannel(spi + "_TX")
	if err != nil {
		return nil, r.Attribute(err)
	}
	txIRQ, err := p.ResourceHandler(txChannel, "dma_handler")
	if err != nil {
		return nil, r.Attribute(err)
	}
	txIT := "0"
	if useDMA {
		a.AddISR(txIRQ, "SPI_COMMON_TX_DMA_IRQ_HANDLER", index)
		a.Claim("TX_DMA_IRQ", catalog.TypeIRQHandler, txIRQ)
		exclude = append(exclude, "SPI_IRQ")
		if txIT, err = p.DMAITFlag(txChannel, "TC"); err != nil {
			return nil, r.Attribute(err)
		}
	} else {
		a.AddISR(spiIRQ, "SPI_COMMON_IRQ_HANDLER", index)
		exclude = append(exclude, "SPI_RX_DMA", "SPI_TX_DMA")
	}

	pins := make(map[string]allocator.Pin)
	for _, role := range []string{"SPI_MOSI", "SPI_SCK", "SPI_NSS"} {
		name, err := r.GetRequiredResource(cfgSPI, role, catalog.TypeGPIO)
		if err != nil {
			return nil, err
		}
		if pins[role], err = allocator.ResolvePin(r, name); err != nil {
			return nil, err
		}
	}

	expanded, err := r.ExpandTransitiveRequirements(cfgSPI, "_dev_"+dev.Name, exclude...)
	if err != nil {
		return nil, err
	}
	for _, e := range expanded.Entries() {
		a.Claims.Set(e.Role, e.Req)
	}

	s, err := settings(r, dev, &cfg, cfgSPI)
	if err != nil {
		return nil, err
	}

	inBuffer := fmt.Sprintf("g_%s_in_buffer", dev.Name)
	outBuffer := fmt.Sprintf("g_%s_out_buffer", dev.Name)
	a.Descriptor.
		Add("dev_id", dev.DevID).
		Add("name", dev.Name).
		Add("spi", spi).
		Add("remap", remap).
		Add("in_buffer", inBuffer).
		Add("out_buffer", outBuffer).
		Add("buffer_size", bufferSize).
		Add("tx_dma_channel", txChannel).
		Add("rx_dma_channel", rxChannel).
		Add("tx_dma_it", txIT).
		Add("rx_dma_it", rxIT).
		Add("tx_dma_irqn", p.IRQn(txIRQ)).
		Add("rx_dma_irqn", rxIRQn).
		Add("spi_irqn", p.IRQn(spiIRQ)).
		Add("miso_port", misoPort).
		Add("miso_pin", misoPin).
		Add("mosi_port", pins["SPI_MOSI"].Port).
		Add("mosi_pin", pins["SPI_MOSI"].Number).
		Add("sck_port", pins["SPI_SCK"].Port).
		Add("sck_pin", pins["SPI_SCK"].Number).
		Add("nss_port", pins["SPI_NSS"].Port).
		Add("nss_pin", pins["SPI_NSS"].Number).
		Add("baud_rate_control", s.prescaler).
		Add("frequency", s.frequency).
		Add("clock_phase", s.phase).
		Add("clock_polarity", s.polarity).
		Add("frame_format", s.format).
		Add("frame_size", s.size).
		Add("bidirectional", bidirectional).
		Add("use_dma", useDMA)

	a.Vocabulary.Set(inBuffer, bufferSize)
	a.Vocabulary.Set(outBuffer, bufferSize)
	return a, nil
}

// spiConfig holds the user settings of one SPI proxy device.
type spiConfig struct {
	UseDMA        bool   `cty:"use_dma"`
	Bidirectional bool   `cty:"bidirectional"`
	BufferSize    *int64 `cty:"buffer_size"`
	ClockSpeed    int64  `cty:"clock_speed"`
	ClockPhase    string `cty:"clock_phase"`
	ClockPolarity string `cty:"clock_polarity"`
	FrameFormat   string `cty:"frame_format"`
	FrameSize     int64  `cty:"frame_size"`
}

type spiSettings struct {
	prescaler string
	frequency int64
	phase     string
	polarity  string
	format    string
	size      string
}

func settings(r *resolver.Resolver, dev *config.Device, cfg *spiConfig, spi string) (*spiSettings, error) {
	s := &spiSettings{}
	var err error
	if s.prescaler, s.frequency, err = baudRate(r, spi, cfg.ClockSpeed); err != nil {
		return nil, err
	}
	pick := func(key, v string, values map[string]string) (string, error) {
		out, ok := values[v]
		if !ok {
			return "", r.Errorf("Invalid %s value %q for device %s", key, v, dev.Name)
		}
		return out, nil
	}
	if s.phase, err = pick("clock_phase", cfg.ClockPhase, clockPhases); err != nil {
		return nil, err
	}
	if s.polarity, err = pick("clock_polarity", cfg.ClockPolarity, clockPolarities); err != nil {
		return nil, err
	}
	if s.format, err = pick("frame_format", cfg.FrameFormat, frameFormats); err != nil {
		return nil, err
	}
	if err := r.OneOf(dev.Name, "frame_size", cfg.FrameSize, 8, 16); err != nil {
		return nil, err
	}
	s.size = frameSizes[cfg.FrameSize]
	return s, nil
}

// baudRate picks the smallest prescaler whose SPI clock does not exceed
// the requested speed.
func baudRate(r *resolver.Resolver, spi string, speed int64) (string, int64, error) {
	p := r.Profile()
	res, err := r.CheckResource(spi, catalog.TypeSPI)
	if err != nil {
		return "", 0, err
	}
	if len(res.Bus) == 0 {
		return "", 0, r.Errorf("%s has no clock bus", spi)
	}
	bus, ok := p.BusOf(res.Bus[0])
	if !ok {
		return "", 0, r.Errorf("%s resource describes incorrect bus value %s", spi, res.Bus[0])
	}
	clock := p.SystemClock / int64(bus.Divider)
	for div := int64(2); div <= 256; div *= 2 {
		if f := clock / div; f <= speed {
			return fmt.Sprintf("SPI_BaudRatePrescaler_%d", div), f, nil
		}
	}
	return "", 0, r.Errorf("clock_speed %d is too low for %s, the minimum is %d", speed, spi, clock/256)
}
