// Package adcdev allocates timer driven analog sampling devices. Each device
// owns one ADC, one timer and any number of analog inputs; samples are moved
// by DMA when the ADC supports it and by the end-of-conversion interrupt
// otherwise.
package adcdev

import (
	"context"
	"fmt"

	"github.com/specialistvlad/mcugraph/internal/allocator"
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/registry"
	"github.com/specialistvlad/mcugraph/internal/resolver"
)

// FeatureDMA marks ADCs whose conversions can be read by DMA.
const FeatureDMA = "dma_support"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&Handler{})
}

// Handler allocates ADCDevCustomizer devices.
type Handler struct {
	allocator.Base
}

// Info describes the device type.
func (h *Handler) Info() allocator.Info {
	return allocator.Info{Group: "ADCDevCustomizer", Tag: "INFO_DEV_TYPE_ADC", Prefix: "ADCDEV"}
}

// SanityChecks validates sample times and the ADC binding of every input.
func (h *Handler) SanityChecks(_ context.Context, r *resolver.Resolver, dev *config.Device) error {
	if !dev.Fields.Has("sample_time") {
		return r.Errorf("sample_time is not specified for device %s", dev.Name)
	}

	adcCount := 0
	var adc string
	inputRoles := make(map[string]struct{})
	var inputs []string
	for _, e := range dev.Requires.Entries() {
		rtype, name, err := r.Singleton(e.Req)
		if err != nil {
			return err
		}
		switch rtype {
		case catalog.TypeADCInput:
			inputRoles[e.Role] = struct{}{}
			inputs = append(inputs, name)
		case catalog.TypeADC:
			adcCount++
			adc = name
		}
	}
	if adcCount != 1 {
		return r.Errorf("Device %s must have one and only adc", dev.Name)
	}
	for _, in := range inputs {
		res, _ := r.Profile().Lookup(in)
		if res.UseADC != "" && res.UseADC != adc {
			return r.Errorf("Channel %s must be used with %s. Change ADC in device %s", in, res.UseADC, dev.Name)
		}
	}

	st, err := r.ObjectField(dev.Fields, "sample_time")
	if err != nil {
		return err
	}
	if st.Len() != 2 || !st.Has("default") || !st.Has("override") {
		return r.Errorf("sample_time definition for %s must have two items specified: 'default' and 'override'", dev.Name)
	}
	var times sampleTimes
	if err := r.Decode(st, "sample_time", &times); err != nil {
		return err
	}
	if !r.Profile().ValidSampleTime(times.Default) {
		return r.Errorf("Wrong sample time %s specified for device %s in default section", times.Default, dev.Name)
	}
	var order []string
	if o, ok := st.Get("override"); ok {
		if o, ok := o.(*config.Object); ok {
			order = o.Keys()
		}
	}
	for _, input := range order {
		if s := times.Override[input]; !r.Profile().ValidSampleTime(s) {
			return r.Errorf("Wrong sample time %s specified for device %s in override section for %s", s, dev.Name, input)
		}
		if _, ok := inputRoles[input]; !ok {
			return r.Errorf("Input %s listed in sample_times.override section is not listed among inputs for device %s", input, dev.Name)
		}
	}
	return nil
}

type sampleTimes struct {
	Default  string            `cty:"default"`
	Override map[string]string `cty:"override"`
}

// For returns the sample time of one input, falling back to the default.
func (t sampleTimes) For(input string) string {
	if s, ok := t.Override[input]; ok {
		return s
	}
	return t.Default
}

type settings struct {
	SampleTime sampleTimes `cty:"sample_time"`
	BufferSize int64       `cty:"buffer_size"`
	UseDMA     bool        `cty:"use_dma"`
}

// Input is one resolved analog input.
type Input struct {
	Role       string `json:"name"`
	Channel    string `json:"channel"`
	Port       string `json:"port"`
	PinMask    string `json:"pin_mask"`
	SampleTime string `json:"sample_time"`
}

// Allocate resolves the inputs, picks the transfer mode and sizes the sample
// buffer.
func (h *Handler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, index int) (*allocator.Allocation, error) {
	p := r.Profile()
	a := allocator.NewAllocation()

	var cfg settings
	if err := r.Decode(dev.Fields, dev.Name, &cfg); err != nil {
		return nil, err
	}
	bufferSize, useDMA := cfg.BufferSize, cfg.UseDMA
	if bufferSize <= 0 {
		return nil, r.Errorf("buffer_size must be greater than zero, %d is given", bufferSize)
	}
	vref, ok := dev.Field("vref")
	if !ok {
		return nil, r.Errorf("vref is not specified for device %s", dev.Name)
	}
	switch vref.(type) {
	case int64, float64:
	default:
		return nil, r.Errorf("vref must be a number, %v is given", vref)
	}

	var adc, timer string
	timerCount := 0
	var inputs []Input
	for _, e := range dev.Requires.Entries() {
		rtype, name, err := r.Singleton(e.Req)
		if err != nil {
			return nil, err
		}
		switch rtype {
		case catalog.TypeADCInput:
			in := Input{Role: e.Role, Channel: name, Port: "0", PinMask: "0"}
			in.SampleTime = cfg.SampleTime.For(e.Role)
			if !p.ValidSampleTime(in.SampleTime) {
				return nil, r.Errorf("Wrong sample time %s specified for input %s in device %s", in.SampleTime, e.Role, dev.Name)
			}
			gpio, ok, err := p.ADCChannelToGPIO(name)
			if err != nil {
				return nil, r.Attribute(err)
			}
			if ok {
				pin, err := allocator.ResolvePin(r, gpio)
				if err != nil {
					return nil, err
				}
				in.Port, in.PinMask = pin.Port, pin.Mask
				a.Claims.Set(e.Role, catalog.Nested{Requires: catalog.NewRequires(
					catalog.Entry{Role: catalog.TypeADCInput, Req: catalog.Leaf{Name: name}},
					catalog.Entry{Role: catalog.TypeGPIO, Req: catalog.Leaf{Name: gpio}},
				)})
			}
			inputs = append(inputs, in)
		case catalog.TypeADC:
			adc = name
		case catalog.TypeTimer:
			timerCount++
			if timer, err = r.Timer(e.Req, ""); err != nil {
				return nil, err
			}
		default:
			return nil, r.Errorf("Wrong device specified in %s requirements", dev.Name)
		}
	}
	if len(inputs) == 0 {
		return nil, r.Errorf("Device %s must have at least one adc_input", dev.Name)
	}
	if timerCount == 0 {
		return nil, r.Errorf("Device %s must have one timer assigned", dev.Name)
	}
	if timerCount > 1 {
		return nil, r.Errorf("Device %s must have only one timer assigned", dev.Name)
	}

	timerIRQ, err := allocator.TimerHandler(r, timer)
	if err != nil {
		return nil, err
	}
	a.AddISR(timerIRQ, "ADC_COMMON_TIMER_IRQ_HANDLER", index)
	a.Claim("TIMER_IRQ", catalog.TypeIRQHandler, timerIRQ)

	if useDMA {
		supported, err := r.CheckFeature(adc, FeatureDMA)
		if err != nil {
			return nil, err
		}
		if !supported {
			a.Warn("device %s is instructed to use DMA, but %s doesn't support DMA", dev.Name, adc)
			useDMA = false
		}
	}

	dmaChannel, dma, dmaIT, drAddress := "0", "0", "0", "0"
	var scanIRQ string
	if useDMA {
		if dmaChannel, err = p.DMAChannel(adc); err != nil {
			return nil, r.Attribute(err)
		}
		if dma, err = p.DMAFromChannel(dmaChannel); err != nil {
			return nil, r.Attribute(err)
		}
		if dmaIT, err = p.DMAITFlag(dmaChannel, "TC"); err != nil {
			return nil, r.Attribute(err)
		}
		if drAddress, err = p.DMADRAddress(adc); err != nil {
			return nil, r.Attribute(err)
		}
		if scanIRQ, err = p.ResourceHandler(dmaChannel, "dma_handler"); err != nil {
			return nil, r.Attribute(err)
		}
		a.AddISR(scanIRQ, "ADC_COMMON_DMA_IRQ_HANDLER", index)
		a.Claim("DMA_IRQ", catalog.TypeIRQHandler, scanIRQ)
		a.Claim("DMA_CHANNEL", catalog.TypeDMAChannel, dmaChannel)
	} else {
		if scanIRQ, err = p.ResourceHandler(adc, "adc_handler"); err != nil {
			return nil, r.Attribute(err)
		}
		a.AddISR(scanIRQ, "ADC_COMMON_ADC_IRQ_HANDLER", index)
		a.Claim("ADC_IRQ", catalog.TypeIRQHandler, scanIRQ)
		a.Warn("device %s will work in interrupt mode. DMA will not be used!", dev.Name)
	}
	if _, err := r.CheckResource(scanIRQ, catalog.TypeIRQHandler); err != nil {
		return nil, err
	}

	stride := int64(len(inputs) * 2)
	if rounded := roundUp(bufferSize, stride); rounded != bufferSize {
		a.Warn("device %s has buffer size (%d) not multiply to the number of inputs (%d) * sizeof(uint16_t), rounded up to %d",
			dev.Name, bufferSize, len(inputs), rounded)
		bufferSize = rounded
	}

	freq, err := p.TimerFrequency(timer, 1)
	if err != nil {
		return nil, r.Attribute(err)
	}

	bufferName := fmt.Sprintf("g_%s_buffer", dev.Name)
	inputsName := fmt.Sprintf("g_%s_inputs", dev.Name)
	inputList := make([]any, len(inputs))
	for i, in := range inputs {
		inputList[i] = in
	}
	a.Descriptor.
		Add("dev_id", dev.DevID).
		Add("name", dev.Name).
		Add("inputs_name", inputsName).
		Add("buffer_name", bufferName).
		Add("adc", adc).
		Add("timer", timer).
		Add("dr_address", drAddress).
		Add("dma_channel", dmaChannel).
		Add("dma", dma).
		Add("dma_it", dmaIT).
		Add("buffer_size", bufferSize).
		Add("sample_block_size", stride).
		Add("timer_irqn", p.IRQn(timerIRQ)).
		Add("scan_complete_irqn", p.IRQn(scanIRQ)).
		Add("input_count", int64(len(inputs))).
		Add("use_dma", useDMA).
		Add("timer_frequency", freq).
		Add("vref", vref).
		Add("adc_max_value", int64(p.ADCMaxValue)).
		Add("inputs", inputList)

	a.Vocabulary.Set(bufferName, bufferSize)
	a.Vocabulary.Set(inputsName, int64(len(inputs)))
	return a, nil
}

func roundUp(n, stride int64) int64 {
	if rem := n % stride; rem != 0 {
		return n + stride - rem
	}
	return n
}
