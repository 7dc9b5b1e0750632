package catalog

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/specialistvlad/mcugraph/internal/errcode"
)

// Bus is a clock-enable domain (AHB, APB1, APB2) with the peripheral clock
// identifiers it gates.
type Bus struct {
	Name string
	// Divider is the ratio between the system clock and the bus clock.
	Divider int
	Members []string
}

// EXTIVector maps an inclusive range of EXTI line numbers onto one IRQ handler.
type EXTIVector struct {
	Handler     string
	First, Last int
}

// Profile is the full description of an MCU: its resource catalog plus the
// static data used to derive port/pin encodings, vectors and clock settings.
type Profile struct {
	MCU         string
	SystemClock int64
	MaxAddress  int
	ADCMaxValue int

	GPIOInputTypes     []string
	GPIOOutputTypes    []string
	GPIOOpenDrainTypes []string
	SampleTimes        []string
	FirmwareFeatures   []string
	// DMARequests maps a request name (ADC1, SPI1_TX) to its DMA channel.
	DMARequests map[string]string
	Buses       []Bus
	EXTIVectors []EXTIVector

	*Catalog
}

// Validate cross-checks the profile data against the catalog.
func (p *Profile) Validate() error {
	if p.Catalog == nil {
		return errcode.New(errcode.StructuralValidation, "", "profile %s has no resources", p.MCU)
	}
	if p.MaxAddress < 0 {
		return errcode.New(errcode.StructuralValidation, "", "profile %s: max_address must not be negative", p.MCU)
	}
	for req, ch := range p.DMARequests {
		if _, err := p.expect(ch, TypeDMAChannel); err != nil {
			return fmt.Errorf("profile %s: dma request %s: %w", p.MCU, req, err)
		}
	}
	for _, v := range p.EXTIVectors {
		if _, err := p.expect(v.Handler, TypeIRQHandler); err != nil {
			return fmt.Errorf("profile %s: exti vector: %w", p.MCU, err)
		}
		if v.First > v.Last {
			return errcode.New(errcode.StructuralValidation, "", "profile %s: exti vector %s has an empty range", p.MCU, v.Handler)
		}
	}
	for _, r := range p.ByType(TypeEXTILine) {
		if _, err := p.EXTILineToHandler(r.Name); err != nil {
			return fmt.Errorf("profile %s: %w", p.MCU, err)
		}
	}
	return nil
}

func (p *Profile) expect(name, t string) (*Resource, error) {
	r, ok := p.Lookup(name)
	if !ok {
		return nil, errcode.New(errcode.UnknownResource, "", "%s is not a resource of %s", name, p.MCU)
	}
	if r.Type != t {
		return nil, errcode.New(errcode.WrongResourceType, "", "%s is %s, expected %s", name, r.Type, t)
	}
	return r, nil
}

// GPIOPort returns the port of a pin name: PA_10 -> GPIOA.
func (p *Profile) GPIOPort(pin string) (string, error) {
	if _, err := p.GPIOPinNumber(pin); err != nil {
		return "", err
	}
	return "GPIO" + pin[1:2], nil
}

// GPIOPortLetter returns the port letter of a pin name: PA_10 -> A.
func (p *Profile) GPIOPortLetter(pin string) (string, error) {
	if _, err := p.GPIOPinNumber(pin); err != nil {
		return "", err
	}
	return pin[1:2], nil
}

// GPIOPinNumber returns the pin number of a pin name: PA_10 -> 10.
func (p *Profile) GPIOPinNumber(pin string) (int, error) {
	if len(pin) < 4 || pin[0] != 'P' || pin[2] != '_' {
		return 0, errcode.New(errcode.StructuralValidation, "", "%s is not a gpio pin name", pin)
	}
	n, err := strconv.Atoi(pin[3:])
	if err != nil || n < 0 || n > 15 {
		return 0, errcode.New(errcode.StructuralValidation, "", "%s has an invalid pin number", pin)
	}
	return n, nil
}

// GPIOPinMask returns the pin mask macro: PA_10 -> GPIO_Pin_10.
func (p *Profile) GPIOPinMask(pin string) (string, error) {
	n, err := p.GPIOPinNumber(pin)
	if err != nil {
		return "", err
	}
	return "GPIO_Pin_" + strconv.Itoa(n), nil
}

// GPIOPortSource returns the AFIO port source of a pin: PB_3 -> GPIO_PortSourceGPIOB.
func (p *Profile) GPIOPortSource(pin string) (string, error) {
	letter, err := p.GPIOPortLetter(pin)
	if err != nil {
		return "", err
	}
	return "GPIO_PortSourceGPIO" + letter, nil
}

// GPIOPinSource returns the AFIO pin source of a pin: PB_3 -> GPIO_PinSource3.
func (p *Profile) GPIOPinSource(pin string) (string, error) {
	n, err := p.GPIOPinNumber(pin)
	if err != nil {
		return "", err
	}
	return "GPIO_PinSource" + strconv.Itoa(n), nil
}

// GPIOToEXTILine returns the EXTI line driven by a pin: PB_3 -> EXTI_Line3.
func (p *Profile) GPIOToEXTILine(pin string) (string, error) {
	n, err := p.GPIOPinNumber(pin)
	if err != nil {
		return "", err
	}
	line := fmt.Sprintf("EXTI_Line%d", n)
	if _, err := p.expect(line, TypeEXTILine); err != nil {
		return "", err
	}
	return line, nil
}

// GPIOToEXTICR returns the AFIO EXTI configuration register value routing
// the pin to its line: PB_5 -> AFIO_EXTICR2_EXTI5_PB.
func (p *Profile) GPIOToEXTICR(pin string) (string, error) {
	n, err := p.GPIOPinNumber(pin)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("AFIO_EXTICR%d_EXTI%d_%s", n/4+1, n, pin[:2]), nil
}

// EXTILineNumber parses EXTI_Line<n>.
func (p *Profile) EXTILineNumber(line string) (int, error) {
	s, ok := strings.CutPrefix(line, "EXTI_Line")
	if !ok {
		return 0, errcode.New(errcode.StructuralValidation, "", "%s is not an exti line name", line)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errcode.New(errcode.StructuralValidation, "", "%s is not an exti line name", line)
	}
	return n, nil
}

// EXTILineToHandler returns the shared IRQ handler serving the line.
func (p *Profile) EXTILineToHandler(line string) (string, error) {
	n, err := p.EXTILineNumber(line)
	if err != nil {
		return "", err
	}
	for _, v := range p.EXTIVectors {
		if n >= v.First && n <= v.Last {
			return v.Handler, nil
		}
	}
	return "", errcode.New(errcode.UnknownResource, "", "unsupported exti line used: %s", line)
}

// IRQn turns a handler name into its IRQ number symbol:
// USART1_IRQHandler -> USART1_IRQn.
func (p *Profile) IRQn(handler string) string {
	return strings.TrimSuffix(handler, "Handler") + "n"
}

// ResourceHandler returns the irq_handler a resource declares for role.
func (p *Profile) ResourceHandler(name, role string) (string, error) {
	r, ok := p.Lookup(name)
	if !ok {
		return "", errcode.New(errcode.UnknownResource, "", "%s is not a resource of %s", name, p.MCU)
	}
	h, ok := r.Handler(role)
	if !ok {
		return "", errcode.New(errcode.StructuralValidation, "", "resource %s has no %s", name, role)
	}
	return h, nil
}

// ADCChannelToGPIO returns the pin behind an analog input. Internal channels
// (temperature sensor, reference voltage) have none.
func (p *Profile) ADCChannelToGPIO(channel string) (string, bool, error) {
	r, err := p.expect(channel, TypeADCInput)
	if err != nil {
		return "", false, err
	}
	req, ok := r.Requires.Get(TypeGPIO)
	if !ok {
		return "", false, nil
	}
	leaf, ok := req.(Leaf)
	if !ok {
		return "", false, errcode.New(errcode.MalformedRequirement, "", "%s gpio requirement is not a single pin", channel)
	}
	return leaf.Name, true, nil
}

// DMAChannel returns the DMA channel serving a request such as ADC1 or SPI1_TX.
func (p *Profile) DMAChannel(request string) (string, error) {
	ch, ok := p.DMARequests[request]
	if !ok {
		return "", errcode.New(errcode.UnknownResource, "", "there is no DMA channel defined for %s", request)
	}
	return ch, nil
}

// DMAFromChannel returns the controller owning a DMA channel.
func (p *Profile) DMAFromChannel(channel string) (string, error) {
	r, err := p.expect(channel, TypeDMAChannel)
	if err != nil {
		return "", err
	}
	req, ok := r.Requires.Get(TypeDMA)
	if !ok {
		return "", errcode.New(errcode.StructuralValidation, "", "dma channel %s does not require a dma controller", channel)
	}
	leaf, ok := req.(Leaf)
	if !ok {
		return "", errcode.New(errcode.MalformedRequirement, "", "dma channel %s: dma requirement is not a single resource", channel)
	}
	return leaf.Name, nil
}

// DMAITFlag builds the interrupt flag name for a channel:
// (DMA1_Channel1, TC) -> DMA1_IT_TC1.
func (p *Profile) DMAITFlag(channel, flag string) (string, error) {
	if _, err := p.expect(channel, TypeDMAChannel); err != nil {
		return "", err
	}
	dma, ch, ok := strings.Cut(channel, "_Channel")
	if !ok || !strings.HasPrefix(dma, "DMA") {
		return "", errcode.New(errcode.StructuralValidation, "", "%s is not a dma channel name", channel)
	}
	return fmt.Sprintf("DMA%s_IT_%s%s", strings.TrimPrefix(dma, "DMA"), flag, ch), nil
}

// DMADRAddress returns the data register address of a DMA capable resource.
func (p *Profile) DMADRAddress(name string) (string, error) {
	r, ok := p.Lookup(name)
	if !ok {
		return "", errcode.New(errcode.UnknownResource, "", "%s is not a resource of %s", name, p.MCU)
	}
	if r.DMADRAddress == "" {
		return "", errcode.New(errcode.StructuralValidation, "", "resource %s has no dma_dr_address", name)
	}
	return r.DMADRAddress, nil
}

// BusOf returns the clock domain a bus member belongs to.
func (p *Profile) BusOf(member string) (*Bus, bool) {
	for i := range p.Buses {
		if slices.Contains(p.Buses[i].Members, member) {
			return &p.Buses[i], true
		}
	}
	return nil, false
}

// TimerFrequency returns the input clock of a timer. Timers on a divided bus
// run at twice the bus clock when the prescaler is above one.
func (p *Profile) TimerFrequency(timer string, prescaler int) (int64, error) {
	if prescaler < 1 || prescaler > 65535 {
		return 0, errcode.New(errcode.StructuralValidation, "", "invalid prescaler value: %d, 1..65535 is expected", prescaler)
	}
	r, err := p.expect(timer, TypeTimer)
	if err != nil {
		return 0, err
	}
	for _, b := range r.Bus {
		bus, ok := p.BusOf(b)
		if !ok || bus.Divider < 1 {
			continue
		}
		mult := int64(1)
		if prescaler > 1 {
			mult = 2
		}
		return mult * p.SystemClock / int64(bus.Divider), nil
	}
	return 0, errcode.New(errcode.StructuralValidation, "", "invalid bus definition for timer %s", timer)
}

// IsRemapped splits an alternate pin mapping name: CAN1_REMAP -> (CAN1, true).
func (p *Profile) IsRemapped(name string) (string, bool) {
	if base, ok := strings.CutSuffix(name, "_REMAP"); ok {
		return base, true
	}
	return name, false
}

// IsGPIOInput reports whether a pin mode configures an input.
func (p *Profile) IsGPIOInput(pinType string) (bool, error) {
	switch {
	case slices.Contains(p.GPIOInputTypes, pinType):
		return true, nil
	case slices.Contains(p.GPIOOutputTypes, pinType):
		return false, nil
	}
	return false, errcode.New(errcode.StructuralValidation, "", "%s is not a valid pin type", pinType)
}

// IsGPIOOpenDrain reports whether a pin mode is an open drain output.
func (p *Profile) IsGPIOOpenDrain(pinType string) (bool, error) {
	if _, err := p.IsGPIOInput(pinType); err != nil {
		return false, err
	}
	return slices.Contains(p.GPIOOpenDrainTypes, pinType), nil
}

// ValidSampleTime reports whether st is an ADC sample time constant.
func (p *Profile) ValidSampleTime(st string) bool {
	return slices.Contains(p.SampleTimes, st)
}

// FeatureSysTick is the firmware feature providing the shared SysTick
// timer, required by every device that polls on a timer tick.
const FeatureSysTick = "SYSTICK"

// HasFirmwareFeature reports whether the firmware can provide the feature.
func (p *Profile) HasFirmwareFeature(f string) bool {
	return slices.Contains(p.FirmwareFeatures, f)
}

// ClockGroup is the set of peripheral clocks to enable on one bus.
type ClockGroup struct {
	Bus     string   `json:"bus"`
	Members []string `json:"members"`
}

// ClockEnable groups the clock identifiers of the named resources by bus.
// Groups follow bus declaration order and members are sorted.
func (p *Profile) ClockEnable(names []string) ([]ClockGroup, error) {
	sets := make(map[string][]string)
	for _, name := range names {
		r, ok := p.Lookup(name)
		if !ok {
			return nil, errcode.New(errcode.UnknownResource, "", "%s is not a resource of %s", name, p.MCU)
		}
		for _, b := range r.Bus {
			bus, ok := p.BusOf(b)
			if !ok {
				return nil, errcode.New(errcode.StructuralValidation, "", "%s resource describes incorrect bus value %s", name, b)
			}
			if !slices.Contains(sets[bus.Name], b) {
				sets[bus.Name] = append(sets[bus.Name], b)
			}
		}
	}
	var out []ClockGroup
	for _, bus := range p.Buses {
		members := sets[bus.Name]
		if len(members) == 0 {
			continue
		}
		slices.Sort(members)
		out = append(out, ClockGroup{Bus: bus.Name, Members: members})
	}
	return out, nil
}
