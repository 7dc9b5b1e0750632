// Package firmware allocates the firmware-global subsystems: the I2C bus the
// firmware is addressed on, the SysTick timer, the info device and the
// settings derived from every claim of a run (clock enable, feature flags).
package firmware

import (
	"context"
	"fmt"

	"github.com/specialistvlad/mcugraph/internal/allocator"
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/conflict"
	"github.com/specialistvlad/mcugraph/internal/ctxlog"
	"github.com/specialistvlad/mcugraph/internal/errcode"
	"github.com/specialistvlad/mcugraph/internal/resolver"
)

// Owner names of the firmware subsystems in claims and error messages.
const (
	I2CBusOwner  = "i2c_bus"
	SysTickOwner = "sys_tick"
)

// MaxI2CClockSpeed is the fast-mode limit of the I2C peripheral.
const MaxI2CClockSpeed = 400000

// I2CBus is the allocated host bus.
type I2CBus struct {
	// Periph is the peripheral name without the remap suffix.
	Periph     string           `json:"periph"`
	Remap      bool             `json:"remap"`
	ClockSpeed int64            `json:"clock_speed" cty:"clock_speed"`
	Address    int64            `json:"address" cty:"address"`
	BufferSize int64            `json:"buffer_size" cty:"buffer_size"`
	SDA        allocator.Pin    `json:"sda"`
	SCL        allocator.Pin    `json:"scl"`
	EVHandler  string           `json:"ev_irq_handler"`
	ERHandler  string           `json:"er_irq_handler"`
	Requires   catalog.Requires `json:"requires"`
	Resources  []string         `json:"resources"`
}

// SysTick is the timer driving the firmware tick.
type SysTick struct {
	Timer     string           `json:"timer"`
	Handler   string           `json:"irq_handler"`
	IRQn      string           `json:"irqn"`
	Requires  catalog.Requires `json:"requires"`
	Resources []string         `json:"resources"`
}

// Feature is one firmware feature flag.
type Feature struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// FeatureRequest records a device depending on a firmware feature.
type FeatureRequest struct {
	Feature string
	Device  string
}

// Firmware is the allocation of the firmware-global subsystems.
type Firmware struct {
	DeviceName string               `json:"device_name"`
	MCU        string               `json:"mcu"`
	I2CBus     *I2CBus              `json:"i2c_bus,omitempty"`
	SysTick    *SysTick             `json:"sys_tick,omitempty"`
	Clocks     []catalog.ClockGroup `json:"clock_enable"`
	Features   []Feature            `json:"features"`
	Vocabulary *config.Object       `json:"vocabulary"`
	profile    *catalog.Profile
}

// Allocate resolves the I2C bus and SysTick sections. Both sections are
// optional; an omitted one is simply not allocated.
func Allocate(ctx context.Context, p *catalog.Profile, fw *config.Firmware) (*Firmware, error) {
	logger := ctxlog.FromContext(ctx)
	f := &Firmware{
		DeviceName: fw.DeviceName,
		MCU:        p.MCU,
		Vocabulary: config.NewObject(),
		profile:    p,
	}

	if fw.I2CBus != nil {
		bus, err := allocateI2CBus(resolver.New(p).ForDevice(I2CBusOwner), fw.I2CBus)
		if err != nil {
			return nil, err
		}
		f.I2CBus = bus
		logger.Debug("I2C bus allocated.", "periph", bus.Periph, "remap", bus.Remap)
	} else {
		logger.Debug("Firmware has no I2C bus section.")
	}

	if fw.SysTick != nil {
		st, err := allocateSysTick(resolver.New(p).ForDevice(SysTickOwner), fw.SysTick)
		if err != nil {
			return nil, err
		}
		f.SysTick = st
		logger.Debug("SysTick timer allocated.", "timer", st.Timer)
	} else {
		logger.Debug("Firmware has no sys_tick section.")
	}

	f.describe()
	return f, nil
}

func allocateI2CBus(r *resolver.Resolver, sec *config.Section) (*I2CBus, error) {
	p := r.Profile()
	periph, err := allocator.Named(r, sec.Requires, catalog.TypeI2C, catalog.TypeI2C)
	if err != nil {
		return nil, err
	}
	bus := &I2CBus{}
	if err := r.Decode(sec.Fields, I2CBusOwner, bus); err != nil {
		return nil, err
	}
	if bus.BufferSize <= 0 {
		return nil, r.Errorf("buffer_size must be greater than zero, %d is given", bus.BufferSize)
	}
	if bus.Address < 1 || bus.Address > 127 {
		return nil, r.Errorf("address must be a 7-bit I2C address, %d is given", bus.Address)
	}
	if bus.ClockSpeed <= 0 || bus.ClockSpeed > MaxI2CClockSpeed {
		return nil, r.Errorf("clock_speed must be in range (0, %d], %d is given", MaxI2CClockSpeed, bus.ClockSpeed)
	}

	res, _ := p.Lookup(periph)
	bus.Requires = sec.Requires.Merge(res.Requires)

	sda, err := r.GetRequiredResource(periph, "SDA", catalog.TypeGPIO)
	if err != nil {
		return nil, err
	}
	if bus.SDA, err = allocator.ResolvePin(r, sda); err != nil {
		return nil, err
	}
	scl, err := r.GetRequiredResource(periph, "SCL", catalog.TypeGPIO)
	if err != nil {
		return nil, err
	}
	if bus.SCL, err = allocator.ResolvePin(r, scl); err != nil {
		return nil, err
	}
	if bus.EVHandler, err = r.GetRequiredResource(periph, "ev_irq_handler", catalog.TypeIRQHandler); err != nil {
		return nil, err
	}
	if bus.ERHandler, err = r.GetRequiredResource(periph, "er_irq_handler", catalog.TypeIRQHandler); err != nil {
		return nil, err
	}

	bus.Periph, bus.Remap = p.IsRemapped(periph)
	bus.Resources = bus.Requires.Leaves()
	return bus, nil
}

func allocateSysTick(r *resolver.Resolver, sec *config.Section) (*SysTick, error) {
	timer, err := allocator.Named(r, sec.Requires, catalog.TypeTimer, catalog.TypeTimer)
	if err != nil {
		return nil, err
	}
	handler, err := allocator.TimerHandler(r, timer)
	if err != nil {
		return nil, err
	}
	res, _ := r.Profile().Lookup(timer)
	req := sec.Requires.Merge(res.Requires)
	req.Set("irq_handler", catalog.Singleton(catalog.TypeIRQHandler, handler))
	return &SysTick{
		Timer:     timer,
		Handler:   handler,
		IRQn:      r.Profile().IRQn(handler),
		Requires:  req,
		Resources: req.Leaves(),
	}, nil
}

func (f *Firmware) describe() {
	v := f.Vocabulary
	if b := f.I2CBus; b != nil {
		v.Set("__I2C_BUS_PERIPH__", b.Periph)
		v.Set("__I2C_BUS_PINS_REMAP__", boolInt(b.Remap))
		v.Set("__I2C_BUS_CLOCK_SPEED__", b.ClockSpeed)
		v.Set("__I2C_BUS_SDA_PORT__", b.SDA.Port)
		v.Set("__I2C_BUS_SDA_PIN__", int64(b.SDA.Number))
		v.Set("__I2C_BUS_SDA_PIN_MASK__", b.SDA.Mask)
		v.Set("__I2C_BUS_SCL_PORT__", b.SCL.Port)
		v.Set("__I2C_BUS_SCL_PIN__", int64(b.SCL.Number))
		v.Set("__I2C_BUS_SCL_PIN_MASK__", b.SCL.Mask)
		v.Set("__I2C_BUS_EV_ISR__", b.EVHandler)
		v.Set("__I2C_BUS_EV_IRQ__", f.profile.IRQn(b.EVHandler))
		v.Set("__I2C_BUS_ER_ISR__", b.ERHandler)
		v.Set("__I2C_BUS_ER_IRQ__", f.profile.IRQn(b.ERHandler))
		v.Set("__COMM_BUFFER_LENGTH__", b.BufferSize)
		v.Set("__I2C_FIRMWARE_ADDRESS__", b.Address)
	}
	if st := f.SysTick; st != nil {
		v.Set("__SYS_TICK_PERIPH__", st.Timer)
		v.Set("__SYS_TICK_ISR__", st.Handler)
		v.Set("__SYS_TICK_IRQ__", st.IRQn)
	}
	clock := f.profile.SystemClock
	v.Set("__MCU_FREQUENCY__", clock)
	v.Set("__MCU_FREQUENCY_MHZ__", clock/1000000)
	if clock > 0 {
		v.Set("__MCU_MAXIMUM_TIMER_US__", int64(0x10000)*0x10000*1000000/clock)
	}
	v.Set("__DEVICE_NAME__", f.DeviceName)
}

// Claims returns the resources held by the firmware subsystems.
func (f *Firmware) Claims() []conflict.Claim {
	var out []conflict.Claim
	if f.I2CBus != nil {
		out = append(out, conflict.Claim{Owner: I2CBusOwner, Values: f.I2CBus.Resources})
	}
	if f.SysTick != nil {
		out = append(out, conflict.Claim{Owner: SysTickOwner, Values: f.SysTick.Resources})
	}
	return out
}

// Finalize derives the clock-enable sets from every resource claimed in the
// run and the feature flags from the features devices asked for.
func (f *Firmware) Finalize(ctx context.Context, claimed []string, requests []FeatureRequest) error {
	p := f.profile
	enabled := make(map[string]bool)
	for _, req := range requests {
		if !p.HasFirmwareFeature(req.Feature) {
			return errcode.New(errcode.StructuralValidation, req.Device,
				"Unknown feature %s required by device %s", req.Feature, req.Device)
		}
		if req.Feature == catalog.FeatureSysTick && f.SysTick == nil {
			return errcode.New(errcode.StructuralValidation, req.Device,
				"device %s requires the %s feature, but firmware sys_tick is not configured", req.Device, req.Feature)
		}
		enabled[req.Feature] = true
	}
	f.Features = f.Features[:0]
	for _, name := range p.FirmwareFeatures {
		f.Features = append(f.Features, Feature{Name: name, Enabled: enabled[name]})
		f.Vocabulary.Set(fmt.Sprintf("__ENABLE_%s__", name), boolInt(enabled[name]))
	}

	clocks, err := p.ClockEnable(claimed)
	if err != nil {
		return fmt.Errorf("clock enable: %w", err)
	}
	f.Clocks = clocks
	f.Vocabulary.Set("__APB_CLOCK_ENABLE__", clocks)

	ctxlog.FromContext(ctx).Debug("Firmware settings derived.", "clock_groups", len(clocks), "features", len(enabled))
	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
