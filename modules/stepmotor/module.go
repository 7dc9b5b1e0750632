// Package stepmotor allocates stepper motor controllers. One device drives
// several motors from a single timer; every motor has a mandatory step pin
// and a set of optional driver lines.
package stepmotor

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/mcugraph/internal/allocator"
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/registry"
	"github.com/specialistvlad/mcugraph/internal/resolver"
)

// DefaultSpeed is the step period, in microseconds, used when a motor does
// not set default_speed.
const DefaultSpeed = 1000000

// Driver chips.
const (
	DriverUnknown = "unknown"
	DriverA4998   = "a4998"
	DriverDRV8825 = "drv8825"
)

var drivers = map[string]string{
	DriverUnknown: "STEP_MOTOR_DRIVER_UNKNOWN",
	DriverA4998:   "STEP_MOTOR_DRIVER_A4998",
	DriverDRV8825: "STEP_MOTOR_DRIVER_DRV8825",
}

// Lines lists the driver lines in descriptor order.
var Lines = []string{"step", "dir", "m1", "m2", "m3", "enable", "reset", "sleep", "fault", "cw_endstop", "ccw_endstop"}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&Handler{})
}

// Handler allocates StepMotorDevCustomizer devices.
type Handler struct {
	allocator.Base
}

// Info describes the device type.
func (h *Handler) Info() allocator.Info {
	return allocator.Info{Group: "StepMotorDevCustomizer", Tag: "INFO_DEV_TYPE_STEP_MOTOR", Prefix: "STEP_MOTOR"}
}

// SanityChecks requires at least one motor and only a timer in requires.
func (h *Handler) SanityChecks(_ context.Context, r *resolver.Resolver, dev *config.Device) error {
	motors, err := r.ObjectField(dev.Fields, "motors")
	if err != nil {
		return err
	}
	if motors.Len() == 0 {
		return r.Errorf("device %s must define at least one motor", dev.Name)
	}
	for _, role := range dev.Requires.Roles() {
		if role != catalog.TypeTimer {
			return r.Errorf("unexpected requirement %s, motor lines are configured under motors", role)
		}
	}
	return nil
}

// Line is the pin assignment of one driver line. Unused lines keep "0".
type Line struct {
	Line   string `json:"line"`
	Port   string `json:"port"`
	Pin    int    `json:"pin"`
	EXTICR string `json:"exticr"`
}

// Motor is one resolved motor.
type Motor struct {
	Name               string   `json:"name"`
	Driver             string   `json:"driver"`
	Flags              []string `json:"flags"`
	BufferName         string   `json:"buffer_name"`
	BufferSize         int64    `json:"buffer_size"`
	DefaultSpeed       int64    `json:"default_speed"`
	StepsPerRevolution int64    `json:"steps_per_revolution"`
	CWLimit            int64    `json:"cw_sft_limit"`
	CCWLimit           int64    `json:"ccw_sft_limit"`
	Lines              []Line   `json:"lines"`
}

// Allocate resolves the timer and every motor.
func (h *Handler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, index int) (*allocator.Allocation, error) {
	p := r.Profile()
	a := allocator.NewAllocation()
	a.Features = append(a.Features, catalog.FeatureSysTick)

	timer, err := allocator.Named(r, dev.Requires, catalog.TypeTimer, catalog.TypeTimer)
	if err != nil {
		return nil, err
	}
	irq, err := allocator.TimerHandler(r, timer)
	if err != nil {
		return nil, err
	}
	a.Claim(dev.Name+"_irq_handler", catalog.TypeIRQHandler, irq)
	a.AddISR(irq, "STEP_MOTOR_COMMON_TIMER_IRQ_HANDLER", index)

	motorsCfg, err := r.ObjectField(dev.Fields, "motors")
	if err != nil {
		return nil, err
	}
	var motors []*Motor
	for _, name := range motorsCfg.Keys() {
		cfg, err := r.ObjectField(motorsCfg, name)
		if err != nil {
			return nil, err
		}
		m, err := motor(r, a, dev.Name, name, cfg)
		if err != nil {
			return nil, err
		}
		motors = append(motors, m)
	}

	upper := strings.ToUpper(dev.Name)
	countDef := fmt.Sprintf("STEP_MOTOR_%s_MOTOR_COUNT", upper)
	statusDef := fmt.Sprintf("STEP_MOTOR_%s_STATUS_SIZE", upper)
	a.Descriptor.
		Add("dev_id", dev.DevID).
		Add("name", dev.Name).
		Add("timer", timer).
		Add("timer_irqn", p.IRQn(irq)).
		Add("motor_count", int64(len(motors))).
		Add("status_buffer", fmt.Sprintf("g_%s_status_buffer", strings.ToLower(dev.Name))).
		Add("status_size", statusDef).
		Add("motors", motors)

	a.Vocabulary.Set(countDef, int64(len(motors)))
	a.Vocabulary.Set(statusDef, fmt.Sprintf("(sizeof(StepMotorDevStatus) + %s*sizeof(StepMotorStatus))", countDef))
	return a, nil
}

// motorConfig reads the options of one motor and reports errors in the
// motor's terms.
type motorConfig struct {
	r    *resolver.Resolver
	dev  string
	name string
	cfg  *config.Object
}

// line returns the sub-object of a driver line, or nil when the motor does
// not define the line.
func (mc *motorConfig) line(line string) (*config.Object, error) {
	v, ok := mc.cfg.Get(line)
	if !ok {
		return nil, nil
	}
	o, ok := v.(*config.Object)
	if !ok {
		return nil, mc.r.Errorf("Line %s of motor %s in device %s must be a mapping", line, mc.name, mc.dev)
	}
	return o, nil
}

func (mc *motorConfig) mandatoryLine(line string) (*config.Object, error) {
	o, err := mc.line(line)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, mc.r.Errorf("Line %s is not defined for motor %s in device %s", line, mc.name, mc.dev)
	}
	return o, nil
}

// option reads a mandatory string option restricted to allowed.
func (mc *motorConfig) option(o *config.Object, opt string, allowed ...string) (string, error) {
	v, ok := o.Get(opt)
	if !ok {
		return "", mc.r.Errorf("Option %s is mandatory, but it is not specified for the motor %s in device %s", opt, mc.name, mc.dev)
	}
	s, ok := config.AsString(v)
	if !ok || !slices.Contains(allowed, s) {
		return "", mc.r.Errorf("Invalid %s value specified for the motor %s in device %s", opt, mc.name, mc.dev)
	}
	return s, nil
}

func (mc *motorConfig) intOption(o *config.Object, opt string) (int64, error) {
	v, ok := o.Get(opt)
	if !ok {
		return 0, mc.r.Errorf("Option %s is mandatory, but it is not specified for the motor %s in device %s", opt, mc.name, mc.dev)
	}
	n, ok := config.AsInt(v)
	if !ok {
		return 0, mc.r.Errorf("Device '%s' motor '%s' option '%s' has a value of not integer type", mc.dev, mc.name, opt)
	}
	return n, nil
}

// microstepDefault reads the default level of an m1..m3 line, 0 when the
// line is absent.
func (mc *motorConfig) microstepDefault(line string) (int64, error) {
	o, err := mc.line(line)
	if err != nil || o == nil {
		return 0, err
	}
	var lc struct {
		Default int64 `cty:"default"`
	}
	periph := mc.name + "." + line
	if err := mc.r.Decode(o, periph, &lc); err != nil {
		return 0, err
	}
	return lc.Default, mc.r.OneOf(periph, "default", lc.Default, 0, 1)
}

func motor(r *resolver.Resolver, a *allocator.Allocation, dev, name string, cfg *config.Object) (*Motor, error) {
	mc := &motorConfig{r: r, dev: dev, name: name, cfg: cfg}
	m := &Motor{Name: name}

	var opts struct {
		DriveType    *string `cty:"drive_type"`
		DefaultSpeed *int64  `cty:"default_speed"`
	}
	if err := r.Decode(cfg, name, &opts); err != nil {
		return nil, err
	}
	driver := DriverUnknown
	if opts.DriveType != nil {
		driver = *opts.DriveType
	}
	m.DefaultSpeed = DefaultSpeed
	if opts.DefaultSpeed != nil {
		m.DefaultSpeed = *opts.DefaultSpeed
	}
	if _, ok := drivers[driver]; !ok {
		return nil, r.Errorf("Invalid drive_type value specified for the motor %s in device %s", name, dev)
	}
	m.Driver = drivers[driver]

	var ms [3]int64
	for i, l := range []string{"m1", "m2", "m3"} {
		var err error
		if ms[i], err = mc.microstepDefault(l); err != nil {
			return nil, err
		}
	}
	microstep := ms[0] + ms[1]<<1 + ms[2]<<2
	if driver == DriverA4998 {
		if cfg.Has("fault") {
			return nil, r.Errorf("Motor %s in device %s uses fault pin. However A4998 drivers don't support it", name, dev)
		}
		if microstep >= 4 && microstep <= 6 {
			return nil, r.Errorf("Motor %s (drive type is: %s) in device %s uses unacceptable default value for microsteps(M1=%d, M2=%d, M3=%d)",
				name, driver, dev, ms[0], ms[1], ms[2])
		}
	}

	pins := make(map[string]allocator.EXTIPin)
	for _, l := range Lines {
		lc, err := mc.line(l)
		if err != nil {
			return nil, err
		}
		entry := Line{Line: l, Port: "0", EXTICR: "0"}
		var wiring struct {
			GPIO *string `cty:"gpio"`
		}
		if lc != nil {
			if err := r.Decode(lc, name+"."+l, &wiring); err != nil {
				return nil, err
			}
		}
		if wiring.GPIO != nil {
			gpio := *wiring.GPIO
			pin, err := allocator.ResolveEXTIPin(r, gpio)
			if err != nil {
				return nil, err
			}
			pins[l] = pin
			a.Claim(fmt.Sprintf("%s_%s_gpio", name, l), catalog.TypeGPIO, gpio)
			entry.Port, entry.Pin = pin.Port, pin.Number
		} else if l == "step" {
			return nil, r.Errorf("step pin is not specified in device %s for the motor definition for %s", dev, name)
		}
		m.Lines = append(m.Lines, entry)
	}
	used := func(l string) bool {
		_, ok := pins[l]
		return ok
	}
	flag := func(f string) { m.Flags = append(m.Flags, f) }

	if used("dir") {
		flag("STEP_MOTOR_DIR_IN_USE")
	}
	if o, err := mc.line("dir"); err != nil {
		return nil, err
	} else if o != nil {
		dv, err := mc.option(o, "default", "CW", "CCW")
		if err != nil {
			return nil, err
		}
		if dv == "CW" {
			flag("STEP_MOTOR_DIRECTION_CW")
		}
	}

	for i, l := range []string{"m1", "m2", "m3"} {
		u := strings.ToUpper(l)
		if used(l) {
			flag("STEP_MOTOR_" + u + "_IN_USE")
		}
		if ms[i] == 1 {
			flag("STEP_MOTOR_" + u + "_DEFAULT")
		}
	}

	if used("enable") {
		flag("STEP_MOTOR_ENABLE_IN_USE")
	}
	if o, err := mc.line("enable"); err != nil {
		return nil, err
	} else if o != nil {
		dv, err := mc.option(o, "default", "enable", "disable")
		if err != nil {
			return nil, err
		}
		if dv == "disable" {
			flag("STEP_MOTOR_DISABLE_DEFAULT")
		}
	}

	if used("reset") {
		flag("STEP_MOTOR_RESET_IN_USE")
	}

	if used("sleep") {
		flag("STEP_MOTOR_SLEEP_IN_USE")
	}
	if o, err := mc.line("sleep"); err != nil {
		return nil, err
	} else if o != nil {
		dv, err := mc.option(o, "default", "sleep", "wakeup")
		if err != nil {
			return nil, err
		}
		if dv == "wakeup" {
			flag("STEP_MOTOR_WAKEUP_DEFAULT")
		}
	}

	ea, err := mc.option(cfg, "error_action", "stop", "stop_all")
	if err != nil {
		return nil, err
	}
	if ea == "stop_all" {
		flag("STEP_MOTOR_CONFIG_ERROR_ALL")
	}

	if pin, ok := pins["fault"]; ok {
		o, _ := mc.line("fault")
		if err := mc.extiLine(a, "fault", pin, o, "STEP_MOTOR_FAULT", flag); err != nil {
			return nil, err
		}
		m.Lines[slices.Index(Lines, "fault")].EXTICR = pin.EXTICR
		action, err := mc.option(o, "action", "ignore", "stop", "stop_all")
		if err != nil {
			return nil, err
		}
		if f := actionFlag("STEP_MOTOR_CONFIG_FAILURE", action); f != "" {
			flag(f)
		}
	}

	for _, es := range []struct {
		line, prefix, action string
		limit                *int64
	}{
		{"cw_endstop", "STEP_MOTOR_CWENDSTOP", "STEP_MOTOR_CONFIG_CW_ENDSTOP", &m.CWLimit},
		{"ccw_endstop", "STEP_MOTOR_CCWENDSTOP", "STEP_MOTOR_CONFIG_CCW_ENDSTOP", &m.CCWLimit},
	} {
		o, err := mc.mandatoryLine(es.line)
		if err != nil {
			return nil, err
		}
		if pin, ok := pins[es.line]; ok {
			if err := mc.extiLine(a, es.line, pin, o, es.prefix, flag); err != nil {
				return nil, err
			}
			m.Lines[slices.Index(Lines, es.line)].EXTICR = pin.EXTICR
		} else if *es.limit, err = mc.intOption(o, "position_limit"); err != nil {
			return nil, err
		}
		action, err := mc.option(o, "action", "ignore", "stop", "stop_all")
		if err != nil {
			return nil, err
		}
		if f := actionFlag(es.action, action); f != "" {
			flag(f)
		}
	}
	if !used("cw_endstop") && !used("ccw_endstop") && m.CWLimit <= m.CCWLimit {
		return nil, r.Errorf("Device %s motor %s : Software limit for CW direction must be greater than software limit for CCW direction", dev, name)
	}
	if len(m.Flags) == 0 {
		flag("0")
	}

	if m.BufferSize, err = mc.intOption(cfg, "buffer_size"); err != nil {
		return nil, err
	}
	if m.BufferSize <= 0 {
		return nil, r.Errorf("buffer_size of motor %s in device %s must be greater than zero", name, dev)
	}
	if m.StepsPerRevolution, err = mc.intOption(cfg, "steps_per_revolution"); err != nil {
		return nil, err
	}
	m.BufferName = fmt.Sprintf("g_%s_%s_buffer", strings.ToLower(dev), strings.ToLower(name))
	a.Vocabulary.Set(m.BufferName, m.BufferSize)
	return m, nil
}

// extiLine claims the EXTI line of an interrupt driven input and sets its
// level flags.
func (mc *motorConfig) extiLine(a *allocator.Allocation, line string, pin allocator.EXTIPin, o *config.Object, prefix string, flag func(string)) error {
	a.Claim(fmt.Sprintf("%s_%s_%s_extiline", strings.ToLower(mc.dev), strings.ToLower(mc.name), line), catalog.TypeEXTILine, pin.Line)
	level, err := mc.option(o, "active_level", "high", "low")
	if err != nil {
		return err
	}
	if level == "high" {
		flag(prefix + "_ACTIVE_HIGH")
	}
	flag(prefix + "_IN_USE")
	return nil
}

func actionFlag(purpose, action string) string {
	switch action {
	case "ignore":
		return purpose + "_IGNORE"
	case "stop_all":
		return purpose + "_ALL"
	}
	return ""
}
