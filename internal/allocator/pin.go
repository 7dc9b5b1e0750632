package allocator

import (
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/resolver"
)

// Pin is a resolved GPIO pin with its register encodings.
type Pin struct {
	Name   string `json:"name"`
	Port   string `json:"port"`
	Number int    `json:"pin"`
	Mask   string `json:"mask"`
}

// ResolvePin validates a gpio resource and computes its encodings.
func ResolvePin(r *resolver.Resolver, name string) (Pin, error) {
	if _, err := r.CheckResource(name, catalog.TypeGPIO); err != nil {
		return Pin{}, err
	}
	p := r.Profile()
	port, err := p.GPIOPort(name)
	if err != nil {
		return Pin{}, r.Attribute(err)
	}
	n, err := p.GPIOPinNumber(name)
	if err != nil {
		return Pin{}, r.Attribute(err)
	}
	mask, err := p.GPIOPinMask(name)
	if err != nil {
		return Pin{}, r.Attribute(err)
	}
	return Pin{Name: name, Port: port, Number: n, Mask: mask}, nil
}

// GPIORole resolves the {gpio: name} singleton stored under role.
func GPIORole(r *resolver.Resolver, req catalog.Requires, role string) (Pin, error) {
	name, err := r.Role(req, role, catalog.TypeGPIO)
	if err != nil {
		return Pin{}, err
	}
	return ResolvePin(r, name)
}

// EXTIPin is an input pin routed to an external interrupt line.
type EXTIPin struct {
	Pin
	Line   string `json:"exti_line"`
	EXTICR string `json:"exticr"`
}

// ResolveEXTIPin resolves a pin together with the EXTI line it drives.
func ResolveEXTIPin(r *resolver.Resolver, name string) (EXTIPin, error) {
	pin, err := ResolvePin(r, name)
	if err != nil {
		return EXTIPin{}, err
	}
	line, err := r.Profile().GPIOToEXTILine(name)
	if err != nil {
		return EXTIPin{}, r.Attribute(err)
	}
	cr, err := r.Profile().GPIOToEXTICR(name)
	if err != nil {
		return EXTIPin{}, r.Attribute(err)
	}
	return EXTIPin{Pin: pin, Line: line, EXTICR: cr}, nil
}

// TimerHandler returns the update interrupt handler of a timer.
func TimerHandler(r *resolver.Resolver, timer string) (string, error) {
	h, err := r.Profile().ResourceHandler(timer, "timer_handler")
	if err != nil {
		return "", r.Attribute(err)
	}
	if _, err := r.CheckResource(h, catalog.TypeIRQHandler); err != nil {
		return "", err
	}
	return h, nil
}
