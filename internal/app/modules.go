package app

import (
	"github.com/specialistvlad/mcugraph/internal/registry"
	"github.com/specialistvlad/mcugraph/modules/adcdev"
	"github.com/specialistvlad/mcugraph/modules/can"
	"github.com/specialistvlad/mcugraph/modules/deskdev"
	"github.com/specialistvlad/mcugraph/modules/gpiodev"
	"github.com/specialistvlad/mcugraph/modules/irrc"
	"github.com/specialistvlad/mcugraph/modules/lcd1602a"
	"github.com/specialistvlad/mcugraph/modules/rtc"
	"github.com/specialistvlad/mcugraph/modules/spiproxy"
	"github.com/specialistvlad/mcugraph/modules/spwm"
	"github.com/specialistvlad/mcugraph/modules/stepmotor"
	"github.com/specialistvlad/mcugraph/modules/uartproxy"
)

// coreModules is the definitive list of all device handlers compiled into
// the mcugraph binary.
var coreModules = []registry.Module{
	&adcdev.Module{},
	&can.Module{},
	&uartproxy.Module{},
	&irrc.Module{},
	&deskdev.Module{},
	&gpiodev.Module{},
	&rtc.Module{},
	&lcd1602a.Module{},
	&spwm.Module{},
	&stepmotor.Module{},
	&spiproxy.Module{},
}
