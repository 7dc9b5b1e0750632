package spwm

import (
	"testing"

	"github.com/specialistvlad/mcugraph/internal/allocator"
	"github.com/specialistvlad/mcugraph/internal/errcode"
	"github.com/specialistvlad/mcugraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allocate(t *testing.T, devices string) (*allocator.GroupResult, error) {
	t.Helper()
	ctx, _ := testutil.Context(t)
	doc := testutil.Document(t, `{"firmware": {"device_name": "t", "mcu_model": "stm32f103"},
		"devices": {"SPWMCustomizer": `+devices+`}}`)
	return allocator.AllocateGroup(ctx, testutil.Profile(t), &Handler{}, doc.Groups[0])
}

func TestAllocate(t *testing.T) {
	res, err := allocate(t, `{"pwm": {"dev_id": 7, "prescaler": 72, "requires": {"timer": {"timer": "TIM4"}},
		"description": {
			"fan": {"gpio": "PB_9", "type": "GPIO_Mode_Out_PP", "default": 0},
			"heater": {"gpio": "PA_8", "type": "GPIO_Mode_Out_OD", "default": 1},
			"led": {"gpio": "PB_1", "type": "GPIO_Mode_Out_PP", "default": 1}
		}}}`)
	require.NoError(t, err)
	d := res.Devices[0]

	assert.Equal(t, []string{"timer", "irq_handler", "fan", "heater", "led"}, d.Requires.Roles())
	assert.Equal(t, []string{"TIM4", "TIM4_IRQHandler", "PB_9", "PA_8", "PB_1"}, d.Resources)
	assert.Equal(t, "MAKE_ISR_WITH_INDEX(TIM4_IRQHandler, SPWM_COMMON_TIMER_IRQ_HANDLER, 0)", d.ISRs[0].String())

	v, _ := d.Descriptor.Get("ports")
	ports := v.([]*Port)
	require.Len(t, ports, 2)
	assert.Equal(t, Port{Port: "GPIOB", Bitmask: 0x0202, NBits: 2, DefVals: 0x0002}, *ports[0])
	assert.Equal(t, Port{Port: "GPIOA", Bitmask: 0x0100, NBits: 1, OpenDrainBits: 0x0100, DefVals: 0x0100}, *ports[1])

	v, _ = d.Descriptor.Get("channels")
	ch := v.([]Channel)
	require.Len(t, ch, 3)
	assert.Equal(t, Channel{Name: "led", Define: "SPWM_LED", Index: 0, PortIndex: 0, Pin: 1, Default: true}, ch[0])
	assert.Equal(t, Channel{Name: "fan", Define: "SPWM_FAN", Index: 1, PortIndex: 0, Pin: 9}, ch[1])
	assert.Equal(t, Channel{Name: "heater", Define: "SPWM_HEATER", Index: 2, PortIndex: 1, Pin: 8, Default: true}, ch[2])

	v, _ = d.Descriptor.Get("max_pwm_entries")
	assert.EqualValues(t, 4, v)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code errcode.Code
		msg  string
	}{
		{
			name: "input pin",
			body: `"prescaler": 1, "requires": {"timer": "TIM2"},
				"description": {"x": {"gpio": "PA_0", "type": "GPIO_Mode_IPU", "default": 0}}`,
			code: errcode.StructuralValidation,
			msg:  "Pin x should be output",
		},
		{
			name: "empty description",
			body: `"prescaler": 1, "requires": {"timer": "TIM2"}, "description": {}`,
			code: errcode.StructuralValidation,
			msg:  "at least one pin",
		},
		{
			name: "timer without vector",
			body: `"prescaler": 1, "requires": {"timer": "TIM9"},
				"description": {"x": {"gpio": "PA_0", "type": "GPIO_Mode_Out_PP", "default": 0}}`,
			code: errcode.StructuralValidation,
			msg:  "timer_handler",
		},
		{
			name: "missing prescaler",
			body: `"requires": {"timer": "TIM2"},
				"description": {"x": {"gpio": "PA_0", "type": "GPIO_Mode_Out_PP", "default": 0}}`,
			code: errcode.StructuralValidation,
			msg:  "prescaler",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := allocate(t, `{"bad": {"dev_id": 1, `+tc.body+`}}`)
			require.ErrorIs(t, err, tc.code)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}
