package deskdev

import (
	"testing"

	"github.com/specialistvlad/mcugraph/internal/allocator"
	"github.com/specialistvlad/mcugraph/internal/errcode"
	"github.com/specialistvlad/mcugraph/internal/extihub"
	"github.com/specialistvlad/mcugraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allocate(t *testing.T, devices string) (*allocator.GroupResult, error) {
	t.Helper()
	ctx, _ := testutil.Context(t)
	doc := testutil.Document(t, `{"firmware": {"device_name": "t", "mcu_model": "stm32f103"},
		"devices": {"DeskDevCustomizer": `+devices+`}}`)
	return allocator.AllocateGroup(ctx, testutil.Profile(t), &Handler{}, doc.Groups[0])
}

const panel = `{"desk": {"dev_id": 2, "requires": {
	"up": {"gpio": "PB_12"}, "down": {"gpio": "PB_13"}, "left": {"gpio": "PB_14"}, "right": {"gpio": "PB_15"},
	"encoder": {"A": {"gpio": "PA_0"}, "B": {"gpio": "PA_1"}}
}}}`

func TestAllocate(t *testing.T) {
	res, err := allocate(t, panel)
	require.NoError(t, err)
	d := res.Devices[0]

	assert.Equal(t, []string{
		"up", "down", "left", "right", "encoder",
		"exti_line_btn_up", "exti_line_btn_down", "exti_line_btn_left", "exti_line_btn_right",
		"exti_line_enc_a", "exti_line_enc_b",
	}, d.Requires.Roles())
	assert.Contains(t, d.Resources, "EXTI_Line12")
	assert.Contains(t, d.Resources, "EXTI_Line0")

	v, _ := d.Descriptor.Get("enc_b")
	pin := v.(allocator.EXTIPin)
	assert.Equal(t, "EXTI_Line1", pin.Line)
	assert.Equal(t, "AFIO_EXTICR1_EXTI1_PA", pin.EXTICR)

	ctx, _ := testutil.Context(t)
	hub := extihub.New(testutil.Profile(t))
	require.NoError(t, hub.Register(d.Name, d.Requires))
	out, err := hub.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EXTI0_IRQHandler", "EXTI15_10_IRQHandler", "EXTI1_IRQHandler"}, out.Handlers)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"missing button", `"requires": {"up": {"gpio": "PB_12"}}`, "button down is not specified"},
		{"missing encoder", `"requires": {"up": {"gpio": "PB_12"}, "down": {"gpio": "PB_13"},
			"left": {"gpio": "PB_14"}, "right": {"gpio": "PB_15"}}`, "encoder is not specified"},
		{"encoder with one phase", `"requires": {"up": {"gpio": "PB_12"}, "down": {"gpio": "PB_13"},
			"left": {"gpio": "PB_14"}, "right": {"gpio": "PB_15"}, "encoder": {"A": {"gpio": "PA_0"}}}`, "both A and B"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := allocate(t, `{"bad": {"dev_id": 1, `+tc.body+`}}`)
			require.ErrorIs(t, err, errcode.StructuralValidation)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}
