package irrc

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
		"devices": {"IRRCCustomizer": `+devices+`}}`)
	return allocator.AllocateGroup(ctx, testutil.Profile(t), &Handler{}, doc.Groups[0])
}

func TestAllocate(t *testing.T) {
	res, err := allocate(t, `{"ir": {"dev_id": 6, "buffer_size": 32, "requires": {"data": {"gpio": "PB_5"}}}}`)
	require.NoError(t, err)
	d := res.Devices[0]

	assert.Equal(t, []string{"data", "exti_line_irrc"}, d.Requires.Roles())
	assert.Equal(t, []string{"PB_5", "EXTI_Line5"}, d.Resources)
	assert.Empty(t, d.ISRs)

	v, _ := d.Descriptor.Get("data_exti_line")
	assert.Equal(t, "EXTI_Line5", v)
	v, _ = d.Descriptor.Get("data_port")
	assert.Equal(t, "GPIOB", v)
}

func TestExclusive(t *testing.T) {
	_, err := allocate(t, `{
		"a": {"dev_id": 6, "buffer_size": 32, "requires": {"data": {"gpio": "PB_5"}}},
		"b": {"dev_id": 7, "buffer_size": 32, "requires": {"data": {"gpio": "PB_6"}}}
	}`)
	require.ErrorIs(t, err, errcode.StructuralValidation)
	assert.Contains(t, err.Error(), "IRRCCustomizer doesn't support 2 devices per mcu")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code errcode.Code
	}{
		{"no data pin", `"buffer_size": 8, "requires": {}`, errcode.StructuralValidation},
		{"no buffer", `"requires": {"data": {"gpio": "PB_5"}}`, errcode.StructuralValidation},
		{"data is not a pin", `"buffer_size": 8, "requires": {"data": {"gpio": "TIM2"}}`, errcode.WrongResourceType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := allocate(t, `{"bad": {"dev_id": 1, `+tc.body+`}}`)
			require.ErrorIs(t, err, tc.code)
		})
	}
}
