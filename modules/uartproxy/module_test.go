package uartproxy

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
		"devices": {"UartProxyCustomizer": `+devices+`}}`)
	return allocator.AllocateGroup(ctx, testutil.Profile(t), &Handler{}, doc.Groups[0])
}

func TestAllocate(t *testing.T) {
	res, err := allocate(t, `{
		"gps": {"dev_id": 4, "baud_rate": 9600, "buffer_size": 128, "requires": {"usart": "USART2"}},
		"modem": {"dev_id": 5, "baud_rate": 115200, "buffer_size": 256, "requires": {"usart": {"usart": "USART3"}}}
	}`)
	require.NoError(t, err)
	require.Len(t, res.Devices, 2)

	d := res.Devices[0]
	assert.Equal(t, []string{"usart", "irq_handler", "rx", "tx"}, d.Requires.Roles())
	assert.Equal(t, []string{"USART2", "USART2_IRQHandler", "PA_3", "PA_2"}, d.Resources)
	assert.Equal(t, "MAKE_ISR_WITH_INDEX(USART2_IRQHandler, UART_PROXY_COMMON_IRQ_HANDLER, 0)", d.ISRs[0].String())

	v, _ := d.Descriptor.Get("irqn")
	assert.Equal(t, "USART2_IRQn", v)
	v, _ = d.Descriptor.Get("rx_pin")
	assert.Equal(t, "GPIO_Pin_3", v)
	v, _ = d.Descriptor.Get("buf_size_def")
	assert.Equal(t, "GPS_BUFFER_LEN", v)

	assert.Equal(t, "MAKE_ISR_WITH_INDEX(USART3_IRQHandler, UART_PROXY_COMMON_IRQ_HANDLER, 1)", res.Devices[1].ISRs[0].String())

	n, ok := res.Vocabulary.Get("MODEM_BUFFER_LEN")
	require.True(t, ok)
	assert.EqualValues(t, 256, n)
	n, _ = res.Vocabulary.Get("__UART_PROXY_DEVICE_COUNT__")
	assert.EqualValues(t, 2, n)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code errcode.Code
	}{
		{"no usart", `"baud_rate": 9600, "buffer_size": 8, "requires": {}`, errcode.StructuralValidation},
		{"extra requirement", `"baud_rate": 9600, "buffer_size": 8, "requires": {"usart": "USART1", "led": {"gpio": "PC_13"}}`, errcode.StructuralValidation},
		{"missing baud rate", `"buffer_size": 8, "requires": {"usart": "USART1"}`, errcode.StructuralValidation},
		{"zero buffer", `"baud_rate": 9600, "buffer_size": 0, "requires": {"usart": "USART1"}`, errcode.StructuralValidation},
		{"i2c instead of usart", `"baud_rate": 9600, "buffer_size": 8, "requires": {"usart": "I2C1"}`, errcode.WrongResourceType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := allocate(t, `{"bad": {"dev_id": 1, `+tc.body+`}}`)
			require.ErrorIs(t, err, tc.code)
			assert.Contains(t, err.Error(), "device bad")
		})
	}
}
