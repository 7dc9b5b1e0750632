package engine

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/specialistvlad/mcugraph/internal/errcode"
	"github.com/specialistvlad/mcugraph/internal/profiles"
	"github.com/specialistvlad/mcugraph/internal/registry"
	"github.com/specialistvlad/mcugraph/internal/testutil"
	"github.com/specialistvlad/mcugraph/modules/can"
	"github.com/specialistvlad/mcugraph/modules/irrc"
	"github.com/specialistvlad/mcugraph/modules/uartproxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	ctx, _ := testutil.Context(t)
	reg := registry.New()
	for _, m := range []registry.Module{&can.Module{}, &irrc.Module{}, &uartproxy.Module{}} {
		m.Register(reg)
	}
	set, err := profiles.Load(ctx)
	require.NoError(t, err)
	return New(reg, set)
}

const firmwareSection = `"firmware": {
	"device_name": "bench", "mcu_model": "stm32f103",
	"i2c_bus": {"requires": {"i2c": "I2C1"}, "buffer_size": 512, "address": 32, "clock_speed": 100000},
	"sys_tick": {"requires": {"timer": "TIM4"}}
}`

func document(firmware, devices string) string {
	return `{` + firmware + `, "devices": {` + devices + `}}`
}

const (
	irrcGroup = `"IRRCCustomizer": {"ir": {"dev_id": 6, "buffer_size": 32, "requires": {"data": {"gpio": "PB_5"}}}}`
	uartGroup = `"UartProxyCustomizer": {"gps": {"dev_id": 4, "baud_rate": 9600, "buffer_size": 128, "requires": {"usart": "USART2"}}}`
)

func TestRun(t *testing.T) {
	ctx, logs := testutil.Context(t)
	doc := testutil.Document(t, document(firmwareSection, irrcGroup+", "+uartGroup))

	rep, err := newEngine(t).Run(ctx, doc)
	require.NoError(t, err)

	assert.Equal(t, "bench", rep.DeviceName)
	assert.Equal(t, "stm32f103", rep.MCU)
	require.Len(t, rep.Groups, 2)
	assert.Equal(t, "IRRCCustomizer", rep.Groups[0].Name)
	assert.Equal(t, "UartProxyCustomizer", rep.Groups[1].Name)

	assert.Equal(t, []string{
		"I2C1", "I2C1_EV_IRQHandler", "I2C1_ER_IRQHandler", "PB_7", "PB_6",
		"TIM4", "TIM4_IRQHandler",
		"PB_5", "EXTI_Line5",
		"USART2", "USART2_IRQHandler", "PA_3", "PA_2",
		"EXTI9_5_IRQHandler",
	}, rep.Resources)

	require.True(t, rep.Hub.Enabled)
	assert.Equal(t, []string{"EXTI9_5_IRQHandler"}, rep.Hub.Handlers)
	assert.Equal(t, "ir", rep.Hub.Owners["EXTI_Line5"])

	assert.Equal(t, []DevID{{Device: "info", DevID: int64(0)}, {Device: "ir", DevID: int64(6)}, {Device: "gps", DevID: int64(4)}}, rep.DevIDs)
	require.Len(t, rep.Info.Devices, 16)
	assert.Equal(t, "gps", rep.Info.Devices[4].Name)
	assert.Equal(t, "INFO_DEV_TYPE_UART_PROXY", rep.Info.Devices[4].Type)
	assert.Equal(t, "INFO_DEV_TYPE_IRRC", rep.Info.Devices[6].Type)

	require.Len(t, rep.Firmware.Features, 1)
	assert.True(t, rep.Firmware.Features[0].Enabled, "the EXTI hub needs SYSTICK")
	require.NotEmpty(t, rep.Firmware.Clocks)
	assert.Equal(t, "APB1", rep.Firmware.Clocks[0].Bus)
	assert.Equal(t, []string{"RCC_APB1Periph_I2C1", "RCC_APB1Periph_TIM4", "RCC_APB1Periph_USART2"}, rep.Firmware.Clocks[0].Members)

	for key, want := range map[string]any{
		"__ENABLE_SYSTICK__":          int64(1),
		"__IRRC_DEVICE_COUNT__":       int64(1),
		"__UART_PROXY_DEVICE_COUNT__": int64(1),
		"__EXTIHUB_ENABLED__":         int64(1),
		"__INFO_PROJECT_NAME__":       "bench",
		"__I2C_BUS_PERIPH__":          "I2C1",
	} {
		v, ok := rep.Vocabulary.Get(key)
		require.True(t, ok, "vocabulary has no %s", key)
		assert.Equal(t, want, v, key)
	}

	assert.Contains(t, logs.String(), "Generation run finished.")
}

func TestReportWrite(t *testing.T) {
	ctx, _ := testutil.Context(t)
	doc := testutil.Document(t, document(firmwareSection, irrcGroup))
	rep, err := newEngine(t).Run(ctx, doc)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, rep.Write(&buf))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	hub := out["exti_hub"].(map[string]any)
	assert.Equal(t, true, hub["enabled"])
	groups := out["groups"].([]any)
	require.Len(t, groups, 1)
	dev := groups[0].(map[string]any)["devices"].([]any)[0].(map[string]any)
	assert.Equal(t, "ir", dev["name"])
	descriptor := dev["descriptor"].(map[string]any)
	assert.Equal(t, "EXTI_Line5", descriptor["data_exti_line"])
}

func TestRunWithoutDevices(t *testing.T) {
	ctx, _ := testutil.Context(t)
	doc := testutil.Document(t, document(`"firmware": {"device_name": "empty", "mcu_model": "stm32f103"}`, ""))
	rep, err := newEngine(t).Run(ctx, doc)
	require.NoError(t, err)

	assert.False(t, rep.Hub.Enabled)
	assert.Empty(t, rep.Resources)
	assert.Empty(t, rep.Groups)
	v, _ := rep.Vocabulary.Get("__ENABLE_SYSTICK__")
	assert.EqualValues(t, 0, v)
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name     string
		firmware string
		devices  string
		code     errcode.Code
		msg      string
	}{
		{
			name:     "pin claimed by the I2C bus and a device",
			firmware: firmwareSection,
			devices:  `"IRRCCustomizer": {"ir": {"dev_id": 6, "buffer_size": 32, "requires": {"data": {"gpio": "PB_6"}}}}`,
			code:     errcode.ResourceConflict,
			msg:      "PB_6 (i2c_bus, ir)",
		},
		{
			name:     "duplicate dev_id",
			firmware: firmwareSection,
			devices: `"IRRCCustomizer": {"ir": {"dev_id": 4, "buffer_size": 32, "requires": {"data": {"gpio": "PB_5"}}}},
				` + uartGroup,
			code: errcode.DuplicateDeviceID,
			msg:  "4 (ir, gps)",
		},
		{
			name:     "dev_id of the info device",
			firmware: firmwareSection,
			devices:  `"UartProxyCustomizer": {"gps": {"dev_id": 0, "baud_rate": 9600, "buffer_size": 128, "requires": {"usart": "USART2"}}}`,
			code:     errcode.DuplicateDeviceID,
			msg:      "0 (info, gps)",
		},
		{
			name:     "dev_id outside the address range",
			firmware: firmwareSection,
			devices:  `"UartProxyCustomizer": {"gps": {"dev_id": 16, "baud_rate": 9600, "buffer_size": 128, "requires": {"usart": "USART2"}}}`,
			code:     errcode.InvalidDeviceID,
			msg:      "16 (gps)",
		},
		{
			name:     "missing dev_id",
			firmware: firmwareSection,
			devices:  `"UartProxyCustomizer": {"gps": {"baud_rate": 9600, "buffer_size": 128, "requires": {"usart": "USART2"}}}`,
			code:     errcode.InvalidDeviceID,
			msg:      "null (gps)",
		},
		{
			name:     "integral float dev_id",
			firmware: firmwareSection,
			devices:  `"IRRCCustomizer": {"ir": {"dev_id": 3.0, "buffer_size": 32, "requires": {"data": {"gpio": "PB_5"}}}}`,
			code:     errcode.InvalidDeviceID,
			msg:      "3.0 (ir)",
		},
		{
			name:     "unsupported device group",
			firmware: firmwareSection,
			devices:  `"TeleporterCustomizer": {"t": {"dev_id": 1}}`,
			code:     errcode.UnsupportedDevice,
			msg:      "TeleporterCustomizer",
		},
		{
			name:     "unported device type",
			firmware: firmwareSection,
			devices:  `"SPIDACCustomizer": {"dac": {"dev_id": 2}}`,
			code:     errcode.UnsupportedDevice,
			msg:      "SPIDACCustomizer",
		},
		{
			name:     "unknown mcu",
			firmware: `"firmware": {"device_name": "x", "mcu_model": "avr328"}`,
			code:     errcode.UnknownMCU,
			msg:      "avr328",
		},
		{
			name:     "exti hub without a systick timer",
			firmware: `"firmware": {"device_name": "x", "mcu_model": "stm32f103"}`,
			devices:  irrcGroup,
			code:     errcode.StructuralValidation,
			msg:      "sys_tick is not configured",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx, _ := testutil.Context(t)
			doc := testutil.Document(t, document(tc.firmware, tc.devices))
			_, err := newEngine(t).Run(ctx, doc)
			require.ErrorIs(t, err, tc.code)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

// CAN1 and its remap share their four interrupt vectors, so one controller
// can serve only one device whichever pin set it uses.
func TestRunCANAndRemapShareVectors(t *testing.T) {
	ctx, _ := testutil.Context(t)
	doc := testutil.Document(t, document(firmwareSection, `"CanCustomizer": {
		"can0": {"dev_id": 3, "buffered_msg_count": 8, "requires": {"can": "CAN1"}},
		"can1": {"dev_id": 5, "buffered_msg_count": 8, "requires": {"can": "CAN1_REMAP"}}
	}`))

	_, err := newEngine(t).Run(ctx, doc)
	require.ErrorIs(t, err, errcode.ResourceConflict)
	for _, irq := range []string{"USB_HP_CAN1_TX_IRQHandler", "USB_LP_CAN1_RX0_IRQHandler", "CAN1_RX1_IRQHandler", "CAN1_SCE_IRQHandler"} {
		assert.Contains(t, err.Error(), irq+" (can0, can1)")
	}
	assert.NotContains(t, err.Error(), "PA_11", "the remap uses other pins")
	assert.NotContains(t, err.Error(), "CAN1 (can0", "the remap is a distinct peripheral name")
}

func TestRunSingleRemappedCAN(t *testing.T) {
	ctx, _ := testutil.Context(t)
	doc := testutil.Document(t, document(firmwareSection, `"CanCustomizer": {
		"can1": {"dev_id": 5, "buffered_msg_count": 8, "requires": {"can": "CAN1_REMAP"}}
	}`))

	rep, err := newEngine(t).Run(ctx, doc)
	require.NoError(t, err)
	assert.Contains(t, rep.Resources, "PB_8")
	assert.Contains(t, rep.Resources, "CAN1_SCE_IRQHandler")
}

func TestReportGroup(t *testing.T) {
	ctx, _ := testutil.Context(t)
	doc := testutil.Document(t, document(firmwareSection, uartGroup))
	rep, err := newEngine(t).Run(ctx, doc)
	require.NoError(t, err)

	g, ok := rep.Group("UartProxyCustomizer")
	require.True(t, ok)
	assert.Len(t, g.Devices, 1)
	_, ok = rep.Group("IRRCCustomizer")
	assert.False(t, ok)
}
