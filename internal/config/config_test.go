package config

import (
	"testing"

	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func object(kv ...any) *Object {
	o := NewObject()
	for i := 0; i+1 < len(kv); i += 2 {
		o.Set(kv[i].(string), kv[i+1])
	}
	return o
}

func TestObject(t *testing.T) {
	o := object("b", int64(1), "a", "x")
	o.Set("b", int64(2))
	assert.Equal(t, []string{"b", "a"}, o.Keys(), "re-setting keeps the position")
	v, _ := o.Get("b")
	assert.Equal(t, int64(2), v)

	assert.Equal(t, []string{"a"}, o.Without("b").Keys())
	assert.Equal(t, 2, o.Len(), "Without does not modify the receiver")

	nested := object("z", int64(1), "list", []any{object("k", true)})
	o.Set("nested", nested)
	data, err := o.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2,"a":"x","nested":{"z":1,"list":[{"k":true}]}}`, string(data))

	plain := o.Plain()
	assert.Equal(t, map[string]any{"z": int64(1), "list": []any{map[string]any{"k": true}}}, plain["nested"])

	var none *Object
	assert.Zero(t, none.Len())
	assert.Nil(t, none.Keys())
	assert.False(t, none.Has("a"))
}

func TestScalarHelpers(t *testing.T) {
	i, ok := AsInt(int64(4))
	assert.True(t, ok)
	assert.Equal(t, int64(4), i)
	_, ok = AsInt(4.0)
	assert.False(t, ok, "floats are not integers")
	_, ok = AsInt("4")
	assert.False(t, ok)

	b, ok := AsBool(int64(1))
	assert.True(t, ok)
	assert.True(t, b)
	_, ok = AsBool("yes")
	assert.False(t, ok)

	_, ok = AsString(int64(1))
	assert.False(t, ok)
}

func firmwareObject(extra ...any) *Object {
	return object(append([]any{KeyDeviceName, "bench", KeyMCUModel, "stm32f103"}, extra...)...)
}

func TestFromObject(t *testing.T) {
	root := object(
		KeyFirmware, firmwareObject(
			KeySysTick, object(KeyRequires, object("timer", "TIM4")),
			"debug", true,
		),
		KeyDevices, object(
			"RTCCustomizer", object(
				"clock", object(KeyDevID, int64(5), KeyRequires, object("rtc", "RTC", "bkp", "BKP_DR1"), "period", int64(10)),
			),
		),
	)

	doc, err := FromObject(root)
	require.NoError(t, err)
	assert.Same(t, root, doc.Raw)
	assert.Equal(t, "bench", doc.Firmware.DeviceName)
	assert.Equal(t, []string{"debug"}, doc.Firmware.Fields.Keys())
	require.NotNil(t, doc.Firmware.SysTick)
	assert.Equal(t, []string{"TIM4"}, doc.Firmware.SysTick.Requires.Leaves())
	assert.Nil(t, doc.Firmware.I2CBus)

	g, ok := doc.Group("RTCCustomizer")
	require.True(t, ok)
	dev := g.Devices[0]
	assert.Equal(t, "clock", dev.Name)
	assert.True(t, dev.HasDevID)
	assert.Equal(t, int64(5), dev.DevID)
	assert.Equal(t, []string{"rtc", "bkp"}, dev.Requires.Roles())
	assert.Equal(t, []string{"period"}, dev.Fields.Keys())

	_, ok = doc.Group("CanCustomizer")
	assert.False(t, ok)
}

func TestFromObjectMissingDevID(t *testing.T) {
	doc, err := FromObject(object(KeyFirmware, firmwareObject(), KeyDevices, object("G", object("d", object()))))
	require.NoError(t, err)
	dev := doc.Groups[0].Devices[0]
	assert.False(t, dev.HasDevID)
	assert.Nil(t, dev.DevID)
	assert.Zero(t, dev.Requires.Len())
}

func TestFromObjectErrors(t *testing.T) {
	tests := []struct {
		name string
		root *Object
		code errcode.Code
		msg  string
	}{
		{name: "no firmware", root: object(), code: errcode.StructuralValidation, msg: `configuration has no "firmware" section`},
		{name: "firmware is a list", root: object(KeyFirmware, []any{}), code: errcode.StructuralValidation, msg: `"firmware" must be an object`},
		{
			name: "empty device name",
			root: object(KeyFirmware, object(KeyDeviceName, "", KeyMCUModel, "m")),
			code: errcode.StructuralValidation,
			msg:  `firmware "device_name" must be a non-empty string`,
		},
		{
			name: "mcu model is a number",
			root: object(KeyFirmware, object(KeyDeviceName, "a", KeyMCUModel, int64(1))),
			code: errcode.StructuralValidation,
			msg:  `firmware "mcu_model" must be a non-empty string`,
		},
		{
			name: "i2c bus is a string",
			root: object(KeyFirmware, firmwareObject(KeyI2CBus, "I2C1")),
			code: errcode.StructuralValidation,
			msg:  `firmware "i2c_bus" must be an object`,
		},
		{
			name: "devices is a list",
			root: object(KeyFirmware, firmwareObject(), KeyDevices, []any{}),
			code: errcode.StructuralValidation,
			msg:  `"devices" must be an object`,
		},
		{
			name: "group is a string",
			root: object(KeyFirmware, firmwareObject(), KeyDevices, object("G", "x")),
			code: errcode.StructuralValidation,
			msg:  "device group G must be an object",
		},
		{
			name: "device is a number",
			root: object(KeyFirmware, firmwareObject(), KeyDevices, object("G", object("d", int64(1)))),
			code: errcode.StructuralValidation,
			msg:  "device configuration must be an object",
		},
		{
			name: "malformed section requires",
			root: object(KeyFirmware, firmwareObject(KeySysTick, object(KeyRequires, "TIM4"))),
			code: errcode.MalformedRequirement,
			msg:  "sys_tick",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromObject(tc.root)
			require.ErrorIs(t, err, tc.code)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestRequiresFromValue(t *testing.T) {
	req, err := RequiresFromValue("d", object("usart", "USART2", "data", object("gpio", "PB_5")))
	require.NoError(t, err)
	assert.Equal(t, []string{"usart", "data"}, req.Roles())
	data, _ := req.Get("data")
	assert.Equal(t, catalog.Singleton("gpio", "PB_5"), data)

	req, err = RequiresFromValue("d", nil)
	require.NoError(t, err)
	assert.Zero(t, req.Len())
}
