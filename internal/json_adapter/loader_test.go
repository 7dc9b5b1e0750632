package json_adapter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/errcode"
	"github.com/specialistvlad/mcugraph/internal/json_adapter"
	"github.com/specialistvlad/mcugraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeepsDeclarationOrder(t *testing.T) {
	doc, err := json_adapter.NewLoader().Parse([]byte(`{
		"firmware": {"device_name": "bench", "mcu_model": "stm32f103", "extra": 1.5},
		"devices": {
			"UartProxyCustomizer": {
				"zeta": {"dev_id": 2, "baud_rate": 9600, "requires": {"usart": "USART2"}},
				"alpha": {"dev_id": 1, "tags": ["a", true, null]}
			},
			"IRRCCustomizer": {"ir": {"dev_id": 3, "requires": {"data": {"gpio": "PB_5"}}}}
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "bench", doc.Firmware.DeviceName)
	extra, ok := doc.Firmware.Fields.Get("extra")
	require.True(t, ok)
	assert.Equal(t, 1.5, extra)

	require.Len(t, doc.Groups, 2)
	assert.Equal(t, "UartProxyCustomizer", doc.Groups[0].Name)
	assert.Equal(t, "IRRCCustomizer", doc.Groups[1].Name)
	assert.Equal(t, "zeta", doc.Groups[0].Devices[0].Name)
	assert.Equal(t, "alpha", doc.Groups[0].Devices[1].Name)

	zeta := doc.Groups[0].Devices[0]
	assert.Equal(t, int64(2), zeta.DevID)
	baud, _ := zeta.Field("baud_rate")
	assert.Equal(t, int64(9600), baud)
	assert.Equal(t, []string{"USART2"}, zeta.Requires.Leaves())

	tags, _ := doc.Groups[0].Devices[1].Field("tags")
	assert.Equal(t, []any{"a", true, nil}, tags)

	data, ok := doc.Groups[1].Devices[0].Requires.Get("data")
	require.True(t, ok)
	assert.IsType(t, catalog.Nested{}, data)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code errcode.Code
		msg  string
	}{
		{name: "top-level array", src: `[1]`, msg: "top-level JSON value must be an object"},
		{name: "trailing data", src: `{"firmware": {}} {}`, msg: "unexpected data after the top-level object"},
		{name: "duplicate key", src: `{"firmware": {"device_name": "a", "device_name": "b"}}`, msg: `duplicate key "device_name"`},
		{name: "truncated", src: `{"firmware": `, msg: "firmware"},
		{name: "no firmware", src: `{"devices": {}}`, code: errcode.StructuralValidation, msg: `configuration has no "firmware" section`},
		{
			name: "requires is a list",
			src:  `{"firmware": {"device_name": "a", "mcu_model": "m"}, "devices": {"G": {"d": {"requires": ["PA_1"]}}}}`,
			code: errcode.MalformedRequirement,
			msg:  "requires must be an object",
		},
		{
			name: "requirement is a number",
			src:  `{"firmware": {"device_name": "a", "mcu_model": "m"}, "devices": {"G": {"d": {"requires": {"gpio": 5}}}}}`,
			code: errcode.MalformedRequirement,
			msg:  "requirement gpio must be a resource name or an object",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := json_adapter.NewLoader().Parse([]byte(tc.src))
			require.Error(t, err)
			if tc.code != "" {
				assert.ErrorIs(t, err, tc.code)
			}
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestLoad(t *testing.T) {
	ctx, logs := testutil.Context(t)
	path := filepath.Join(t.TempDir(), "board.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"firmware": {"device_name": "bench", "mcu_model": "stm32f103"}}`), 0o600))

	doc, err := json_adapter.NewLoader().Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "stm32f103", doc.Firmware.MCUModel)
	assert.Empty(t, doc.Groups)
	assert.Contains(t, logs.String(), "JSON loading complete.")

	_, err = json_adapter.NewLoader().Load(ctx, filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read JSON file")
}
