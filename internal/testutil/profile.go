package testutil

import (
	"testing"

	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/json_adapter"
	"github.com/specialistvlad/mcugraph/internal/profiles"
	"github.com/stretchr/testify/require"
)

// Profile returns the built-in stm32f103 profile.
func Profile(t *testing.T) *catalog.Profile {
	t.Helper()

	ctx, _ := Context(t)
	set, err := profiles.Load(ctx)
	require.NoError(t, err)
	p, err := set.Get("stm32f103")
	require.NoError(t, err)
	return p
}

// Document decodes a JSON configuration held in a string.
func Document(t *testing.T, src string) *config.Document {
	t.Helper()

	doc, err := json_adapter.NewLoader().Parse([]byte(src))
	require.NoError(t, err)
	return doc
}

// Device decodes the body of a single device configuration, for example
// `{"dev_id": 1, "requires": {...}}`, under the given name.
func Device(t *testing.T, name, body string) *config.Device {
	t.Helper()

	doc := Document(t, `{"firmware": {"device_name": "test", "mcu_model": "stm32f103"},
		"devices": {"Test": {"`+name+`": `+body+`}}}`)
	require.Len(t, doc.Groups, 1)
	require.Len(t, doc.Groups[0].Devices, 1)
	return doc.Groups[0].Devices[0]
}
