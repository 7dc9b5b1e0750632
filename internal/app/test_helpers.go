package app

import (
	"os"
	"testing"

	"github.com/specialistvlad/mcugraph/internal/registry"
	"github.com/specialistvlad/mcugraph/internal/testutil"
	"github.com/stretchr/testify/require"
)

// SetupAppTest creates a new app instance for system testing. The report is
// captured in the first buffer and the debug log in the second.
func SetupAppTest(t *testing.T, cfg *Config, modules ...registry.Module) (*App, *testutil.SafeBuffer, *testutil.SafeBuffer) {
	t.Helper()

	out, logs := &testutil.SafeBuffer{}, &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp, err := NewApp(out, logs, cfg, modules...)
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("MCUGRAPH_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	return testApp, out, logs
}
