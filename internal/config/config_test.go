package config

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsOverridesDefaults(t *testing.T) {
	cfg := Defaults()
	cmd := &cobra.Command{Use: "test"}
	cfg.BindFlags(cmd)

	require.NoError(t, cmd.PersistentFlags().Parse([]string{
		"--socket", "/tmp/other.sock",
		"--log-level", "debug",
		"--trash-rescan-interval", "5s",
	}))

	assert.Equal(t, "/tmp/other.sock", cfg.SocketPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.TrashRescanInterval)
}

func TestValidateRejectsEmptySocket(t *testing.T) {
	cfg := Defaults()
	cfg.SocketPath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveRescanInterval(t *testing.T) {
	cfg := Defaults()
	cfg.TrashRescanInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}
