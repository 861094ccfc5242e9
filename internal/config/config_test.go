package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFlowConfig(t *testing.T) {
	cfg := DefaultFlowConfig()

	assert.Equal(t, "orb", cfg.App.VerificationLevel)
	assert.Equal(t, DefaultPollIntervalMS, cfg.Bridge.PollIntervalMS)
	assert.Empty(t, cfg.Bridge.URL, "empty URL means the hosted default bridge")
	assert.False(t, cfg.Verify.Enabled)
}

func TestLoadFlowConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[app]
id = "app_staging_123"
action = "test-action"
verification_level = "device"

[bridge]
poll_interval_ms = 250

[verify]
enabled = true
`), 0o600))

	cfg, err := LoadFlowConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "app_staging_123", cfg.App.ID)
	assert.Equal(t, "test-action", cfg.App.Action)
	assert.Equal(t, "device", cfg.App.VerificationLevel)
	assert.Equal(t, 250, cfg.Bridge.PollIntervalMS)
	assert.True(t, cfg.Verify.Enabled)
}

func TestLoadFlowConfig_Missing(t *testing.T) {
	_, err := LoadFlowConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := DefaultFlowConfig()
	valid.App.ID = "app_123"
	valid.App.Action = "vote"
	require.NoError(t, valid.Validate())

	missingID := valid
	missingID.App.ID = ""
	assert.Error(t, missingID.Validate())

	missingAction := valid
	missingAction.App.Action = ""
	assert.Error(t, missingAction.Validate())

	badLevel := valid
	badLevel.App.VerificationLevel = "retina"
	assert.Error(t, badLevel.Validate())

	badInterval := valid
	badInterval.Bridge.PollIntervalMS = 0
	assert.Error(t, badInterval.Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "flow.toml"), ExpandPath("~/flow.toml"))
	assert.Equal(t, "/etc/flow.toml", ExpandPath("/etc/flow.toml"))
}
