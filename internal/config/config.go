// Package config holds configuration for the worldid-flow command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Defaults for the flow command.
const (
	// DefaultPollIntervalMS is the sleep between bridge polls in
	// milliseconds.
	DefaultPollIntervalMS = 500
)

// FlowConfig holds configuration for a terminal verification flow.
type FlowConfig struct {
	App    AppConfig    `toml:"app"`
	Bridge BridgeConfig `toml:"bridge"`
	Verify VerifyConfig `toml:"verify"`
}

// AppConfig identifies the verification being requested.
type AppConfig struct {
	ID                string `toml:"id"`
	Action            string `toml:"action"`
	ActionDescription string `toml:"action_description"`
	VerificationLevel string `toml:"verification_level"`
	Signal            string `toml:"signal"`
}

// BridgeConfig holds bridge relay settings.
type BridgeConfig struct {
	URL            string `toml:"url"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
}

// VerifyConfig holds server-side verification settings.
type VerifyConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
}

// DefaultFlowConfig returns the default flow configuration: the hosted
// bridge, orb-level verification, no server-side verification.
func DefaultFlowConfig() FlowConfig {
	return FlowConfig{
		App: AppConfig{
			VerificationLevel: "orb",
		},
		Bridge: BridgeConfig{
			PollIntervalMS: DefaultPollIntervalMS,
		},
	}
}

// ExpandPath expands ~ to the user's home directory. Returns the path
// unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			panic(fmt.Sprintf("failed to get home directory: %v", err))
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// LoadFlowConfig reads a TOML config file, layering it over the defaults.
func LoadFlowConfig(path string) (FlowConfig, error) {
	cfg := DefaultFlowConfig()

	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can drive a verification flow.
func (c FlowConfig) Validate() error {
	if c.App.ID == "" {
		return errors.New("config: app id is required")
	}
	if c.App.Action == "" {
		return errors.New("config: action is required")
	}
	switch c.App.VerificationLevel {
	case "orb", "device":
	default:
		return fmt.Errorf("config: invalid verification level %q, expected orb or device", c.App.VerificationLevel)
	}
	if c.Bridge.PollIntervalMS <= 0 {
		return errors.New("config: poll interval must be positive")
	}
	return nil
}
