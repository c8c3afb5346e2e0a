// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Phase     PhaseConfig     `toml:"phase"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	History   HistoryConfig   `toml:"history"`
}

// PhaseConfig maps phase-related settings.
type PhaseConfig struct {
	Duration         *time.Duration `toml:"duration"`
	ArithmeticPeriod *time.Duration `toml:"arithmetic-period"`
	Seed             *int64         `toml:"seed"`
}

// TelemetryConfig maps the telemetry source settings.
type TelemetryConfig struct {
	Source     *string        `toml:"source"`
	URL        *string        `toml:"url"`
	StaleAfter *time.Duration `toml:"stale-after"`
}

// HistoryConfig maps report archiving settings.
type HistoryConfig struct {
	Record *bool `toml:"record"`
}

// Telemetry source names.
const (
	SourceSim = "sim"
	SourceWS  = "ws"
	SourceOff = "off"
)

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

func (c FileConfig) validate() error {
	if c.Telemetry.Source != nil {
		if err := ValidateSource(*c.Telemetry.Source); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSource checks a telemetry source name.
func ValidateSource(name string) error {
	switch name {
	case SourceSim, SourceWS, SourceOff:
		return nil
	}
	return fmt.Errorf("invalid telemetry source %q (want %s, %s or %s)", name, SourceSim, SourceWS, SourceOff)
}

// Template is the commented default config written by the config command.
const Template = `# sepia configuration

[phase]
# duration = "5m"
# arithmetic-period = "30s"
# seed = 0

[telemetry]
# source = "sim"   # sim, ws or off
# url = "ws://127.0.0.1:8765/telemetry"
# stale-after = "2s"

[history]
# record = false
`
