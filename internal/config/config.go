// Package config reads the ~/.vista/config.toml file that supplies
// built-in defaults for pager behavior, sitting below CLI flags and
// environment variables in the precedence chain cmd/vista applies.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the ~/.vista/config.toml file.
type Config struct {
	WrapWidth       int  `toml:"wrap_width,omitempty"`
	Follow          bool `toml:"follow,omitempty"`
	TabWidth        int  `toml:"tab_width,omitempty"`
	ShrinkThreshold int  `toml:"shrink_threshold,omitempty"`
}

// configDirOverride is set by the --config-dir flag or VISTA_HOME env var.
var configDirOverride string

// SetConfigDir allows the CLI to pass in the --config-dir / VISTA_HOME value.
func SetConfigDir(dir string) {
	configDirOverride = dir
}

// Home returns the config directory path.
// Precedence: --config-dir flag / SetConfigDir > VISTA_HOME env > ~/.vista
func Home() string {
	if configDirOverride != "" {
		return configDirOverride
	}
	if v := os.Getenv("VISTA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".vista")
	}
	return filepath.Join(home, ".vista")
}

// Path returns the full path to config.toml.
func Path() string {
	return filepath.Join(Home(), "config.toml")
}

// Load reads config.toml and returns a Config struct. If the file does not
// exist, it returns a zero-value Config (every field takes its built-in
// default downstream).
func Load() (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}
	return cfg, nil
}
