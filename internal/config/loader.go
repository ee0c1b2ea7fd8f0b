package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads, expands, parses, merges, and validates the configuration file
// at path. A missing file is not an error: the built-in defaults are used,
// matching the teacher's tolerant ".env not found, continuing" posture.
func Load(path string) (*Config, error) {
	var fc FileConfig

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := ExpandEnv(data)
		if err := yaml.Unmarshal(expanded, &fc); err != nil {
			return nil, &LoadError{File: path, Err: fmt.Errorf("%w: %v", ErrInvalidYAML, err)}
		}
	case errors.Is(err, os.ErrNotExist):
		slog.Warn("config file not found, using built-in defaults", "path", path)
	default:
		return nil, &LoadError{File: path, Err: err}
	}

	system, err := mergeSystemConfig(DefaultSystemConfig(), fc.System)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}

	cfg := &Config{
		System:            system,
		SettingsOverrides: mergeSettings(fc.Settings),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
