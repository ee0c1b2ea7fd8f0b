package config

import "dario.cat/mergo"

// mergeSystemConfig merges a user-supplied SystemConfig over the built-in
// defaults; zero-valued user fields fall back to the default.
func mergeSystemConfig(base *SystemConfig, override *SystemConfig) (*SystemConfig, error) {
	merged := *base
	if override != nil {
		if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
			return nil, err
		}
	}
	return &merged, nil
}

// mergeSettings merges user-supplied setting overrides over an empty base,
// returning a fresh map so later mutation never aliases the caller's map.
func mergeSettings(overrides map[string]string) map[string]string {
	result := make(map[string]string, len(overrides))
	for k, v := range overrides {
		result[k] = v
	}
	return result
}
