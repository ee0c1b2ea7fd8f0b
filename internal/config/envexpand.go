package config

import "os"

// ExpandEnv expands ${VAR} / $VAR references in raw YAML bytes before
// parsing, so secrets (tokens, API keys) can live in the environment
// instead of the config file. Missing variables expand to empty string;
// Validate catches required fields left empty this way.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
