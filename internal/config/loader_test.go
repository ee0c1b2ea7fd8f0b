package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultSystemConfig().DBPath, cfg.System.DBPath)
}

func TestLoadOverridesMergeOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "luffybot.yaml")
	content := `
system:
  db_path: ./custom.sqlite3
settings:
  max_parallel_runs: "8"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./custom.sqlite3", cfg.System.DBPath)
	require.Equal(t, DefaultSystemConfig().RunLogDir, cfg.System.RunLogDir)
	require.Equal(t, "8", cfg.SettingsOverrides["max_parallel_runs"])
}

func TestLoadExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "luffybot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system:\n  scripts_root: ${LUFFYBOT_TEST_ROOT}\n"), 0o644))

	t.Setenv("LUFFYBOT_TEST_ROOT", "/opt/scripts")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/opt/scripts", cfg.System.ScriptsRoot)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "luffybot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system: [this is not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
