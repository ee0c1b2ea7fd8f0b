// Package config loads, merges, and validates the YAML configuration that
// seeds the core's static infrastructure (filesystem paths, HTTP port,
// notifier credentials) and the initial values of the mutable settings the
// Store and Control Plane read thereafter.
package config

import "time"

// FileConfig is the shape of luffybot.yaml.
type FileConfig struct {
	System   *SystemConfig     `yaml:"system"`
	Settings map[string]string `yaml:"settings"`
}

// SystemConfig groups the process's static infrastructure settings — the
// things that never change without a restart, unlike the Control Plane's
// settings which an operator may flip at runtime.
type SystemConfig struct {
	// ScriptsRoot is PYWIKIBOT_DIR: the working directory for child scripts.
	ScriptsRoot string `yaml:"scripts_root"`
	// RunLogDir is where run_<ts>_<key>.log files are written.
	RunLogDir string `yaml:"run_log_dir"`
	// DBPath is the durable sqlite file, e.g. luffybot.sqlite3.
	DBPath string `yaml:"db_path"`
	// DBBackupDir holds periodic snapshot files.
	DBBackupDir string `yaml:"db_backup_dir"`
	// ControlDir holds the kill.switch / maintenance.mode mirror files.
	ControlDir string `yaml:"control_dir"`
	// InstanceLockPath is the advisory lock file path.
	InstanceLockPath string `yaml:"instance_lock_path"`
	// HTTPPort is the admin HTTP server's listen port.
	HTTPPort string `yaml:"http_port"`
	// DiscordTokenEnv names the environment variable holding the bot token
	// (never the token itself — kept out of the YAML file).
	DiscordTokenEnv string `yaml:"discord_token_env"`
	// SchedulerTick is how often the Scheduler Loop wakes unconditionally.
	SchedulerTick time.Duration `yaml:"scheduler_tick"`
	// HousekeepingTick is how often the Housekeeping Loop wakes.
	HousekeepingTick time.Duration `yaml:"housekeeping_tick"`
}

// Config is the fully loaded, validated configuration.
type Config struct {
	System *SystemConfig
	// SettingsOverrides seeds the Store's first-run settings, merged over
	// the built-in defaults enumerated in spec.md §6.
	SettingsOverrides map[string]string
}
