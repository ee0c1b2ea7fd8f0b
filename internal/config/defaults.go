package config

import "time"

// DefaultSystemConfig returns the built-in defaults for every SystemConfig
// field, used when a field is left unset in luffybot.yaml.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		ScriptsRoot:      "./scripts",
		RunLogDir:        "./run_logs",
		DBPath:           "./luffybot.sqlite3",
		DBBackupDir:      "./db_backups",
		ControlDir:       "./control",
		InstanceLockPath: "./luffybot.instance.lock",
		HTTPPort:         "8080",
		DiscordTokenEnv:  "DISCORD_TOKEN",
		SchedulerTick:    250 * time.Millisecond,
		HousekeepingTick: 1 * time.Second,
	}
}
