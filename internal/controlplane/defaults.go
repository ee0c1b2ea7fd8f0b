package controlplane

// Setting keys, per spec.md §6. Values are strings in the Store; each is
// typed on read with a fallback default.
const (
	KeyMaintenanceMode       = "maintenance_mode"
	KeyPublicStartEnabled    = "public_start_enabled"
	KeyDryRunMode            = "dry_run_mode"
	KeyKillSwitchMode        = "kill_switch_mode"
	KeyMaxParallelRuns       = "max_parallel_runs"
	KeyPublicCooldownSeconds = "public_cooldown_seconds"
	KeyMaxAutoRetries        = "max_auto_retries"
	KeyRetryBackoffSeconds   = "retry_backoff_seconds"
	KeyMaxSystemRAMPercent   = "max_system_ram_percent"
	KeyMaxProcessRAMMB       = "max_process_ram_mb"
	KeyMaxLoadPerCPUx10      = "max_load_per_cpu_x10"
	KeyMinFreeDiskGB         = "min_free_disk_gb"
	KeyStartupRAMPercent     = "startup_pressure_ram_percent"
	KeyStartupLoadPerCPUx10  = "startup_pressure_load_per_cpu_x10"
	KeyStartupMinFreeDiskGB  = "startup_pressure_min_free_disk_gb"
	KeyLogRetentionDays      = "log_retention_days"
	KeyPublicChannelWhitelist = "public_channel_whitelist"
	KeyDigestChannelID       = "digest_channel_id"
	KeyCriticalMentionUserID = "critical_mention_user_id"
	KeyPresenceState         = "presence_state"
	KeyPresenceMode          = "presence_mode"
	KeyPresenceText          = "presence_text"
	KeyLastDailyDigestDate        = "last_daily_digest_date"
	KeyLastWeeklyDigestKey        = "last_weekly_digest_key"
	KeyLastMonthlyDigestKey       = "last_monthly_digest_key"
	KeyLastDailyBotLogsDate       = "last_daily_bot_logs_date"
	KeyLastDailyConfigBackupDate  = "last_daily_config_backup_date"
	KeyPublicPanelChannelID  = "public_panel_channel_id"
	KeyPublicPanelMessageID  = "public_panel_message_id"
)

// Defaults enumerates every recognized setting's string default, per
// spec.md §6. Store seeds these on first-run initialization, without
// overwriting any setting that already exists.
func Defaults() map[string]string {
	return map[string]string{
		KeyMaintenanceMode:           "0",
		KeyPublicStartEnabled:        "1",
		KeyDryRunMode:                "0",
		KeyKillSwitchMode:            "0",
		KeyMaxParallelRuns:           "4",
		KeyPublicCooldownSeconds:     "120",
		KeyMaxAutoRetries:            "1",
		KeyRetryBackoffSeconds:       "45",
		KeyMaxSystemRAMPercent:       "92",
		KeyMaxProcessRAMMB:           "1400",
		KeyMaxLoadPerCPUx10:          "30",
		KeyMinFreeDiskGB:             "2",
		KeyStartupRAMPercent:         "95",
		KeyStartupLoadPerCPUx10:      "45",
		KeyStartupMinFreeDiskGB:      "1",
		KeyLogRetentionDays:          "14",
		KeyPublicChannelWhitelist:    "",
		KeyDigestChannelID:           "",
		KeyCriticalMentionUserID:     "",
		KeyPresenceState:             "online",
		KeyPresenceMode:              "watching",
		KeyPresenceText:              "{running} running, {queue} queued",
		KeyLastDailyDigestDate:       "",
		KeyLastWeeklyDigestKey:       "",
		KeyLastMonthlyDigestKey:      "",
		KeyLastDailyBotLogsDate:      "",
		KeyLastDailyConfigBackupDate: "",
		KeyPublicPanelChannelID:      "",
		KeyPublicPanelMessageID:      "",
	}
}

// clamp represents the [min, max] a numeric setting is clamped to on read.
type clamp struct{ min, max int }

var clamps = map[string]clamp{
	KeyMaxParallelRuns:       {1, 64},
	KeyPublicCooldownSeconds: {0, 86400},
	KeyMaxAutoRetries:        {0, 10},
	KeyRetryBackoffSeconds:   {1, 3600},
	KeyMaxSystemRAMPercent:   {1, 100},
	KeyMaxProcessRAMMB:       {16, 1 << 20},
	KeyMaxLoadPerCPUx10:      {1, 1000},
	KeyMinFreeDiskGB:         {0, 1 << 20},
	KeyStartupRAMPercent:     {1, 100},
	KeyStartupLoadPerCPUx10:  {1, 1000},
	KeyStartupMinFreeDiskGB:  {0, 1 << 20},
	KeyLogRetentionDays:      {1, 3650},
}

func clampInt(key string, v int) int {
	c, ok := clamps[key]
	if !ok {
		return v
	}
	if v < c.min {
		return c.min
	}
	if v > c.max {
		return c.max
	}
	return v
}
