// Package controlplane derives the boolean flags and numeric thresholds
// that gate admission and scheduling (spec.md §4.D) from the Store's
// settings, and mirrors the kill-switch / maintenance flags to control
// files so cooperating processes outside the supervisor can observe them.
package controlplane

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SettingsStore is the subset of the Store contract the Control Plane
// depends on.
type SettingsStore interface {
	GetSetting(key, fallback string) string
	SetSetting(key, value string) error
}

// ControlPlane computes flags and thresholds on every read — nothing here
// is cached beyond a single call, so an operator's change through the Store
// (or a peer's change to a control file) is observed immediately.
type ControlPlane struct {
	store      SettingsStore
	controlDir string
}

// New builds a ControlPlane backed by store, mirroring kill-switch and
// maintenance files under controlDir.
func New(store SettingsStore, controlDir string) *ControlPlane {
	return &ControlPlane{store: store, controlDir: controlDir}
}

func (c *ControlPlane) killSwitchFile() string   { return filepath.Join(c.controlDir, "kill.switch") }
func (c *ControlPlane) maintenanceFile() string   { return filepath.Join(c.controlDir, "maintenance.mode") }

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (c *ControlPlane) boolSetting(key string) bool {
	return c.store.GetSetting(key, Defaults()[key]) == "1"
}

func (c *ControlPlane) intSetting(key string) int {
	raw := c.store.GetSetting(key, Defaults()[key])
	v, err := strconv.Atoi(raw)
	if err != nil {
		v, _ = strconv.Atoi(Defaults()[key])
	}
	return clampInt(key, v)
}

// Maintenance reports whether maintenance mode is active: the setting OR
// the presence of the maintenance control file.
func (c *ControlPlane) Maintenance() bool {
	return c.boolSetting(KeyMaintenanceMode) || fileExists(c.maintenanceFile())
}

// KillSwitch reports whether the kill-switch is active: the setting OR the
// presence of the kill-switch control file.
func (c *ControlPlane) KillSwitch() bool {
	return c.boolSetting(KeyKillSwitchMode) || fileExists(c.killSwitchFile())
}

// PublicStartEnabled reports whether public (non-operator) start requests
// are accepted at all.
func (c *ControlPlane) PublicStartEnabled() bool { return c.boolSetting(KeyPublicStartEnabled) }

// DryRun reports whether children should be launched with MUFFYBOT_DRY_RUN=1.
func (c *ControlPlane) DryRun() bool { return c.boolSetting(KeyDryRunMode) }

// MaxParallelRuns is the global concurrency cap, clamped to [1,64].
func (c *ControlPlane) MaxParallelRuns() int { return c.intSetting(KeyMaxParallelRuns) }

// PublicCooldownSeconds is the minimum interval between two public starts of
// the same script by the same requester.
func (c *ControlPlane) PublicCooldownSeconds() int { return c.intSetting(KeyPublicCooldownSeconds) }

// MaxAutoRetries bounds how many times a failed run is retried.
func (c *ControlPlane) MaxAutoRetries() int { return c.intSetting(KeyMaxAutoRetries) }

// RetryBackoffSeconds is the base for exponential retry backoff.
func (c *ControlPlane) RetryBackoffSeconds() int { return c.intSetting(KeyRetryBackoffSeconds) }

// MaxSystemRAMPercent is the hard resource-kill threshold for system RAM use.
func (c *ControlPlane) MaxSystemRAMPercent() int { return c.intSetting(KeyMaxSystemRAMPercent) }

// MaxProcessRAMMB is the hard resource-kill threshold for a single child's RSS.
func (c *ControlPlane) MaxProcessRAMMB() int { return c.intSetting(KeyMaxProcessRAMMB) }

// MaxLoadPerCPUx10 is the hard resource-kill threshold for load/CPU, ×10.
func (c *ControlPlane) MaxLoadPerCPUx10() int { return c.intSetting(KeyMaxLoadPerCPUx10) }

// MinFreeDiskGB is the hard resource-kill threshold for free disk space.
func (c *ControlPlane) MinFreeDiskGB() int { return c.intSetting(KeyMinFreeDiskGB) }

// StartupPressureRAMPercent is the (softer) backpressure threshold for
// admitting new launches.
func (c *ControlPlane) StartupPressureRAMPercent() int { return c.intSetting(KeyStartupRAMPercent) }

// StartupPressureLoadPerCPUx10 is the backpressure load threshold, ×10.
func (c *ControlPlane) StartupPressureLoadPerCPUx10() int {
	return c.intSetting(KeyStartupLoadPerCPUx10)
}

// StartupPressureMinFreeDiskGB is the backpressure disk threshold.
func (c *ControlPlane) StartupPressureMinFreeDiskGB() int {
	return c.intSetting(KeyStartupMinFreeDiskGB)
}

// LogRetentionDays bounds run-log and backup retention.
func (c *ControlPlane) LogRetentionDays() int { return c.intSetting(KeyLogRetentionDays) }

// PublicChannelWhitelist returns the raw comma-separated channel list
// setting; empty means any channel is allowed.
func (c *ControlPlane) PublicChannelWhitelist() string {
	return c.store.GetSetting(KeyPublicChannelWhitelist, "")
}

// Get returns an arbitrary setting value with its catalog default as fallback.
func (c *ControlPlane) Get(key string) string {
	return c.store.GetSetting(key, Defaults()[key])
}

// Set stores a setting through the underlying Store.
func (c *ControlPlane) Set(key, value string) error {
	return c.store.SetSetting(key, value)
}

// SetMaintenance toggles maintenance mode and materializes or removes the
// control-file mirror so cooperating external processes observe the change.
func (c *ControlPlane) SetMaintenance(on bool, reason string) error {
	if err := c.setBoolAndMirror(KeyMaintenanceMode, on, c.maintenanceFile(), reason); err != nil {
		return fmt.Errorf("controlplane: set maintenance: %w", err)
	}
	return nil
}

// SetKillSwitch toggles the kill-switch and materializes or removes the
// control-file mirror.
func (c *ControlPlane) SetKillSwitch(on bool, reason string) error {
	if err := c.setBoolAndMirror(KeyKillSwitchMode, on, c.killSwitchFile(), reason); err != nil {
		return fmt.Errorf("controlplane: set kill switch: %w", err)
	}
	return nil
}

func (c *ControlPlane) setBoolAndMirror(key string, on bool, path, reason string) error {
	value := "0"
	if on {
		value = "1"
	}
	if err := c.store.SetSetting(key, value); err != nil {
		return err
	}
	if on {
		return writeControlFile(path, reason)
	}
	return removeControlFile(path)
}

func writeControlFile(path, reason string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	body := fmt.Sprintf("reason=%s\nts=%s\n", reason, time.Now().UTC().Format(time.RFC3339))
	return os.WriteFile(path, []byte(body), 0o644)
}

func removeControlFile(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
