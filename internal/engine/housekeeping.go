package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/controlplane"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/notifier"
)

const (
	presenceRefreshEvery = 8 * time.Second
	digestEvaluateEvery  = 60 * time.Second
	purgeEvery           = 3600 * time.Second
)

// housekeepingLoop is the second cooperative task (spec.md §4.I): kill-
// switch enforcement, presence refresh, periodic digests, and log/backup
// purge, all on independent sub-intervals measured off one ~1s tick.
func (e *Engine) housekeepingLoop(ctx context.Context) {
	defer e.wg.Done()

	tick := e.cfg.HousekeepingTick
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var lastPresence, lastDigest, lastPurge time.Time

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.enforceKillSwitch(ctx)

			if now.Sub(lastPresence) >= presenceRefreshEvery {
				lastPresence = now
				e.refreshPresence(ctx)
			}
			if now.Sub(lastDigest) >= digestEvaluateEvery {
				lastDigest = now
				e.maybeSendPeriodicDigests(ctx, now)
				e.maybeTriggerDailyScripts(ctx, now)
			}
			if now.Sub(lastPurge) >= purgeEvery {
				lastPurge = now
				e.purgeOldArtifacts(ctx)
			}
		}
	}
}

func (e *Engine) enforceKillSwitch(ctx context.Context) {
	if !e.cfg.ControlPlane.KillSwitch() {
		return
	}
	for _, key := range e.runningKeys() {
		e.StopScript(ctx, key)
	}
}

// refreshPresence renders presence_text's {running}/{queue} placeholders
// and pushes them through the Notifier; best-effort, never fatal.
func (e *Engine) refreshPresence(ctx context.Context) {
	cp := e.cfg.ControlPlane
	text := cp.Get(controlplane.KeyPresenceText)
	text = strings.ReplaceAll(text, "{running}", strconv.Itoa(e.RunningCount()))
	text = strings.ReplaceAll(text, "{queue}", strconv.Itoa(e.QueueDepth()))

	state := notifier.PresenceState(cp.Get(controlplane.KeyPresenceState))
	mode := notifier.PresenceMode(cp.Get(controlplane.KeyPresenceMode))
	e.cfg.Notifier.PresenceUpdate(ctx, state, mode, text)
}

const dailyDigestLayout = "2006-01-02"

// maybeSendPeriodicDigests evaluates the daily/weekly/monthly digest
// windows against last-emitted settings, publishing a summary for each
// window that has rolled over since its last emission.
func (e *Engine) maybeSendPeriodicDigests(ctx context.Context, now time.Time) {
	cp := e.cfg.ControlPlane
	today := now.UTC().Format(dailyDigestLayout)

	if cp.Get(controlplane.KeyLastDailyDigestDate) != today {
		e.publishDigest(ctx, "daily", now.Add(-24*time.Hour), now)
		_ = cp.Set(controlplane.KeyLastDailyDigestDate, today)
	}

	year, week := now.UTC().ISOWeek()
	weekKey := fmt.Sprintf("%d-W%02d", year, week)
	if cp.Get(controlplane.KeyLastWeeklyDigestKey) != weekKey {
		e.publishDigest(ctx, "weekly", now.Add(-7*24*time.Hour), now)
		_ = cp.Set(controlplane.KeyLastWeeklyDigestKey, weekKey)
	}

	monthKey := now.UTC().Format("2006-01")
	if cp.Get(controlplane.KeyLastMonthlyDigestKey) != monthKey {
		e.publishDigest(ctx, "monthly", now.AddDate(0, -1, 0), now)
		_ = cp.Set(controlplane.KeyLastMonthlyDigestKey, monthKey)
	}
}

func (e *Engine) publishDigest(ctx context.Context, label string, start, end time.Time) {
	summary, err := e.cfg.Store.SummarizeRuns(ctx, start, end)
	if err != nil {
		e.cfg.Notifier.Critical(ctx, fmt.Sprintf("digest %s failed: %s", label, err))
		return
	}
	e.cfg.Notifier.Notify(ctx, notifier.LevelInfo, fmt.Sprintf(
		"Digest %s: %d runs, %d succes, %d echecs (%.0f%% succes)",
		label, summary.Total, summary.SuccessCount, summary.FailureCount, summary.SuccessRate*100))
}

// dailyBotLogsScript and dailyConfigBackupScript are catalog keys the
// housekeeping loop triggers once per UTC day, mirroring the source's
// built-in maintenance scripts.
const (
	dailyBotLogsScript      = "daily-bot-logs"
	dailyConfigBackupScript = "daily-config-backup"
)

func (e *Engine) maybeTriggerDailyScripts(ctx context.Context, now time.Time) {
	cp := e.cfg.ControlPlane
	today := now.UTC().Format(dailyDigestLayout)

	if cp.Get(controlplane.KeyLastDailyBotLogsDate) != today {
		if _, err := e.cfg.Catalog.Get(dailyBotLogsScript); err == nil {
			e.requestStart(ctx, notifier.StartRequest{ScriptKey: dailyBotLogsScript, RequesterID: "housekeeping", RequesterTag: "housekeeping", BypassLimits: true, Priority: 3})
		}
		_ = cp.Set(controlplane.KeyLastDailyBotLogsDate, today)
	}

	if cp.Get(controlplane.KeyLastDailyConfigBackupDate) != today {
		if _, err := e.cfg.Catalog.Get(dailyConfigBackupScript); err == nil {
			e.requestStart(ctx, notifier.StartRequest{ScriptKey: dailyConfigBackupScript, RequesterID: "housekeeping", RequesterTag: "housekeeping", BypassLimits: true, Priority: 3})
		}
		_ = cp.Set(controlplane.KeyLastDailyConfigBackupDate, today)
	}
}

// purgeOldArtifacts deletes run logs older than log_retention_days and DB
// backups older than 4x that, per spec.md §4.I.
func (e *Engine) purgeOldArtifacts(ctx context.Context) {
	retention := time.Duration(e.cfg.ControlPlane.LogRetentionDays()) * 24 * time.Hour
	purgeDir(e.cfg.RunLogDir, retention)
	purgeDir(e.backupDir(), retention*4)
}

func (e *Engine) backupDir() string {
	return filepath.Join(filepath.Dir(e.cfg.RunLogDir), "db_backups")
}

func purgeDir(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}
