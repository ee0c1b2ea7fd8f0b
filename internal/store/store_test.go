package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "test.sqlite3"), filepath.Join(dir, "logs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSeedDefaultsDoesNotOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetSetting("max_parallel_runs", "7"))
	require.NoError(t, s.SeedDefaults(ctx, map[string]string{
		"max_parallel_runs":       "4",
		"public_cooldown_seconds": "120",
	}))

	require.Equal(t, "7", s.GetSetting("max_parallel_runs", "0"))
	require.Equal(t, "120", s.GetSetting("public_cooldown_seconds", "0"))
	require.Equal(t, "fallback", s.GetSetting("unknown_key", "fallback"))
}

func TestSettingsWriteThrough(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetSetting("k", "v1"))
	require.Equal(t, "v1", s.GetSetting("k", ""))
	require.NoError(t, s.SetSetting("k", "v2"))
	require.Equal(t, "v2", s.GetSetting("k", ""))

	// reload from a fresh cache to confirm the write landed in sqlite, not
	// just the in-memory cache.
	require.NoError(t, s.loadSettingsCache(context.Background()))
	require.Equal(t, "v2", s.GetSetting("k", ""))
}

func TestInsertAndFinalizeRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertRun(ctx, InsertRunFields{
		ScriptKey:    "welcome",
		RequesterID:  "u1",
		RequesterTag: "alice",
		CommandJSON:  `["python3","welcome.py"]`,
		LogPath:      "/tmp/run.log",
		StartedAt:    time.Now(),
	})
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	rc := 0
	require.NoError(t, s.FinalizeRun(ctx, id, StatusSuccess, &rc, "ok", time.Now(), 1.5))

	runs, err := s.LastRuns(ctx, "welcome", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, StatusSuccess, runs[0].Status)
	require.NotNil(t, runs[0].ReturnCode)
	require.Equal(t, 0, *runs[0].ReturnCode)
}

func TestFinalizeRunTwiceErrors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertRun(ctx, InsertRunFields{
		ScriptKey: "welcome", RequesterID: "u1", RequesterTag: "alice",
		CommandJSON: "[]", LogPath: "x", StartedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, s.FinalizeRun(ctx, id, StatusFailed, nil, "boom", time.Now(), 0.2))
	err = s.FinalizeRun(ctx, id, StatusSuccess, nil, "", time.Now(), 0.2)
	require.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestLastFailedRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, _ := s.InsertRun(ctx, InsertRunFields{ScriptKey: "a", RequesterID: "u", RequesterTag: "u", CommandJSON: "[]", StartedAt: time.Now()})
	require.NoError(t, s.FinalizeRun(ctx, id1, StatusSuccess, nil, "", time.Now(), 1))

	id2, _ := s.InsertRun(ctx, InsertRunFields{ScriptKey: "b", RequesterID: "u", RequesterTag: "u", CommandJSON: "[]", StartedAt: time.Now()})
	require.NoError(t, s.FinalizeRun(ctx, id2, StatusFailed, nil, "broke", time.Now(), 1))

	last, err := s.LastFailedRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Equal(t, id2, last.ID)
}

func TestFilteredRunsPagination(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, _ := s.InsertRun(ctx, InsertRunFields{ScriptKey: "a", RequesterID: "u", RequesterTag: "u", CommandJSON: "[]", StartedAt: time.Now()})
		require.NoError(t, s.FinalizeRun(ctx, id, StatusSuccess, nil, "", time.Now(), 1))
	}

	page1, total, err := s.FilteredRuns(ctx, "a", "", 2, 0)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, page1, 2)

	page2, _, err := s.FilteredRuns(ctx, "a", "", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.NotEqual(t, page1[0].ID, page2[0].ID)
}

func TestSummarizeRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Hour)

	idOK, _ := s.InsertRun(ctx, InsertRunFields{ScriptKey: "a", RequesterID: "u", RequesterTag: "u", CommandJSON: "[]", StartedAt: time.Now()})
	require.NoError(t, s.FinalizeRun(ctx, idOK, StatusSuccess, nil, "", time.Now(), 2))

	idBad, _ := s.InsertRun(ctx, InsertRunFields{ScriptKey: "b", RequesterID: "u", RequesterTag: "u", CommandJSON: "[]", StartedAt: time.Now()})
	require.NoError(t, s.FinalizeRun(ctx, idBad, StatusFailed, nil, "", time.Now(), 4))

	summary, err := s.SummarizeRuns(ctx, start, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total)
	require.Equal(t, 1, summary.SuccessCount)
	require.Equal(t, 1, summary.FailureCount)
	require.InDelta(t, 0.5, summary.SuccessRate, 0.001)
	require.Len(t, summary.ByScriptFailed, 1)
	require.Equal(t, "b", summary.ByScriptFailed[0].ScriptKey)
}

func TestAppendAuditAndServerLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendAudit(ctx, "op1", "set_maintenance", "true", "scheduled window"))

	actor := "op1"
	require.NoError(t, s.AppendServerLog(ctx, "info", "run_start", &actor, nil, nil, "welcome started"))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM op_audit`).Scan(&count))
	require.Equal(t, 1, count)
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM server_logs`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestBackupAndRestoreLatest(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.sqlite3")
	backupDir := filepath.Join(dir, "backups")

	s, err := Open(context.Background(), dbPath, "")
	require.NoError(t, err)
	require.NoError(t, s.SetSetting("k", "before"))

	snapshot, err := s.BackupSnapshot(context.Background(), backupDir)
	require.NoError(t, err)
	require.FileExists(t, snapshot)

	require.NoError(t, s.SetSetting("k", "after"))
	require.NoError(t, s.Close())

	restored, err := RestoreLatest(context.Background(), dbPath, "", backupDir)
	require.NoError(t, err)
	defer restored.Close()
	require.Equal(t, "before", restored.GetSetting("k", ""))
}

func TestExportRunsCSVRedactsNotes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertRun(ctx, InsertRunFields{ScriptKey: "a", RequesterID: "u", RequesterTag: "u", CommandJSON: "[]", StartedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.FinalizeRun(ctx, id, StatusFailed, nil, "TOKEN=supersecret", time.Now(), 1))

	out, err := s.ExportRunsCSV(ctx, 7)
	require.NoError(t, err)
	require.Contains(t, string(out), "id,scriptKey")
	require.NotContains(t, string(out), "supersecret")
	require.Contains(t, string(out), "[REDACTED]")
}
