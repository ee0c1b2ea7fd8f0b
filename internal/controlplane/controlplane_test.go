package controlplane

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeStore() *fakeStore { return &fakeStore{values: make(map[string]string)} }

func (f *fakeStore) GetSetting(key, fallback string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.values[key]; ok {
		return v
	}
	return fallback
}

func (f *fakeStore) SetSetting(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func TestDefaultsApplyWhenUnset(t *testing.T) {
	cp := New(newFakeStore(), t.TempDir())
	require.Equal(t, 4, cp.MaxParallelRuns())
	require.Equal(t, 120, cp.PublicCooldownSeconds())
	require.False(t, cp.Maintenance())
	require.False(t, cp.KillSwitch())
	require.True(t, cp.PublicStartEnabled())
}

func TestClampOutOfRangeValue(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.SetSetting(KeyMaxParallelRuns, "9999"))
	cp := New(store, t.TempDir())
	require.Equal(t, 64, cp.MaxParallelRuns())
}

func TestSetMaintenanceWritesControlFile(t *testing.T) {
	dir := t.TempDir()
	cp := New(newFakeStore(), dir)

	require.NoError(t, cp.SetMaintenance(true, "scheduled window"))
	require.True(t, cp.Maintenance())
	data, err := os.ReadFile(filepath.Join(dir, "maintenance.mode"))
	require.NoError(t, err)
	require.Contains(t, string(data), "reason=scheduled window")

	require.NoError(t, cp.SetMaintenance(false, ""))
	require.False(t, cp.Maintenance())
	_, err = os.Stat(filepath.Join(dir, "maintenance.mode"))
	require.True(t, os.IsNotExist(err))
}

func TestControlFilePresenceAloneActivatesKillSwitch(t *testing.T) {
	dir := t.TempDir()
	cp := New(newFakeStore(), dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kill.switch"), []byte("reason=external\n"), 0o644))
	require.True(t, cp.KillSwitch())
}

func TestGetSetArbitrarySetting(t *testing.T) {
	cp := New(newFakeStore(), t.TempDir())
	require.NoError(t, cp.Set(KeyDigestChannelID, "C123"))
	require.Equal(t, "C123", cp.Get(KeyDigestChannelID))
}
