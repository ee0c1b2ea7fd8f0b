package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/catalog"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/controlplane"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/engine"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/notifier"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/store"
)

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, level notifier.Level, text string)                      {}
func (noopNotifier) Critical(ctx context.Context, text string)                                          {}
func (noopNotifier) PresenceUpdate(ctx context.Context, state notifier.PresenceState, mode notifier.PresenceMode, activity string) {
}

func newTestServer(t *testing.T, adminToken string) (*Server, *controlplane.ControlPlane) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(dir, "luffybot.sqlite3"), filepath.Join(dir, "logs"))
	require.NoError(t, err)
	require.NoError(t, st.SeedDefaults(ctx, controlplane.Defaults()))
	t.Cleanup(func() { _ = st.Close() })

	cp := controlplane.New(st, filepath.Join(dir, "control"))
	cat := catalog.New([]catalog.ScriptDef{
		{Key: "greet", Command: []string{"sh", "-c", "sleep 0.05"}, TimeoutSeconds: 10, Public: true},
	})

	runLogDir := filepath.Join(dir, "run_logs")
	require.NoError(t, os.MkdirAll(runLogDir, 0o755))

	eng := engine.New(engine.Config{
		Catalog: cat, Store: st, ControlPlane: cp, Notifier: noopNotifier{},
		ScriptsRoot: dir, RunLogDir: runLogDir,
		SchedulerTick: 20 * time.Millisecond, HousekeepingTick: 20 * time.Millisecond,
	})
	eng.Run(ctx)
	t.Cleanup(func() { eng.Shutdown(context.Background()) })

	return NewServer(st, cp, eng, adminToken), cp
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	s, _ := newTestServer(t, "secret-token")
	rec := doRequest(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, healthStatusHealthy, body.Status)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s, _ := newTestServer(t, "secret-token")
	rec := doRequest(s, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesSucceedWithToken(t *testing.T) {
	s, _ := newTestServer(t, "secret-token")
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListAndUpdateSettings(t *testing.T) {
	s, cp := newTestServer(t, "")

	rec := doRequest(s, http.MethodGet, "/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodPut, "/settings/max_parallel_runs", `{"value":"7"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "7", cp.Get(controlplane.KeyMaxParallelRuns))
}

func TestUpdateUnknownSettingIsRejected(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(s, http.MethodPut, "/settings/not_a_real_key", `{"value":"x"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartScriptViaAdminAPI(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := doRequest(s, http.MethodPost, "/scripts/greet/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result notifier.StartResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Contains(t, []string{"started", "queued"}, result.State)
}

func TestKillSwitchToggle(t *testing.T) {
	s, cp := newTestServer(t, "")

	rec := doRequest(s, http.MethodPost, "/control/kill-switch", `{"on":true,"reason":"test"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, cp.KillSwitch())

	rec = doRequest(s, http.MethodPost, "/control/kill-switch", `{"on":false,"reason":"done"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, cp.KillSwitch())
}

func TestExportRunsCSV(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(s, http.MethodGet, "/runs/export?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
}
