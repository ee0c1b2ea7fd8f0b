// Command luffybot runs the script supervisor daemon: it loads the
// catalog, opens the durable store, starts the execution engine's
// Scheduler and Housekeeping loops, and serves the administrative HTTP
// surface until signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/api"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/config"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/controlplane"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/engine"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/instancelock"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/notifier"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/store"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	configPath := flag.String("config", getEnv("LUFFYBOT_CONFIG", "./luffybot.yaml"), "path to luffybot.yaml")
	envPath := flag.String("env-file", getEnv("LUFFYBOT_ENV_FILE", "./.env"), "path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		log.Printf("warning: could not load %s: %v (continuing with existing environment)", *envPath, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("luffybot: %v", err)
	}
}

func run(cfg *config.Config) error {
	sys := cfg.System

	lock, err := instancelock.Acquire(sys.InstanceLockPath)
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	defer lock.Release()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(sys.ScriptsRoot, 0o755); err != nil {
		return fmt.Errorf("create scripts root: %w", err)
	}
	if err := os.MkdirAll(sys.RunLogDir, 0o755); err != nil {
		return fmt.Errorf("create run log dir: %w", err)
	}
	if err := os.MkdirAll(sys.ControlDir, 0o755); err != nil {
		return fmt.Errorf("create control dir: %w", err)
	}
	if err := os.MkdirAll(sys.DBBackupDir, 0o755); err != nil {
		return fmt.Errorf("create db backup dir: %w", err)
	}

	st, err := store.Open(ctx, sys.DBPath, sys.RunLogDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	seed := controlplane.Defaults()
	for k, v := range cfg.SettingsOverrides {
		seed[k] = v
	}
	if err := st.SeedDefaults(ctx, seed); err != nil {
		return fmt.Errorf("seed default settings: %w", err)
	}

	cp := controlplane.New(st, sys.ControlDir)
	cat := builtinCatalog()

	token := os.Getenv(sys.DiscordTokenEnv)
	if token == "" {
		slog.Warn("no chat-platform token configured; notifications will only be logged", "env_var", sys.DiscordTokenEnv)
	}
	notif := notifier.NewDedupingNotifier(newLogrusSender(), cp.Get(controlplane.KeyCriticalMentionUserID), 30*time.Second)

	eng := engine.New(engine.Config{
		Catalog:          cat,
		Store:            st,
		ControlPlane:     cp,
		Notifier:         notif,
		ScriptsRoot:      sys.ScriptsRoot,
		RunLogDir:        sys.RunLogDir,
		SchedulerTick:    sys.SchedulerTick,
		HousekeepingTick: sys.HousekeepingTick,
	})
	eng.Run(ctx)

	adminToken := os.Getenv("LUFFYBOT_ADMIN_TOKEN")
	server := api.NewServer(st, cp, eng, adminToken)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(":" + sys.HTTPPort); err != nil {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	slog.Info("luffybot started", "scripts", len(cat.AllKeys()), "http_port", sys.HTTPPort)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("admin http server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("admin http server shutdown error", "error", err)
	}
	eng.Shutdown(shutdownCtx)

	slog.Info("luffybot stopped")
	return nil
}
