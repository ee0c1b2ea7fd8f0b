// Package engine is the execution core: the single Engine value that owns
// STATE_LOCK and the three collections it guards (RUNNING_SCRIPTS,
// RUN_QUEUE, STOP_REQUESTED per spec.md §9), plus the Launcher, Supervisor,
// Scheduler and Housekeeping behaviors built on top of it.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/catalog"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/controlplane"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/notifier"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/queue"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/store"
)

// RunningScript mirrors the relevant QueuedScript fields plus the live
// process handle and log file for one currently-executing child.
type RunningScript struct {
	RunID         int64
	ScriptKey     string
	RequesterID   string
	RequesterTag  string
	ChannelID     string
	PublicRequest bool
	BypassLimits  bool
	RetryIndex    int
	RetryOfRunID  *int64
	TargetLabel   string

	TimeoutSeconds int
	StartedAt      time.Time
	StartedMono    float64

	LogPath   string
	logHandle *logFile

	process childProcess
}

// Config bundles the Engine's collaborators, supplied by cmd/luffybot.
type Config struct {
	Catalog     *catalog.Catalog
	Store       *store.Store
	ControlPlane *controlplane.ControlPlane
	Notifier    notifier.Notifier

	ScriptsRoot string // PYWIKIBOT_DIR
	RunLogDir   string

	SchedulerTick    time.Duration
	HousekeepingTick time.Duration
}

// Engine is the single owner of STATE_LOCK. All three guarded collections
// (running, the queue, stopRequested) are only ever touched with mu held.
type Engine struct {
	cfg Config

	mu            sync.Mutex // STATE_LOCK
	running       map[string]*RunningScript
	byRunID       map[int64]*RunningScript
	q             *queue.Queue
	stopRequested map[int64]bool

	crashMu      sync.Mutex
	crashWindows map[string][]time.Time

	wakeCh   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs an Engine ready to have Run called on it.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:           cfg,
		running:       make(map[string]*RunningScript),
		byRunID:       make(map[int64]*RunningScript),
		q:             queue.New(),
		stopRequested: make(map[int64]bool),
		crashWindows:  make(map[string][]time.Time),
		wakeCh:        make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}
}

// wake nudges the Scheduler loop to run an extra iteration without waiting
// for its next tick (after a successful enqueue or supervisor completion).
func (e *Engine) wake() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

// Run starts the Scheduler and Housekeeping background loops. It returns
// immediately; call Shutdown to stop them.
func (e *Engine) Run(ctx context.Context) {
	e.wg.Add(2)
	go e.schedulerLoop(ctx)
	go e.housekeepingLoop(ctx)
}

// Shutdown signals every Supervisor to stop its child, waits for the
// background loops to exit, and is safe to call more than once.
func (e *Engine) Shutdown(ctx context.Context) {
	e.stopOnce.Do(func() { close(e.stopCh) })

	for _, key := range e.runningKeys() {
		e.StopScript(ctx, key)
	}
	e.wg.Wait()
}

func (e *Engine) runningKeys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.running))
	for k := range e.running {
		keys = append(keys, k)
	}
	return keys
}

// RunningCount returns the current number of live children.
func (e *Engine) RunningCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.running)
}

// QueueDepth returns the number of entries waiting in the queue.
func (e *Engine) QueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.q.Len()
}

// Snapshot describes one running or queued entry, for status surfaces.
type Snapshot struct {
	ScriptKey    string
	Running      bool
	RunID        int64
	QueuePos     int
	RequesterTag string
	StartedAt    time.Time
}

// Status returns a point-in-time view of everything running or queued.
func (e *Engine) Status() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Snapshot, 0, len(e.running)+e.q.Len())
	for _, r := range e.running {
		out = append(out, Snapshot{
			ScriptKey: r.ScriptKey, Running: true, RunID: r.RunID,
			RequesterTag: r.RequesterTag, StartedAt: r.StartedAt,
		})
	}
	for i, item := range e.q.Peek() {
		out = append(out, Snapshot{
			ScriptKey: item.ScriptKey, Running: false, QueuePos: i + 1,
			RequesterTag: item.RequesterTag,
		})
	}
	return out
}
