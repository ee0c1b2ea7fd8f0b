package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/catalog"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/hostprobe"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/notifier"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/queue"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/store"
)

func cooldownKey(scriptKey, requesterID string) string {
	return "cooldown:" + scriptKey + ":" + requesterID
}

// checkCooldown enforces public_cooldown_seconds between two public starts
// of the same script by the same requester (spec.md scenario 2).
func (e *Engine) checkCooldown(scriptKey, requesterID string) error {
	window := e.cfg.ControlPlane.PublicCooldownSeconds()
	if window <= 0 {
		return nil
	}
	raw := e.cfg.Store.GetSetting(cooldownKey(scriptKey, requesterID), "")
	if raw == "" {
		return nil
	}
	last, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	elapsed := time.Now().UTC().Unix() - last
	if elapsed >= int64(window) {
		return nil
	}
	return &CooldownError{Remain: int(int64(window) - elapsed)}
}

func (e *Engine) recordCooldown(scriptKey, requesterID string) {
	_ = e.cfg.Store.SetSetting(cooldownKey(scriptKey, requesterID), strconv.FormatInt(time.Now().UTC().Unix(), 10))
}

func (e *Engine) channelAllowed(channelID string) bool {
	raw := e.cfg.ControlPlane.PublicChannelWhitelist()
	if strings.TrimSpace(raw) == "" {
		return true
	}
	for _, id := range strings.Split(raw, ",") {
		if strings.TrimSpace(id) == channelID {
			return true
		}
	}
	return false
}

// OnStartRequest implements notifier.StartRequestHandler: the admission
// gate the chat-platform collaborator calls for every inbound start
// request, public or operator-originated.
func (e *Engine) OnStartRequest(ctx context.Context, req notifier.StartRequest) notifier.StartResult {
	return e.requestStart(ctx, req)
}

func rejected(code string, err error) notifier.StartResult {
	return notifier.StartResult{State: "rejected", Code: code, Message: err.Error()}
}

// requestStart is the end-to-end admission path: validate against the
// Control Plane and catalog, enqueue, then attempt one immediate launch so
// an eligible request returns "started" synchronously (spec.md scenario 1)
// instead of always waiting for the next Scheduler tick.
func (e *Engine) requestStart(ctx context.Context, req notifier.StartRequest) notifier.StartResult {
	def, err := e.cfg.Catalog.Get(req.ScriptKey)
	if err != nil {
		return rejected("unknown_script", err)
	}

	if e.cfg.ControlPlane.KillSwitch() {
		return rejected("kill_switch_active", ErrKillSwitchActive)
	}

	if req.PublicRequest {
		req.BypassLimits = false // only operators may request bypassLimits
		if !def.Public {
			return rejected("script_not_public", ErrScriptNotPublic)
		}
		if !e.cfg.ControlPlane.PublicStartEnabled() {
			return rejected("public_disabled", ErrPublicDisabled)
		}
		if e.cfg.ControlPlane.Maintenance() {
			return rejected("maintenance_active", ErrMaintenanceActive)
		}
		if !e.channelAllowed(req.ChannelID) {
			return rejected("channel_not_allowed", ErrChannelNotAllowed)
		}
		if err := e.checkCooldown(req.ScriptKey, req.RequesterID); err != nil {
			return rejected("cooldown", err)
		}
	}

	item := queue.QueuedScript{
		ScriptKey:     req.ScriptKey,
		RequesterID:   req.RequesterID,
		RequesterTag:  req.RequesterTag,
		ChannelID:     req.ChannelID,
		PublicRequest: req.PublicRequest,
		BypassLimits:  req.BypassLimits,
		Priority:      normalizePriority(req.Priority),
		EnqueuedAt:    time.Now().UnixNano(),
		NotBeforeMono: hostprobe.MonotonicSeconds(),
		CommandArgs:   req.CommandArgs,
		ExtraEnv:      req.ExtraEnv,
		TargetLabel:   req.TargetLabel,
	}

	e.mu.Lock()
	queued, err := e.q.Enqueue(item)
	e.mu.Unlock()
	if err != nil {
		return rejected("already_active", err)
	}

	if req.PublicRequest {
		e.recordCooldown(req.ScriptKey, req.RequesterID)
	}
	e.wake()

	launched, runID, pid := e.attemptLaunch(ctx, def)
	if launched && runID != 0 {
		_ = e.cfg.Store.AppendAudit(ctx, req.RequesterID, "request_start", req.ScriptKey, fmt.Sprintf("runId=%d", runID))
		return notifier.StartResult{State: "started", RunID: runID, PID: pid}
	}

	return notifier.StartResult{State: "queued", QueueID: queued.QueueID, Position: e.queuePosition(queued.QueueID)}
}

func normalizePriority(p int) int {
	if p < 1 || p > 9 {
		return 5
	}
	return p
}

func (e *Engine) queuePosition(queueID int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, item := range e.q.Peek() {
		if item.QueueID == queueID {
			return i + 1
		}
	}
	return 0
}

// attemptLaunch runs one Scheduler-style pop-and-launch iteration and
// reports whether it happened to launch the scriptKey just requested
// (uniqueness guarantees at most one queued/running entry per scriptKey,
// so a launched entry matching def.Key can only be this caller's item).
func (e *Engine) attemptLaunch(ctx context.Context, def catalog.ScriptDef) (launched bool, runID int64, pid int) {
	outcome, _ := e.drainOne(ctx)
	if outcome == nil || outcome.scriptKey != def.Key {
		return false, 0, 0
	}
	return true, outcome.runID, outcome.pid
}

// launchOutcome describes one successful launch from drainOne.
type launchOutcome struct {
	scriptKey string
	runID     int64
	pid       int
}

// drainOne pops the single highest-priority eligible queue item (if any)
// and launches it, implementing spec.md §4.F end to end. The bool return
// tells the caller whether the queue may still have more to do this tick:
// true after a launch, a deferral, or a dropped item (something happened,
// worth trying again); false when the queue had nothing eligible at all.
func (e *Engine) drainOne(ctx context.Context) (*launchOutcome, bool) {
	if e.cfg.ControlPlane.KillSwitch() {
		return nil, false
	}

	now := hostprobe.MonotonicSeconds()

	e.mu.Lock()
	item, err := e.q.PopEligible(now, len(e.running), e.cfg.ControlPlane.MaxParallelRuns())
	if err != nil {
		e.mu.Unlock()
		return nil, false
	}

	def, defErr := e.cfg.Catalog.Get(item.ScriptKey)
	critical := defErr == nil && def.Critical

	if !item.BypassLimits && !critical {
		if reason := e.startupBackpressureReason(); reason != "" {
			item.NotBeforeMono = now + 8
			e.q.Requeue(item)
			e.mu.Unlock()
			return nil, true
		}
	}
	if !item.BypassLimits {
		if e.cfg.ControlPlane.Maintenance() {
			item.NotBeforeMono = now + 10
			e.q.Requeue(item)
			e.mu.Unlock()
			return nil, true
		}
	}

	// Reserve the scriptKey's running slot before releasing STATE_LOCK, so
	// the uniqueness invariant holds across the (unlocked) spawn.
	e.running[item.ScriptKey] = &RunningScript{ScriptKey: item.ScriptKey}
	e.mu.Unlock()

	runID, pid, err := e.launchScript(ctx, item)
	if err != nil {
		e.mu.Lock()
		delete(e.running, item.ScriptKey)
		e.q.Release(item.ScriptKey)
		e.mu.Unlock()
		e.cfg.Notifier.Critical(ctx, fmt.Sprintf("echec de demarrage pour %s: %s", item.ScriptKey, err))
		return nil, true
	}

	return &launchOutcome{scriptKey: item.ScriptKey, runID: runID, pid: pid}, true
}

// startupBackpressureReason returns a non-empty human-readable reason if
// host pressure should defer non-bypassing, non-critical launches.
func (e *Engine) startupBackpressureReason() string {
	snap := hostprobe.Sample(context.Background(), int32(os.Getpid()), e.cfg.ScriptsRoot)
	cp := e.cfg.ControlPlane
	switch {
	case snap.SystemMemoryUsed > float64(cp.StartupPressureRAMPercent()):
		return "system RAM pressure"
	case snap.LoadPerCPU*10 > float64(cp.StartupPressureLoadPerCPUx10()):
		return "system load pressure"
	case snap.DiskFreeGB < float64(cp.StartupPressureMinFreeDiskGB()):
		return "low disk space"
	default:
		return ""
	}
}

// launchScript implements spec.md §4.F steps 2-8: builds the log path and
// child environment, inserts the ledger row, spawns the child, and — on
// success — starts its Supervisor. Step 1 (uniqueness re-verification) was
// already done by drainOne under STATE_LOCK before this is called.
func (e *Engine) launchScript(ctx context.Context, item queue.QueuedScript) (int64, int, error) {
	now := hostprobe.Now()
	nowMono := hostprobe.MonotonicSeconds()

	def, err := e.cfg.Catalog.Get(item.ScriptKey)
	if err != nil {
		return 0, 0, err
	}

	logPath := fmt.Sprintf("%s/run_%s_%s.log", e.cfg.RunLogDir, now.Format("20060102_150405"), item.ScriptKey)

	command := append(append([]string{}, def.Command...), item.CommandArgs...)
	commandJSON, err := json.Marshal(command)
	if err != nil {
		return 0, 0, err
	}

	runID, err := e.cfg.Store.InsertRun(ctx, store.InsertRunFields{
		ScriptKey:     item.ScriptKey,
		RequesterID:   item.RequesterID,
		RequesterTag:  item.RequesterTag,
		PublicRequest: item.PublicRequest,
		CommandJSON:   string(commandJSON),
		LogPath:       logPath,
		StartedAt:     now,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: ledger insert: %s", ErrSpawn, err)
	}

	if err := os.MkdirAll(e.cfg.RunLogDir, 0o755); err != nil {
		e.finalizeFailed(ctx, runID, now, "Impossible de demarrer le processus")
		return 0, 0, fmt.Errorf("%w: %s", ErrSpawn, err)
	}

	lf, err := openLogFile(logPath)
	if err != nil {
		e.finalizeFailed(ctx, runID, now, "Impossible de demarrer le processus")
		return 0, 0, fmt.Errorf("%w: %s", ErrSpawn, err)
	}

	env := e.buildChildEnv(runID, item)

	proc, err := startProcess(e.cfg.ScriptsRoot, command, env, lf)
	if err != nil {
		_ = lf.Close()
		e.finalizeFailed(ctx, runID, now, "Impossible de demarrer le processus")
		return 0, 0, fmt.Errorf("%w: %s", ErrSpawn, err)
	}

	running := &RunningScript{
		RunID: runID, ScriptKey: item.ScriptKey, RequesterID: item.RequesterID,
		RequesterTag: item.RequesterTag, ChannelID: item.ChannelID,
		PublicRequest: item.PublicRequest, BypassLimits: item.BypassLimits,
		RetryIndex: item.RetryIndex, RetryOfRunID: item.RetryOfRunID,
		TargetLabel: item.TargetLabel, TimeoutSeconds: def.TimeoutSeconds,
		StartedAt: now, StartedMono: nowMono,
		LogPath: logPath, logHandle: lf, process: proc,
	}

	e.mu.Lock()
	e.running[item.ScriptKey] = running
	e.byRunID[runID] = running
	e.mu.Unlock()

	_ = e.cfg.Store.AppendServerLog(ctx, "info", "run_start", &item.RequesterID, nil, strPtrOrNil(item.ChannelID), fmt.Sprintf("%s run %d", item.ScriptKey, runID))

	e.wg.Add(1)
	go e.supervise(running)

	return runID, proc.PID(), nil
}

func (e *Engine) finalizeFailed(ctx context.Context, runID int64, startedAt time.Time, note string) {
	if err := e.cfg.Store.FinalizeRun(ctx, runID, store.StatusFailed, nil, note, startedAt, 0); err != nil {
		e.cfg.Notifier.Critical(ctx, fmt.Sprintf("store write failed finalizing run %d: %s", runID, err))
	}
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// buildChildEnv copies the parent environment then overlays the documented
// fields, per spec.md §4.F step 4.
func (e *Engine) buildChildEnv(runID int64, item queue.QueuedScript) []string {
	env := os.Environ()
	env = append(env,
		"MUFFYBOT_DRY_RUN="+boolEnv(e.cfg.ControlPlane.DryRun()),
		fmt.Sprintf("LUFFYBOT_RUN_ID=%d", runID),
		"LUFFYBOT_SCRIPT_KEY="+item.ScriptKey,
		"LUFFYBOT_TARGET_LABEL="+item.TargetLabel,
	)
	for k, v := range item.ExtraEnv {
		if k == "" {
			continue
		}
		env = append(env, k+"="+v)
	}
	return env
}

func boolEnv(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
