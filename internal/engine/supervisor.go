package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/hostprobe"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/queue"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/store"
)

const (
	maxWaitSlice    = 2500 * time.Millisecond
	gracefulWait    = 8 * time.Second
	crashLoopWindow = 15 * time.Minute
	crashLoopCount  = 3
)

// supervise is the one-goroutine-per-child state machine of spec.md §4.G.
// It owns running.process and running.logHandle exclusively until it
// writes the terminal ledger row and removes the entry from e.running.
func (e *Engine) supervise(running *RunningScript) {
	defer e.wg.Done()

	ctx := context.Background()
	deadline := running.StartedMono + float64(running.TimeoutSeconds)
	def, _ := e.cfg.Catalog.Get(running.ScriptKey)

	var status store.RunStatus
	var note string
	var rc *int

	for {
		now := hostprobe.MonotonicSeconds()
		remaining := deadline - now

		if remaining <= 0 {
			status, note, rc = e.killForTimeout(running)
			break
		}

		if reason := e.resourceViolation(running, def.Critical); reason != "" {
			status, note, rc = e.killForResource(running, reason)
			break
		}

		waitSlice := time.Duration(math.Min(float64(maxWaitSlice), remaining*float64(time.Second)))
		if waitSlice <= 0 {
			waitSlice = time.Millisecond
		}

		select {
		case result := <-running.process.Done():
			status, note, rc = e.classifyExit(running, result)
			goto finalize
		case <-time.After(waitSlice):
			continue
		}
	}

finalize:
	e.finalize(ctx, running, status, rc, note)
}

// resourceViolation checks the running child against the hard resource-kill
// thresholds (spec.md §4.G). Process RSS and free disk are fatal even for
// critical scripts; system RAM and load only apply to non-critical ones.
func (e *Engine) resourceViolation(running *RunningScript, critical bool) string {
	snap := hostprobe.Sample(context.Background(), int32(running.process.PID()), e.cfg.ScriptsRoot)
	cp := e.cfg.ControlPlane

	if snap.ProcessRSSMiB > float64(cp.MaxProcessRAMMB()) {
		return fmt.Sprintf("process RSS %.0f MiB exceeds max_process_ram_mb=%d", snap.ProcessRSSMiB, cp.MaxProcessRAMMB())
	}
	if snap.DiskFreeGB < float64(cp.MinFreeDiskGB()) {
		return fmt.Sprintf("free disk %.1f GB below min_free_disk_gb=%d", snap.DiskFreeGB, cp.MinFreeDiskGB())
	}
	if critical {
		return ""
	}
	if snap.SystemMemoryUsed > float64(cp.MaxSystemRAMPercent()) {
		return fmt.Sprintf("system RAM used %.0f%% exceeds max_system_ram_percent=%d", snap.SystemMemoryUsed, cp.MaxSystemRAMPercent())
	}
	if snap.LoadPerCPU*10 > float64(cp.MaxLoadPerCPUx10()) {
		return fmt.Sprintf("load/cpu %.2f exceeds max_load_per_cpu_x10=%d", snap.LoadPerCPU*10, cp.MaxLoadPerCPUx10())
	}
	return ""
}

func (e *Engine) killForTimeout(running *RunningScript) (store.RunStatus, string, *int) {
	rc := e.forceKill(running)
	return store.StatusTimedOut, "Timeout atteint", rc
}

func (e *Engine) killForResource(running *RunningScript, reason string) (store.RunStatus, string, *int) {
	rc := e.forceKill(running)
	return store.StatusKilledResource, reason, rc
}

// forceKill sends SIGTERM, waits briefly, then SIGKILL, and reaps the
// child's exit code (best-effort — the exit code of a killed process is
// signal-based and not meaningful beyond "non-zero").
func (e *Engine) forceKill(running *RunningScript) *int {
	_ = running.process.Terminate()
	select {
	case result := <-running.process.Done():
		rc := result.exitCode
		return &rc
	case <-time.After(2 * time.Second):
	}
	_ = running.process.Kill()
	select {
	case result := <-running.process.Done():
		rc := result.exitCode
		return &rc
	case <-time.After(2 * time.Second):
		return nil
	}
}

// classifyExit maps a natural child exit into killed/success/failed,
// consulting STOP_REQUESTED to distinguish an operator-requested stop from
// an ordinary exit.
func (e *Engine) classifyExit(running *RunningScript, result procResult) (store.RunStatus, string, *int) {
	rc := result.exitCode

	e.mu.Lock()
	stopped := e.stopRequested[running.RunID]
	e.mu.Unlock()

	if stopped {
		return store.StatusKilled, "arret demande par un operateur", &rc
	}
	if rc == 0 {
		return store.StatusSuccess, "", &rc
	}
	return store.StatusFailed, fmt.Sprintf("exit code %d", rc), &rc
}

// finalize writes the terminal ledger row exactly once, removes running
// bookkeeping, schedules a retry if warranted, and evaluates crash-loop
// detection.
func (e *Engine) finalize(ctx context.Context, running *RunningScript, status store.RunStatus, rc *int, note string) {
	endedAt := hostprobe.Now()
	duration := endedAt.Sub(running.StartedAt).Seconds()

	_ = running.logHandle.Close()

	if err := e.cfg.Store.FinalizeRun(ctx, running.RunID, status, rc, note, endedAt, duration); err != nil {
		e.cfg.Notifier.Critical(ctx, fmt.Sprintf("store write failed finalizing run %d: %s", running.RunID, err))
	}

	e.mu.Lock()
	delete(e.running, running.ScriptKey)
	delete(e.byRunID, running.RunID)
	delete(e.stopRequested, running.RunID)
	e.q.Release(running.ScriptKey)
	e.mu.Unlock()

	_ = e.cfg.Store.AppendServerLog(ctx, "info", "run_finish", strPtrOrNil(running.RequesterID), nil, strPtrOrNil(running.ChannelID),
		fmt.Sprintf("%s run %d ended %s", running.ScriptKey, running.RunID, status))

	if status == store.StatusTimedOut || status == store.StatusKilledResource {
		e.cfg.Notifier.Critical(ctx, fmt.Sprintf("%s (run %d): %s", running.ScriptKey, running.RunID, note))
	}

	e.maybeRetry(ctx, running, status)
	e.trackCrashLoop(ctx, running.ScriptKey, status)

	e.wake()
}

// maybeRetry implements spec.md §4.G's retry policy: a non-success that
// was not explicitly stop-requested, below max_auto_retries, gets
// re-enqueued with exponential backoff. Retries bypass the parallel limit
// only when the original request was operator-originated.
func (e *Engine) maybeRetry(ctx context.Context, running *RunningScript, status store.RunStatus) {
	if status != store.StatusFailed && status != store.StatusTimedOut && status != store.StatusKilledResource {
		return
	}
	maxRetries := e.cfg.ControlPlane.MaxAutoRetries()
	if running.RetryIndex >= maxRetries {
		return
	}

	backoff := e.cfg.ControlPlane.RetryBackoffSeconds()
	delay := math.Min(float64(backoff)*math.Pow(2, float64(running.RetryIndex)), 3600)

	runID := running.RunID
	item := queue.QueuedScript{
		ScriptKey:     running.ScriptKey,
		RequesterID:   running.RequesterID,
		RequesterTag:  running.RequesterTag,
		ChannelID:     running.ChannelID,
		PublicRequest: running.PublicRequest,
		BypassLimits:  !running.PublicRequest,
		Priority:      5,
		RetryIndex:    running.RetryIndex + 1,
		RetryOfRunID:  &runID,
		EnqueuedAt:    time.Now().UnixNano(),
		NotBeforeMono: hostprobe.MonotonicSeconds() + delay,
		TargetLabel:   running.TargetLabel,
	}

	e.mu.Lock()
	_, err := e.q.Enqueue(item)
	e.mu.Unlock()
	if err != nil {
		// scriptKey already active again somehow; nothing to do.
		return
	}
	e.wake()
}

// trackCrashLoop maintains a 15-minute sliding window of non-success
// timestamps per scriptKey; three or more trips a CRITICAL notification.
func (e *Engine) trackCrashLoop(ctx context.Context, scriptKey string, status store.RunStatus) {
	if status == store.StatusSuccess || status == store.StatusKilled {
		return
	}

	now := time.Now()
	e.crashMu.Lock()
	window := e.crashWindows[scriptKey]
	cutoff := now.Add(-crashLoopWindow)
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	e.crashWindows[scriptKey] = kept
	count := len(kept)
	e.crashMu.Unlock()

	if count >= crashLoopCount {
		e.cfg.Notifier.Critical(ctx, fmt.Sprintf("%s a echoue %d fois en 15 minutes", scriptKey, count))
	}
}

// StopScript implements notifier.StopRequestHandler: sets runId into
// STOP_REQUESTED, sends a graceful terminate, and escalates to forced-kill
// after gracefulWait if the child is still alive. Idempotent: a second
// call against an already-stopping or already-gone key returns false.
func (e *Engine) StopScript(ctx context.Context, scriptKey string) bool {
	e.mu.Lock()
	running, ok := e.running[scriptKey]
	if ok && e.stopRequested[running.RunID] {
		ok = false // already stopping: nothing new to stop
	} else if ok {
		e.stopRequested[running.RunID] = true
	}
	e.mu.Unlock()

	if !ok {
		return false
	}

	_ = running.process.Terminate()
	go func() {
		select {
		case <-running.process.Done():
		case <-time.After(gracefulWait):
			_ = running.process.Kill()
		}
	}()
	return true
}

// OnStopRequest implements notifier.StopRequestHandler.
func (e *Engine) OnStopRequest(ctx context.Context, scriptKey string) bool {
	return e.StopScript(ctx, scriptKey)
}
