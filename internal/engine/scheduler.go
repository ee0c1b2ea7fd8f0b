package engine

import (
	"context"
	"time"
)

// maxDrainIterationsPerTick bounds how many queue items one Scheduler tick
// will attempt to launch, per spec.md §4.H ("default 8-12").
const maxDrainIterationsPerTick = 10

// schedulerLoop wakes at least every SchedulerTick and also on demand (via
// e.wake), repeatedly draining the queue into the Launcher subject to
// parallelism, backpressure, and maintenance/kill-switch gates.
func (e *Engine) schedulerLoop(ctx context.Context) {
	defer e.wg.Done()

	tick := e.cfg.SchedulerTick
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.drainTick(ctx)
		case <-e.wakeCh:
			e.drainTick(ctx)
		}
	}
}

func (e *Engine) drainTick(ctx context.Context) {
	for i := 0; i < maxDrainIterationsPerTick; i++ {
		_, more := e.drainOne(ctx)
		if !more {
			return
		}
	}
}
