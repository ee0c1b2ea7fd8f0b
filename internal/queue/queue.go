// Package queue is the in-process priority queue of QueuedScript admission
// requests (spec.md §3, §4.D). It is a plain data structure, not
// concurrency-safe on its own: internal/engine.Engine owns the single
// STATE_LOCK mutex that guards the queue alongside RUNNING_SCRIPTS and
// STOP_REQUESTED, mirroring the teacher's worker pool keeping its own
// locking outside pkg/queue's data types.
package queue

import (
	"container/heap"
	"errors"
)

// Sentinel errors for queue operations.
var (
	// ErrAlreadyActive indicates scriptKey already has a running or queued
	// admission; only one admission per scriptKey is allowed at a time.
	ErrAlreadyActive = errors.New("queue: script already running or queued")

	// ErrEmpty indicates PopEligible found nothing eligible to run.
	ErrEmpty = errors.New("queue: no eligible entry")
)

// QueuedScript is one admission request waiting for a launch slot.
type QueuedScript struct {
	QueueID       int64
	ScriptKey     string
	RequesterID   string
	RequesterTag  string
	ChannelID     string
	PublicRequest bool
	BypassLimits  bool
	Priority      int // 1 (highest) .. 9 (lowest)
	RetryIndex    int
	RetryOfRunID  *int64
	EnqueuedAt    int64 // unix nanos, for FIFO tie-break
	NotBeforeMono float64
	CommandArgs   []string
	ExtraEnv      map[string]string
	TargetLabel   string // truncated to 120 bytes by Enqueue
}

// heapEntry is QueuedScript wrapped for container/heap ordering by
// (priority asc, enqueuedAt asc, queueId asc).
type heapEntry = QueuedScript

type priorityHeap []*heapEntry

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.EnqueuedAt != b.EnqueuedAt {
		return a.EnqueuedAt < b.EnqueuedAt
	}
	return a.QueueID < b.QueueID
}

func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x any) { *h = append(*h, x.(*heapEntry)) }

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is the priority queue of pending admissions. Zero value is not
// usable; construct with New.
type Queue struct {
	h       priorityHeap
	nextID  int64
	active  map[string]bool // scriptKey -> running or queued
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{active: make(map[string]bool)}
	heap.Init(&q.h)
	return q
}

const maxTargetLabelLen = 120

// Enqueue admits req if scriptKey is not already running or queued,
// assigning it a strictly increasing QueueID and marking scriptKey active.
// It does not itself consult RUNNING_SCRIPTS: the key stays active while the
// entry is queued and after PopEligible hands it out, until the caller
// (Engine) calls Release after a terminal outcome.
func (q *Queue) Enqueue(req QueuedScript) (QueuedScript, error) {
	if q.active[req.ScriptKey] {
		return QueuedScript{}, ErrAlreadyActive
	}
	if len(req.TargetLabel) > maxTargetLabelLen {
		req.TargetLabel = req.TargetLabel[:maxTargetLabelLen]
	}

	q.nextID++
	req.QueueID = q.nextID
	q.active[req.ScriptKey] = true
	heap.Push(&q.h, &req)
	return req, nil
}

// Len reports the number of entries waiting in the queue.
func (q *Queue) Len() int { return q.h.Len() }

// IsActive reports whether scriptKey currently has a running or queued
// admission.
func (q *Queue) IsActive(scriptKey string) bool { return q.active[scriptKey] }

// Release clears scriptKey's active marker, allowing a new admission for
// it. Called by the Engine once a run reaches a terminal state.
func (q *Queue) Release(scriptKey string) { delete(q.active, scriptKey) }

// eligible reports whether entry may launch now: its delay has elapsed,
// and (it bypasses limits) or (there is a free parallelism slot).
func eligible(entry *heapEntry, nowMono float64, runningCount, maxParallel int) bool {
	if nowMono < entry.NotBeforeMono {
		return false
	}
	if entry.BypassLimits {
		return true
	}
	return runningCount < maxParallel
}

// PopEligible removes and returns the highest-priority entry that is
// eligible to launch right now, or ErrEmpty if none qualifies. Entries that
// are not yet eligible (delayed retries) are left in place.
func (q *Queue) PopEligible(nowMono float64, runningCount, maxParallel int) (QueuedScript, error) {
	// The heap only orders by priority/FIFO, not eligibility, so a later
	// (lower-priority) entry may be eligible while the head is delayed.
	// Entries held back are small in number (delayed retries only), so a
	// linear scan with re-heapify is simple and cheap relative to a
	// second time-indexed structure.
	var held []*heapEntry
	var found *heapEntry

	for q.h.Len() > 0 {
		candidate := heap.Pop(&q.h).(*heapEntry)
		if found == nil && eligible(candidate, nowMono, runningCount, maxParallel) {
			found = candidate
			continue
		}
		held = append(held, candidate)
	}
	for _, e := range held {
		heap.Push(&q.h, e)
	}

	if found == nil {
		return QueuedScript{}, ErrEmpty
	}
	return *found, nil
}

// Requeue pushes an already-active entry back into the heap without
// touching the active-scriptKey bookkeeping — used when an eligible-but-
// deferred item (backpressure, maintenance) needs a later NotBeforeMono.
func (q *Queue) Requeue(entry QueuedScript) {
	heap.Push(&q.h, &entry)
}

// Peek returns a snapshot of all queued entries in priority order without
// removing them, for status/introspection surfaces.
func (q *Queue) Peek() []QueuedScript {
	cp := make(priorityHeap, len(q.h))
	copy(cp, q.h)
	heap.Init(&cp)

	out := make([]QueuedScript, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, *heap.Pop(&cp).(*heapEntry))
	}
	return out
}
