package notifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// Sender is the minimal transport a DedupingNotifier delivers through —
// implemented by whatever chat-platform collaborator is wired in.
// Nil-safe the way pkg/slack.Service is nil-safe in the teacher: a nil
// Sender makes every DedupingNotifier method a silent no-op.
type Sender interface {
	Send(ctx context.Context, level Level, text string) error
	SetPresence(ctx context.Context, state PresenceState, mode PresenceMode, activity string) error
}

// DedupingNotifier is a reference Notifier: it dedupes identical outbound
// text within a short window, retries transient send failures with a
// bounded backoff in the background, and never blocks the caller.
type DedupingNotifier struct {
	sender          Sender
	criticalMention string
	dedupeWindow    time.Duration
	logger          *slog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewDedupingNotifier constructs a DedupingNotifier. sender may be nil, in
// which case every call is a silent no-op (fail-open, matching the
// teacher's nil-safe Slack service).
func NewDedupingNotifier(sender Sender, criticalMention string, dedupeWindow time.Duration) *DedupingNotifier {
	if dedupeWindow <= 0 {
		dedupeWindow = 30 * time.Second
	}
	return &DedupingNotifier{
		sender:          sender,
		criticalMention: criticalMention,
		dedupeWindow:    dedupeWindow,
		logger:          slog.Default().With("component", "notifier"),
		seen:            make(map[string]time.Time),
	}
}

func contentKey(level Level, text string) string {
	sum := sha256.Sum256([]byte(string(level) + "|" + text))
	return hex.EncodeToString(sum[:])
}

func (n *DedupingNotifier) dedupe(level Level, text string) bool {
	key := contentKey(level, text)

	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	for k, at := range n.seen {
		if now.Sub(at) > n.dedupeWindow {
			delete(n.seen, k)
		}
	}
	if at, ok := n.seen[key]; ok && now.Sub(at) <= n.dedupeWindow {
		return true
	}
	n.seen[key] = now
	return false
}

// Notify sends text at level, deduped within the configured window,
// fire-and-forget with one background retry on transient failure.
func (n *DedupingNotifier) Notify(ctx context.Context, level Level, text string) {
	if n == nil || n.sender == nil {
		return
	}
	if n.dedupe(level, text) {
		return
	}
	go n.deliver(level, text)
}

func (n *DedupingNotifier) deliver(level Level, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := n.sender.Send(ctx, level, text); err != nil {
		n.logger.Warn("notify failed, retrying once", "level", level, "error", err)
		time.Sleep(time.Second)
		retryCtx, retryCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer retryCancel()
		if err := n.sender.Send(retryCtx, level, text); err != nil {
			n.logger.Error("notify failed after retry", "level", level, "error", err)
		}
	}
}

// Critical mentions the configured critical user/group then notifies at
// LevelCritical, bypassing dedupe (a repeated critical condition should
// always page).
func (n *DedupingNotifier) Critical(ctx context.Context, text string) {
	if n == nil || n.sender == nil {
		return
	}
	if n.criticalMention != "" {
		text = n.criticalMention + " " + text
	}
	go n.deliver(LevelCritical, text)
}

// PresenceUpdate is best-effort; errors are logged, never propagated.
func (n *DedupingNotifier) PresenceUpdate(ctx context.Context, state PresenceState, mode PresenceMode, activity string) {
	if n == nil || n.sender == nil {
		return
	}
	if err := n.sender.SetPresence(ctx, state, mode, activity); err != nil {
		n.logger.Debug("presence update failed", "error", err)
	}
}
