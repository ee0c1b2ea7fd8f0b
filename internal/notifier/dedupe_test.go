package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fails int
}

func (f *fakeSender) Send(ctx context.Context, level Level, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, string(level)+":"+text)
	return nil
}

func (f *fakeSender) SetPresence(ctx context.Context, state PresenceState, mode PresenceMode, activity string) error {
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestNotifyDedupesWithinWindow(t *testing.T) {
	sender := &fakeSender{}
	n := NewDedupingNotifier(sender, "", 50*time.Millisecond)

	n.Notify(context.Background(), LevelInfo, "hello")
	n.Notify(context.Background(), LevelInfo, "hello")
	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	n.Notify(context.Background(), LevelInfo, "hello")
	require.Eventually(t, func() bool { return sender.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *DedupingNotifier
	require.NotPanics(t, func() {
		n.Notify(context.Background(), LevelInfo, "x")
		n.Critical(context.Background(), "x")
		n.PresenceUpdate(context.Background(), PresenceOnline, ModeWatching, "x")
	})
}

func TestNotifierWithNilSenderIsNoop(t *testing.T) {
	n := NewDedupingNotifier(nil, "", time.Second)
	require.NotPanics(t, func() {
		n.Notify(context.Background(), LevelInfo, "x")
	})
}
