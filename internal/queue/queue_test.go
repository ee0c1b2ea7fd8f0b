package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnqueueRejectsDuplicateActiveScript(t *testing.T) {
	q := New()
	_, err := q.Enqueue(QueuedScript{ScriptKey: "welcome", Priority: 5})
	require.NoError(t, err)

	_, err = q.Enqueue(QueuedScript{ScriptKey: "welcome", Priority: 1})
	require.ErrorIs(t, err, ErrAlreadyActive)
}

func TestPopEligibleOrdersByPriorityThenFIFO(t *testing.T) {
	q := New()
	_, err := q.Enqueue(QueuedScript{ScriptKey: "b", Priority: 5})
	require.NoError(t, err)
	_, err = q.Enqueue(QueuedScript{ScriptKey: "a", Priority: 1})
	require.NoError(t, err)
	_, err = q.Enqueue(QueuedScript{ScriptKey: "c", Priority: 5})
	require.NoError(t, err)

	first, err := q.PopEligible(0, 0, 10)
	require.NoError(t, err)
	require.Equal(t, "a", first.ScriptKey)

	second, err := q.PopEligible(0, 0, 10)
	require.NoError(t, err)
	require.Equal(t, "b", second.ScriptKey) // enqueued before c at equal priority
}

func TestPopEligibleRespectsParallelismUnlessBypassing(t *testing.T) {
	q := New()
	_, err := q.Enqueue(QueuedScript{ScriptKey: "a", Priority: 1})
	require.NoError(t, err)

	_, err = q.PopEligible(0, 2, 2) // at capacity, not bypassing
	require.ErrorIs(t, err, ErrEmpty)

	_, err = q.Enqueue(QueuedScript{ScriptKey: "b", Priority: 1, BypassLimits: true})
	require.NoError(t, err)
	entry, err := q.PopEligible(0, 2, 2)
	require.NoError(t, err)
	require.Equal(t, "b", entry.ScriptKey)
}

func TestPopEligibleHonorsNotBeforeDelay(t *testing.T) {
	q := New()
	_, err := q.Enqueue(QueuedScript{ScriptKey: "a", Priority: 1, NotBeforeMono: 100})
	require.NoError(t, err)

	_, err = q.PopEligible(50, 0, 10)
	require.ErrorIs(t, err, ErrEmpty)

	entry, err := q.PopEligible(100, 0, 10)
	require.NoError(t, err)
	require.Equal(t, "a", entry.ScriptKey)
}

func TestReleaseAllowsReadmission(t *testing.T) {
	q := New()
	_, err := q.Enqueue(QueuedScript{ScriptKey: "a", Priority: 1})
	require.NoError(t, err)
	_, err = q.PopEligible(0, 0, 10)
	require.NoError(t, err)

	require.True(t, q.IsActive("a"))
	q.Release("a")
	require.False(t, q.IsActive("a"))

	_, err = q.Enqueue(QueuedScript{ScriptKey: "a", Priority: 1})
	require.NoError(t, err)
}

func TestEnqueueTruncatesTargetLabel(t *testing.T) {
	q := New()
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	entry, err := q.Enqueue(QueuedScript{ScriptKey: "a", Priority: 1, TargetLabel: string(long)})
	require.NoError(t, err)
	require.Len(t, entry.TargetLabel, maxTargetLabelLen)
}

func TestPeekDoesNotMutateQueue(t *testing.T) {
	q := New()
	_, err := q.Enqueue(QueuedScript{ScriptKey: "a", Priority: 3})
	require.NoError(t, err)
	_, err = q.Enqueue(QueuedScript{ScriptKey: "b", Priority: 1})
	require.NoError(t, err)

	snapshot := q.Peek()
	require.Len(t, snapshot, 2)
	require.Equal(t, "b", snapshot[0].ScriptKey)
	require.Equal(t, 2, q.Len())
}
