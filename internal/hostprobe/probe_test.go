package hostprobe

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProcessRSSMiBUnknownPID(t *testing.T) {
	// A pid vanishingly unlikely to exist; must return 0, not error.
	require.Equal(t, float64(0), ProcessRSSMiB(1<<30))
}

func TestProcessRSSMiBSelf(t *testing.T) {
	rss := ProcessRSSMiB(int32(os.Getpid()))
	require.GreaterOrEqual(t, rss, float64(0))
}

func TestSystemMemory(t *testing.T) {
	total, avail := SystemMemory()
	require.GreaterOrEqual(t, total, float64(0))
	require.GreaterOrEqual(t, avail, float64(0))
}

func TestDiskFreeGBUnknownPath(t *testing.T) {
	require.Equal(t, float64(0), DiskFreeGB("/this/path/does/not/exist/anywhere"))
}

func TestSample(t *testing.T) {
	snap := Sample(context.Background(), int32(os.Getpid()), os.TempDir())
	require.GreaterOrEqual(t, snap.SampledAtMonotonic, float64(0))
}

func TestMonotonicSecondsIncreasing(t *testing.T) {
	a := MonotonicSeconds()
	b := MonotonicSeconds()
	require.GreaterOrEqual(t, b, a)
}
