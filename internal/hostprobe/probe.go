// Package hostprobe exposes pure, concurrency-safe functions over host and
// process resource state: wall time, monotonic time, process RSS, system
// memory, load average, and free disk. Every function is safe to call from
// any goroutine; failures (an unreadable /proc file, a missing mount point)
// return zero rather than an error, so callers treat zero as "unknown, do
// not trigger pressure" per spec.
package hostprobe

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Now returns the current wall-clock time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// monotonicRef is captured once at package init so every MonotonicSeconds
// call derives from time.Since, which carries time.Time's monotonic reading
// through the subtraction. Returning time.Now().UnixNano() directly would
// strip that reading (UnixNano forces a wall-clock read), leaving every
// deadline and backoff computed from it vulnerable to NTP corrections and
// manual clock steps.
var monotonicRef = time.Now()

// MonotonicSeconds returns a monotonic clock reading in seconds, suitable
// only for computing differences against another MonotonicSeconds call.
func MonotonicSeconds() float64 {
	return time.Since(monotonicRef).Seconds()
}

// ProcessRSSMiB returns the resident set size, in MiB, of the process with
// the given pid. Returns 0 if the process cannot be inspected.
func ProcessRSSMiB(pid int32) float64 {
	proc, err := process.NewProcess(pid)
	if err != nil {
		slog.Debug("hostprobe: process lookup failed", "pid", pid, "error", err)
		return 0
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		slog.Debug("hostprobe: memory info unavailable", "pid", pid, "error", err)
		return 0
	}
	return float64(info.RSS) / (1024 * 1024)
}

// SystemMemory reports total and available system memory in MiB. Returns
// zeros if /proc/meminfo (or the platform equivalent) cannot be read.
func SystemMemory() (totalMiB, availableMiB float64) {
	vm, err := mem.VirtualMemory()
	if err != nil || vm == nil {
		slog.Debug("hostprobe: virtual memory read failed", "error", err)
		return 0, 0
	}
	return float64(vm.Total) / (1024 * 1024), float64(vm.Available) / (1024 * 1024)
}

// SystemMemoryUsedPercent returns the fraction of system RAM in use, in
// percent. Returns 0 if memory stats are unavailable.
func SystemMemoryUsedPercent() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil || vm == nil {
		return 0
	}
	return vm.UsedPercent
}

// LoadPerCPU returns the 1-minute load average divided by the number of
// online CPUs. Returns 0 if load stats are unavailable.
func LoadPerCPU() float64 {
	avg, err := load.Avg()
	if err != nil || avg == nil {
		slog.Debug("hostprobe: load average read failed", "error", err)
		return 0
	}
	cpus := runtime.NumCPU()
	if cpus <= 0 {
		return 0
	}
	return avg.Load1 / float64(cpus)
}

// DiskFreeGB returns free disk space, in GB, for the filesystem containing
// path. Returns 0 if the path cannot be statted.
func DiskFreeGB(path string) float64 {
	usage, err := disk.Usage(path)
	if err != nil || usage == nil {
		slog.Debug("hostprobe: disk usage read failed", "path", path, "error", err)
		return 0
	}
	return float64(usage.Free) / (1024 * 1024 * 1024)
}

// Snapshot is a single consistent read of every probe, taken together so
// resource-violation checks compare values from the same instant.
type Snapshot struct {
	ProcessRSSMiB      float64
	SystemMemoryUsed   float64 // percent
	LoadPerCPU         float64
	DiskFreeGB         float64
	SampledAtMonotonic float64
}

// Sample takes a consistent snapshot of the probes relevant to resource-kill
// and backpressure decisions for the given pid and disk path. ctx is
// accepted for symmetry with other engine calls and to allow future
// cancellation of slow platform calls; no I/O in this implementation blocks
// long enough to need it.
func Sample(_ context.Context, pid int32, diskPath string) Snapshot {
	return Snapshot{
		ProcessRSSMiB:      ProcessRSSMiB(pid),
		SystemMemoryUsed:   SystemMemoryUsedPercent(),
		LoadPerCPU:         LoadPerCPU(),
		DiskFreeGB:         DiskFreeGB(diskPath),
		SampledAtMonotonic: MonotonicSeconds(),
	}
}
