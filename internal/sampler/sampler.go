// Package sampler reads per-process counters from the kernel's
// process-info filesystem and derives CPU%/MEM% from them.
package sampler

import (
	"errors"

	"github.com/nhdewitt/psx/internal/proctable"
)

// ErrNotFound means the process vanished between enumeration and read.
// This is expected under normal operation and is never treated as fatal:
// callers skip the sample and move on.
var ErrNotFound = errors.New("sampler: process not found")

// Stat is the subset of /proc/[pid]/stat the process table cares about.
type Stat struct {
	PPid       int32
	State      proctable.State
	IsZombie   bool
	Utime      uint64
	Stime      uint64
	VSize      uint64
	RSSPages   uint64
	StartTicks uint64
}

// MapStateChar maps a /proc/[pid]/stat state character to proctable.State,
// per spec.md §4.1: R -> Running; S/D -> Sleeping; T/t -> Stopped;
// Z -> Zombie; anything else -> Dead.
func MapStateChar(c byte) (state proctable.State, isZombie bool) {
	switch c {
	case 'R':
		return proctable.Running, false
	case 'S', 'D':
		return proctable.Sleeping, false
	case 'T', 't':
		return proctable.Stopped, false
	case 'Z':
		return proctable.Zombie, true
	default:
		return proctable.Dead, false
	}
}

// DeriveCPUPercent implements spec.md §4.1's lifetime-average CPU%:
// ((utime+stime)/clkTck) / elapsedSeconds * 100, clamped to [0, 100].
// elapsedSeconds is clamped to a minimum of 1.0 to avoid dividing by (or
// near) zero for a process sampled immediately after it starts.
func DeriveCPUPercent(utime, stime uint64, clkTck float64, elapsedSeconds float64) float64 {
	if elapsedSeconds < 1.0 {
		elapsedSeconds = 1.0
	}
	if clkTck <= 0 {
		return 0
	}
	pct := (float64(utime+stime) / clkTck) / elapsedSeconds * 100.0
	if pct > 100.0 {
		pct = 100.0
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

// DeriveMemPercent implements spec.md §4.1's MEM%: (rssPages * pageSize) /
// totalRAM * 100, falling back to 0 if either divisor is unavailable.
func DeriveMemPercent(rssPages uint64, pageSize int64, totalRAMBytes uint64) float64 {
	if pageSize <= 0 || totalRAMBytes == 0 {
		return 0
	}
	rssBytes := rssPages * uint64(pageSize)
	return float64(rssBytes) / float64(totalRAMBytes) * 100.0
}

// SystemCPU is the kernel-wide CPU time breakdown from /proc/stat's leading
// "cpu" line, in clock ticks since boot.
type SystemCPU struct {
	User    uint64
	Nice    uint64
	System  uint64
	Idle    uint64
	Iowait  uint64
	Irq     uint64
	SoftIrq uint64
	Steal   uint64
}

// Total returns the sum of every accounted CPU time category.
func (c SystemCPU) Total() uint64 {
	return c.User + c.Nice + c.System + c.Idle + c.Iowait + c.Irq + c.SoftIrq + c.Steal
}

// BusyPercent returns the fraction of Total that isn't Idle/Iowait, i.e. the
// system-wide CPU utilization accumulated since boot. A single read of
// /proc/stat only yields a cumulative figure; comparing two ReadSystemCPU
// snapshots a fixed interval apart yields an instantaneous rate instead.
func (c SystemCPU) BusyPercent() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	busy := total - c.Idle - c.Iowait
	return float64(busy) / float64(total) * 100.0
}

// ElapsedSeconds computes the seconds since process start given the
// system's current uptime and the process's starttime field (both in
// ticks for starttime, seconds for uptime), per spec.md §4.1.
func ElapsedSeconds(uptimeSeconds float64, startTicks uint64, clkTck float64) float64 {
	if clkTck <= 0 {
		return 1.0
	}
	elapsed := uptimeSeconds - float64(startTicks)/clkTck
	if elapsed < 1.0 {
		elapsed = 1.0
	}
	return elapsed
}
