// Package scheduler implements the adaptive per-process update cadence
// described in spec.md §4 (component E): a process's CPU usage on the
// previous cycle determines how soon it's due for its next sample.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/nhdewitt/psx/internal/proctable"
)

// Priority mirrors the original's PRIORITY_HIGH/MEDIUM/LOW classification.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	default:
		return "Low"
	}
}

// ClassifyPriority buckets a CPU% reading into a priority tier, per
// spec.md §4: >50% High, (10,50]% Medium, <=10% Low.
func ClassifyPriority(cpuPercent float64) Priority {
	switch {
	case cpuPercent > 50.0:
		return PriorityHigh
	case cpuPercent > 10.0:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// UpdateInterval returns the sampling cadence for a priority tier.
func UpdateInterval(p Priority) time.Duration {
	switch p {
	case PriorityHigh:
		return 1 * time.Second
	case PriorityMedium:
		return 3 * time.Second
	default:
		return 5 * time.Second
	}
}

// SampleFunc re-samples a single process and reports whether it's still
// alive (false means the caller should stop tracking it).
type SampleFunc func(ctx context.Context, pid int32) (alive bool, err error)

// Scheduler tracks a per-pid next-due time and priority. Unlike the
// original's slot-indexed arrays (last_update[MAX_PROCESSES], keyed by the
// process table's row index), tracking is keyed by pid directly: table
// rows move under tail-swap removal (proctable.Handle.Remove) and a
// slot-indexed cache would silently misattribute another process's history
// to a reused index.
type Scheduler struct {
	table   *proctable.Handle
	sample  SampleFunc
	nextDue map[int32]time.Time
	lastPct map[int32]float64
}

// New constructs a Scheduler against an attached process table handle.
func New(table *proctable.Handle, sample SampleFunc) *Scheduler {
	return &Scheduler{
		table:   table,
		sample:  sample,
		nextDue: make(map[int32]time.Time),
		lastPct: make(map[int32]float64),
	}
}

// Run ticks once a second (matching the original's `sleep(1)` check
// granularity) until ctx is canceled, re-sampling each process whose next-due
// time has elapsed.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	snapshot, err := s.table.Snapshot(ctx)
	if err != nil {
		log.Printf("scheduler: snapshot failed: %v", err)
		return
	}

	now := time.Now()
	live := make(map[int32]bool, len(snapshot))

	for _, rec := range snapshot {
		if rec.Pid == 0 {
			continue
		}
		live[rec.Pid] = true

		priority := ClassifyPriority(s.lastPct[rec.Pid])
		due, tracked := s.nextDue[rec.Pid]
		if !tracked {
			due = now
		}
		if now.Before(due) {
			continue
		}

		alive, err := s.sample(ctx, rec.Pid)
		if err != nil {
			log.Printf("scheduler: sample pid %d: %v", rec.Pid, err)
		}
		if !alive {
			delete(s.nextDue, rec.Pid)
			delete(s.lastPct, rec.Pid)
			continue
		}

		s.lastPct[rec.Pid] = rec.CPUPercent
		s.nextDue[rec.Pid] = now.Add(UpdateInterval(priority))
	}

	for pid := range s.nextDue {
		if !live[pid] {
			delete(s.nextDue, pid)
			delete(s.lastPct, pid)
		}
	}
}
