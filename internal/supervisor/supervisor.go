// Package supervisor implements the zombie-reaping background task
// described in spec.md §4 (component F): periodically scans the process
// table for zombie entries, reaps them with a non-blocking wait, and
// removes them from the table; independently drains the daemon's own
// waitable children so they never accumulate as zombies themselves.
package supervisor

import (
	"context"
	"log"
	"time"

	"github.com/nhdewitt/psx/internal/proctable"
)

// Reaper abstracts the non-blocking wait4 call so tests can substitute a
// fake without real child processes. A real pid that isn't this process's
// child (the common case for a table built from the whole system's /proc)
// returns reaped=false, err=nil — ECHILD is not an error condition here.
type Reaper interface {
	// TryReap attempts a non-blocking reap of pid. reaped reports whether
	// the process was this daemon's own child and was collected.
	TryReap(pid int32) (reaped bool, err error)
	// DrainOwnChildren reaps every already-exited child of this process
	// without blocking, returning when none remain.
	DrainOwnChildren()
}

// ZombieChecker reports whether pid is currently in the Z state, per
// /proc/[pid]/stat, independent of the table's possibly-stale State field.
type ZombieChecker func(pid int32) (isZombie bool, err error)

// Supervisor periodically scans the table for zombies and reaps them.
type Supervisor struct {
	table        *proctable.Handle
	reaper       Reaper
	isZombie     ZombieChecker
	scanInterval time.Duration
}

// New constructs a Supervisor. scanInterval matches the original's 5 second
// zombie scan cadence when zero is passed.
func New(table *proctable.Handle, reaper Reaper, isZombie ZombieChecker, scanInterval time.Duration) *Supervisor {
	if scanInterval <= 0 {
		scanInterval = 5 * time.Second
	}
	return &Supervisor{table: table, reaper: reaper, isZombie: isZombie, scanInterval: scanInterval}
}

// Run ticks once a second (matching the original's outer sleep(1) loop),
// running a full zombie scan every scanInterval and draining the daemon's
// own children on every tick, until ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	lastScan := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(lastScan) >= s.scanInterval {
				s.scan(ctx)
				lastScan = now
			}
			s.reaper.DrainOwnChildren()
		}
	}
}

func (s *Supervisor) scan(ctx context.Context) {
	snapshot, err := s.table.Snapshot(ctx)
	if err != nil {
		log.Printf("supervisor: snapshot failed: %v", err)
		return
	}

	for _, rec := range snapshot {
		if rec.Pid == 0 {
			continue
		}
		zombie, err := s.isZombie(rec.Pid)
		if err != nil || !zombie {
			continue
		}

		log.Printf("found zombie process: pid %d", rec.Pid)
		reaped, err := s.reaper.TryReap(rec.Pid)
		if err != nil {
			log.Printf("supervisor: reap pid %d: %v", rec.Pid, err)
			continue
		}
		if reaped {
			log.Printf("reaped zombie process %d", rec.Pid)
		}
		if err := s.table.Remove(ctx, rec.Pid); err != nil {
			log.Printf("supervisor: remove pid %d from table: %v", rec.Pid, err)
		}
	}
}
