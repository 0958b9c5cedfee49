// Package proctable defines the fixed-capacity process table shared between
// the daemon's workers and any number of short-lived client processes.
package proctable

import "fmt"

// Cap is the hard ceiling on tracked processes. Insertions past it are
// rejected, not queued.
const Cap = 4096

const (
	maxNameLen    = 64
	maxCmdlineLen = 256
)

// State is the coarse process state derived from /proc/[pid]/stat.
type State int32

const (
	Running State = iota
	Sleeping
	Stopped
	Zombie
	Dead
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Sleeping:
		return "Sleeping"
	case Stopped:
		return "Stopped"
	case Zombie:
		return "Zombie"
	case Dead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// Record is one row of the process table. It has a fixed, POD layout so it
// can live inside a shared memory segment mapped by more than one process.
type Record struct {
	Pid        int32
	PPid       int32
	Name       [maxNameLen]byte
	Cmdline    [maxCmdlineLen]byte
	State      State
	Utime      uint64
	Stime      uint64
	VSize      uint64
	RSS        uint64
	CPUPercent float64
	MemPercent float64
	LastUpdate int64 // unix nanoseconds of the most recent successful sample
	IsZombie   int32 // stored as int32, not bool, to keep the struct POD-safe across attaches
}

// SetName copies s into the fixed Name field, truncating and
// NUL-terminating as needed.
func (r *Record) SetName(s string) {
	setFixed(r.Name[:], s)
}

// GetName returns the Name field as a Go string, trimmed at the first NUL.
func (r *Record) GetName() string {
	return getFixed(r.Name[:])
}

// SetCmdline copies s into the fixed Cmdline field, truncating and
// NUL-terminating as needed.
func (r *Record) SetCmdline(s string) {
	setFixed(r.Cmdline[:], s)
}

// GetCmdline returns the Cmdline field as a Go string, trimmed at the first
// NUL.
func (r *Record) GetCmdline() string {
	return getFixed(r.Cmdline[:])
}

func setFixed(dst []byte, s string) {
	clear(dst)
	n := copy(dst[:len(dst)-1], s)
	dst[n] = 0
}

func getFixed(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src)
}

// Table is the shared container: count, the flat process array, the
// timestamp of the last mutation, and the first-attach marker.
//
// Only the holder of the table lock (see internal/shm) may read or write
// Count, Processes, or LastSync. A record whose Pid is 0 is a tombstone and
// must be skipped by all consumers. Indices [0, Count) are valid; the rest
// of Processes is undefined.
type Table struct {
	Count     int32
	_         [4]byte // align Processes to an 8-byte boundary
	Processes [Cap]Record
	LastSync  int64
	Active    int32
	_         [4]byte
}

// String returns a one-line summary of count, last sync time, and the
// first-attach marker.
func (t *Table) String() string {
	return fmt.Sprintf("count=%d last_sync=%d active=%v", t.Count, t.LastSync, t.Active != 0)
}
