package proctable

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"github.com/nhdewitt/psx/internal/shm"
)

// Handle is the attached, lockable view of the shared process table that
// every core component (sampler pool, scheduler, supervisor, command bus
// dispatcher) operates through.
type Handle struct {
	region shm.Region
	lock   shm.Lock
	table  *Table
}

// Attach attaches to (creating and zero-initializing on first attach) the
// shared process table region and its guarding lock. Subsequent attaches,
// whether from a daemon restart or a short-lived client, reuse whatever
// already exists at shmKey/semKey.
func Attach(shmKey, semKey int) (*Handle, error) {
	region, err := shm.Attach(shmKey, int(unsafe.Sizeof(Table{})))
	if err != nil {
		return nil, fmt.Errorf("attach process table region: %w", err)
	}

	lock, err := shm.NewLock(semKey)
	if err != nil {
		return nil, fmt.Errorf("attach process table lock: %w", err)
	}

	buf := region.Bytes()
	table := (*Table)(unsafe.Pointer(&buf[0]))

	if table.Active == 0 {
		*table = Table{}
		table.Active = 1
		table.LastSync = time.Now().UnixNano()
	}

	return &Handle{region: region, lock: lock, table: table}, nil
}

// Detach releases this process's mapping of the shared region without
// destroying it for other attachers.
func (h *Handle) Detach() error {
	return h.region.Detach()
}

// Destroy tears down the shared region and its lock entirely. Only
// administrative teardown should call this; the daemon's own Shutdown
// detaches without destroying.
func (h *Handle) Destroy() error {
	if err := h.lock.Destroy(); err != nil {
		return err
	}
	return h.region.Destroy()
}

// findIndexLocked is the O(count) linear scan described in spec.md §4.2.
// Callers must already hold the table lock.
func (h *Handle) findIndexLocked(pid int32) int {
	for i := int32(0); i < h.table.Count; i++ {
		if h.table.Processes[i].Pid == pid {
			return int(i)
		}
	}
	return -1
}

// FindIndex performs the same scan as findIndexLocked but acquires the
// lock itself; exposed for callers (tests, CLI inspection) that don't need
// a read-modify-write sequence under one critical section.
func (h *Handle) FindIndex(ctx context.Context, pid int32) (int, error) {
	release, err := h.lock.Acquire(ctx)
	if err != nil {
		return -1, err
	}
	defer release()
	return h.findIndexLocked(pid), nil
}

// Upsert overwrites the record sharing rec.Pid if one exists; otherwise it
// appends at Count and increments Count, unless the table is full, in
// which case the record is dropped silently (the next full enumeration
// re-establishes ground truth).
func (h *Handle) Upsert(ctx context.Context, rec Record) error {
	release, err := h.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if idx := h.findIndexLocked(rec.Pid); idx >= 0 {
		h.table.Processes[idx] = rec
	} else if h.table.Count < Cap {
		h.table.Processes[h.table.Count] = rec
		h.table.Count++
	}
	h.table.LastSync = time.Now().UnixNano()
	return nil
}

// Remove deletes the record for pid, moving the tail record into the
// freed slot (§4.2: removal preserves neither order nor index stability).
// No-op if pid isn't present.
func (h *Handle) Remove(ctx context.Context, pid int32) error {
	release, err := h.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	idx := h.findIndexLocked(pid)
	if idx < 0 {
		return nil
	}

	last := h.table.Count - 1
	h.table.Processes[idx] = h.table.Processes[last]
	h.table.Processes[last] = Record{}
	h.table.Count = last
	h.table.LastSync = time.Now().UnixNano()
	return nil
}

// Get returns a copy of the record for pid, if present.
func (h *Handle) Get(ctx context.Context, pid int32) (Record, bool, error) {
	release, err := h.lock.Acquire(ctx)
	if err != nil {
		return Record{}, false, err
	}
	defer release()

	idx := h.findIndexLocked(pid)
	if idx < 0 {
		return Record{}, false, nil
	}
	return h.table.Processes[idx], true, nil
}

// Snapshot copies every valid record out from under the lock, for
// consumers (the scheduler's per-cycle walk, the `list` CLI command) that
// need a consistent view without holding the lock for the duration of
// their own work.
func (h *Handle) Snapshot(ctx context.Context) ([]Record, error) {
	release, err := h.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]Record, h.table.Count)
	copy(out, h.table.Processes[:h.table.Count])
	return out, nil
}

// Reset clears the table (Count = 0) under the lock. Used by full
// enumeration (internal/pool) before it repopulates from a fresh /proc
// scan.
func (h *Handle) Reset(ctx context.Context) error {
	release, err := h.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	h.table.Count = 0
	h.table.LastSync = time.Now().UnixNano()
	return nil
}

// Count returns the current record count under the lock.
func (h *Handle) Count(ctx context.Context) (int32, error) {
	release, err := h.lock.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	return h.table.Count, nil
}

// LastSync returns the table's last mutation time under the lock.
func (h *Handle) LastSync(ctx context.Context) (time.Time, error) {
	release, err := h.lock.Acquire(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer release()
	return time.Unix(0, h.table.LastSync), nil
}
