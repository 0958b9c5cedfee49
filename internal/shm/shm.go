// Package shm provides the cross-process shared memory region and mutual
// exclusion lock that back the process table. Both are kernel-global
// objects keyed by a small integer (the SysV IPC key), so a daemon and any
// number of short-lived client processes can attach to the same region.
package shm

import "context"

// Region is a fixed-size block of memory shared across processes,
// identified by key. Attach creates the region on first use and reuses it
// on subsequent attaches (daemon restarts, client invocations).
type Region interface {
	// Bytes returns the raw backing memory. Callers are expected to cast it
	// to the structure that lives in the region (see internal/proctable).
	Bytes() []byte

	// Created reports whether this call to Attach created the region
	// (true) or reused an existing one (false).
	Created() bool

	// Detach releases this process's mapping without destroying the
	// region for other attachers.
	Detach() error

	// Destroy tears the region down entirely. Only administrative
	// teardown should call this.
	Destroy() error
}

// Lock is a cross-process mutual exclusion primitive with SEM_UNDO
// semantics: if the holder process dies without releasing, the kernel
// releases the lock on its behalf.
type Lock interface {
	// Acquire blocks until the lock is held, then returns a release
	// function the caller must invoke exactly once (typically via defer).
	Acquire(ctx context.Context) (release func(), err error)

	// Destroy removes the lock's kernel object. Only administrative
	// teardown should call this.
	Destroy() error
}

// Keys bundles the three magic numbers that key the daemon's kernel-global
// objects: the shared process table region, the table lock semaphore, and
// the command bus message queue.
type Keys struct {
	ShmKey int
	SemKey int
	MsgKey int
}

// DefaultKeys matches the magic numbers carried over from the original
// implementation, preserved so a daemon restart reattaches to the same
// kernel objects rather than orphaning them.
var DefaultKeys = Keys{
	ShmKey: 0x12345,
	SemKey: 0xABCDE,
	MsgKey: 0x54321,
}
