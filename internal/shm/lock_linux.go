//go:build linux

package shm

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

const semSetVal = 16 // SETVAL, from <sys/sem.h>

type sysvLock struct {
	id int
}

// NewLock attaches to (creating if necessary) a binary SysV semaphore at
// the given key, initialized to 1 (unlocked) on first creation.
func NewLock(key int) (Lock, error) {
	// Only initialize on first creation; semctl(SETVAL) on an
	// already-locked semaphore held by another process would clobber it.
	id, err := unix.Semget(key, 1, ipcCreat|ipcExcl|0o666)
	if err == nil {
		if err := semctlSetVal(id, 0, 1); err != nil {
			return nil, fmt.Errorf("semctl setval: %w", err)
		}
		return &sysvLock{id: id}, nil
	}
	if err == unix.EEXIST {
		id, err = unix.Semget(key, 1, 0o666)
	}
	if err != nil {
		return nil, fmt.Errorf("semget key=%#x: %w", key, err)
	}

	return &sysvLock{id: id}, nil
}

// Acquire performs a SEM_UNDO decrement (P operation). If the holder
// process dies before calling release, the kernel undoes the decrement
// automatically. ctx cancellation is observed between retries; a single
// Semop call itself cannot be interrupted mid-syscall on Linux.
func (l *sysvLock) Acquire(ctx context.Context) (func(), error) {
	op := []unix.Sembuf{{SemNum: 0, SemOp: -1, SemFlg: unix.SEM_UNDO}}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := unix.Semop(l.id, op)
		if err == nil {
			break
		}
		if err == unix.EINTR {
			continue
		}
		return nil, fmt.Errorf("semop lock: %w", err)
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		up := []unix.Sembuf{{SemNum: 0, SemOp: 1, SemFlg: unix.SEM_UNDO}}
		_ = unix.Semop(l.id, up)
	}
	return release, nil
}

func (l *sysvLock) Destroy() error {
	return semctlRmid(l.id)
}
