//go:build linux

package shm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const ipcCreat = 0o1000
const ipcExcl = 0o2000

type sysvRegion struct {
	id      int
	addr    uintptr
	size    int
	created bool
}

// Attach attaches to (creating if necessary) a SysV shared memory segment
// of exactly size bytes at the given key. Daemon restarts and client
// invocations reuse whatever segment already exists at that key.
func Attach(key, size int) (Region, error) {
	// Distinguish "we created it" from "it already existed" the way
	// shmget's IPC_EXCL semantics do: an exclusive create fails with EEXIST
	// iff the segment was already there, in which case it is looked up
	// without IPC_CREAT.
	created := true
	id, err := unix.Shmget(key, size, ipcCreat|ipcExcl|0o666)
	if err == unix.EEXIST {
		created = false
		id, err = unix.Shmget(key, size, 0o666)
	}
	if err != nil {
		return nil, fmt.Errorf("shmget key=%#x: %w", key, err)
	}

	addr, err := unix.Shmat(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("shmat id=%d: %w", id, err)
	}

	return &sysvRegion{id: id, addr: addr, size: size, created: created}, nil
}

func (r *sysvRegion) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(r.addr)), r.size)
}

func (r *sysvRegion) Created() bool { return r.created }

func (r *sysvRegion) Detach() error {
	if r.addr == 0 {
		return nil
	}
	err := unix.Shmdt(r.addr)
	r.addr = 0
	return err
}

func (r *sysvRegion) Destroy() error {
	if err := r.Detach(); err != nil {
		return err
	}
	_, err := unix.Shmctl(r.id, unix.IPC_RMID, nil)
	return err
}
