//go:build linux

package shm

import (
	"golang.org/x/sys/unix"
)

// semctl's fourth argument is a union (int, pointer, or struct) depending
// on cmd, which golang.org/x/sys/unix doesn't model generically. These two
// thin wrappers cover the only two forms the table lock needs: SETVAL
// (plain int) and IPC_RMID (ignored).
func semctlSetVal(id, num, val int) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), uintptr(num), semSetVal, uintptr(val), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func semctlRmid(id int) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), 0, unix.IPC_RMID, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
