//go:build linux

package supervisor

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/nhdewitt/psx/internal/sampler"
)

// WaitReaper reaps children via non-blocking wait4, mirroring the
// original's waitpid(pid, &status, WNOHANG) and waitpid(-1, NULL, WNOHANG)
// calls.
type WaitReaper struct{}

func (WaitReaper) TryReap(pid int32) (bool, error) {
	var status unix.WaitStatus
	got, err := unix.Wait4(int(pid), &status, unix.WNOHANG, nil)
	if err != nil {
		if errors.Is(err, unix.ECHILD) {
			return false, nil
		}
		return false, err
	}
	return got == int(pid), nil
}

func (WaitReaper) DrainOwnChildren() {
	var status unix.WaitStatus
	for {
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
	}
}

// CheckZombie reports whether pid's /proc/[pid]/stat state is Z.
func CheckZombie(pid int32) (bool, error) {
	st, _, err := sampler.ReadStat(pid)
	if err != nil {
		if errors.Is(err, sampler.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return st.IsZombie, nil
}
