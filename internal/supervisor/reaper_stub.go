//go:build !linux

package supervisor

// WaitReaper has no non-blocking wait4 to call on this platform. psxd
// refuses to start outside Linux (see internal/daemon), so these methods
// are never exercised for a real supervisor; they exist only so the package
// still links for development, matching internal/sampler's stub convention.
type WaitReaper struct{}

func (WaitReaper) TryReap(pid int32) (bool, error) { return false, nil }

func (WaitReaper) DrainOwnChildren() {}

// CheckZombie has no /proc to read on this platform and always reports
// false.
func CheckZombie(pid int32) (bool, error) { return false, nil }
