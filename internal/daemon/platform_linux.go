//go:build linux

package daemon

// Supported is true on Linux, where internal/shm and internal/bus use real
// SysV IPC. psxd refuses to start without it; the non-Linux build exists
// only so the module still compiles for local development.
const Supported = true
