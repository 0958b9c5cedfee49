//go:build !linux

package daemon

// Supported is false outside Linux: internal/shm and internal/bus fall
// back to in-process stubs that don't cross process boundaries, so a real
// multi-client deployment never works there.
const Supported = false
