//go:build !linux && !darwin

package evloop

import "fmt"

// newPlatformBackend is the per-platform default for builds with no
// dedicated readiness back-end (anything but linux/darwin here) — the
// generic signal-only backend. A real IOCP-based Windows backend is out
// of scope for this exercise; see DESIGN.md.
func newPlatformBackend() (Backend, error) {
	return newGenericBackend(), nil
}

func newNamedPlatformBackend(name string) (Backend, error) {
	return nil, fmt.Errorf("evloop: unknown backend %q for this platform", name)
}
