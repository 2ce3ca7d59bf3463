// Package accel registers an accelerator-backed numeric backend when
// imported. No CUDA (or other GPU) bindings exist anywhere in the
// reference corpus this module was built from, so this implementation
// always reports itself unavailable; it exists so the rest of the system
// can be written against backend.Backend without special-casing "there is
// no GPU build" — wiring it in costs nothing and documents the extension
// point a real accelerator implementation would fill. See DESIGN.md for
// why this is a stub rather than an omission.
package accel

import (
	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/backend"
)

func init() {
	backend.NewAccelBackendFunc = newAccelBackend
}

// newAccelBackend always fails: there is no accelerator device detection
// to perform without real GPU bindings. Callers fall through to the CPU
// backend via backend.Select's allowFallback path.
func newAccelBackend(numStreams int) (backend.Backend, error) {
	return nil, apperr.Backendf("no accelerator device detected")
}
