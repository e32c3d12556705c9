package dynload

import (
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"
)

// LibraryHandle owns exactly one OS module handle.
// A handle whose open call failed is still a valid object: IsValid reports false and
// Release is a no-op.
type LibraryHandle struct {
	raw      uintptr
	path     string
	released atomic.Bool
}

// openHandle opens path, chaining its directory into the dependency search when searchDir is set.
// The returned handle is never nil, even when err is not.
func openHandle(path, searchDir string) (*LibraryHandle, error) {
	openMu.Lock()
	raw, err := openChained(path, searchDir)
	openMu.Unlock()

	h := &LibraryHandle{raw: raw, path: path}
	if raw != 0 {
		// Closes modules whose owner was dropped without an explicit unload.
		runtime.SetFinalizer(h, func(h *LibraryHandle) {
			_ = h.Release()
		})
	}
	return h, err
}

// Raw returns the OS handle value, or 0 once released.
func (h *LibraryHandle) Raw() uintptr {
	if !h.IsValid() {
		return 0
	}
	return h.raw
}

// Path returns the path the handle was opened from.
func (h *LibraryHandle) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}

// IsValid returns true if the handle refers to a mapped module.
func (h *LibraryHandle) IsValid() bool {
	return h != nil && h.raw != 0 && !h.released.Load()
}

// Release closes the OS handle. Only the first call reaches the OS; later calls return nil.
func (h *LibraryHandle) Release() error {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(h, nil)
	if h.raw == 0 {
		return nil
	}
	if err := closeLibrary(h.raw); err != nil {
		return errors.Wrapf(err, "failed to close [%s]", h.path)
	}
	return nil
}

func (h *LibraryHandle) symbol(name string) (uintptr, error) {
	if !h.IsValid() {
		return 0, ErrNotLoaded
	}
	return lookupSymbol(h.raw, name), nil
}
