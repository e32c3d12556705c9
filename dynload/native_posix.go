//go:build !windows

package dynload

import (
	"runtime"

	"github.com/ebitengine/purego"
)

// RTLD_NOW validates every symbol at open time; RTLD_GLOBAL makes them visible to libraries
// opened afterwards, which chained dependencies rely on.
const openFlags = purego.RTLD_NOW | purego.RTLD_GLOBAL

func openLibrary(path string) (uintptr, error) {
	handle, err := purego.Dlopen(path, openFlags)
	if err != nil || handle == 0 {
		return 0, &OpenError{Path: path, Reason: diagnosticText(err)}
	}
	return handle, nil
}

// openChained opens path with dir temporarily prepended to the dynamic linker search path.
func openChained(path, dir string) (uintptr, error) {
	if dir == "" {
		return openLibrary(path)
	}

	var handle uintptr
	err := withLibrarySearchDir(searchPathVariable(runtime.GOOS), dir, func() error {
		var openErr error
		handle, openErr = openLibrary(path)
		return openErr
	})
	if err != nil {
		return 0, err
	}
	return handle, nil
}

func closeLibrary(handle uintptr) error {
	if handle == 0 {
		return nil
	}
	return purego.Dlclose(handle)
}

func lookupSymbol(handle uintptr, name string) uintptr {
	addr, err := purego.Dlsym(handle, name)
	if err != nil {
		return 0
	}
	return addr
}
