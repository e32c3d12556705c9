//go:build windows

package dynload

import (
	"golang.org/x/sys/windows"
)

func openLibrary(path string, flags uintptr) (uintptr, error) {
	handle, err := windows.LoadLibraryEx(path, 0, flags)
	if err != nil || handle == 0 {
		return 0, &OpenError{Path: path, Reason: diagnosticText(err)}
	}
	return uintptr(handle), nil
}

// openChained opens path so that DLLs it depends on are also searched for in dir.
// LOAD_WITH_ALTERED_SEARCH_PATH replaces the application directory with the directory
// of the (absolute) path being loaded, so no process-wide state is modified.
func openChained(path, dir string) (uintptr, error) {
	if dir == "" {
		return openLibrary(path, 0)
	}
	return openLibrary(path, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
}

func closeLibrary(handle uintptr) error {
	if handle == 0 {
		return nil
	}
	return windows.FreeLibrary(windows.Handle(handle))
}

func lookupSymbol(handle uintptr, name string) uintptr {
	proc, err := windows.GetProcAddress(windows.Handle(handle), name)
	if err != nil {
		return 0
	}
	return proc
}
