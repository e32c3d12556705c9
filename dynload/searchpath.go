package dynload

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// openMu serializes every native open in the process. The POSIX search path is an
// environment variable shared by all goroutines, so two concurrent chained loads would
// otherwise observe each other's temporary value.
var openMu sync.Mutex

// searchPathVariable returns the environment variable the dynamic linker consults for
// dependent libraries, or "" when the platform does not use one.
func searchPathVariable(goos string) string {
	switch goos {
	case "windows":
		return ""
	case "darwin", "ios":
		return "DYLD_LIBRARY_PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

// searchDirOf returns the absolute directory of path when path names a directory part
// that exists. Bare file names return "" and are left to the OS search order.
func searchDirOf(path string) string {
	if filepath.Base(path) == path {
		return ""
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return ""
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}
	return dir
}

// withLibrarySearchDir prepends dir to the search path variable for the duration of fn.
// The prior value, including an unset variable, is restored on every exit path.
func withLibrarySearchDir(variable, dir string, fn func() error) (err error) {
	if variable == "" || dir == "" {
		return fn()
	}

	prev, had := os.LookupEnv(variable)
	next := dir
	if had && prev != "" {
		next = dir + string(os.PathListSeparator) + prev
	}
	if err := os.Setenv(variable, next); err != nil {
		return errors.Wrapf(err, "failed to extend %s", variable)
	}

	defer func() {
		var restoreErr error
		if had {
			restoreErr = os.Setenv(variable, prev)
		} else {
			restoreErr = os.Unsetenv(variable)
		}
		if restoreErr != nil && err == nil {
			err = errors.Wrapf(restoreErr, "failed to restore %s", variable)
		}
	}()

	return fn()
}
