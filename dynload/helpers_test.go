package dynload

import (
	"io"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// systemLibrary returns a library every supported host can load, and an exported
// strlen-like symbol: it takes a const char* and returns its length.
func systemLibrary(t testing.TB) (string, string) {
	t.Helper()
	switch runtime.GOOS {
	case "linux":
		return "libc.so.6", "strlen"
	case "darwin":
		return "/usr/lib/libSystem.B.dylib", "strlen"
	case "windows":
		return "kernel32.dll", "lstrlenA"
	default:
		t.Skipf("no known system library for GOOS=%s", runtime.GOOS)
		return "", ""
	}
}

// systemLibraryFile returns an absolute path to a system library file on disk.
func systemLibraryFile(t testing.TB) string {
	t.Helper()
	var patterns []string
	switch runtime.GOOS {
	case "linux":
		patterns = []string{
			"/lib/*-linux-gnu*/libc.so.6",
			"/usr/lib/*-linux-gnu*/libc.so.6",
			"/lib64/libc.so.6",
			"/usr/lib64/libc.so.6",
			"/usr/lib/libc.so.6",
			"/lib/libc.musl-*.so.1",
		}
	case "windows":
		patterns = []string{`C:\Windows\System32\kernel32.dll`}
	default:
		t.Skipf("no on-disk system library candidates for GOOS=%s", runtime.GOOS)
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		if len(matches) > 0 {
			return matches[0]
		}
	}
	t.Skipf("no system library file found; checked %v", patterns)
	return ""
}

type fakeBinding struct {
	defaultName string
	defaultErr  error
	loadDataErr error
	loadErr     error
	panicOnLoad bool
	symbols     []string

	events     []string
	loadData   any
	resolved   map[string]uintptr
	loadCalls  int
	resetCalls int
}

func (b *fakeBinding) DefaultFileName() (string, error) {
	b.events = append(b.events, "default")
	return b.defaultName, b.defaultErr
}

func (b *fakeBinding) HandleLoadData(data any) error {
	b.events = append(b.events, "loaddata")
	b.loadData = data
	return b.loadDataErr
}

func (b *fakeBinding) LoadSymbols(l *Loader) error {
	b.events = append(b.events, "load")
	b.loadCalls++
	b.resolved = make(map[string]uintptr)
	for _, symbol := range b.symbols {
		addr, err := l.ResolveRaw(symbol)
		if err != nil {
			return err
		}
		b.resolved[symbol] = addr
	}
	if b.panicOnLoad {
		panic("symbol table exploded")
	}
	return b.loadErr
}

func (b *fakeBinding) ResetSymbols() {
	b.events = append(b.events, "reset")
	b.resetCalls++
	b.resolved = nil
}

func newTestLoader(t testing.TB, binding Binding, opts ...Option) *Loader {
	t.Helper()
	opts = append([]Option{WithLogger(testLogger())}, opts...)
	loader, err := NewLoader(binding, opts...)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	t.Cleanup(func() {
		_ = loader.Unload()
	})
	return loader
}
