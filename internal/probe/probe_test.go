package probe

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/amikos-tech/pure-dynload/dynload"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func quietOptions() []dynload.Option {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return []dynload.Option{dynload.WithLogger(logger)}
}

func systemEntry(t *testing.T) Entry {
	t.Helper()
	switch runtime.GOOS {
	case "linux":
		return Entry{Name: "libc.so.6", Required: []string{"strlen", "malloc"}}
	case "darwin":
		return Entry{Path: "/usr/lib/libSystem.B.dylib", Required: []string{"strlen", "malloc"}}
	case "windows":
		return Entry{Name: "kernel32.dll", Required: []string{"lstrlenA", "GetProcAddress"}}
	default:
		t.Skipf("no system library known for %s", runtime.GOOS)
		return Entry{}
	}
}

const sampleManifest = `
[[library]]
name = "zlib"
path = "/usr/lib/libz.so.1"
required = ["adler32", "crc32"]
optional = ["zng_adler32"]

[[library]]
name = "libmagic.so.1"
required = ["magic_open"]
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if len(m.Libraries) != 2 {
		t.Fatalf("expected 2 libraries, got %d", len(m.Libraries))
	}

	first := m.Libraries[0]
	if first.Label() != "zlib" || first.Target() != "/usr/lib/libz.so.1" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if len(first.Required) != 2 || first.Optional[0] != "zng_adler32" {
		t.Fatalf("unexpected symbols %+v", first)
	}
	if second := m.Libraries[1]; second.Target() != "libmagic.so.1" {
		t.Fatalf("expected bare name target, got %q", second.Target())
	}
}

func TestParseManifestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		invalid bool
	}{
		{name: "syntax error", input: "[[library]\nname = "},
		{name: "no libraries", input: "title = 'empty'\n", invalid: true},
		{name: "no path or name", input: "[[library]]\nrequired = ['x']\n", invalid: true},
		{name: "empty symbol", input: "[[library]]\nname = 'libz.so.1'\nrequired = ['']\n", invalid: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tc.input))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.invalid && !errors.Is(err, dynload.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.toml")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(m.Libraries) != 2 {
		t.Fatalf("expected 2 libraries, got %d", len(m.Libraries))
	}

	if _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing manifest")
	}
}

func TestRunReportsSymbols(t *testing.T) {
	entry := systemEntry(t)
	entry.Optional = []string{entry.Required[0], "dynload_not_exported"}

	report, err := Run(entry, quietOptions()...)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected a successful probe, got %v", report.Err)
	}
	for _, name := range entry.Required {
		if report.Resolved[name] == 0 {
			t.Fatalf("expected %s resolved", name)
		}
	}
	if !report.Optional[entry.Required[0]] || report.Optional["dynload_not_exported"] {
		t.Fatalf("unexpected optional symbols %v", report.Optional)
	}
	if report.Platform != dynload.CurrentPlatform() {
		t.Fatalf("expected current platform, got %v", report.Platform)
	}
}

func TestRunMissingRequiredSymbol(t *testing.T) {
	entry := systemEntry(t)
	entry.Required = append(entry.Required, "dynload_not_exported")

	report, err := Run(entry, quietOptions()...)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Loaded || report.OK() {
		t.Fatal("expected the probe to fail")
	}
	if !errors.Is(report.Err, dynload.ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", report.Err)
	}
}

func TestRunMissingLibrary(t *testing.T) {
	entry := Entry{Path: filepath.Join(t.TempDir(), "libghost"+dynload.CurrentPlatform().LibraryExtension())}

	report, err := Run(entry, quietOptions()...)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(report.Err, dynload.ErrOpenFailed) {
		t.Fatalf("expected ErrOpenFailed, got %v", report.Err)
	}
}

func TestRunManifest(t *testing.T) {
	good := systemEntry(t)
	bad := Entry{Name: "ghost", Path: filepath.Join(t.TempDir(), "libghost.so")}

	reports, err := RunManifest(&Manifest{Libraries: []Entry{good, bad}}, quietOptions()...)
	if err != nil {
		t.Fatalf("RunManifest: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if !reports[0].OK() || reports[1].OK() {
		t.Fatalf("expected first to pass and second to fail, got %v and %v", reports[0].Err, reports[1].Err)
	}

	if _, err := RunManifest(&Manifest{}, quietOptions()...); !errors.Is(err, dynload.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty manifest, got %v", err)
	}
}
