package dynload

import (
	"fmt"
	"runtime"
)

// DataModel is the C data model of a platform.
type DataModel int

const (
	// DataModelLP64 is 64-bit POSIX: int 32, long 64, pointer 64.
	DataModelLP64 DataModel = iota
	// DataModelLLP64 is 64-bit Windows: int 32, long 32, long long 64, pointer 64.
	DataModelLLP64
	// DataModelILP32 is 32-bit Windows and POSIX: int, long and pointer are all 32.
	DataModelILP32
)

func (m DataModel) String() string {
	switch m {
	case DataModelLP64:
		return "LP64"
	case DataModelLLP64:
		return "LLP64"
	case DataModelILP32:
		return "ILP32"
	default:
		return fmt.Sprintf("DataModel(%d)", int(m))
	}
}

// LongSize is the width of the C long type.
type LongSize int

const (
	Long64 LongSize = iota
	Long32
)

// Bytes returns the size of C long in bytes.
func (s LongSize) Bytes() int {
	if s == Long64 {
		return 8
	}
	return 4
}

func (s LongSize) String() string {
	return fmt.Sprintf("long%d", s.Bytes()*8)
}

// Bitness is the address space width, which is also the width of size_t.
type Bitness int

const (
	Bit32 Bitness = iota
	Bit64
)

// Bits returns 32 or 64.
func (b Bitness) Bits() int {
	if b == Bit64 {
		return 64
	}
	return 32
}

func (b Bitness) String() string {
	return fmt.Sprintf("%d-bit", b.Bits())
}

// StringConvention is the encoding a native library expects for char/wchar strings.
type StringConvention int

const (
	// ConventionUTF8 is the POSIX default.
	ConventionUTF8 StringConvention = iota
	// ConventionUTF16 is the Windows default (wchar_t*).
	ConventionUTF16

	// ConventionANSI is how Windows "A" entry points are addressed. Strings are still passed as UTF-8.
	ConventionANSI = ConventionUTF8
)

func (c StringConvention) String() string {
	switch c {
	case ConventionUTF8:
		return "UTF-8"
	case ConventionUTF16:
		return "UTF-16"
	default:
		return fmt.Sprintf("StringConvention(%d)", int(c))
	}
}

// PlatformInfo holds the conventions bindings need to marshal data for the running process.
type PlatformInfo struct {
	OS               string
	Arch             string
	DataModel        DataModel
	LongSize         LongSize
	Bitness          Bitness
	StringConvention StringConvention
}

var arch32 = map[string]bool{
	"386":         true,
	"amd64p32":    true,
	"arm":         true,
	"armbe":       true,
	"mips":        true,
	"mipsle":      true,
	"mips64p32":   true,
	"mips64p32le": true,
	"ppc":         true,
	"riscv":       true,
	"s390":        true,
	"sparc":       true,
}

// CurrentPlatform returns the platform conventions of the running process.
func CurrentPlatform() PlatformInfo {
	return PlatformFor(runtime.GOOS, runtime.GOARCH)
}

// PlatformFor computes platform conventions for a GOOS/GOARCH pair.
func PlatformFor(goos, goarch string) PlatformInfo {
	info := PlatformInfo{OS: goos, Arch: goarch, Bitness: Bit64}
	if arch32[goarch] {
		info.Bitness = Bit32
	}

	if goos == "windows" {
		info.StringConvention = ConventionUTF16
		info.LongSize = Long32
		info.DataModel = DataModelLLP64
		if info.Bitness == Bit32 {
			info.DataModel = DataModelILP32
		}
		return info
	}

	info.StringConvention = ConventionUTF8
	info.LongSize = Long64
	info.DataModel = DataModelLP64
	if info.Bitness == Bit32 {
		info.LongSize = Long32
		info.DataModel = DataModelILP32
	}
	return info
}

// LibraryExtension returns the conventional shared library file extension.
func (p PlatformInfo) LibraryExtension() string {
	switch p.OS {
	case "windows":
		return ".dll"
	case "darwin", "ios":
		return ".dylib"
	default:
		return ".so"
	}
}

// PointerSize returns the size of a native pointer in bytes.
func (p PlatformInfo) PointerSize() int {
	return p.Bitness.Bits() / 8
}

func (p PlatformInfo) String() string {
	return fmt.Sprintf("%s/%s %s %s %s %s", p.OS, p.Arch, p.DataModel, p.LongSize, p.Bitness, p.StringConvention)
}
