// Package zlib binds the checksum and version entry points of a system zlib or zlib-ng.
package zlib

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/amikos-tech/pure-dynload/dynload"
	"github.com/pkg/errors"
)

// ErrIncompatibleVersion is returned by RequireVersion when the loaded zlib is outside the constraint.
var ErrIncompatibleVersion = errors.New("incompatible zlib version")

// Variant selects the symbol family to bind.
type Variant int

const (
	// VariantCompat binds the classic zlib API (adler32, crc32, zlibVersion).
	VariantCompat Variant = iota
	// VariantNG binds the native zlib-ng API (zng_adler32, zng_crc32, zlibng_version).
	VariantNG
)

func (v Variant) String() string {
	switch v {
	case VariantCompat:
		return "zlib"
	case VariantNG:
		return "zlib-ng"
	default:
		return "Variant(" + strconv.Itoa(int(v)) + ")"
	}
}

// LoadData is the per-load configuration accepted by Library.Load.
type LoadData struct {
	Variant Variant
}

type symbolSet struct {
	adler32 string
	crc32   string
	version string
}

var symbolSets = map[Variant]symbolSet{
	VariantCompat: {adler32: "adler32", crc32: "crc32", version: "zlibVersion"},
	VariantNG:     {adler32: "zng_adler32", crc32: "zng_crc32", version: "zlibng_version"},
}

// maxChunk keeps each native call within the 32-bit length parameter.
const maxChunk = 1 << 30

// Library is a loadable zlib binding. The zero value is not usable; call New.
type Library struct {
	*dynload.Loader

	variant Variant

	// Classic zlib takes and returns uLong, which is pointer sized on every supported platform.
	adler32   func(adler uintptr, buf *byte, length uint32) uintptr
	crc32     func(crc uintptr, buf *byte, length uint32) uintptr
	ngAdler32 func(adler uint32, buf *byte, length uint32) uint32
	ngCrc32   func(crc uint32, buf *byte, length uint32) uint32
	version   func() uintptr

	adler32Addr uintptr
	crc32Addr   uintptr
}

// New creates an unloaded zlib binding.
func New(opts ...dynload.Option) (*Library, error) {
	lib := &Library{}
	loader, err := dynload.NewLoader(lib, opts...)
	if err != nil {
		return nil, err
	}
	lib.Loader = loader
	return lib, nil
}

// HandleLoadData selects the variant. nil selects VariantCompat.
func (z *Library) HandleLoadData(data any) error {
	switch d := data.(type) {
	case nil:
		z.variant = VariantCompat
	case LoadData:
		z.variant = d.Variant
	case *LoadData:
		if d == nil {
			z.variant = VariantCompat
		} else {
			z.variant = d.Variant
		}
	default:
		return errors.Wrapf(dynload.ErrInvalidArgument, "zlib load data must be zlib.LoadData, got %T", data)
	}
	if _, ok := symbolSets[z.variant]; !ok {
		return errors.Wrapf(dynload.ErrInvalidArgument, "unknown zlib variant %d", int(z.variant))
	}
	return nil
}

// DefaultFileName returns the conventional soname of the selected variant.
func (z *Library) DefaultFileName() (string, error) {
	return defaultFileName(runtime.GOOS, z.variant)
}

func defaultFileName(goos string, variant Variant) (string, error) {
	switch goos {
	case "linux", "android", "freebsd", "netbsd":
		if variant == VariantNG {
			return "libz-ng.so.2", nil
		}
		return "libz.so.1", nil
	case "darwin", "ios":
		if variant == VariantNG {
			return "libz-ng.2.dylib", nil
		}
		return "libz.dylib", nil
	default:
		return "", errors.Wrapf(dynload.ErrPlatformNotSupported, "no default %s library on %s", variant, goos)
	}
}

// LoadSymbols binds the selected variant's entry points. Any missing symbol fails the load.
func (z *Library) LoadSymbols(l *dynload.Loader) error {
	set := symbolSets[z.variant]

	var err error
	if z.variant == VariantNG {
		if z.ngAdler32, err = dynload.Resolve[func(uint32, *byte, uint32) uint32](l, set.adler32); err != nil {
			return err
		}
		if z.ngCrc32, err = dynload.Resolve[func(uint32, *byte, uint32) uint32](l, set.crc32); err != nil {
			return err
		}
	} else {
		if z.adler32, err = dynload.Resolve[func(uintptr, *byte, uint32) uintptr](l, set.adler32); err != nil {
			return err
		}
		if z.crc32, err = dynload.Resolve[func(uintptr, *byte, uint32) uintptr](l, set.crc32); err != nil {
			return err
		}
	}
	if err := l.ResolveFunc(set.version, &z.version); err != nil {
		return err
	}

	if z.adler32Addr, err = l.ResolveRaw(set.adler32); err != nil {
		return err
	}
	if z.crc32Addr, err = l.ResolveRaw(set.crc32); err != nil {
		return err
	}
	return nil
}

// ResetSymbols drops every bound entry point.
func (z *Library) ResetSymbols() {
	z.adler32 = nil
	z.crc32 = nil
	z.ngAdler32 = nil
	z.ngCrc32 = nil
	z.version = nil
	z.adler32Addr = 0
	z.crc32Addr = 0
}

// Variant returns the variant selected by the last Load.
func (z *Library) Variant() Variant {
	return z.variant
}

func (z *Library) ensureLoaded() error {
	if z.Loader == nil || !z.IsLoaded() {
		return errors.Wrap(dynload.ErrNotLoaded, "zlib")
	}
	return nil
}

// Adler32 updates a running Adler-32 checksum with data. The initial seed is 1.
func (z *Library) Adler32(seed uint32, data []byte) (uint32, error) {
	if err := z.ensureLoaded(); err != nil {
		return 0, err
	}
	sum := seed
	for _, chunk := range chunks(data) {
		if z.variant == VariantNG {
			sum = z.ngAdler32(sum, &chunk[0], uint32(len(chunk)))
		} else {
			sum = uint32(z.adler32(uintptr(sum), &chunk[0], uint32(len(chunk))))
		}
	}
	return sum, nil
}

// Crc32 updates a running CRC-32 with data. The initial seed is 0.
func (z *Library) Crc32(seed uint32, data []byte) (uint32, error) {
	if err := z.ensureLoaded(); err != nil {
		return 0, err
	}
	sum := seed
	for _, chunk := range chunks(data) {
		if z.variant == VariantNG {
			sum = z.ngCrc32(sum, &chunk[0], uint32(len(chunk)))
		} else {
			sum = uint32(z.crc32(uintptr(sum), &chunk[0], uint32(len(chunk))))
		}
	}
	return sum, nil
}

// chunks splits data for the 32-bit native length. Empty input yields no chunks, so the
// seed is returned unchanged instead of zlib's NULL-buffer initial value.
func chunks(data []byte) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		n := min(len(data), maxChunk)
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

// Version returns the library's version string.
func (z *Library) Version() (string, error) {
	if err := z.ensureLoaded(); err != nil {
		return "", err
	}
	return dynload.CstringToGo(z.version()), nil
}

// SemVer parses Version. Builds that append a fourth component or a vendor suffix
// ("1.3.0.1-motley", "1.3.0.zlib-ng") are reduced to their first three numeric parts.
func (z *Library) SemVer() (*semver.Version, error) {
	raw, err := z.Version()
	if err != nil {
		return nil, err
	}
	return parseVersion(raw)
}

// RequireVersion returns ErrIncompatibleVersion unless the loaded version satisfies constraint.
func (z *Library) RequireVersion(constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(dynload.ErrInvalidArgument, "invalid version constraint %q: %v", constraint, err)
	}
	v, err := z.SemVer()
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return errors.Wrapf(ErrIncompatibleVersion, "%s %s does not satisfy %q", z.variant, v, constraint)
	}
	return nil
}

func parseVersion(raw string) (*semver.Version, error) {
	var parts []string
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool { return r == '.' || r == '-' }) {
		if len(parts) == 3 {
			break
		}
		if _, err := strconv.Atoi(field); err != nil {
			break
		}
		parts = append(parts, field)
	}
	if len(parts) == 0 {
		return nil, errors.Errorf("unrecognised zlib version %q", raw)
	}
	v, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil, errors.Wrapf(err, "unrecognised zlib version %q", raw)
	}
	return v, nil
}

// Adler32Addr returns the raw address of the bound adler32 entry point, or 0 when unloaded.
func (z *Library) Adler32Addr() uintptr {
	return z.adler32Addr
}

// Crc32Addr returns the raw address of the bound crc32 entry point, or 0 when unloaded.
func (z *Library) Crc32Addr() uintptr {
	return z.crc32Addr
}
