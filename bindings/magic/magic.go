// Package magic binds libmagic, the file type detector behind file(1).
package magic

import (
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/amikos-tech/pure-dynload/dynload"
	"github.com/pkg/errors"
)

// Flags for Open, from magic.h.
const (
	None         = 0x0000000
	Debug        = 0x0000001
	Symlink      = 0x0000002
	Compress     = 0x0000004
	MimeType     = 0x0000010
	Continue     = 0x0000020
	Check        = 0x0000040
	Raw          = 0x0000100
	Error        = 0x0000200
	MimeEncoding = 0x0000400
	Mime         = MimeType | MimeEncoding
	Apple        = 0x0000800
	Extension    = 0x1000000
)

// Param identifies a limit adjustable with Cookie.SetParam.
type Param int32

// Parameters from magic.h, available since libmagic 5.21.
const (
	ParamIndirMax Param = iota
	ParamNameMax
	ParamElfPhnumMax
	ParamElfShnumMax
	ParamElfNotesMax
	ParamRegexMax
	ParamBytesMax
)

// ErrParamsUnsupported is returned by SetParam when the library predates magic_setparam.
var ErrParamsUnsupported = errors.New("libmagic does not support parameters")

// Library is a loadable libmagic binding.
type Library struct {
	*dynload.Loader

	version  func() int32
	getpath  func(magicfile uintptr, action int32) uintptr
	open     func(flags int32) uintptr
	close    func(cookie uintptr)
	load     func(cookie uintptr, filename uintptr) int32
	buffer   func(cookie uintptr, buf *byte, length uintptr) uintptr
	errorStr func(cookie uintptr) uintptr
	setparam func(cookie uintptr, param int32, value *uintptr) int32

	openCookies atomic.Int32
}

// New creates an unloaded libmagic binding. libmagic uses narrow strings on every
// platform, so the string convention is pinned to UTF-8 unless opts override it.
func New(opts ...dynload.Option) (*Library, error) {
	lib := &Library{}
	opts = append([]dynload.Option{dynload.WithStringConvention(dynload.ConventionUTF8)}, opts...)
	loader, err := dynload.NewLoader(lib, opts...)
	if err != nil {
		return nil, err
	}
	lib.Loader = loader
	return lib, nil
}

func (m *Library) DefaultFileName() (string, error) {
	return defaultFileName(runtime.GOOS)
}

func defaultFileName(goos string) (string, error) {
	switch goos {
	case "darwin", "ios":
		return "libmagic.1.dylib", nil
	case "windows":
		return "libmagic-1.dll", nil
	default:
		return "libmagic.so.1", nil
	}
}

func (m *Library) LoadSymbols(l *dynload.Loader) error {
	required := []struct {
		name string
		fptr any
	}{
		{"magic_version", &m.version},
		{"magic_getpath", &m.getpath},
		{"magic_open", &m.open},
		{"magic_close", &m.close},
		{"magic_load", &m.load},
		{"magic_buffer", &m.buffer},
		{"magic_error", &m.errorStr},
	}
	for _, sym := range required {
		if err := l.ResolveFunc(sym.name, sym.fptr); err != nil {
			return err
		}
	}

	// Optional: absent before 5.21.
	ok, err := l.HasSymbol("magic_setparam")
	if err != nil {
		return err
	}
	if ok {
		return l.ResolveFunc("magic_setparam", &m.setparam)
	}
	return nil
}

func (m *Library) ResetSymbols() {
	m.version = nil
	m.getpath = nil
	m.open = nil
	m.close = nil
	m.load = nil
	m.buffer = nil
	m.errorStr = nil
	m.setparam = nil
}

func (m *Library) ensureLoaded() error {
	if m.Loader == nil || !m.IsLoaded() {
		return errors.Wrap(dynload.ErrNotLoaded, "libmagic")
	}
	return nil
}

// Version returns the library version as an integer, e.g. 545 for 5.45.
func (m *Library) Version() (int, error) {
	if err := m.ensureLoaded(); err != nil {
		return 0, err
	}
	return int(m.version()), nil
}

// DefaultDatabase returns the database path libmagic falls back to when none is given.
func (m *Library) DefaultDatabase() (string, error) {
	if err := m.ensureLoaded(); err != nil {
		return "", err
	}
	return m.PtrToString(m.getpath(0, 0)), nil
}

// SupportsParams reports whether the loaded library exports magic_setparam.
func (m *Library) SupportsParams() bool {
	return m.setparam != nil
}

// OpenCookies returns the number of cookies not yet closed.
func (m *Library) OpenCookies() int {
	return int(m.openCookies.Load())
}

// Cookie is an open libmagic detection context. It is not safe for concurrent use.
type Cookie struct {
	lib *Library
	raw uintptr
}

// Open creates a detection context with the given flags.
func (m *Library) Open(flags int) (*Cookie, error) {
	if err := m.ensureLoaded(); err != nil {
		return nil, err
	}
	raw := m.open(int32(flags))
	if raw == 0 {
		return nil, errors.Errorf("magic_open(%#x) failed", flags)
	}
	m.openCookies.Add(1)
	return &Cookie{lib: m, raw: raw}, nil
}

// Close releases the context. Closing twice is a no-op.
func (c *Cookie) Close() error {
	if c.raw == 0 {
		return nil
	}
	if err := c.lib.ensureLoaded(); err != nil {
		return err
	}
	c.lib.close(c.raw)
	c.raw = 0
	c.lib.openCookies.Add(-1)
	return nil
}

func (c *Cookie) valid() error {
	if c.raw == 0 {
		return errors.Wrap(dynload.ErrInvalidArgument, "magic cookie is closed")
	}
	return c.lib.ensureLoaded()
}

func (c *Cookie) lastError(call string) error {
	msg := strings.TrimSpace(c.lib.PtrToString(c.lib.errorStr(c.raw)))
	if msg == "" {
		msg = "unknown error"
	}
	return errors.Errorf("%s: %s", call, msg)
}

// Load reads the compiled magic database at path, or the default database when path is empty.
func (c *Cookie) Load(path string) error {
	if err := c.valid(); err != nil {
		return err
	}

	var ptr uintptr
	var keep any
	if path != "" {
		var err error
		if ptr, keep, err = c.lib.StringToPtr(path); err != nil {
			return err
		}
	}
	rc := c.lib.load(c.raw, ptr)
	runtime.KeepAlive(keep)
	if rc != 0 {
		return c.lastError("magic_load")
	}
	return nil
}

// Buffer describes data.
func (c *Cookie) Buffer(data []byte) (string, error) {
	if err := c.valid(); err != nil {
		return "", err
	}

	var zero [1]byte
	buf := zero[:]
	if len(data) > 0 {
		buf = data
	}
	result := c.lib.buffer(c.raw, &buf[0], uintptr(len(data)))
	if result == 0 {
		return "", c.lastError("magic_buffer")
	}
	return c.lib.PtrToString(result), nil
}

// SetParam adjusts one of libmagic's scan limits.
func (c *Cookie) SetParam(param Param, value uint) error {
	if err := c.valid(); err != nil {
		return err
	}
	if !c.lib.SupportsParams() {
		return ErrParamsUnsupported
	}
	v := uintptr(value)
	if c.lib.setparam(c.raw, int32(param), &v) != 0 {
		return c.lastError("magic_setparam")
	}
	return nil
}
