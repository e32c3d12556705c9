package dynload

import (
	"path/filepath"
	"reflect"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Binding is implemented by a native library binding.
type Binding interface {
	// DefaultFileName returns the library to load when no path is given. Return
	// ErrPlatformNotSupported when the running OS ships no such library.
	DefaultFileName() (string, error)
	// LoadSymbols resolves and stores every symbol the binding needs.
	LoadSymbols(loader *Loader) error
	// ResetSymbols clears everything LoadSymbols stored.
	ResetSymbols()
}

// LoadDataHandler is implemented by bindings that accept per-load configuration.
// HandleLoadData runs before the default file name is consulted and before the library is opened.
type LoadDataHandler interface {
	HandleLoadData(data any) error
}

type loaderState int

const (
	stateUnloaded loaderState = iota
	stateLoading
	stateLoaded
)

// Loader owns at most one loaded native library on behalf of a Binding.
// It is not safe for concurrent use; share a loaded binding through Manager instead.
type Loader struct {
	binding  Binding
	platform PlatformInfo
	cfg      loaderConfig
	logger   logrus.FieldLogger

	state   loaderState
	handle  *LibraryHandle
	libPath string
}

// NewLoader creates an unloaded Loader for binding. Platform conventions are fixed here,
// independent of which library is loaded later.
func NewLoader(binding Binding, opts ...Option) (*Loader, error) {
	if binding == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "binding cannot be nil")
	}

	platform := CurrentPlatform()
	cfg, err := resolveLoaderConfig(platform, opts...)
	if err != nil {
		return nil, err
	}

	return &Loader{
		binding:  binding,
		platform: platform,
		cfg:      cfg,
		logger:   cfg.logger,
	}, nil
}

// Load opens path (or the binding's default file name when path is empty) and resolves the
// binding's symbols. If symbol resolution fails or panics, the symbols are reset and the
// library is closed before the error is returned, leaving the Loader unloaded.
func (l *Loader) Load(path string, loadData any) (err error) {
	if l.state != stateUnloaded {
		return errors.Wrapf(ErrAlreadyLoaded, "loader already holds [%s]", l.libPath)
	}

	if handler, ok := l.binding.(LoadDataHandler); ok {
		if err := handler.HandleLoadData(loadData); err != nil {
			return errors.Wrap(err, "failed to apply load data")
		}
	}

	if path == "" {
		name, err := l.binding.DefaultFileName()
		if err != nil {
			return errors.Wrap(err, "no library path given and no default file name available")
		}
		if name == "" {
			return errors.Wrap(ErrInvalidArgument, "no library path given and binding has no default file name")
		}
		path = name
	}

	searchDir := ""
	openPath := path
	if l.cfg.chainSearchPath {
		if searchDir = searchDirOf(path); searchDir != "" {
			openPath = filepath.Join(searchDir, filepath.Base(path))
		}
	}

	log := l.logger.WithField("library", path)
	handle, err := openHandle(openPath, searchDir)
	if err != nil || !handle.IsValid() {
		_ = handle.Release()
		var openErr *OpenError
		if errors.As(err, &openErr) {
			openErr.Path = path
		} else {
			err = &OpenError{Path: path, Reason: diagnosticText(err)}
		}
		log.WithError(err).Debug("failed to open native library")
		return err
	}

	l.handle = handle
	l.libPath = path
	l.state = stateLoading

	defer func() {
		if r := recover(); r != nil {
			l.unwind()
			panic(r)
		}
	}()

	if err := l.binding.LoadSymbols(l); err != nil {
		l.unwind()
		log.WithError(err).Debug("failed to load symbols, library closed")
		return errors.Wrapf(err, "failed to load symbols from [%s]", path)
	}
	if l.state != stateLoading {
		return errors.Wrapf(ErrNotLoaded, "library [%s] was unloaded while its symbols were loading", path)
	}

	l.state = stateLoaded
	log.WithField("search_dir", searchDir).Debug("loaded native library")
	return nil
}

// Unload resets the binding's symbols and closes the library. Unloading an unloaded Loader
// is a no-op. The Loader is unloaded afterwards even when the OS reports a close failure;
// that failure is logged and returned.
func (l *Loader) Unload() error {
	if l.state == stateUnloaded {
		return nil
	}

	path := l.libPath
	if err := l.unwind(); err != nil {
		l.logger.WithError(err).WithField("library", path).Warn("native library close reported a failure")
		return err
	}
	l.logger.WithField("library", path).Debug("unloaded native library")
	return nil
}

// Close implements io.Closer.
func (l *Loader) Close() error {
	return l.Unload()
}

func (l *Loader) unwind() error {
	l.binding.ResetSymbols()
	err := l.handle.Release()
	l.handle = nil
	l.libPath = ""
	l.state = stateUnloaded
	return err
}

// IsLoaded returns true once Load has fully succeeded and until Unload.
func (l *Loader) IsLoaded() bool {
	return l.state == stateLoaded
}

// LibraryPath returns the path or bare file name the current library was loaded from.
func (l *Loader) LibraryPath() string {
	return l.libPath
}

// Platform returns the platform conventions captured when the Loader was created.
func (l *Loader) Platform() PlatformInfo {
	return l.platform
}

// StringConvention returns the string encoding used by PtrToString and StringToPtr.
func (l *Loader) StringConvention() StringConvention {
	return l.cfg.convention
}

// SetStringConvention overrides the string encoding, for libraries that ignore their OS default.
func (l *Loader) SetStringConvention(convention StringConvention) error {
	return WithStringConvention(convention)(&l.cfg)
}

// ResolveRaw returns the address of symbol, or 0 when the library does not export it.
func (l *Loader) ResolveRaw(symbol string) (uintptr, error) {
	if l.state == stateUnloaded {
		return 0, errors.Wrapf(ErrNotLoaded, "cannot resolve [%s]", symbol)
	}
	return l.handle.symbol(symbol)
}

// HasSymbol reports whether the library exports symbol.
func (l *Loader) HasSymbol(symbol string) (bool, error) {
	addr, err := l.ResolveRaw(symbol)
	if err != nil {
		return false, err
	}
	return addr != 0, nil
}

// ResolveFunc binds symbol to fptr, which must be a non-nil pointer to a func variable.
// The func type must match the native signature; this cannot be checked at runtime.
func (l *Loader) ResolveFunc(symbol string, fptr any) error {
	value := reflect.ValueOf(fptr)
	if !value.IsValid() || value.Kind() != reflect.Pointer || value.IsNil() || value.Elem().Kind() != reflect.Func {
		return errors.Wrapf(ErrInvalidArgument, "resolving [%s] needs a pointer to a func variable, got %T", symbol, fptr)
	}

	addr, err := l.ResolveRaw(symbol)
	if err != nil {
		return err
	}
	if addr == 0 {
		return &SymbolError{Symbol: symbol, Library: l.libPath}
	}

	purego.RegisterFunc(fptr, addr)
	return nil
}

// Resolve returns symbol bound to the func type T.
func Resolve[T any](l *Loader, symbol string) (T, error) {
	var fn T
	if err := l.ResolveFunc(symbol, &fn); err != nil {
		var zero T
		return zero, err
	}
	return fn, nil
}

// PtrToString decodes a NUL-terminated native string following the Loader's string convention.
func (l *Loader) PtrToString(ptr uintptr) string {
	return ptrToString(ptr, l.cfg.convention)
}

// StringToPtr encodes s following the Loader's string convention. The returned backing object
// must be kept alive by the caller until native code has finished using the returned pointer.
func (l *Loader) StringToPtr(s string) (uintptr, any, error) {
	return stringToPtr(s, l.cfg.convention)
}
