package dynload

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrOpenFailed is returned when the OS loader could not map a library or one of its dependencies.
	ErrOpenFailed = errors.New("failed to open native library")

	// ErrSymbolNotFound is returned by typed resolution when a symbol is not exported.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrNotLoaded is returned when an operation requires a loaded library.
	ErrNotLoaded = errors.New("native library not loaded")

	// ErrAlreadyLoaded is returned when a library is loaded a second time without unloading.
	ErrAlreadyLoaded = errors.New("native library already loaded")

	// ErrInvalidArgument is returned for configuration errors detected before any OS call.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPlatformNotSupported is returned by bindings that ship no default library for the running OS.
	ErrPlatformNotSupported = errors.New("platform not supported")
)

// OpenError describes a failed OS open call. Reason is the OS diagnostic text verbatim.
type OpenError struct {
	Path   string
	Reason string
}

func (e *OpenError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unable to load [%s]", e.Path)
	}
	return fmt.Sprintf("unable to load [%s]: %s", e.Path, e.Reason)
}

func (e *OpenError) Unwrap() error {
	return ErrOpenFailed
}

// SymbolError describes a failed typed symbol lookup.
type SymbolError struct {
	Symbol  string
	Library string
}

func (e *SymbolError) Error() string {
	if e.Library == "" {
		return fmt.Sprintf("cannot import [%s]", e.Symbol)
	}
	return fmt.Sprintf("cannot import [%s] from [%s]", e.Symbol, e.Library)
}

func (e *SymbolError) Unwrap() error {
	return ErrSymbolNotFound
}
