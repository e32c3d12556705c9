// Package dynload loads native shared libraries (Windows DLLs, Linux and macOS shared objects)
// at runtime without cgo, resolves their exported symbols into callable Go functions, and
// manages the lifetime of the loaded module.
//
// A binding describes one native library through the Binding interface: the file name to use
// when none is given, the symbols to resolve once the module is open, and how to forget them
// again. Loader drives the open, resolve and unload sequence and guarantees that a failure while
// resolving symbols leaves nothing behind. Manager shares one loaded binding across a process.
//
// Typed resolution binds a symbol address to a caller-declared Go function type. The native
// signature cannot be verified across the boundary; declaring the right type is the caller's job.
package dynload
