package dynload

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Loadable is a binding object the Manager can load and unload, typically a struct embedding *Loader.
type Loadable interface {
	Load(path string, loadData any) error
	Unload() error
}

// Hooks lets a manager allocate and release auxiliary resources in lockstep with the library.
// PreInit runs before the library is opened, PostInit only after a fully successful load,
// PreDispose before unloading and PostDispose after it.
type Hooks[T Loadable] interface {
	PreInit() error
	PostInit(lib T) error
	PreDispose(lib T) error
	PostDispose() error
}

// NopHooks implements Hooks with no-ops. Embed it to override only some hooks.
type NopHooks[T Loadable] struct{}

func (NopHooks[T]) PreInit() error     { return nil }
func (NopHooks[T]) PostInit(T) error   { return nil }
func (NopHooks[T]) PreDispose(T) error { return nil }
func (NopHooks[T]) PostDispose() error { return nil }

// ManagerOption configures a Manager.
type ManagerOption[T Loadable] func(*managerConfig[T]) error

type managerConfig[T Loadable] struct {
	name   string
	hooks  Hooks[T]
	logger logrus.FieldLogger
}

// WithManagerName sets the library name used in the manager's error messages.
func WithManagerName[T Loadable](name string) ManagerOption[T] {
	return func(cfg *managerConfig[T]) error {
		if name == "" {
			return errors.Wrap(ErrInvalidArgument, "manager name cannot be empty")
		}
		cfg.name = name
		return nil
	}
}

// WithHooks installs lifecycle hooks.
func WithHooks[T Loadable](hooks Hooks[T]) ManagerOption[T] {
	return func(cfg *managerConfig[T]) error {
		if hooks == nil {
			return errors.Wrap(ErrInvalidArgument, "hooks cannot be nil")
		}
		cfg.hooks = hooks
		return nil
	}
}

// WithManagerLogger sets the logger used for lifecycle diagnostics.
func WithManagerLogger[T Loadable](logger logrus.FieldLogger) ManagerOption[T] {
	return func(cfg *managerConfig[T]) error {
		if logger == nil {
			return errors.Wrap(ErrInvalidArgument, "logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// Manager owns at most one loaded instance of a binding and lets goroutines share it.
//
// Every transition holds the manager's lock for its whole duration, including the OS load
// call. A load that hangs in the OS therefore also blocks other callers of the same Manager.
type Manager[T Loadable] struct {
	mu      sync.RWMutex
	factory func() (T, error)
	cfg     managerConfig[T]

	lib    T
	loaded bool
}

// NewManager creates an empty manager. factory is called by every GlobalInit to build a
// fresh, unloaded instance.
func NewManager[T Loadable](factory func() (T, error), opts ...ManagerOption[T]) (*Manager[T], error) {
	if factory == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "loader factory cannot be nil")
	}

	cfg := managerConfig[T]{
		name:  "native library",
		hooks: NopHooks[T]{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}

	return &Manager[T]{factory: factory, cfg: cfg}, nil
}

func (m *Manager[T]) errInitFirst() error {
	return errors.Wrapf(ErrNotLoaded, "%s: call GlobalInit first", m.cfg.name)
}

func (m *Manager[T]) errAlreadyLoaded() error {
	return errors.Wrapf(ErrAlreadyLoaded, "%s: call GlobalCleanup first", m.cfg.name)
}

// GlobalInit creates and loads the shared instance. path and loadData are passed to Load.
// On any failure the manager stays empty.
func (m *Manager[T]) GlobalInit(path string, loadData any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return m.errAlreadyLoaded()
	}

	lib, err := m.factory()
	if err != nil {
		return errors.Wrapf(err, "%s: failed to create loader", m.cfg.name)
	}

	if err := m.cfg.hooks.PreInit(); err != nil {
		return errors.Wrapf(err, "%s: pre-init hook failed", m.cfg.name)
	}
	if err := lib.Load(path, loadData); err != nil {
		return err
	}

	if err := m.cfg.hooks.PostInit(lib); err != nil {
		if unloadErr := lib.Unload(); unloadErr != nil {
			m.cfg.logger.WithError(unloadErr).Warnf("%s: unload after failed post-init hook reported a failure", m.cfg.name)
		}
		return errors.Wrapf(err, "%s: post-init hook failed", m.cfg.name)
	}

	m.lib = lib
	m.loaded = true
	m.cfg.logger.Debugf("%s: global init complete", m.cfg.name)
	return nil
}

// GlobalCleanup unloads and forgets the shared instance. It fails with ErrNotLoaded
// when nothing is loaded.
func (m *Manager[T]) GlobalCleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return m.errInitFirst()
	}
	return m.cleanupLocked()
}

// TryGlobalCleanup is GlobalCleanup for unconditional teardown paths: it returns false
// instead of failing when nothing is loaded.
func (m *Manager[T]) TryGlobalCleanup() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return false, nil
	}
	return true, m.cleanupLocked()
}

func (m *Manager[T]) cleanupLocked() error {
	if err := m.cfg.hooks.PreDispose(m.lib); err != nil {
		return errors.Wrapf(err, "%s: pre-dispose hook failed", m.cfg.name)
	}

	unloadErr := m.lib.Unload()
	postErr := m.cfg.hooks.PostDispose()

	var zero T
	m.lib = zero
	m.loaded = false

	if unloadErr != nil {
		return errors.Wrapf(unloadErr, "%s: unload failed", m.cfg.name)
	}
	if postErr != nil {
		return errors.Wrapf(postErr, "%s: post-dispose hook failed", m.cfg.name)
	}
	m.cfg.logger.Debugf("%s: global cleanup complete", m.cfg.name)
	return nil
}

// IsLoaded returns true if the shared instance exists.
func (m *Manager[T]) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// EnsureLoaded returns ErrNotLoaded unless the shared instance exists.
func (m *Manager[T]) EnsureLoaded() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		return m.errInitFirst()
	}
	return nil
}

// EnsureNotLoaded returns ErrAlreadyLoaded if the shared instance exists.
func (m *Manager[T]) EnsureNotLoaded() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loaded {
		return m.errAlreadyLoaded()
	}
	return nil
}

// Lib returns the shared instance.
func (m *Manager[T]) Lib() (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		var zero T
		return zero, m.errInitFirst()
	}
	return m.lib, nil
}
