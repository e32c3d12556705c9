package magic

import (
	"sync/atomic"

	"github.com/amikos-tech/pure-dynload/dynload"
	"github.com/pkg/errors"
)

// Manager shares one loaded libmagic across goroutines.
type Manager = dynload.Manager[*Library]

// Lifecycle counts manager transitions and refuses to unload while cookies are open.
type Lifecycle struct {
	dynload.NopHooks[*Library]

	inits    atomic.Int64
	disposes atomic.Int64
}

func (h *Lifecycle) PostInit(*Library) error {
	h.inits.Add(1)
	return nil
}

func (h *Lifecycle) PreDispose(lib *Library) error {
	if n := lib.OpenCookies(); n > 0 {
		return errors.Errorf("%d magic cookie(s) still open", n)
	}
	return nil
}

func (h *Lifecycle) PostDispose() error {
	h.disposes.Add(1)
	return nil
}

// Inits returns the number of successful GlobalInit calls.
func (h *Lifecycle) Inits() int64 { return h.inits.Load() }

// Disposes returns the number of completed GlobalCleanup calls.
func (h *Lifecycle) Disposes() int64 { return h.disposes.Load() }

// NewManager returns an empty manager and the lifecycle hooks installed on it.
func NewManager(opts ...dynload.Option) (*Manager, *Lifecycle, error) {
	hooks := &Lifecycle{}
	manager, err := dynload.NewManager(func() (*Library, error) {
		return New(opts...)
	},
		dynload.WithManagerName[*Library]("libmagic"),
		dynload.WithHooks[*Library](hooks),
	)
	if err != nil {
		return nil, nil, err
	}
	return manager, hooks, nil
}
