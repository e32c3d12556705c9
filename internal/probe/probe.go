// Package probe loads libraries listed in a manifest and reports which symbols they export.
package probe

import (
	"github.com/amikos-tech/pure-dynload/dynload"
	"github.com/pkg/errors"
)

// Report is the outcome of probing one library.
type Report struct {
	Entry    Entry
	Platform dynload.PlatformInfo
	// Loaded is true when the library opened and every required symbol resolved.
	Loaded bool
	// Resolved maps each required symbol to its address.
	Resolved map[string]uintptr
	// Optional maps each optional symbol to whether it is exported.
	Optional map[string]bool
	Err      error
}

// OK returns true when the library loaded with all required symbols.
func (r Report) OK() bool {
	return r.Loaded && r.Err == nil
}

// binding resolves the entry's required symbols raw and fails the load on the first missing one.
type binding struct {
	entry    Entry
	resolved map[string]uintptr
}

func (b *binding) DefaultFileName() (string, error) {
	return b.entry.Name, nil
}

func (b *binding) LoadSymbols(l *dynload.Loader) error {
	b.resolved = make(map[string]uintptr, len(b.entry.Required))
	for _, name := range b.entry.Required {
		addr, err := l.ResolveRaw(name)
		if err != nil {
			return err
		}
		if addr == 0 {
			return &dynload.SymbolError{Symbol: name, Library: l.LibraryPath()}
		}
		b.resolved[name] = addr
	}
	return nil
}

func (b *binding) ResetSymbols() {
	b.resolved = nil
}

// Run loads entry, checks its symbols and unloads it again. Failures are recorded in the
// report rather than returned; the error return is reserved for invalid input.
func Run(entry Entry, opts ...dynload.Option) (Report, error) {
	b := &binding{entry: entry}
	loader, err := dynload.NewLoader(b, opts...)
	if err != nil {
		return Report{}, err
	}
	report := Report{Entry: entry, Platform: loader.Platform()}

	if err := loader.Load(entry.Path, nil); err != nil {
		report.Err = err
		return report, nil
	}

	report.Loaded = true
	report.Resolved = make(map[string]uintptr, len(b.resolved))
	for name, addr := range b.resolved {
		report.Resolved[name] = addr
	}
	report.Optional = make(map[string]bool, len(entry.Optional))
	for _, name := range entry.Optional {
		ok, err := loader.HasSymbol(name)
		if err != nil {
			report.Err = err
			break
		}
		report.Optional[name] = ok
	}

	if err := loader.Unload(); err != nil && report.Err == nil {
		report.Err = errors.Wrap(err, "unload failed")
	}
	return report, nil
}

// RunManifest probes every library in m in order.
func RunManifest(m *Manifest, opts ...dynload.Option) ([]Report, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(m.Libraries))
	for _, entry := range m.Libraries {
		report, err := Run(entry, opts...)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
