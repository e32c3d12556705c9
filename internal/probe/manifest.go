package probe

import (
	"os"
	"strings"

	"github.com/amikos-tech/pure-dynload/dynload"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Manifest lists the libraries a check run should load.
type Manifest struct {
	Libraries []Entry `toml:"library"`
}

// Entry is one library to probe. Path wins over Name; a bare Name is resolved by the OS search order.
type Entry struct {
	Name     string   `toml:"name"`
	Path     string   `toml:"path"`
	Required []string `toml:"required"`
	Optional []string `toml:"optional"`
}

// Target returns what is handed to the loader.
func (e Entry) Target() string {
	if e.Path != "" {
		return e.Path
	}
	return e.Name
}

// Label returns a display name for reports.
func (e Entry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Path
}

// LoadManifest reads and validates a TOML manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", path)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid manifest %s", path)
	}
	return m, nil
}

// ParseManifest decodes and validates a TOML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that the manifest names at least one loadable library.
func (m *Manifest) Validate() error {
	if len(m.Libraries) == 0 {
		return errors.Wrap(dynload.ErrInvalidArgument, "manifest lists no [[library]] entries")
	}
	for i, entry := range m.Libraries {
		if strings.TrimSpace(entry.Target()) == "" {
			return errors.Wrapf(dynload.ErrInvalidArgument, "library #%d needs a path or a name", i+1)
		}
		for _, sym := range append(append([]string{}, entry.Required...), entry.Optional...) {
			if strings.TrimSpace(sym) == "" {
				return errors.Wrapf(dynload.ErrInvalidArgument, "library %q lists an empty symbol", entry.Label())
			}
		}
	}
	return nil
}
