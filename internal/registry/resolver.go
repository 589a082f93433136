// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"fmt"
	"sort"

	"github.com/pdiddy/docbase/pkg/types"
)

// DefaultBackend is used when the configuration names no backend.
const DefaultBackend = "sqlite"

// Constructor builds a Registry from configuration. The config has
// already passed validation when a constructor runs.
type Constructor func(cfg types.RegistryConfig) (Registry, error)

// backends maps a backend name to its constructor. Populated from init
// functions at process startup and read-only afterwards.
var backends = map[string]Constructor{}

// RegisterBackend adds a backend constructor under the given name.
// Call it from an init function; registering a duplicate name panics.
func RegisterBackend(name string, ctor Constructor) {
	if _, dup := backends[name]; dup {
		panic(fmt.Sprintf("registry: backend %q registered twice", name))
	}
	backends[name] = ctor
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open validates cfg and delegates to the configured backend, falling
// back to DefaultBackend when cfg.Backend is empty. Callers depend only
// on the Registry contract.
func Open(cfg types.RegistryConfig) (Registry, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	name := cfg.Backend
	if name == "" {
		name = DefaultBackend
	}

	ctor, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown registry backend %q (registered: %v)", name, Backends())
	}
	return ctor(cfg)
}
