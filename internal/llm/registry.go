package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Options carries backend construction knobs.
type Options struct {
	// LibPath locates the shared llama library for backends that bind it at
	// runtime. Backends linked at build time ignore it.
	LibPath string
}

// Factory constructs a backend. Factories must be cheap; expensive work
// (loading shared libraries) happens at most once per process inside the
// backend.
type Factory func(Options) (Backend, error)

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register adds a backend factory under name. Called from backend package
// init; a duplicate name panics.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("llm: duplicate backend " + name)
	}
	registry[name] = f
}

// Open constructs the named backend.
func Open(name string, opts Options) (Backend, error) {
	registryMu.Lock()
	f, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (have %v)", name, Backends())
	}
	return f(opts)
}

// Backends lists registered backend names, sorted.
func Backends() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
