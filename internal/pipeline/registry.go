package pipeline

import (
	"fmt"
	"sync"
)

// registry resolves a pipeline name (as named in a declarative manifest,
// spec.md §6) to the Descriptor a Runner call site was compiled against.
// Stored as `any` because a sync.Map cannot hold a family of distinct
// generic instantiations directly; Lookup recovers the concrete type via
// a type assertion and reports a clear error on mismatch instead of
// panicking, the way a misconfigured manifest entry should fail.
var registry sync.Map

// Register makes d resolvable by name. Re-registering the same name
// overwrites the previous entry, which is convenient for tests that
// rebuild a pipeline under the same name across cases.
func Register[In, Out any](name string, d *Descriptor[In, Out]) {
	registry.Store(name, d)
}

// Lookup resolves name to a *Descriptor[In, Out]. It fails if nothing was
// registered under name, or if it was registered with different type
// parameters than the caller expects.
func Lookup[In, Out any](name string) (*Descriptor[In, Out], error) {
	v, ok := registry.Load(name)
	if !ok {
		return nil, fmt.Errorf("pipeline: no pipeline registered as %q", name)
	}
	d, ok := v.(*Descriptor[In, Out])
	if !ok {
		return nil, fmt.Errorf("pipeline: pipeline %q is registered with a different In/Out type", name)
	}
	return d, nil
}

// Names returns every currently registered pipeline name, for diagnostics
// and manifest validation.
func Names() []string {
	var names []string
	registry.Range(func(key, _ interface{}) bool {
		names = append(names, key.(string))
		return true
	})
	return names
}
