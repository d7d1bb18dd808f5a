// Package capability defines the closed catalog of operations the agent can run, the
// payload and outcome types that flow through the pipeline, and the turn a handler
// works in.
package capability

import (
	"fmt"
	"sort"
	"strings"
)

const logPrefix = "capability:registry"

// Registry is a fixed table of operations keyed by name. It is read-only after
// construction.
type Registry struct {
	ops   map[string]*Operation
	names []string
}

// NewRegistry builds a registry. Names are normalized to lower case and must be unique.
func NewRegistry(ops ...*Operation) (*Registry, error) {
	r := &Registry{ops: make(map[string]*Operation, len(ops))}
	for _, op := range ops {
		if op == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(op.Name))
		if name == "" {
			return nil, fmt.Errorf("%s - operation with empty name", logPrefix)
		}
		if op.Execute == nil && op.Handle == nil {
			return nil, fmt.Errorf("%s - operation %s has neither Execute nor Handle", logPrefix, name)
		}
		if _, dup := r.ops[name]; dup {
			return nil, fmt.Errorf("%s - duplicate operation %s", logPrefix, name)
		}
		op.Name = name
		r.ops[name] = op
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// MustRegistry is NewRegistry that panics on error, for static tables.
func MustRegistry(ops ...*Operation) *Registry {
	r, err := NewRegistry(ops...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup finds an operation by name.
func (r *Registry) Lookup(name string) (*Operation, bool) {
	op, ok := r.ops[name]
	return op, ok
}

// Operations returns all operations sorted by name.
func (r *Registry) Operations() []*Operation {
	out := make([]*Operation, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.ops[n])
	}
	return out
}

// Len returns the number of operations.
func (r *Registry) Len() int {
	return len(r.names)
}
