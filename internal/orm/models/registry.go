package models

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// BuildFunc builds a model on a registry miss
type BuildFunc func() (*Model, error)

type registryKey struct {
	table string
	kind  Kind
}

// Registry caches models by table name and kind. At most one model is ever
// built per key: concurrent misses for the same key share a single build.
// Failed builds are not cached, and entries are never removed.
type Registry struct {
	mu     sync.RWMutex
	models map[registryKey]*Model
	group  singleflight.Group
}

// NewRegistry creates an empty model registry
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[registryKey]*Model),
	}
}

// Lookup returns the cached model for a table, if any
func (r *Registry) Lookup(table string, kind Kind) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[registryKey{table: table, kind: kind}]
	return m, ok
}

// GetOrBuild returns the cached model for (table, kind), invoking build
// exactly once on the first request.
func (r *Registry) GetOrBuild(table string, kind Kind, build BuildFunc) (*Model, error) {
	if m, ok := r.Lookup(table, kind); ok {
		return m, nil
	}

	v, err, _ := r.group.Do(kind.String()+"/"+table, func() (interface{}, error) {
		// Re-check: a build for this key may have finished since the lookup
		if m, ok := r.Lookup(table, kind); ok {
			return m, nil
		}

		m, err := build()
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("build for table %s returned no model", table)
		}

		r.mu.Lock()
		r.models[registryKey{table: table, kind: kind}] = m
		r.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// Len returns the number of cached models of a kind
func (r *Registry) Len(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for k := range r.models {
		if k.kind == kind {
			n++
		}
	}
	return n
}
