package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	cerrors "github.com/connectome/emschema/internal/compiler/errors"
)

// Registry manages all annotation schemas known to the process
type Registry struct {
	schemas  map[string]*SchemaDef
	flat     map[string]*SchemaDef
	warnings map[string][]string
	mu       sync.RWMutex
}

// NewRegistry creates a new schema registry
func NewRegistry() *Registry {
	return &Registry{
		schemas:  make(map[string]*SchemaDef),
		flat:     make(map[string]*SchemaDef),
		warnings: make(map[string][]string),
	}
}

// Register registers a schema under the given type name
func (r *Registry) Register(name string, def *SchemaDef) error {
	if def == nil {
		return fmt.Errorf("schema %s cannot be nil", name)
	}

	validator := NewSchemaValidator()
	if err := validator.Validate(def); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", name, err)
	}

	// Flatten up front so a malformed definition is rejected at registration
	flat, err := Flatten(def)
	if err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[name]; exists {
		return fmt.Errorf("schema %s is already registered", name)
	}
	r.schemas[name] = def
	r.flat[name] = flat
	if w := validator.Warnings(); len(w) > 0 {
		r.warnings[name] = w
	}
	return nil
}

// Warnings returns the validation warnings recorded when a schema was registered
func (r *Registry) Warnings(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.warnings[name]
}

// MustRegister registers a schema and panics on error
func (r *Registry) MustRegister(name string, def *SchemaDef) {
	if err := r.Register(name, def); err != nil {
		panic(err)
	}
}

// GetSchema retrieves a schema by type name
func (r *Registry) GetSchema(name string) (*SchemaDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.schemas[name]
	if !exists {
		return nil, cerrors.NewSchemaNotFound(name)
	}
	return def, nil
}

// GetFlatSchema retrieves the flattened form of a schema
func (r *Registry) GetFlatSchema(name string) (*SchemaDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flat, exists := r.flat[name]
	if !exists {
		return nil, cerrors.NewSchemaNotFound(name)
	}
	return flat, nil
}

// GetTypes returns the sorted names of all registered schemas
func (r *Registry) GetTypes() []string {
	r.mu.RLock()
	names := lo.Keys(r.schemas)
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Exists checks if a schema is registered
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.schemas[name]
	return exists
}

// Unknown returns the names that are not registered, in input order
func (r *Registry) Unknown(names []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(names, func(name string, _ int) bool {
		_, exists := r.schemas[name]
		return !exists
	})
}

// Count returns the number of registered schemas
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.schemas)
}
