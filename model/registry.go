package model

import (
	"fmt"
	"sort"
	"sync"
)

// Relationship is a foreign-key edge between two registered models, derived
// from ForeignKey attributes.
type Relationship struct {
	// ParentType is the referenced model (e.g., "customer").
	ParentType string

	// ChildType is the referencing model (e.g., "invoice").
	ChildType string

	// ChildFamily is the column family holding the child rows.
	ChildFamily string

	// ParentKeyAttr is the child field holding the parent's row key (e.g., "customer_id").
	ParentKeyAttr string
}

// Registry holds schemas by model name and the relationships between them.
// Schemas are registered once, typically from package-level vars, and are
// read concurrently afterwards.
type Registry struct {
	mu            sync.RWMutex
	schemas       map[string]*Schema
	relationships []Relationship
	byParent      map[string][]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas:  make(map[string]*Schema),
		byParent: make(map[string][]Relationship),
	}
}

// Register adds a schema and records a relationship for each of its
// foreign keys. Registering a second schema under the same name fails.
func (r *Registry) Register(s *Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.schemas[s.name]; dup {
		return fmt.Errorf("%w: model %q already registered", ErrSchema, s.name)
	}
	r.schemas[s.name] = s
	for _, a := range s.fields {
		if a.ref == "" {
			continue
		}
		rel := Relationship{
			ParentType:    a.ref,
			ChildType:     s.name,
			ChildFamily:   s.family,
			ParentKeyAttr: a.name,
		}
		r.relationships = append(r.relationships, rel)
		r.byParent[rel.ParentType] = append(r.byParent[rel.ParentType], rel)
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(s *Schema) *Schema {
	if err := r.Register(s); err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Schemas returns all registered schemas ordered by name.
func (r *Registry) Schemas() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// ChildrenOf returns all child relationships for a given parent type.
func (r *Registry) ChildrenOf(parentType string) []Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Relationship(nil), r.byParent[parentType]...)
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Relationship(nil), r.relationships...)
}

// HasChildren returns true if any registered model references parentType.
func (r *Registry) HasChildren(parentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byParent[parentType]) > 0
}

// DefaultRegistry is the process-wide registry used by the package-level helpers.
var DefaultRegistry = NewRegistry()

// Register builds a schema from def and adds it to DefaultRegistry.
func Register(def Definition) (*Schema, error) {
	s, err := NewSchema(def)
	if err != nil {
		return nil, err
	}
	if err := DefaultRegistry.Register(s); err != nil {
		return nil, err
	}
	return s, nil
}

// MustRegister is like Register but panics on error.
func MustRegister(def Definition) *Schema {
	s, err := Register(def)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the schema registered in DefaultRegistry under name.
func Lookup(name string) (*Schema, bool) {
	return DefaultRegistry.Lookup(name)
}
