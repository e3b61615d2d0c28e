// Package schema provides entity metadata introspection for the generic
// resource layer. Metadata describes an entity's table, columns and named
// relations; the relation graph may contain cycles (self or mutual
// references), so consumers must never assume it is acyclic.
package schema

import (
	"sort"
)

// Relation names another entity reachable from a parent entity.
type Relation struct {
	Target *Metadata
}

// Metadata describes a registered entity.
type Metadata struct {
	TableName string
	Columns   []string
	Relations map[string]*Relation

	columnSet map[string]struct{}
}

// NewMetadata creates entity metadata with no relations.
func NewMetadata(tableName string, columns ...string) *Metadata {
	m := &Metadata{
		TableName: tableName,
		Columns:   append([]string(nil), columns...),
		Relations: make(map[string]*Relation),
		columnSet: make(map[string]struct{}, len(columns)),
	}
	for _, c := range columns {
		m.columnSet[c] = struct{}{}
	}
	return m
}

// HasColumn reports whether the entity declares the named column.
func (m *Metadata) HasColumn(name string) bool {
	_, ok := m.columnSet[name]
	return ok
}

// AddRelation declares a named relation to another entity's metadata.
// Declaring both directions of a mutual reference is valid.
func (m *Metadata) AddRelation(name string, target *Metadata) {
	m.Relations[name] = &Relation{Target: target}
}

// Relation resolves a named relation, if declared.
func (m *Metadata) Relation(name string) (*Relation, bool) {
	rel, ok := m.Relations[name]
	return rel, ok
}

// Provider resolves entity identifiers to metadata. The concrete provider
// is in-memory and cheap; lookups are safe on request hot paths.
type Provider interface {
	Metadata(entity string) (*Metadata, bool)
}

// Registry is the in-memory Provider implementation.
type Registry struct {
	entities map[string]*Metadata
}

// NewRegistry creates an empty entity registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Metadata)}
}

// Register binds an entity identifier to its metadata.
func (r *Registry) Register(entity string, meta *Metadata) {
	r.entities[entity] = meta
}

// Metadata implements Provider.
func (r *Registry) Metadata(entity string) (*Metadata, bool) {
	meta, ok := r.entities[entity]
	return meta, ok
}

// Entities returns registered entity identifiers in stable order.
func (r *Registry) Entities() []string {
	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
