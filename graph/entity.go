// Package graph owns the only mutable state in the bridge core: a flat
// entity table and a typed-edge table, indexed for traversal. Entities and
// edges are stored arena-style and referenced by id, never linked directly,
// so cycle safety and ownership stay uniform.
//
// All mutation goes through ApplyBatch, which commits a proposal batch and
// its inferred edges as one atomic unit or not at all. Queries never mutate
// and run under shared locks at any time.
package graph

import (
	"time"

	"github.com/c360studio/forgebridge/vocabulary"
)

// Entity is one canonical record. Entities are owned by the store; callers
// receive copies and mutate only through upsert operations.
type Entity struct {
	// ID is opaque, globally unique, and assigned on first classification.
	// It is never reused or reassigned.
	ID string `json:"id"`

	Type vocabulary.EntityType `json:"type"`
	Name string                `json:"name"`

	// ParentID scopes the natural key: an entity is unique within its
	// parent by (type, name, parent).
	ParentID string `json:"parent_id,omitempty"`

	// Attributes is the open key-value mapping, schema-checked against the
	// type's declared attribute set on every upsert.
	Attributes map[string]any `json:"attributes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref returns the entity's lightweight reference.
func (e *Entity) Ref() EntityRef {
	return EntityRef{ID: e.ID, Type: e.Type, Name: e.Name}
}

// Generation returns the media generation attribute, treating absence as a
// lineage root.
func (e *Entity) Generation() int {
	if n, ok := vocabulary.AsInt(e.Attributes[vocabulary.AttrGeneration]); ok {
		return n
	}
	return 0
}

func (e *Entity) clone() *Entity {
	out := *e
	out.Attributes = make(map[string]any, len(e.Attributes))
	for k, v := range e.Attributes {
		out.Attributes[k] = v
	}
	return &out
}

// EntityRef identifies an entity without carrying its attributes.
type EntityRef struct {
	ID   string                `json:"id"`
	Type vocabulary.EntityType `json:"type"`
	Name string                `json:"name"`
}

// Edge is a directed typed relation between two stored entities, keyed by
// the full (source, relation, target) triple. Re-asserting a triple
// overwrites its attributes; it never duplicates the edge.
type Edge struct {
	SourceID string              `json:"source_id"`
	Relation vocabulary.Relation `json:"relation"`
	TargetID string              `json:"target_id"`
	Attrs    map[string]string   `json:"attrs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Edge) clone() *Edge {
	out := *e
	if e.Attrs != nil {
		out.Attrs = make(map[string]string, len(e.Attrs))
		for k, v := range e.Attrs {
			out.Attrs[k] = v
		}
	}
	return &out
}

type naturalKey struct {
	entityType vocabulary.EntityType
	name       string
	parentID   string
}

type refKey struct {
	entityType vocabulary.EntityType
	name       string
}

type tripleKey struct {
	sourceID string
	relation vocabulary.Relation
	targetID string
}

// MutationKind classifies what a committed mutation did to an entity.
type MutationKind string

const (
	MutationEntityCreated MutationKind = "entity_created"
	MutationEntityUpdated MutationKind = "entity_updated"
)

// MutationEvent describes one entity touched by a committed batch. The
// channel manager fans these out to subscribers after commit.
type MutationEvent struct {
	Entity EntityRef    `json:"entity"`
	Kind   MutationKind `json:"kind"`

	// Relations lists the relations of edges added or refreshed on this
	// entity in the committing batch.
	Relations []vocabulary.Relation `json:"relations,omitempty"`

	Time time.Time `json:"time"`
}

// BatchResult reports a committed batch.
type BatchResult struct {
	// Primary is the reference of the proposal the push referred to.
	Primary EntityRef

	// Refs lists every entity the batch touched, in commit order.
	Refs []EntityRef

	// Events carries one event per touched entity for notification fan-out.
	Events []MutationEvent

	EntitiesCreated int
	EdgesCreated    int
}
