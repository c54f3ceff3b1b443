package vocabulary

// EntityType identifies a canonical entity kind.
type EntityType string

// Canonical entity types. Stack is deliberately absent: a stack is a
// materialized view over Layer entities sharing a parent Shot, computed on
// read, never stored as its own row.
const (
	// TypeProject is the top-level container. Everything lives inside one.
	TypeProject EntityType = "project"

	// TypeSequence is an ordered collection of shots (reel, episode, scene).
	TypeSequence EntityType = "sequence"

	// TypeShot is a discrete unit of work with a place in a sequence.
	TypeShot EntityType = "shot"

	// TypeAsset is a reusable element on a parallel track to shots.
	TypeAsset EntityType = "asset"

	// TypeVersion is one iteration of work on a shot or asset.
	TypeVersion EntityType = "version"

	// TypeMedia is a concrete media atom (plate, render, matte, audio).
	TypeMedia EntityType = "media"

	// TypeLayer is one slot in a shot's comp stack, carrying a role.
	TypeLayer EntityType = "layer"
)

// EntityTypes lists all canonical entity types in registration order.
var EntityTypes = []EntityType{
	TypeProject,
	TypeSequence,
	TypeShot,
	TypeAsset,
	TypeVersion,
	TypeMedia,
	TypeLayer,
}

// IsValid reports whether t is a known canonical entity type.
func (t EntityType) IsValid() bool {
	switch t {
	case TypeProject, TypeSequence, TypeShot, TypeAsset, TypeVersion, TypeMedia, TypeLayer:
		return true
	}
	return false
}

// String returns the string representation of the entity type.
func (t EntityType) String() string {
	return string(t)
}

// ParseEntityType converts a string to an EntityType, returning empty for
// unknown values.
func ParseEntityType(s string) EntityType {
	t := EntityType(s)
	if t.IsValid() {
		return t
	}
	return ""
}

// AttrGeneration is the Media attribute counting processing generations.
// Generation 0 is camera-original: a lineage root with no derived_from edge.
const AttrGeneration = "generation"

// AttrStatus is the lifecycle status attribute carried by every entity.
// Archival is expressed through this attribute, never by row removal, so
// historical edges stay resolvable.
const AttrStatus = "status"
