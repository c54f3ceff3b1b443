package vocabulary

import "strings"

// RoleClass discriminates independently-evolving role namespaces so that,
// for example, a "comp" track role and a "comp" media role never collide.
type RoleClass string

const (
	// RoleClassTrack names compositional function within a shot's comp
	// stack: what the media does in a specific Version. Track roles travel
	// on consumes edges, not on the media entity.
	RoleClassTrack RoleClass = "track"

	// RoleClassMedia names the pipeline stage that produced a media atom:
	// what happened to the media to create it. Media roles travel with the
	// media entity as an attribute.
	RoleClassMedia RoleClass = "media"
)

// IsValid reports whether c is a known role class.
func (c RoleClass) IsValid() bool {
	return c == RoleClassTrack || c == RoleClassMedia
}

// String returns the string representation of the role class.
func (c RoleClass) String() string {
	return string(c)
}

// Role is a named function an entity or edge fulfils. What Flame calls
// "L01", a tracking system calls "main", and a Maya pipeline calls "hero"
// are all one Role; the registry holds the map.
type Role struct {
	// Name is the canonical identifier used in code and config.
	Name string `json:"name" yaml:"name"`

	// Label is the display string shown in UIs and logs.
	Label string `json:"label" yaml:"label"`

	// Class scopes the role into its namespace.
	Class RoleClass `json:"role_class" yaml:"role_class"`

	// Order is the default stack position for track roles.
	Order int `json:"order" yaml:"order"`

	// PathTemplate is an optional folder pattern with {token} slots.
	PathTemplate string `json:"path_template,omitempty" yaml:"path_template,omitempty"`

	// Metadata is an open key-value store for anything else.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Equal reports whether two roles carry the same full definition.
func (r Role) Equal(other Role) bool {
	if r.Name != other.Name || r.Label != other.Label || r.Class != other.Class ||
		r.Order != other.Order || r.PathTemplate != other.PathTemplate {
		return false
	}
	if len(r.Metadata) != len(other.Metadata) {
		return false
	}
	for k, v := range r.Metadata {
		if other.Metadata[k] != v {
			return false
		}
	}
	return true
}

// DisplayLabel returns the label, deriving one from the name if unset.
func (r Role) DisplayLabel() string {
	if r.Label != "" {
		return r.Label
	}
	words := strings.Split(r.Name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// StandardRoles is the built-in role seed set. Track roles describe
// compositional function; media roles describe producing stage, with
// generation 0 reserved for raw camera source.
var StandardRoles = []Role{
	{Name: "primary", Class: RoleClassTrack, Order: 0},
	{Name: "reference", Class: RoleClassTrack, Order: 1},
	{Name: "matte", Class: RoleClassTrack, Order: 2},
	{Name: "background", Class: RoleClassTrack, Order: 3},
	{Name: "foreground", Class: RoleClassTrack, Order: 4},
	{Name: "color", Class: RoleClassTrack, Order: 5},
	{Name: "audio", Class: RoleClassTrack, Order: 6},

	{Name: "raw", Class: RoleClassMedia, Order: 10},
	{Name: "grade", Class: RoleClassMedia, Order: 11},
	{Name: "denoise", Class: RoleClassMedia, Order: 12},
	{Name: "prep", Class: RoleClassMedia, Order: 13},
	{Name: "roto", Class: RoleClassMedia, Order: 14},
	{Name: "comp", Class: RoleClassMedia, Order: 15},
}
