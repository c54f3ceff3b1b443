package vocabulary

// Trait is a cross-cutting capability an entity type declares at
// registration. Components query capability sets rather than switching on
// concrete entity types, so a new type that declares Versionable gets
// version handling without anyone special-casing it.
type Trait string

const (
	// TraitVersionable marks types that participate in version_of chains.
	TraitVersionable Trait = "versionable"

	// TraitLocatable marks types that can carry filesystem locations.
	TraitLocatable Trait = "locatable"

	// TraitRelational marks types that may be an edge endpoint.
	TraitRelational Trait = "relational"
)

// IsValid reports whether t is a known trait.
func (t Trait) IsValid() bool {
	switch t {
	case TraitVersionable, TraitLocatable, TraitRelational:
		return true
	}
	return false
}

// String returns the string representation of the trait.
func (t Trait) String() string {
	return string(t)
}

// TraitSet is a declared capability set.
type TraitSet map[Trait]struct{}

// NewTraitSet builds a TraitSet from the given traits.
func NewTraitSet(traits ...Trait) TraitSet {
	s := make(TraitSet, len(traits))
	for _, t := range traits {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether the set declares t.
func (s TraitSet) Has(t Trait) bool {
	_, ok := s[t]
	return ok
}

// Equal reports whether two trait sets declare the same traits.
func (s TraitSet) Equal(other TraitSet) bool {
	if len(s) != len(other) {
		return false
	}
	for t := range s {
		if !other.Has(t) {
			return false
		}
	}
	return true
}

// List returns the declared traits in stable order.
func (s TraitSet) List() []Trait {
	out := make([]Trait, 0, len(s))
	for _, t := range []Trait{TraitVersionable, TraitLocatable, TraitRelational} {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}
