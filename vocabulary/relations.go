package vocabulary

// Relation identifies a typed directed edge between two entities.
type Relation string

// Canonical relations. The set is closed: custom relations go through the
// registry's propose_change gate, which tags them into the changelog rather
// than letting components invent edge types ad hoc.
const (
	// RelMemberOf links a member to its container (Shot→Sequence→Project).
	RelMemberOf Relation = "member_of"

	// RelVersionOf links a Version to the Shot or Asset it iterates on.
	RelVersionOf Relation = "version_of"

	// RelDerivedFrom links processed Media to the Media it was made from.
	RelDerivedFrom Relation = "derived_from"

	// RelReferences is a weak dependency: the source uses the target
	// without consuming or containing it.
	RelReferences Relation = "references"

	// RelPeerOf is a symmetric association between entities of equal rank.
	RelPeerOf Relation = "peer_of"

	// RelConsumes links a Version to Media used as process input. The edge
	// carries the compositional role in its attributes, since the same
	// Media can fulfil a different role in every Version that uses it.
	RelConsumes Relation = "consumes"

	// RelProduces links a Version to Media created by its process.
	RelProduces Relation = "produces"
)

// Relations lists all canonical relations.
var Relations = []Relation{
	RelMemberOf,
	RelVersionOf,
	RelDerivedFrom,
	RelReferences,
	RelPeerOf,
	RelConsumes,
	RelProduces,
}

// IsValid reports whether r is a known canonical relation.
func (r Relation) IsValid() bool {
	switch r {
	case RelMemberOf, RelVersionOf, RelDerivedFrom, RelReferences, RelPeerOf, RelConsumes, RelProduces:
		return true
	}
	return false
}

// String returns the string representation of the relation.
func (r Relation) String() string {
	return string(r)
}

// IsContainment reports whether r expresses containment. Containment edges
// are ascended during dependent traversal: impact on a member propagates to
// its container.
func (r Relation) IsContainment() bool {
	return r == RelMemberOf || r == RelVersionOf
}

// IsSymmetric reports whether r is traversed in both directions regardless
// of edge orientation.
func (r Relation) IsSymmetric() bool {
	return r == RelPeerOf
}

// EdgeAttrCompRole is the edge attribute naming the compositional role a
// consumed or produced Media fulfils within the owning Version.
const EdgeAttrCompRole = "comp_role"
