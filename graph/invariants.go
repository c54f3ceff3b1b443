package graph

import (
	"fmt"

	"github.com/c360studio/forgebridge/vocabulary"
)

// checkInvariants validates a staged batch against the structural rules
// before anything is written. Called under the shared lock from stage.
//
// Enforced here:
//   - edge relations come from the closed relation set
//   - Media lineage: generation 0 means zero derived_from edges, any
//     higher generation means exactly one
func (s *Store) checkInvariants(stagedEntities []*stagedEntity, stagedEdges []*stagedEdge) error {
	for _, se := range stagedEdges {
		if !se.edge.Relation.IsValid() {
			return &InvariantViolation{
				Rule: fmt.Sprintf("relation %q is not in the canonical relation set", se.edge.Relation),
			}
		}
	}

	for _, st := range stagedEntities {
		if st.entity.Type != vocabulary.TypeMedia {
			continue
		}

		count := 0
		for _, e := range s.out[st.entity.ID] {
			if e.Relation == vocabulary.RelDerivedFrom {
				count++
			}
		}
		for _, se := range stagedEdges {
			if se.created && se.edge.SourceID == st.entity.ID && se.edge.Relation == vocabulary.RelDerivedFrom {
				count++
			}
		}

		generation := st.entity.Generation()
		switch {
		case generation == 0 && count > 0:
			return &InvariantViolation{
				EntityType: st.entity.Type,
				Name:       st.entity.Name,
				Rule:       "generation 0 media is a lineage root and cannot have derived_from edges",
			}
		case generation > 0 && count != 1:
			return &InvariantViolation{
				EntityType: st.entity.Type,
				Name:       st.entity.Name,
				Rule:       fmt.Sprintf("generation %d media must have exactly one derived_from edge, found %d", generation, count),
			}
		}
	}

	return nil
}
