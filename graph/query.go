package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/c360studio/forgebridge/vocabulary"
)

// Direction selects which way a blast-radius traversal walks the
// dependency structure.
type Direction string

const (
	// DirectionForward walks dependencies: the entities this one was built
	// from (consumed media, lineage sources, referenced entities, and the
	// members a container aggregates).
	DirectionForward Direction = "forward"

	// DirectionReverse walks dependents: the entities a change to this one
	// impacts (consumers, derivatives, produced media, and the containers
	// holding them).
	DirectionReverse Direction = "reverse"
)

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	return d == DirectionForward || d == DirectionReverse
}

// BlastRadius performs a breadth-first traversal over the dependency
// relation set from the given entity. Each reachable entity is reported
// exactly once in first-visit (shortest-path) order; the start entity is
// not included. A visited set guarantees termination even when references
// or peer_of edges form cycles. maxDepth of zero or less is unbounded.
func (s *Store) BlastRadius(ctx context.Context, id string, direction Direction, maxDepth int) ([]EntityRef, error) {
	if !direction.IsValid() {
		return nil, fmt.Errorf("unknown traversal direction %q", direction)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := time.Now()
	defer s.observeQuery("blast_radius", start)

	if _, ok := s.entities[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	type queued struct {
		id    string
		depth int
	}
	visited := map[string]bool{id: true}
	queue := []queued{{id: id}}
	var result []EntityRef

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && current.depth >= maxDepth {
			continue
		}

		for _, next := range s.neighbors(current.id, direction) {
			if visited[next] {
				continue
			}
			visited[next] = true
			result = append(result, s.entities[next].Ref())
			queue = append(queue, queued{id: next, depth: current.depth + 1})
		}
	}

	return result, nil
}

// neighbors returns the adjacent entity ids for one traversal step, in
// deterministic edge-insertion order.
//
// Edge orientation encodes "source depends on target" for consumes,
// derived_from, and references; produces points the other way (the product
// depends on its producing process). Containment edges (member_of,
// version_of) are ascended when walking dependents, since impact on a
// member propagates to its container, and descended when walking
// dependencies.
func (s *Store) neighbors(id string, direction Direction) []string {
	var out []string

	appendID := func(next string) {
		out = append(out, next)
	}

	switch direction {
	case DirectionReverse:
		for _, e := range s.in[id] {
			switch e.Relation {
			case vocabulary.RelConsumes, vocabulary.RelDerivedFrom, vocabulary.RelReferences:
				appendID(e.SourceID)
			case vocabulary.RelPeerOf:
				appendID(e.SourceID)
			}
		}
		for _, e := range s.out[id] {
			switch {
			case e.Relation == vocabulary.RelProduces:
				appendID(e.TargetID)
			case e.Relation.IsContainment():
				appendID(e.TargetID)
			case e.Relation == vocabulary.RelPeerOf:
				appendID(e.TargetID)
			}
		}
	case DirectionForward:
		for _, e := range s.out[id] {
			switch e.Relation {
			case vocabulary.RelConsumes, vocabulary.RelDerivedFrom, vocabulary.RelReferences:
				appendID(e.TargetID)
			case vocabulary.RelPeerOf:
				appendID(e.TargetID)
			}
		}
		for _, e := range s.in[id] {
			switch {
			case e.Relation == vocabulary.RelProduces:
				appendID(e.SourceID)
			case e.Relation.IsContainment():
				appendID(e.SourceID)
			case e.Relation == vocabulary.RelPeerOf:
				appendID(e.SourceID)
			}
		}
	}

	return out
}

// Lookup returns entities of the given type matching simple attribute
// equality filters. The name attribute matches the entity name. Results
// are ordered by name then id, so identical inputs yield identical output.
func (s *Store) Lookup(ctx context.Context, t vocabulary.EntityType, filters map[string]any) ([]*Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := time.Now()
	defer s.observeQuery("lookup", start)

	var result []*Entity
	for _, e := range s.entities {
		if e.Type != t {
			continue
		}
		if matchesFilters(e, filters) {
			result = append(result, e.clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func matchesFilters(e *Entity, filters map[string]any) bool {
	for k, want := range filters {
		if k == "name" {
			if e.Name != want {
				return false
			}
			continue
		}
		got, ok := e.Attributes[k]
		if !ok || !attrEqual(got, want) {
			return false
		}
	}
	return true
}

// attrEqual compares attribute values loosely enough to survive the int
// versus float64 split between in-process and JSON-decoded records.
func attrEqual(got, want any) bool {
	if got == want {
		return true
	}
	gi, gok := vocabulary.AsInt(got)
	wi, wok := vocabulary.AsInt(want)
	return gok && wok && gi == wi
}

// Stack materializes a shot's comp stack: its Layer entities ordered by
// layer index then name. Stacks are computed on read and never stored.
func (s *Store) Stack(ctx context.Context, shotID string) ([]*Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	shot, ok := s.entities[shotID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, shotID)
	}
	if shot.Type != vocabulary.TypeShot {
		return nil, fmt.Errorf("entity %s is a %s, not a shot", shotID, shot.Type)
	}

	var layers []*Entity
	for _, e := range s.entities {
		if e.Type == vocabulary.TypeLayer && e.ParentID == shotID {
			layers = append(layers, e.clone())
		}
	}

	sort.Slice(layers, func(i, j int) bool {
		li, _ := vocabulary.AsInt(layers[i].Attributes["index"])
		lj, _ := vocabulary.AsInt(layers[j].Attributes["index"])
		if li != lj {
			return li < lj
		}
		return layers[i].Name < layers[j].Name
	})
	return layers, nil
}

func (s *Store) observeQuery(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
