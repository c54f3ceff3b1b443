package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/c360studio/forgebridge/classify"
	"github.com/c360studio/forgebridge/infer"
	"github.com/c360studio/forgebridge/registry"
	"github.com/c360studio/forgebridge/vocabulary"
)

const defaultLockRetries = 5

// Store is the entity and edge arena.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	byKey    map[naturalKey]string
	byName   map[refKey][]string
	out      map[string][]*Edge
	in       map[string][]*Edge
	edges    map[tripleKey]*Edge

	registry    *registry.Registry
	logger      *slog.Logger
	metrics     *Metrics
	keys        keyLockTable
	lockRetries uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLockRetries bounds how many times a writer retries acquiring its
// natural-key section before surfacing ErrWriteConflict.
func WithLockRetries(n uint64) Option {
	return func(s *Store) { s.lockRetries = n }
}

// NewStore creates an empty store validating against the given registry.
func NewStore(reg *registry.Registry, opts ...Option) *Store {
	s := &Store{
		entities:    make(map[string]*Entity),
		byKey:       make(map[naturalKey]string),
		byName:      make(map[refKey][]string),
		out:         make(map[string][]*Edge),
		in:          make(map[string][]*Edge),
		edges:       make(map[tripleKey]*Edge),
		registry:    reg,
		logger:      slog.Default(),
		lockRetries: defaultLockRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// stagedEntity is one entity pending commit.
type stagedEntity struct {
	entity  *Entity
	created bool
	// adopted marks a formerly orphaned entity whose push now declares a
	// parent; commit moves its natural-key index entry.
	adopted bool
}

// stagedEdge is one edge pending commit.
type stagedEdge struct {
	edge    *Edge
	created bool
}

// ApplyBatch commits a classified proposal batch plus its inferred edges as
// one atomic unit. On any schema or invariant failure nothing is applied.
// Writers on overlapping natural keys are serialized; after bounded retries
// the call fails with ErrWriteConflict.
func (s *Store) ApplyBatch(ctx context.Context, batch *classify.Batch, edges []infer.EdgeProposal) (*BatchResult, error) {
	if len(batch.Proposals) == 0 {
		return nil, fmt.Errorf("empty proposal batch")
	}

	release, err := s.acquireKeys(ctx, batch, edges)
	if err != nil {
		s.count("conflict")
		return nil, err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingest aborted: %w", err)
	}

	stagedEntities, stagedEdges, err := s.stage(batch, edges)
	if err != nil {
		s.count("rejected")
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingest aborted before commit: %w", err)
	}

	result := s.commit(batch, stagedEntities, stagedEdges)
	s.count("committed")
	return result, nil
}

// acquireKeys takes the exclusive sections for every natural key the batch
// touches, in sorted order, retrying with backoff.
func (s *Store) acquireKeys(ctx context.Context, batch *classify.Batch, edges []infer.EdgeProposal) (func(), error) {
	seen := make(map[string]bool)
	var keys []string
	add := func(ref classify.Ref) {
		k := string(ref.Type) + "/" + ref.Name
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, p := range batch.Proposals {
		add(p.Ref())
	}
	for _, e := range edges {
		add(e.Source)
		add(e.Target)
	}
	sort.Strings(keys)

	var release func()
	op := func() error {
		r, ok := s.keys.tryAcquire(keys)
		if !ok {
			return fmt.Errorf("keys contended")
		}
		release = r
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newLockBackoff(), s.lockRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteConflict, err)
	}
	return release, nil
}

func newLockBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	return b
}

// stage resolves and validates the batch against current state under a
// shared lock. Nothing is written here.
func (s *Store) stage(batch *classify.Batch, edges []infer.EdgeProposal) ([]*stagedEntity, []*stagedEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	byRef := make(map[refKey]*stagedEntity, len(batch.Proposals))
	var stagedEntities []*stagedEntity

	resolve := func(ref classify.Ref) (string, bool) {
		if st, ok := byRef[refKey{entityType: ref.Type, name: ref.Name}]; ok {
			return st.entity.ID, true
		}
		if ids := s.byName[refKey{entityType: ref.Type, name: ref.Name}]; len(ids) > 0 {
			// Multiple parents can scope the same (type, name); the
			// first-created entity wins for reference resolution.
			return ids[0], true
		}
		return "", false
	}

	for _, p := range batch.Proposals {
		parentID := ""
		if p.Context.Parent != nil {
			id, ok := resolve(*p.Context.Parent)
			if !ok {
				// Orphan: the entity is still created; the member edge is
				// skipped later and reconciliation happens on a future push.
				s.logger.Warn("unresolvable parent reference",
					"entity", p.Name,
					"type", p.Type.String(),
					"parent", p.Context.Parent.Name)
			} else {
				parentID = id
			}
		}

		st, err := s.stageEntity(p, parentID, now)
		if err != nil {
			return nil, nil, err
		}
		byRef[refKey{entityType: p.Type, name: p.Name}] = st
		stagedEntities = append(stagedEntities, st)
	}

	var stagedEdges []*stagedEdge
	stagedTriples := make(map[tripleKey]*stagedEdge)
	for _, ep := range edges {
		sourceID, ok := resolve(ep.Source)
		if !ok {
			return nil, nil, fmt.Errorf("%w: source %s %q", ErrDanglingEdge, ep.Source.Type, ep.Source.Name)
		}
		targetID, ok := resolve(ep.Target)
		if !ok {
			if ep.Optional {
				s.logger.Warn("skipping edge to unresolved target",
					"relation", ep.Relation.String(),
					"source", ep.Source.Name,
					"target", ep.Target.Name)
				continue
			}
			return nil, nil, fmt.Errorf("%w: target %s %q", ErrDanglingEdge, ep.Target.Type, ep.Target.Name)
		}

		triple := tripleKey{sourceID: sourceID, relation: ep.Relation, targetID: targetID}
		if existing, ok := stagedTriples[triple]; ok {
			// Last write wins within the batch too.
			existing.edge.Attrs = cloneAttrs(ep.Attrs)
			continue
		}

		se := &stagedEdge{
			edge: &Edge{
				SourceID:  sourceID,
				Relation:  ep.Relation,
				TargetID:  targetID,
				Attrs:     cloneAttrs(ep.Attrs),
				CreatedAt: now,
				UpdatedAt: now,
			},
			created: s.edges[triple] == nil,
		}
		if prior := s.edges[triple]; prior != nil {
			se.edge.CreatedAt = prior.CreatedAt
		}
		stagedTriples[triple] = se
		stagedEdges = append(stagedEdges, se)
	}

	if err := s.checkInvariants(stagedEntities, stagedEdges); err != nil {
		return nil, nil, err
	}
	return stagedEntities, stagedEdges, nil
}

// stageEntity resolves one proposal into a create or an attribute-merge
// update, schema-checking the resulting attribute set.
func (s *Store) stageEntity(p classify.Proposal, parentID string, now time.Time) (*stagedEntity, error) {
	def, ok := s.registry.TypeDef(p.Type)
	if !ok {
		return nil, &InvariantViolation{
			EntityType: p.Type,
			Name:       p.Name,
			Rule:       "entity type is not registered",
		}
	}

	nk := naturalKey{entityType: p.Type, name: p.Name, parentID: parentID}
	id, exists := s.byKey[nk]
	adopted := false
	if !exists {
		if parentID == "" {
			// A push may re-assert an entity without re-declaring its
			// ancestry; it still means the entity stored under whatever
			// parent scope it already has.
			if ids := s.byName[refKey{entityType: p.Type, name: p.Name}]; len(ids) > 0 {
				id, exists = ids[0], true
			}
		} else if orphanID, ok := s.byKey[naturalKey{entityType: p.Type, name: p.Name}]; ok {
			// A formerly orphaned entity adopts the newly declared parent.
			id, exists = orphanID, true
			adopted = true
		}
	}

	var st *stagedEntity
	if exists {
		entity := s.entities[id].clone()
		for k, v := range p.Attributes {
			entity.Attributes[k] = v
		}
		if adopted {
			entity.ParentID = parentID
		}
		entity.UpdatedAt = now
		st = &stagedEntity{entity: entity, adopted: adopted}
	} else {
		attrs := make(map[string]any, len(p.Attributes))
		for k, v := range p.Attributes {
			attrs[k] = v
		}
		st = &stagedEntity{
			entity: &Entity{
				ID:         uuid.NewString(),
				Type:       p.Type,
				Name:       p.Name,
				ParentID:   parentID,
				Attributes: attrs,
				CreatedAt:  now,
				UpdatedAt:  now,
			},
			created: true,
		}
	}

	for k, v := range st.entity.Attributes {
		kind, declared := def.Schema[k]
		if !declared {
			return nil, &InvariantViolation{
				EntityType: p.Type,
				Name:       p.Name,
				Rule:       fmt.Sprintf("attribute %q is not declared for this type", k),
			}
		}
		if err := kind.CheckValue(v); err != nil {
			return nil, &InvariantViolation{
				EntityType: p.Type,
				Name:       p.Name,
				Rule:       fmt.Sprintf("attribute %q: %v", k, err),
			}
		}
	}

	return st, nil
}

// commit writes staged state and produces the batch result. Called with
// staging already validated; it cannot fail.
func (s *Store) commit(batch *classify.Batch, stagedEntities []*stagedEntity, stagedEdges []*stagedEdge) *BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &BatchResult{}
	touched := make(map[string][]vocabulary.Relation)

	for _, st := range stagedEntities {
		e := st.entity
		s.entities[e.ID] = e
		if st.created {
			nk := naturalKey{entityType: e.Type, name: e.Name, parentID: e.ParentID}
			s.byKey[nk] = e.ID
			rk := refKey{entityType: e.Type, name: e.Name}
			s.byName[rk] = append(s.byName[rk], e.ID)
			result.EntitiesCreated++
		} else if st.adopted {
			delete(s.byKey, naturalKey{entityType: e.Type, name: e.Name})
			s.byKey[naturalKey{entityType: e.Type, name: e.Name, parentID: e.ParentID}] = e.ID
		}
		result.Refs = append(result.Refs, e.Ref())
		touched[e.ID] = nil
	}

	for _, se := range stagedEdges {
		e := se.edge
		triple := tripleKey{sourceID: e.SourceID, relation: e.Relation, targetID: e.TargetID}
		if prior, ok := s.edges[triple]; ok {
			prior.Attrs = e.Attrs
			prior.UpdatedAt = e.UpdatedAt
		} else {
			s.edges[triple] = e
			s.out[e.SourceID] = append(s.out[e.SourceID], e)
			s.in[e.TargetID] = append(s.in[e.TargetID], e)
			result.EdgesCreated++
		}
		touched[e.SourceID] = append(touched[e.SourceID], e.Relation)
		touched[e.TargetID] = append(touched[e.TargetID], e.Relation)
	}

	now := time.Now().UTC()
	for i, st := range stagedEntities {
		kind := MutationEntityUpdated
		if st.created {
			kind = MutationEntityCreated
		}
		event := MutationEvent{
			Entity:    st.entity.Ref(),
			Kind:      kind,
			Relations: touched[st.entity.ID],
			Time:      now,
		}
		result.Events = append(result.Events, event)
		if i == batch.Primary {
			result.Primary = st.entity.Ref()
		}
	}

	if s.metrics != nil {
		s.metrics.EntitiesCreated.Add(float64(result.EntitiesCreated))
		s.metrics.EdgesCreated.Add(float64(result.EdgesCreated))
	}
	return result
}

func (s *Store) count(outcome string) {
	if s.metrics != nil {
		s.metrics.Mutations.WithLabelValues(outcome).Inc()
	}
}

// Get returns a copy of an entity by id.
func (s *Store) Get(id string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.clone(), nil
}

// ResolveName returns the first-created entity with the given type and
// name.
func (s *Store) ResolveName(t vocabulary.EntityType, name string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byName[refKey{entityType: t, name: name}]
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, t, name)
	}
	return s.entities[ids[0]].clone(), nil
}

// Edges returns copies of an entity's outgoing and incoming edges in
// insertion order.
func (s *Store) Edges(id string) (outgoing, incoming []*Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.out[id] {
		outgoing = append(outgoing, e.clone())
	}
	for _, e := range s.in[id] {
		incoming = append(incoming, e.clone())
	}
	return outgoing, incoming
}

// EdgeCount returns the number of stored edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

func cloneAttrs(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// keyLockTable hands out one mutex per natural-key string.
type keyLockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// tryAcquire attempts to take every key in order. On failure it releases
// what it took and reports false. Keys must be pre-sorted so concurrent
// writers on overlapping sets cannot deadlock.
func (t *keyLockTable) tryAcquire(keys []string) (func(), bool) {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[string]*sync.Mutex)
	}
	muxes := make([]*sync.Mutex, len(keys))
	for i, k := range keys {
		m, ok := t.locks[k]
		if !ok {
			m = &sync.Mutex{}
			t.locks[k] = m
		}
		muxes[i] = m
	}
	t.mu.Unlock()

	taken := make([]*sync.Mutex, 0, len(muxes))
	for _, m := range muxes {
		if !m.TryLock() {
			for _, held := range taken {
				held.Unlock()
			}
			return nil, false
		}
		taken = append(taken, m)
	}
	return func() {
		for _, m := range taken {
			m.Unlock()
		}
	}, true
}
