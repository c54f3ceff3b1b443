// Package classify turns raw endpoint records into canonical entity
// proposals. It owns no state beyond the registry it consults: endpoint
// terms are translated into canonical vocabulary, the record's shape is
// matched against registered schemas, and a single payload may expand into
// several proposals (a published layer implies its Shot, Version, and Media).
package classify

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360studio/forgebridge/registry"
	"github.com/c360studio/forgebridge/vocabulary"
)

// ErrUnrecognizedSchema is returned when a record's shape matches no
// registered entity type and no native type token is declared.
var ErrUnrecognizedSchema = errors.New("unrecognized record schema")

// Well-known record keys. Everything else in a record is treated as an
// attribute and shape-matched against registered schemas.
const (
	keyType        = "type"
	keyName        = "name"
	keyParent      = "parent"
	keyStatus      = vocabulary.AttrStatus
	keyRole        = "role"
	keySourceMedia = "source_media"
	keyConsumes    = "consumes"
	keyProduces    = "produces"
	keyMedia       = "media"
)

// Record is a raw string-keyed payload as submitted by an endpoint adapter.
type Record map[string]any

// Ref names an entity by natural key within its batch or the graph.
type Ref struct {
	Type vocabulary.EntityType `json:"type"`
	Name string                `json:"name"`
}

// MediaUse is one role-tagged entry in a consumed or produced media list.
type MediaUse struct {
	Media string `json:"media"`
	// CompRole is the canonical track role the media fulfils in the
	// consuming Version. It travels on the edge, not the media entity.
	CompRole string `json:"comp_role,omitempty"`
}

// Context carries everything the inference engine needs to derive edges
// for one proposal.
type Context struct {
	Parent      *Ref       `json:"parent,omitempty"`
	SourceMedia string     `json:"source_media,omitempty"`
	Consumes    []MediaUse `json:"consumes,omitempty"`
	Produces    []MediaUse `json:"produces,omitempty"`
}

// Proposal is one canonical entity proposed for upsert.
type Proposal struct {
	Type       vocabulary.EntityType `json:"type"`
	Name       string                `json:"name"`
	Attributes map[string]any        `json:"attributes"`
	Context    Context               `json:"context"`
}

// Ref returns the proposal's natural-key reference.
func (p Proposal) Ref() Ref {
	return Ref{Type: p.Type, Name: p.Name}
}

// AmbiguityNote records a record shape that matched more than one schema.
// Ambiguity never blocks ingestion; the note exists for observability.
type AmbiguityNote struct {
	Endpoint   string
	Name       string
	Candidates []vocabulary.EntityType
	Chosen     vocabulary.EntityType
}

// Batch is the classified output for one pushed record: the proposals in
// commit order (ancestors before descendants) plus any ambiguity notes.
type Batch struct {
	Endpoint  string
	Proposals []Proposal
	// Primary indexes the proposal the push itself refers to.
	Primary int
	Notes   []AmbiguityNote
}

// Classifier translates and classifies raw records against a registry.
type Classifier struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a classifier backed by the given registry.
func New(reg *registry.Registry, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{registry: reg, logger: logger}
}

// Classify turns one raw record from an endpoint into a proposal batch.
//
// Type determination: an explicit native "type" token is translated through
// the endpoint's mapping table; otherwise the record's attribute shape is
// matched against each registered schema's required set in registration
// order. No match fails with ErrUnrecognizedSchema; multiple matches
// resolve first-registered-wins with an ambiguity note.
func (c *Classifier) Classify(endpointID string, rec Record) (*Batch, error) {
	if len(rec) == 0 {
		return nil, fmt.Errorf("%w: empty record from endpoint %q", ErrUnrecognizedSchema, endpointID)
	}

	batch := &Batch{Endpoint: endpointID}

	// Ancestors first so the graph commits containers before members.
	parentRef, err := c.expandParents(endpointID, rec, batch)
	if err != nil {
		return nil, err
	}

	primary, err := c.classifyOne(endpointID, rec, parentRef, batch)
	if err != nil {
		return nil, err
	}
	batch.Primary = len(batch.Proposals)
	batch.Proposals = append(batch.Proposals, primary)

	// Referenced media that may not exist yet become stub proposals so the
	// batch never asks the store to create dangling edges.
	c.expandMedia(primary, batch)

	return batch, nil
}

// expandParents walks the declared parent chain outside-in, appending one
// proposal per ancestor, and returns the immediate parent's reference.
func (c *Classifier) expandParents(endpointID string, rec Record, batch *Batch) (*Ref, error) {
	parentRaw, ok := rec[keyParent].(map[string]any)
	if !ok {
		return nil, nil
	}

	grandparent, err := c.expandParents(endpointID, parentRaw, batch)
	if err != nil {
		return nil, err
	}

	proposal, err := c.classifyOne(endpointID, parentRaw, grandparent, batch)
	if err != nil {
		return nil, fmt.Errorf("parent record: %w", err)
	}
	batch.Proposals = append(batch.Proposals, proposal)
	ref := proposal.Ref()
	return &ref, nil
}

// classifyOne translates and classifies a single flat record.
func (c *Classifier) classifyOne(endpointID string, rec Record, parent *Ref, batch *Batch) (Proposal, error) {
	name, _ := rec[keyName].(string)
	if name == "" {
		return Proposal{}, fmt.Errorf("%w: record has no name", ErrUnrecognizedSchema)
	}

	attrs := make(map[string]any)
	ctx := Context{Parent: parent}

	for k, v := range rec {
		switch k {
		case keyType, keyParent:
			// Consumed below.
		case keySourceMedia:
			if s, ok := v.(string); ok {
				ctx.SourceMedia = s
			}
		case keyConsumes:
			uses, err := c.mediaUses(endpointID, v)
			if err != nil {
				return Proposal{}, fmt.Errorf("consumes list: %w", err)
			}
			ctx.Consumes = uses
		case keyProduces:
			uses, err := c.mediaUses(endpointID, v)
			if err != nil {
				return Proposal{}, fmt.Errorf("produces list: %w", err)
			}
			ctx.Produces = uses
		case keyStatus:
			s, ok := v.(string)
			if !ok {
				return Proposal{}, fmt.Errorf("status value %v is not a string", v)
			}
			canonical, err := c.registry.Translate(endpointID, s, registry.AxisStatus)
			if err != nil {
				return Proposal{}, err
			}
			attrs[keyStatus] = canonical
		case keyRole:
			s, ok := v.(string)
			if !ok {
				return Proposal{}, fmt.Errorf("role value %v is not a string", v)
			}
			canonical, err := c.registry.Translate(endpointID, s, registry.AxisRole)
			if err != nil {
				return Proposal{}, err
			}
			attrs[keyRole] = canonical
		default:
			attrs[k] = v
		}
	}

	entityType, err := c.resolveType(endpointID, rec, name, attrs, batch)
	if err != nil {
		return Proposal{}, err
	}

	if entityType == vocabulary.TypeMedia {
		defaultGeneration(attrs, ctx.SourceMedia != "")
	}

	return Proposal{
		Type:       entityType,
		Name:       name,
		Attributes: attrs,
		Context:    ctx,
	}, nil
}

// resolveType determines the canonical entity type for a record.
func (c *Classifier) resolveType(endpointID string, rec Record, name string, attrs map[string]any, batch *Batch) (vocabulary.EntityType, error) {
	if nativeType, ok := rec[keyType].(string); ok && nativeType != "" {
		canonical, err := c.registry.Translate(endpointID, nativeType, registry.AxisEntityType)
		if err != nil {
			return "", err
		}
		return vocabulary.EntityType(canonical), nil
	}

	var candidates []vocabulary.EntityType
	for _, t := range c.registry.Types() {
		def, ok := c.registry.TypeDef(t)
		if !ok {
			continue
		}
		if shapeMatches(def.Required, attrs) {
			candidates = append(candidates, t)
		}
	}

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: record %q matches no registered type", ErrUnrecognizedSchema, name)
	case 1:
		return candidates[0], nil
	default:
		chosen := candidates[0]
		note := AmbiguityNote{
			Endpoint:   endpointID,
			Name:       name,
			Candidates: candidates,
			Chosen:     chosen,
		}
		batch.Notes = append(batch.Notes, note)
		c.logger.Warn("ambiguous record shape",
			"endpoint", endpointID,
			"record", name,
			"candidates", len(candidates),
			"chosen", chosen.String())
		return chosen, nil
	}
}

// shapeMatches reports whether every required attribute is present.
// The name key counts: most schemas require it.
func shapeMatches(required []string, attrs map[string]any) bool {
	if len(required) == 0 {
		return false
	}
	for _, attr := range required {
		if attr == keyName {
			continue
		}
		if _, ok := attrs[attr]; !ok {
			return false
		}
	}
	return true
}

// mediaUses parses a consumed/produced list, translating role tokens.
func (c *Classifier) mediaUses(endpointID string, v any) ([]MediaUse, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}

	uses := make([]MediaUse, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected a media entry map, got %T", item)
		}
		mediaName, _ := entry[keyMedia].(string)
		if mediaName == "" {
			return nil, fmt.Errorf("media entry has no media name")
		}
		use := MediaUse{Media: mediaName}
		if role, ok := entry[keyRole].(string); ok && role != "" {
			canonical, err := c.registry.Translate(endpointID, role, registry.AxisRole)
			if err != nil {
				return nil, err
			}
			use.CompRole = canonical
		}
		uses = append(uses, use)
	}
	return uses, nil
}

// expandMedia appends stub Media proposals for every media name the primary
// proposal references but the batch does not already propose.
func (c *Classifier) expandMedia(primary Proposal, batch *Batch) {
	proposed := make(map[string]bool, len(batch.Proposals))
	for _, p := range batch.Proposals {
		if p.Type == vocabulary.TypeMedia {
			proposed[p.Name] = true
		}
	}

	add := func(name string) {
		if name == "" || proposed[name] {
			return
		}
		proposed[name] = true
		attrs := map[string]any{}
		defaultGeneration(attrs, false)
		batch.Proposals = append(batch.Proposals, Proposal{
			Type:       vocabulary.TypeMedia,
			Name:       name,
			Attributes: attrs,
		})
	}

	for _, use := range primary.Context.Consumes {
		add(use.Media)
	}
	for _, use := range primary.Context.Produces {
		add(use.Media)
	}
	add(primary.Context.SourceMedia)
}

// defaultGeneration fills the generation attribute when absent: media with
// a declared source is at least first generation, everything else is a
// lineage root.
func defaultGeneration(attrs map[string]any, hasSource bool) {
	if _, ok := attrs[vocabulary.AttrGeneration]; ok {
		return
	}
	if hasSource {
		attrs[vocabulary.AttrGeneration] = 1
	} else {
		attrs[vocabulary.AttrGeneration] = 0
	}
}
