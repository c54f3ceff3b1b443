// Package infer derives typed edges from classified proposals. Derivation
// is deterministic: the same batch always yields the same edge set in the
// same order.
package infer

import (
	"log/slog"

	"github.com/c360studio/forgebridge/classify"
	"github.com/c360studio/forgebridge/vocabulary"
)

// EdgeProposal is one derived edge, with endpoints named by natural key.
// Targets may resolve inside the batch or against the existing graph.
type EdgeProposal struct {
	Source   classify.Ref
	Relation vocabulary.Relation
	Target   classify.Ref
	Attrs    map[string]string

	// Optional edges are skipped, not fatal, when the target cannot be
	// resolved. Parent references are optional: an entity with a missing
	// parent is still created as an orphan for later reconciliation.
	Optional bool
}

// Engine derives edges from proposal context.
type Engine struct {
	logger *slog.Logger
}

// New creates an inference engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Derive walks a classified batch and emits its edge proposals.
//
// Rules, in order per proposal:
//   - a declared parent container yields member_of, or version_of when the
//     proposal is a Version parented to a Shot or Asset
//   - a source-media reference yields derived_from; absence is legal for
//     generation-zero roots
//   - a Version's consumed and produced media lists yield one consumes or
//     produces edge per entry, carrying comp_role as an edge attribute
func (e *Engine) Derive(batch *classify.Batch) []EdgeProposal {
	var edges []EdgeProposal

	for _, p := range batch.Proposals {
		source := p.Ref()

		if parent := p.Context.Parent; parent != nil {
			relation := vocabulary.RelMemberOf
			if p.Type == vocabulary.TypeVersion &&
				(parent.Type == vocabulary.TypeShot || parent.Type == vocabulary.TypeAsset) {
				relation = vocabulary.RelVersionOf
			}
			edges = append(edges, EdgeProposal{
				Source:   source,
				Relation: relation,
				Target:   *parent,
				Optional: true,
			})
		}

		if p.Context.SourceMedia != "" {
			edges = append(edges, EdgeProposal{
				Source:   source,
				Relation: vocabulary.RelDerivedFrom,
				Target:   classify.Ref{Type: vocabulary.TypeMedia, Name: p.Context.SourceMedia},
			})
		}

		if p.Type != vocabulary.TypeVersion {
			if len(p.Context.Consumes) > 0 || len(p.Context.Produces) > 0 {
				e.logger.Warn("ignoring process lists on non-version proposal",
					"type", p.Type.String(),
					"name", p.Name)
			}
			continue
		}

		for _, use := range p.Context.Consumes {
			edges = append(edges, EdgeProposal{
				Source:   source,
				Relation: vocabulary.RelConsumes,
				Target:   classify.Ref{Type: vocabulary.TypeMedia, Name: use.Media},
				Attrs:    compRoleAttrs(use.CompRole),
			})
		}
		for _, use := range p.Context.Produces {
			edges = append(edges, EdgeProposal{
				Source:   source,
				Relation: vocabulary.RelProduces,
				Target:   classify.Ref{Type: vocabulary.TypeMedia, Name: use.Media},
				Attrs:    compRoleAttrs(use.CompRole),
			})
		}
	}

	return edges
}

func compRoleAttrs(role string) map[string]string {
	if role == "" {
		return nil
	}
	return map[string]string{vocabulary.EdgeAttrCompRole: role}
}
