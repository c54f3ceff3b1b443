package infer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/forgebridge/classify"
	"github.com/c360studio/forgebridge/infer"
	"github.com/c360studio/forgebridge/vocabulary"
)

func derive(proposals ...classify.Proposal) []infer.EdgeProposal {
	return infer.New(nil).Derive(&classify.Batch{Endpoint: "flame", Proposals: proposals})
}

func TestDeriveParentContainment(t *testing.T) {
	sequenceRef := classify.Ref{Type: vocabulary.TypeSequence, Name: "test"}
	shotRef := classify.Ref{Type: vocabulary.TypeShot, Name: "ABC_010"}
	assetRef := classify.Ref{Type: vocabulary.TypeAsset, Name: "hero_car"}

	tests := []struct {
		name     string
		proposal classify.Proposal
		relation vocabulary.Relation
		target   classify.Ref
	}{
		{
			name: "shot in sequence is member_of",
			proposal: classify.Proposal{
				Type: vocabulary.TypeShot, Name: "ABC_010",
				Context: classify.Context{Parent: &sequenceRef},
			},
			relation: vocabulary.RelMemberOf,
			target:   sequenceRef,
		},
		{
			name: "version of a shot is version_of",
			proposal: classify.Proposal{
				Type: vocabulary.TypeVersion, Name: "v001",
				Context: classify.Context{Parent: &shotRef},
			},
			relation: vocabulary.RelVersionOf,
			target:   shotRef,
		},
		{
			name: "version of an asset is version_of",
			proposal: classify.Proposal{
				Type: vocabulary.TypeVersion, Name: "v001",
				Context: classify.Context{Parent: &assetRef},
			},
			relation: vocabulary.RelVersionOf,
			target:   assetRef,
		},
		{
			name: "layer in a shot is member_of",
			proposal: classify.Proposal{
				Type: vocabulary.TypeLayer, Name: "L01",
				Context: classify.Context{Parent: &shotRef},
			},
			relation: vocabulary.RelMemberOf,
			target:   shotRef,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges := derive(tt.proposal)
			require.Len(t, edges, 1)
			assert.Equal(t, tt.relation, edges[0].Relation)
			assert.Equal(t, tt.target, edges[0].Target)
			assert.Equal(t, tt.proposal.Ref(), edges[0].Source)
			assert.True(t, edges[0].Optional, "parent edges never fail the batch")
		})
	}
}

func TestDeriveSourceMediaLineage(t *testing.T) {
	edges := derive(classify.Proposal{
		Type: vocabulary.TypeMedia, Name: "L01_denoise",
		Attributes: map[string]any{vocabulary.AttrGeneration: 1},
		Context:    classify.Context{SourceMedia: "L01"},
	})

	require.Len(t, edges, 1)
	assert.Equal(t, vocabulary.RelDerivedFrom, edges[0].Relation)
	assert.Equal(t, classify.Ref{Type: vocabulary.TypeMedia, Name: "L01"}, edges[0].Target)
	assert.False(t, edges[0].Optional, "lineage targets must resolve")
}

func TestDeriveNoSourceMediaNoEdge(t *testing.T) {
	edges := derive(classify.Proposal{
		Type: vocabulary.TypeMedia, Name: "L01",
		Attributes: map[string]any{vocabulary.AttrGeneration: 0},
	})
	assert.Empty(t, edges, "generation-zero roots have no lineage")
}

func TestDeriveProcessEdgesCarryCompRole(t *testing.T) {
	shotRef := classify.Ref{Type: vocabulary.TypeShot, Name: "ABC_010"}
	edges := derive(classify.Proposal{
		Type: vocabulary.TypeVersion, Name: "v001",
		Context: classify.Context{
			Parent: &shotRef,
			Consumes: []classify.MediaUse{
				{Media: "L01", CompRole: "primary"},
				{Media: "L02", CompRole: "matte"},
			},
			Produces: []classify.MediaUse{
				{Media: "v001_comp", CompRole: "comp"},
				{Media: "preview"},
			},
		},
	})

	require.Len(t, edges, 5)
	assert.Equal(t, vocabulary.RelVersionOf, edges[0].Relation)

	assert.Equal(t, vocabulary.RelConsumes, edges[1].Relation)
	assert.Equal(t, "L01", edges[1].Target.Name)
	assert.Equal(t, map[string]string{vocabulary.EdgeAttrCompRole: "primary"}, edges[1].Attrs)

	assert.Equal(t, vocabulary.RelConsumes, edges[2].Relation)
	assert.Equal(t, map[string]string{vocabulary.EdgeAttrCompRole: "matte"}, edges[2].Attrs)

	assert.Equal(t, vocabulary.RelProduces, edges[3].Relation)
	assert.Equal(t, "v001_comp", edges[3].Target.Name)
	assert.Equal(t, map[string]string{vocabulary.EdgeAttrCompRole: "comp"}, edges[3].Attrs)

	assert.Equal(t, vocabulary.RelProduces, edges[4].Relation)
	assert.Nil(t, edges[4].Attrs, "no comp_role means no edge attrs")
}

func TestDeriveProcessListsIgnoredOnNonVersions(t *testing.T) {
	edges := derive(classify.Proposal{
		Type: vocabulary.TypeShot, Name: "ABC_010",
		Context: classify.Context{
			Consumes: []classify.MediaUse{{Media: "L01"}},
			Produces: []classify.MediaUse{{Media: "out"}},
		},
	})
	assert.Empty(t, edges, "only versions model process inputs and outputs")
}

func TestDeriveDeterministicOrder(t *testing.T) {
	shotRef := classify.Ref{Type: vocabulary.TypeShot, Name: "ABC_010"}
	p := classify.Proposal{
		Type: vocabulary.TypeVersion, Name: "v001",
		Context: classify.Context{
			Parent:   &shotRef,
			Consumes: []classify.MediaUse{{Media: "L01"}, {Media: "L02"}},
		},
	}

	first := derive(p)
	second := derive(p)
	assert.Equal(t, first, second)
}
