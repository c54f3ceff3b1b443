package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/forgebridge/classify"
	"github.com/c360studio/forgebridge/registry"
	"github.com/c360studio/forgebridge/vocabulary"
)

// flameRegistry seeds the default registry with a Flame endpoint table:
// native type tokens, track-position role names, and one status term.
func flameRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.Default()
	err := reg.RegisterEndpointMapping("flame", registry.Mapping{
		registry.AxisEntityType: {
			"clip":    "media",
			"segment": "shot",
		},
		registry.AxisRole: {
			"L01": "primary",
			"L02": "reference",
			"L03": "matte",
		},
		registry.AxisStatus: {
			"approved_final": "delivered",
		},
	})
	require.NoError(t, err)
	return reg
}

func TestClassifyNativeTypeToken(t *testing.T) {
	c := classify.New(flameRegistry(t), nil)

	batch, err := c.Classify("flame", classify.Record{
		"type": "clip",
		"name": "ABC_010_plate",
		"path": "/mnt/proj/ABC_010_plate.exr",
	})
	require.NoError(t, err)
	require.Len(t, batch.Proposals, 1)

	p := batch.Proposals[batch.Primary]
	assert.Equal(t, vocabulary.TypeMedia, p.Type)
	assert.Equal(t, "ABC_010_plate", p.Name)
	assert.Equal(t, "/mnt/proj/ABC_010_plate.exr", p.Attributes["path"])
	assert.Equal(t, 0, p.Attributes[vocabulary.AttrGeneration], "no source means lineage root")
	assert.Empty(t, batch.Notes)
}

func TestClassifyUnmappedNativeType(t *testing.T) {
	c := classify.New(flameRegistry(t), nil)

	_, err := c.Classify("flame", classify.Record{
		"type": "timeline_fx",
		"name": "speed_ramp",
	})
	require.ErrorIs(t, err, registry.ErrUnmappedTerm)
}

func TestClassifyShapeMatch(t *testing.T) {
	c := classify.New(flameRegistry(t), nil)

	tests := []struct {
		name string
		rec  classify.Record
		want vocabulary.EntityType
	}{
		{
			name: "shot by cut range",
			rec:  classify.Record{"name": "ABC_010", "cut_in": "01:00:00:00", "cut_out": "01:00:04:00"},
			want: vocabulary.TypeShot,
		},
		{
			name: "sequence by frame rate",
			rec:  classify.Record{"name": "test", "frame_rate": 24.0},
			want: vocabulary.TypeSequence,
		},
		{
			name: "version by number",
			rec:  classify.Record{"name": "v001", "number": 1},
			want: vocabulary.TypeVersion,
		},
		{
			name: "media by path",
			rec:  classify.Record{"name": "plate", "path": "/mnt/plate.exr"},
			want: vocabulary.TypeMedia,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := c.Classify("flame", tt.rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, batch.Proposals[batch.Primary].Type)
			assert.Empty(t, batch.Notes)
		})
	}
}

func TestClassifyNoShapeMatch(t *testing.T) {
	c := classify.New(flameRegistry(t), nil)

	_, err := c.Classify("flame", classify.Record{"name": "mystery", "flavor": "unknown"})
	require.ErrorIs(t, err, classify.ErrUnrecognizedSchema)

	_, err = c.Classify("flame", classify.Record{})
	require.ErrorIs(t, err, classify.ErrUnrecognizedSchema)

	_, err = c.Classify("flame", classify.Record{"path": "/mnt/unnamed.exr"})
	require.ErrorIs(t, err, classify.ErrUnrecognizedSchema, "records need a name")
}

func TestClassifyAmbiguousShapeFirstRegisteredWins(t *testing.T) {
	reg := flameRegistry(t)
	// A second type whose required set is satisfied by any shot-shaped
	// record makes shot records ambiguous.
	err := reg.RegisterEntityType(registry.EntityTypeDef{
		Type: "editorial_cut",
		Schema: registry.Schema{
			"name":    vocabulary.KindString,
			"cut_in":  vocabulary.KindString,
			"cut_out": vocabulary.KindString,
		},
		Required: []string{"name", "cut_in", "cut_out"},
	})
	require.NoError(t, err)

	c := classify.New(reg, nil)
	batch, err := c.Classify("flame", classify.Record{
		"name": "ABC_010", "cut_in": "01:00:00:00", "cut_out": "01:00:04:00",
	})
	require.NoError(t, err)

	p := batch.Proposals[batch.Primary]
	assert.Equal(t, vocabulary.TypeShot, p.Type, "shot registered first")

	require.Len(t, batch.Notes, 1)
	note := batch.Notes[0]
	assert.Equal(t, "flame", note.Endpoint)
	assert.Equal(t, "ABC_010", note.Name)
	assert.Equal(t, vocabulary.TypeShot, note.Chosen)
	assert.Contains(t, note.Candidates, vocabulary.EntityType("editorial_cut"))
}

func TestClassifyTranslatesStatusAndRole(t *testing.T) {
	c := classify.New(flameRegistry(t), nil)

	batch, err := c.Classify("flame", classify.Record{
		"type":   "clip",
		"name":   "ABC_010_plate",
		"path":   "/mnt/plate.exr",
		"status": "approved_final",
		"role":   "L01",
	})
	require.NoError(t, err)

	p := batch.Proposals[batch.Primary]
	assert.Equal(t, "delivered", p.Attributes["status"], "endpoint table precedes alias defaults")
	assert.Equal(t, "primary", p.Attributes["role"])

	// Canonical terms pass through without an endpoint entry.
	batch, err = c.Classify("nuke", classify.Record{
		"name": "ABC_010_denoise", "path": "/mnt/d.exr",
		"status": "wip", "role": "denoise",
	})
	require.NoError(t, err)
	p = batch.Proposals[batch.Primary]
	assert.Equal(t, "in_progress", p.Attributes["status"], "status aliases are built in")
	assert.Equal(t, "denoise", p.Attributes["role"])

	_, err = c.Classify("nuke", classify.Record{
		"name": "x", "path": "/mnt/x.exr", "role": "hero_pass",
	})
	require.ErrorIs(t, err, registry.ErrUnmappedTerm)
}

func TestClassifyExpandsParentChain(t *testing.T) {
	c := classify.New(flameRegistry(t), nil)

	batch, err := c.Classify("flame", classify.Record{
		"name": "ABC_010", "cut_in": "01:00:00:00", "cut_out": "01:00:04:00",
		"parent": map[string]any{
			"name": "test", "frame_rate": 24.0,
			"parent": map[string]any{
				"name": "demo", "code": "DEMO",
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, batch.Proposals, 3)

	// Ancestors first so containers commit before members.
	assert.Equal(t, vocabulary.TypeProject, batch.Proposals[0].Type)
	assert.Equal(t, "demo", batch.Proposals[0].Name)
	assert.Equal(t, vocabulary.TypeSequence, batch.Proposals[1].Type)
	assert.Equal(t, vocabulary.TypeShot, batch.Proposals[2].Type)
	assert.Equal(t, 2, batch.Primary)

	require.NotNil(t, batch.Proposals[1].Context.Parent)
	assert.Equal(t, vocabulary.TypeProject, batch.Proposals[1].Context.Parent.Type)
	require.NotNil(t, batch.Proposals[2].Context.Parent)
	assert.Equal(t, "test", batch.Proposals[2].Context.Parent.Name)
	assert.Nil(t, batch.Proposals[0].Context.Parent)
}

func TestClassifyExpandsMediaStubs(t *testing.T) {
	c := classify.New(flameRegistry(t), nil)

	batch, err := c.Classify("flame", classify.Record{
		"name": "v001", "number": 1,
		"consumes": []any{
			map[string]any{"media": "L01_plate", "role": "L01"},
			map[string]any{"media": "L03_matte", "role": "L03"},
		},
		"produces": []any{
			map[string]any{"media": "v001_comp"},
		},
	})
	require.NoError(t, err)

	primary := batch.Proposals[batch.Primary]
	assert.Equal(t, vocabulary.TypeVersion, primary.Type)
	require.Len(t, primary.Context.Consumes, 2)
	assert.Equal(t, classify.MediaUse{Media: "L01_plate", CompRole: "primary"}, primary.Context.Consumes[0])
	assert.Equal(t, classify.MediaUse{Media: "L03_matte", CompRole: "matte"}, primary.Context.Consumes[1])
	require.Len(t, primary.Context.Produces, 1)

	stubs := map[string]classify.Proposal{}
	for _, p := range batch.Proposals[batch.Primary+1:] {
		require.Equal(t, vocabulary.TypeMedia, p.Type)
		stubs[p.Name] = p
	}
	require.Len(t, stubs, 3, "every referenced media gets a stub")
	assert.Equal(t, 0, stubs["L01_plate"].Attributes[vocabulary.AttrGeneration])
	assert.Contains(t, stubs, "L03_matte")
	assert.Contains(t, stubs, "v001_comp")
}

func TestClassifyNoDuplicateMediaStub(t *testing.T) {
	c := classify.New(flameRegistry(t), nil)

	batch, err := c.Classify("flame", classify.Record{
		"type":         "clip",
		"name":         "L01_denoise",
		"path":         "/mnt/d.exr",
		"source_media": "L01_plate",
	})
	require.NoError(t, err)
	require.Len(t, batch.Proposals, 2)

	primary := batch.Proposals[batch.Primary]
	assert.Equal(t, "L01_plate", primary.Context.SourceMedia)
	assert.Equal(t, 1, primary.Attributes[vocabulary.AttrGeneration], "a declared source implies at least first generation")

	stub := batch.Proposals[1]
	assert.Equal(t, "L01_plate", stub.Name)
	assert.Equal(t, 0, stub.Attributes[vocabulary.AttrGeneration])
}

func TestClassifyExplicitGenerationPreserved(t *testing.T) {
	c := classify.New(flameRegistry(t), nil)

	batch, err := c.Classify("flame", classify.Record{
		"type": "clip", "name": "L01_comp", "path": "/mnt/c.exr",
		"source_media": "L01_denoise", "generation": 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Proposals[batch.Primary].Attributes[vocabulary.AttrGeneration])
}

func TestClassifyMalformedMediaList(t *testing.T) {
	c := classify.New(flameRegistry(t), nil)

	_, err := c.Classify("flame", classify.Record{
		"name": "v001", "number": 1,
		"consumes": "L01_plate",
	})
	require.Error(t, err)

	_, err = c.Classify("flame", classify.Record{
		"name": "v001", "number": 1,
		"consumes": []any{map[string]any{"role": "L01"}},
	})
	require.Error(t, err, "media entries need a media name")
}
