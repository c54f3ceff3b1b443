package registry

import "github.com/c360studio/forgebridge/vocabulary"

// builtinTypeDefs declares the schemas and trait sets of the canonical
// entity types. Required attribute sets drive record-shape classification,
// so each type's required set must stay distinguishable from the others.
func builtinTypeDefs() []EntityTypeDef {
	all := vocabulary.NewTraitSet(vocabulary.TraitLocatable, vocabulary.TraitRelational)
	versioned := vocabulary.NewTraitSet(vocabulary.TraitVersionable, vocabulary.TraitLocatable, vocabulary.TraitRelational)

	return []EntityTypeDef{
		{
			Type: vocabulary.TypeProject,
			Schema: Schema{
				"name":                vocabulary.KindString,
				"code":                vocabulary.KindString,
				vocabulary.AttrStatus: vocabulary.KindString,
			},
			Required:  []string{"name", "code"},
			Traits:    versioned,
			Protected: true,
		},
		{
			Type: vocabulary.TypeSequence,
			Schema: Schema{
				"name":                vocabulary.KindString,
				"frame_rate":          vocabulary.KindFloat,
				"duration":            vocabulary.KindString,
				vocabulary.AttrStatus: vocabulary.KindString,
			},
			Required:  []string{"name", "frame_rate"},
			Traits:    versioned,
			Protected: true,
		},
		{
			Type: vocabulary.TypeShot,
			Schema: Schema{
				"name":                vocabulary.KindString,
				"cut_in":              vocabulary.KindString,
				"cut_out":             vocabulary.KindString,
				"frames":              vocabulary.KindInt,
				vocabulary.AttrStatus: vocabulary.KindString,
			},
			Required:  []string{"name", "cut_in", "cut_out"},
			Traits:    versioned,
			Protected: true,
		},
		{
			Type: vocabulary.TypeAsset,
			Schema: Schema{
				"name":                vocabulary.KindString,
				"asset_kind":          vocabulary.KindString,
				vocabulary.AttrStatus: vocabulary.KindString,
			},
			Required:  []string{"name", "asset_kind"},
			Traits:    versioned,
			Protected: true,
		},
		{
			Type: vocabulary.TypeVersion,
			Schema: Schema{
				"name":                vocabulary.KindString,
				"number":              vocabulary.KindInt,
				"author":              vocabulary.KindString,
				vocabulary.AttrStatus: vocabulary.KindString,
			},
			Required:  []string{"name", "number"},
			Traits:    all,
			Protected: true,
		},
		{
			Type: vocabulary.TypeMedia,
			Schema: Schema{
				"name":                    vocabulary.KindString,
				"path":                    vocabulary.KindString,
				"role":                    vocabulary.KindString,
				vocabulary.AttrGeneration: vocabulary.KindInt,
				vocabulary.AttrStatus:     vocabulary.KindString,
			},
			Required:  []string{"name", "path"},
			Traits:    all,
			Protected: true,
		},
		{
			Type: vocabulary.TypeLayer,
			Schema: Schema{
				"name":                vocabulary.KindString,
				"index":               vocabulary.KindInt,
				"role":                vocabulary.KindString,
				vocabulary.AttrStatus: vocabulary.KindString,
			},
			Required:  []string{"name", "index", "role"},
			Traits:    all,
			Protected: true,
		},
	}
}

// Default creates a registry seeded with the built-in entity types and the
// standard role set. Built-in entries are protected: they survive every
// ProposeChange removal.
func Default() *Registry {
	r := New()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, def := range builtinTypeDefs() {
		// Seeding an empty registry cannot conflict.
		_ = r.registerEntityTypeLocked(def)
	}
	for _, role := range vocabulary.StandardRoles {
		_ = r.registerRoleLocked(role, true)
	}

	// Seeding is initialization, not history. Reset so the changelog only
	// records operator-visible changes.
	r.changelog = nil
	r.version = semver{major: 1}

	return r
}
