package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/forgebridge/registry"
	"github.com/c360studio/forgebridge/vocabulary"
)

func TestProposeChangeAddAlwaysSucceeds(t *testing.T) {
	r := registry.Default()

	rec, err := r.ProposeChange(registry.ChangeKindAdd, registry.Change{
		Axis: registry.AxisRole,
		Name: "hero",
		Role: &vocabulary.Role{Name: "hero", Class: vocabulary.RoleClassTrack, Order: 7},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, registry.BumpMinor, rec.Bump)
	assert.Equal(t, "1.1.0", rec.Version)

	_, ok := r.Role(vocabulary.RoleClassTrack, "hero")
	assert.True(t, ok)
}

func TestProposeChangeBreakingRequiresMajor(t *testing.T) {
	r := registry.Default()
	require.NoError(t, r.RegisterEntityType(registry.EntityTypeDef{
		Type:     "render_pass",
		Schema:   registry.Schema{"name": vocabulary.KindString, "pass": vocabulary.KindString},
		Required: []string{"name", "pass"},
		Traits:   vocabulary.NewTraitSet(vocabulary.TraitRelational),
	}))

	_, err := r.ProposeChange(registry.ChangeKindRename, registry.Change{
		Axis:    registry.AxisEntityType,
		Name:    "render_pass",
		NewName: "pass",
	}, false)
	require.ErrorIs(t, err, registry.ErrBreakingChangeRejected)

	_, err = r.ProposeChange(registry.ChangeKindRemove, registry.Change{
		Axis: registry.AxisEntityType,
		Name: "render_pass",
	}, false)
	require.ErrorIs(t, err, registry.ErrBreakingChangeRejected)

	// With the major assertion the rename applies and is logged.
	rec, err := r.ProposeChange(registry.ChangeKindRename, registry.Change{
		Axis:    registry.AxisEntityType,
		Name:    "render_pass",
		NewName: "pass",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, registry.BumpMajor, rec.Bump)

	_, ok := r.TypeDef("pass")
	assert.True(t, ok)
	_, ok = r.TypeDef("render_pass")
	assert.False(t, ok)
}

func TestProposeChangeProtectedEntries(t *testing.T) {
	r := registry.Default()

	_, err := r.ProposeChange(registry.ChangeKindRemove, registry.Change{
		Axis: registry.AxisEntityType,
		Name: "media",
	}, true)
	require.ErrorIs(t, err, registry.ErrProtectedEntry)

	_, err = r.ProposeChange(registry.ChangeKindRemove, registry.Change{
		Axis:  registry.AxisRole,
		Name:  "primary",
		Class: vocabulary.RoleClassTrack,
	}, true)
	require.ErrorIs(t, err, registry.ErrProtectedEntry)
}

func TestChangelogIsAppendOnly(t *testing.T) {
	r := registry.Default()

	_, err := r.ProposeChange(registry.ChangeKindAdd, registry.Change{
		Axis: registry.AxisRole,
		Name: "hero",
		Role: &vocabulary.Role{Name: "hero", Class: vocabulary.RoleClassTrack},
	}, false)
	require.NoError(t, err)

	_, err = r.ProposeChange(registry.ChangeKindRename, registry.Change{
		Axis:    registry.AxisRole,
		Name:    "hero",
		NewName: "protagonist",
		Class:   vocabulary.RoleClassTrack,
	}, true)
	require.NoError(t, err)

	log := r.Changelog()
	require.Len(t, log, 2)
	assert.Equal(t, 1, log[0].Seq)
	assert.Equal(t, 2, log[1].Seq)
	assert.Equal(t, registry.ChangeKindAdd, log[0].Kind)
	assert.Equal(t, registry.ChangeKindRename, log[1].Kind)
	assert.Equal(t, "2.0.0", r.Version())

	// Mutating the returned slice must not touch the registry's log.
	log[0].Kind = registry.ChangeKindRemove
	assert.Equal(t, registry.ChangeKindAdd, r.Changelog()[0].Kind)

	// Unknown target surfaces cleanly.
	_, err = r.ProposeChange(registry.ChangeKindRemove, registry.Change{
		Axis:  registry.AxisRole,
		Name:  "nope",
		Class: vocabulary.RoleClassTrack,
	}, true)
	require.ErrorIs(t, err, registry.ErrUnknownEntry)
}
