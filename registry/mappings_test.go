package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/forgebridge/registry"
	"github.com/c360studio/forgebridge/vocabulary"
)

const mappingYAML = `
roles:
  - name: hero
    role_class: track
    order: 7
endpoints:
  flame:
    role:
      L01: primary
      L02: reference
    status:
      approved_final: delivered
`

func TestLoadAndApplyMappingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mappingYAML), 0o644))

	mf, err := registry.LoadMappingFile(path)
	require.NoError(t, err)
	require.Len(t, mf.Roles, 1)

	r := registry.Default()
	require.NoError(t, mf.Apply(r))

	_, ok := r.Role(vocabulary.RoleClassTrack, "hero")
	assert.True(t, ok)

	got, err := r.Translate("flame", "L02", registry.AxisRole)
	require.NoError(t, err)
	assert.Equal(t, "reference", got)

	got, err = r.Translate("flame", "approved_final", registry.AxisStatus)
	require.NoError(t, err)
	assert.Equal(t, "delivered", got)
}

func TestLoadMappingFileErrors(t *testing.T) {
	_, err := registry.LoadMappingFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\tnot yaml"), 0o644))
	_, err = registry.LoadMappingFile(path)
	require.Error(t, err)
}

func TestMappingFileApplyRejectsUnknownAxis(t *testing.T) {
	mf := &registry.MappingFile{
		Endpoints: map[string]map[string]map[string]string{
			"flame": {"color_space": {"acescg": "acescg"}},
		},
	}
	err := mf.Apply(registry.Default())
	require.Error(t, err)
}
