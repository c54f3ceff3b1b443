// Package registry holds the single source of schema truth: canonical
// entity-type definitions with their attribute schemas and trait sets, the
// role vocabulary, and per-endpoint term mapping tables.
//
// The registry is explicitly initialized (see Default) and mutated only
// through the registration operations and the ProposeChange gate. Every
// accepted change is appended to a versioned changelog.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360studio/forgebridge/vocabulary"
)

// Schema declares an entity type's attribute set: name to expected kind.
type Schema map[string]vocabulary.ValueKind

// Clone returns a copy of the schema.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Equal reports whether two schemas declare the same attributes and kinds.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		if other[k] != v {
			return false
		}
	}
	return true
}

// EntityTypeDef is a canonical entity type as registered.
type EntityTypeDef struct {
	Type vocabulary.EntityType

	// Schema maps attribute names to their expected value kinds.
	Schema Schema

	// Required lists the attributes that identify this type's record
	// shape during classification.
	Required []string

	// Traits is the capability set the type declares.
	Traits vocabulary.TraitSet

	// Protected entries are built-in and cannot be removed.
	Protected bool
}

// Axis names a translation namespace within an endpoint mapping table.
type Axis string

const (
	AxisEntityType Axis = "entity_type"
	AxisStatus     Axis = "status"
	AxisRole       Axis = "role"

	// AxisEndpoint appears only in changelog records for endpoint mapping
	// updates; it is not a translation axis and carries no term table.
	AxisEndpoint Axis = "endpoint"
)

// IsValid reports whether a is a known translation axis.
func (a Axis) IsValid() bool {
	switch a {
	case AxisEntityType, AxisStatus, AxisRole:
		return true
	}
	return false
}

// Mapping is one endpoint's term table: per axis, native term to canonical
// term.
type Mapping map[Axis]map[string]string

// Clone returns a deep copy of the mapping.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for axis, table := range m {
		t := make(map[string]string, len(table))
		for k, v := range table {
			t[k] = v
		}
		out[axis] = t
	}
	return out
}

type roleKey struct {
	class vocabulary.RoleClass
	name  string
}

type roleEntry struct {
	role      vocabulary.Role
	protected bool
}

// Registry is the process-wide vocabulary instance.
type Registry struct {
	mu        sync.RWMutex
	types     map[vocabulary.EntityType]*EntityTypeDef
	typeOrder []vocabulary.EntityType
	roles     map[roleKey]*roleEntry
	endpoints map[string]Mapping
	changelog []ChangeRecord
	version   semver
}

// New creates an empty registry. Most callers want Default, which seeds the
// built-in types, roles, and status aliases.
func New() *Registry {
	return &Registry{
		types:     make(map[vocabulary.EntityType]*EntityTypeDef),
		roles:     make(map[roleKey]*roleEntry),
		endpoints: make(map[string]Mapping),
		version:   semver{major: 1},
	}
}

// RegisterEntityType registers a canonical entity type with its attribute
// schema and trait set. Re-registering an identical definition is a no-op;
// a conflicting definition fails with ErrDuplicateType.
func (r *Registry) RegisterEntityType(def EntityTypeDef) error {
	if def.Type == "" {
		return fmt.Errorf("entity type name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerEntityTypeLocked(def)
}

func (r *Registry) registerEntityTypeLocked(def EntityTypeDef) error {
	if existing, ok := r.types[def.Type]; ok {
		if existing.Schema.Equal(def.Schema) && existing.Traits.Equal(def.Traits) {
			return nil
		}
		return fmt.Errorf("%w: %s registered with different schema", ErrDuplicateType, def.Type)
	}

	stored := def
	stored.Schema = def.Schema.Clone()
	stored.Required = append([]string(nil), def.Required...)
	r.types[def.Type] = &stored
	r.typeOrder = append(r.typeOrder, def.Type)
	r.appendChangeLocked(ChangeKindAdd, BumpMinor, Change{
		Axis: AxisEntityType,
		Name: string(def.Type),
	})
	return nil
}

// TypeDef returns the definition of a registered entity type.
func (r *Registry) TypeDef(t vocabulary.EntityType) (EntityTypeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.types[t]
	if !ok {
		return EntityTypeDef{}, false
	}
	out := *def
	out.Schema = def.Schema.Clone()
	out.Required = append([]string(nil), def.Required...)
	return out, true
}

// Types returns all registered entity types in registration order. The
// order is load-bearing: classification ambiguity resolves first-registered
// wins.
func (r *Registry) Types() []vocabulary.EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]vocabulary.EntityType(nil), r.typeOrder...)
}

// Traits returns the trait set a registered type declares.
func (r *Registry) Traits(t vocabulary.EntityType) vocabulary.TraitSet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if def, ok := r.types[t]; ok {
		return def.Traits
	}
	return nil
}

// RegisterRole registers a role in its role_class namespace. Identical
// re-registration is a no-op; a conflicting definition fails with
// ErrDuplicateRole.
func (r *Registry) RegisterRole(role vocabulary.Role) error {
	if role.Name == "" {
		return fmt.Errorf("role name is required")
	}
	if !role.Class.IsValid() {
		return fmt.Errorf("invalid role class %q for role %q", role.Class, role.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerRoleLocked(role, false)
}

func (r *Registry) registerRoleLocked(role vocabulary.Role, protected bool) error {
	key := roleKey{class: role.Class, name: role.Name}
	if existing, ok := r.roles[key]; ok {
		if existing.role.Equal(role) {
			return nil
		}
		return fmt.Errorf("%w: %s/%s", ErrDuplicateRole, role.Class, role.Name)
	}

	r.roles[key] = &roleEntry{role: role, protected: protected}
	r.appendChangeLocked(ChangeKindAdd, BumpMinor, Change{
		Axis:  AxisRole,
		Name:  role.Name,
		Class: role.Class,
	})
	return nil
}

// Role returns a registered role by class and name.
func (r *Registry) Role(class vocabulary.RoleClass, name string) (vocabulary.Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.roles[roleKey{class: class, name: name}]
	if !ok {
		return vocabulary.Role{}, false
	}
	return entry.role, true
}

// Roles returns all registered roles in a class, ordered by stack order
// then name.
func (r *Registry) Roles(class vocabulary.RoleClass) []vocabulary.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []vocabulary.Role
	for key, entry := range r.roles {
		if key.class == class {
			out = append(out, entry.role)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// RegisterEndpointMapping replaces or extends an endpoint's term table.
// Axes present in m overwrite matching native terms; existing terms in
// other axes are kept.
func (r *Registry) RegisterEndpointMapping(endpointID string, m Mapping) error {
	if endpointID == "" {
		return fmt.Errorf("endpoint id is required")
	}
	for axis := range m {
		if !axis.IsValid() {
			return fmt.Errorf("unknown mapping axis %q for endpoint %q", axis, endpointID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.endpoints[endpointID]
	if !ok {
		existing = make(Mapping)
		r.endpoints[endpointID] = existing
	}
	for axis, table := range m {
		dst, ok := existing[axis]
		if !ok {
			dst = make(map[string]string, len(table))
			existing[axis] = dst
		}
		for native, canonical := range table {
			dst[native] = canonical
		}
	}
	r.appendChangeLocked(ChangeKindAdd, BumpMinor, Change{
		Axis: AxisEndpoint,
		Name: endpointID,
		Note: "endpoint mapping update",
	})
	return nil
}

// EndpointMapping returns a copy of an endpoint's current term table.
func (r *Registry) EndpointMapping(endpointID string) (Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.endpoints[endpointID]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Translate resolves an endpoint-native term on the given axis to its
// canonical term. When the endpoint table has no entry, built-in defaults
// apply: status aliases, and identity for terms that are already canonical.
// Otherwise the call fails with ErrUnmappedTerm.
func (r *Registry) Translate(endpointID, native string, axis Axis) (string, error) {
	if !axis.IsValid() {
		return "", fmt.Errorf("unknown translation axis %q", axis)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.endpoints[endpointID]; ok {
		if canonical, ok := m[axis][native]; ok {
			return canonical, nil
		}
	}

	// Defaults.
	switch axis {
	case AxisStatus:
		if s, err := vocabulary.ParseStatus(native); err == nil {
			return string(s), nil
		}
	case AxisEntityType:
		if _, ok := r.types[vocabulary.EntityType(native)]; ok {
			return native, nil
		}
	case AxisRole:
		for key := range r.roles {
			if key.name == native {
				return native, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %q on axis %s for endpoint %q", ErrUnmappedTerm, native, axis, endpointID)
}
