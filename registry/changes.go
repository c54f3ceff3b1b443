package registry

import (
	"fmt"
	"time"

	"github.com/c360studio/forgebridge/vocabulary"
)

// ChangeKind classifies a vocabulary change proposal.
type ChangeKind string

const (
	ChangeKindAdd    ChangeKind = "add"
	ChangeKindRename ChangeKind = "rename"
	ChangeKindRemove ChangeKind = "remove"
)

// Bump is the semantic-version step an accepted change requires.
type Bump string

const (
	BumpMinor Bump = "minor"
	BumpMajor Bump = "major"
)

// Change describes the target of a vocabulary change proposal.
type Change struct {
	// Axis names the vocabulary namespace being changed.
	Axis Axis `json:"axis"`

	// Name is the canonical name being added, renamed, or removed.
	Name string `json:"name"`

	// NewName carries the replacement name for renames.
	NewName string `json:"new_name,omitempty"`

	// Class scopes role changes into their role_class namespace.
	Class vocabulary.RoleClass `json:"role_class,omitempty"`

	// TypeDef carries the definition for entity-type additions.
	TypeDef *EntityTypeDef `json:"-"`

	// Role carries the definition for role additions.
	Role *vocabulary.Role `json:"-"`

	// Note is free-form operator context recorded in the changelog.
	Note string `json:"note,omitempty"`
}

// ChangeRecord is one accepted entry in the append-only changelog.
type ChangeRecord struct {
	Seq     int        `json:"seq"`
	Kind    ChangeKind `json:"kind"`
	Bump    Bump       `json:"bump"`
	Version string     `json:"version"`
	Change  Change     `json:"change"`
	Time    time.Time  `json:"time"`
}

type semver struct {
	major, minor int
}

func (v semver) String() string {
	return fmt.Sprintf("%d.%d.0", v.major, v.minor)
}

func (r *Registry) appendChangeLocked(kind ChangeKind, bump Bump, change Change) ChangeRecord {
	switch bump {
	case BumpMajor:
		r.version.major++
		r.version.minor = 0
	default:
		r.version.minor++
	}
	rec := ChangeRecord{
		Seq:     len(r.changelog) + 1,
		Kind:    kind,
		Bump:    bump,
		Version: r.version.String(),
		Change:  change,
		Time:    time.Now().UTC(),
	}
	r.changelog = append(r.changelog, rec)
	return rec
}

// Version returns the current vocabulary version.
func (r *Registry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version.String()
}

// Changelog returns a copy of the accepted-change log in order.
func (r *Registry) Changelog() []ChangeRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ChangeRecord(nil), r.changelog...)
}

// ProposeChange applies a vocabulary change through the version gate.
//
// Additions always succeed and bump the minor version. Renames and removals
// are breaking: they are rejected with ErrBreakingChangeRejected unless the
// caller asserts a major-version change, and protected built-in entries
// cannot be removed at all.
func (r *Registry) ProposeChange(kind ChangeKind, change Change, major bool) (ChangeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case ChangeKindAdd:
		return r.applyAddLocked(change)
	case ChangeKindRename:
		if !major {
			return ChangeRecord{}, fmt.Errorf("%w: rename of %q requires a major-version assertion", ErrBreakingChangeRejected, change.Name)
		}
		return r.applyRenameLocked(change)
	case ChangeKindRemove:
		if !major {
			return ChangeRecord{}, fmt.Errorf("%w: removal of %q requires a major-version assertion", ErrBreakingChangeRejected, change.Name)
		}
		return r.applyRemoveLocked(change)
	default:
		return ChangeRecord{}, fmt.Errorf("unknown change kind %q", kind)
	}
}

func (r *Registry) applyAddLocked(change Change) (ChangeRecord, error) {
	switch change.Axis {
	case AxisEntityType:
		if change.TypeDef != nil {
			if err := r.registerEntityTypeLocked(*change.TypeDef); err != nil {
				return ChangeRecord{}, err
			}
			return r.changelog[len(r.changelog)-1], nil
		}
	case AxisRole:
		if change.Role != nil {
			if err := r.registerRoleLocked(*change.Role, false); err != nil {
				return ChangeRecord{}, err
			}
			return r.changelog[len(r.changelog)-1], nil
		}
	}
	// A bare addition with no definition is still logged; it reserves the
	// name for endpoint mapping work before schemas land.
	return r.appendChangeLocked(ChangeKindAdd, BumpMinor, change), nil
}

func (r *Registry) applyRenameLocked(change Change) (ChangeRecord, error) {
	if change.NewName == "" {
		return ChangeRecord{}, fmt.Errorf("rename of %q: new name is required", change.Name)
	}

	switch change.Axis {
	case AxisEntityType:
		oldType := vocabulary.EntityType(change.Name)
		def, ok := r.types[oldType]
		if !ok {
			return ChangeRecord{}, fmt.Errorf("%w: entity type %q", ErrUnknownEntry, change.Name)
		}
		newType := vocabulary.EntityType(change.NewName)
		if _, exists := r.types[newType]; exists {
			return ChangeRecord{}, fmt.Errorf("%w: %s", ErrDuplicateType, change.NewName)
		}
		delete(r.types, oldType)
		def.Type = newType
		r.types[newType] = def
		for i, t := range r.typeOrder {
			if t == oldType {
				r.typeOrder[i] = newType
			}
		}
	case AxisRole:
		key := roleKey{class: change.Class, name: change.Name}
		entry, ok := r.roles[key]
		if !ok {
			return ChangeRecord{}, fmt.Errorf("%w: role %s/%s", ErrUnknownEntry, change.Class, change.Name)
		}
		newKey := roleKey{class: change.Class, name: change.NewName}
		if _, exists := r.roles[newKey]; exists {
			return ChangeRecord{}, fmt.Errorf("%w: %s/%s", ErrDuplicateRole, change.Class, change.NewName)
		}
		delete(r.roles, key)
		entry.role.Name = change.NewName
		r.roles[newKey] = entry
	default:
		return ChangeRecord{}, fmt.Errorf("rename is not supported on axis %q", change.Axis)
	}

	return r.appendChangeLocked(ChangeKindRename, BumpMajor, change), nil
}

func (r *Registry) applyRemoveLocked(change Change) (ChangeRecord, error) {
	switch change.Axis {
	case AxisEntityType:
		t := vocabulary.EntityType(change.Name)
		def, ok := r.types[t]
		if !ok {
			return ChangeRecord{}, fmt.Errorf("%w: entity type %q", ErrUnknownEntry, change.Name)
		}
		if def.Protected {
			return ChangeRecord{}, fmt.Errorf("%w: entity type %q is built in", ErrProtectedEntry, change.Name)
		}
		delete(r.types, t)
		for i, existing := range r.typeOrder {
			if existing == t {
				r.typeOrder = append(r.typeOrder[:i], r.typeOrder[i+1:]...)
				break
			}
		}
	case AxisRole:
		key := roleKey{class: change.Class, name: change.Name}
		entry, ok := r.roles[key]
		if !ok {
			return ChangeRecord{}, fmt.Errorf("%w: role %s/%s", ErrUnknownEntry, change.Class, change.Name)
		}
		if entry.protected {
			return ChangeRecord{}, fmt.Errorf("%w: role %s/%s is built in", ErrProtectedEntry, change.Class, change.Name)
		}
		delete(r.roles, key)
	default:
		return ChangeRecord{}, fmt.Errorf("remove is not supported on axis %q", change.Axis)
	}

	return r.appendChangeLocked(ChangeKindRemove, BumpMajor, change), nil
}
