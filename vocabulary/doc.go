// Package vocabulary defines the closed canonical term sets of the bridge
// core: entity types, relations, traits, lifecycle statuses, role classes,
// and attribute value kinds.
//
// Everything that crosses the bridge boundary is ultimately expressed in
// these terms. Endpoint-native vocabulary (Flame layer indices, tracking
// system status names, NLE timeline terms) is translated into this closed
// set by the registry's per-endpoint mapping tables; nothing downstream of
// classification ever dispatches on a free-form string.
package vocabulary
