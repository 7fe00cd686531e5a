// Package entity declares the tables of the inventory tracker.
//
// The declarations live in catalog.cue, embedded in the binary and compiled
// with the CUE Go API into Entity values. Nothing else in the module writes
// table or column names by hand: the store generates every statement from
// these declarations, and the presentation contract handed to the editing
// surface is derived from the same fields.
//
// # Catalog rules
//
//   - Each entity has exactly one identifier field. It is filled by the store
//     and is never editable.
//   - A reference field points at a unique field of another entity and
//     deletes cascade by default.
//   - References may not form a cycle; Catalog.Entities returns parents
//     before the entities that reference them.
package entity
