// Package changeset turns the edits a user made against a positional
// snapshot into one store batch.
//
// A change-set refers to rows by their position in the snapshot it was made
// against: edited positions carry partial field maps, added rows carry field
// maps, and deleted positions name rows to remove. Reconcile resolves every
// position to a stored identifier through the snapshot, so the change-set
// itself never carries identifiers.
//
// When a position is both edited and deleted the delete wins and the edit is
// reported as superseded.
package changeset
