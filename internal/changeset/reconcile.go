package changeset

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/invtrack/internal/store"
)

// Counts is the number of positions a change-set touched.
type Counts struct {
	Edited  int `json:"edited"`
	Added   int `json:"added"`
	Deleted int `json:"deleted"`
}

// Messages returns one feedback line per non-zero count.
func (c Counts) Messages() []string {
	var msgs []string
	if c.Edited > 0 {
		msgs = append(msgs, fmt.Sprintf("Edited %d row(s)", c.Edited))
	}
	if c.Added > 0 {
		msgs = append(msgs, fmt.Sprintf("Added %d row(s)", c.Added))
	}
	if c.Deleted > 0 {
		msgs = append(msgs, fmt.Sprintf("Deleted %d row(s)", c.Deleted))
	}
	return msgs
}

// Plan is a reconciled change-set.
type Plan struct {
	Batch  store.Batch
	Counts Counts

	// Superseded lists edited positions dropped because the same position
	// was deleted.
	Superseded []int

	// Unchanged lists edited positions dropped because they carry no fields.
	Unchanged []int
}

// Reconcile resolves a change-set against the snapshot it was made from.
//
// A change-set whose snapshot token differs from snap.Token, or that names a
// position outside the snapshot, was made against another snapshot and is
// rejected with *store.StaleSnapshotError. An empty token skips the check.
func Reconcile(snap store.Snapshot, cs ChangeSet) (Plan, error) {
	if cs.Snapshot != "" && cs.Snapshot != snap.Token {
		return Plan{}, &store.StaleSnapshotError{
			Entity:   snap.Entity,
			Expected: cs.Snapshot,
			Actual:   snap.Token,
		}
	}

	deleted := slices.Clone(cs.Deleted)
	slices.Sort(deleted)
	deleted = slices.Compact(deleted)

	var plan Plan
	for _, pos := range deleted {
		rec, err := resolve(snap, pos)
		if err != nil {
			return Plan{}, err
		}
		plan.Batch.Deletes = append(plan.Batch.Deletes, rec.ID)
	}

	edited := make([]int, 0, len(cs.Edited))
	for pos := range cs.Edited {
		edited = append(edited, pos)
	}
	slices.Sort(edited)

	for _, pos := range edited {
		rec, err := resolve(snap, pos)
		if err != nil {
			return Plan{}, err
		}
		if _, ok := slices.BinarySearch(deleted, pos); ok {
			plan.Superseded = append(plan.Superseded, pos)
			continue
		}
		if len(cs.Edited[pos]) == 0 {
			plan.Unchanged = append(plan.Unchanged, pos)
			continue
		}
		plan.Batch.Updates = append(plan.Batch.Updates, store.Update{ID: rec.ID, Values: cs.Edited[pos]})
	}

	plan.Batch.Inserts = cs.Added

	plan.Counts = Counts{
		Edited:  len(plan.Batch.Updates),
		Added:   len(plan.Batch.Inserts),
		Deleted: len(plan.Batch.Deletes),
	}
	return plan, nil
}

func resolve(snap store.Snapshot, pos int) (store.Record, error) {
	rec, ok := snap.At(pos)
	if !ok {
		return store.Record{}, &store.StaleSnapshotError{
			Entity:   snap.Entity,
			Expected: snap.Token,
			Actual:   snap.Token,
			Reason:   fmt.Sprintf("position %d outside snapshot of %d row(s)", pos, snap.Len()),
		}
	}
	return rec, nil
}

// Applier applies one batch atomically, guarded by a snapshot token.
// *store.Store implements it.
type Applier interface {
	Apply(ctx context.Context, entity, token string, b store.Batch) (store.Result, error)
}

// Option configures Commit.
type Option func(*commitConfig)

type commitConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger for commit cycle events. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *commitConfig) { c.logger = l }
}

// Commit reconciles cs against snap and applies the result in a single
// transaction guarded by the snapshot token. On any error nothing is applied
// and snap is still valid for a retry.
//
// An empty change-set returns zero counts without touching the store.
func Commit(ctx context.Context, a Applier, snap store.Snapshot, cs ChangeSet, opts ...Option) (Counts, error) {
	cfg := commitConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger

	if cs.Empty() {
		return Counts{}, nil
	}

	plan, err := Reconcile(snap, cs)
	if err != nil {
		return Counts{}, err
	}
	if len(plan.Superseded) > 0 {
		logger.Debug("edits superseded by delete", "entity", snap.Entity, "positions", plan.Superseded)
	}
	if len(plan.Unchanged) > 0 {
		logger.Debug("edits without fields dropped", "entity", snap.Entity, "positions", plan.Unchanged)
	}

	res, err := a.Apply(ctx, snap.Entity, snap.Token, plan.Batch)
	if err != nil {
		return Counts{}, fmt.Errorf("commit %s: %w", snap.Entity, err)
	}
	if res.Missing > 0 {
		logger.Warn("edited rows no longer exist", "entity", snap.Entity, "missing", res.Missing)
	}

	// Updates the store skipped wrote nothing, e.g. an edit holding only the identifier.
	counts := plan.Counts
	counts.Edited -= res.Skipped

	logger.Info("change-set committed", "entity", snap.Entity,
		"edited", counts.Edited, "added", counts.Added, "deleted", counts.Deleted)
	return counts, nil
}
