package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/invtrack/internal/changeset"
	"github.com/roach88/invtrack/internal/entity"
	"github.com/roach88/invtrack/internal/store"
	"github.com/roach88/invtrack/internal/testutil"
)

// Harness runs one scenario against its own store.
type Harness struct {
	store  *store.Store
	ids    *testutil.SequenceGenerator
	logger *slog.Logger

	// previous holds, per entity, the snapshot the entity's last step was
	// made against.
	previous map[string]store.Snapshot
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
// 1. Create the tables (no sample rows)
// 2. Insert setup rows
// 3. Commit each step's change-set and check its expect clause
// 4. Read every table and evaluate assertions
//
// A returned error means the scenario could not run (bad setup, unreadable
// change-set); failed expectations are reported in Result.
func Run(scenario *Scenario) (*Result, error) {
	catalog, err := entity.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return RunWithCatalog(scenario, catalog)
}

// RunWithCatalog executes a scenario against a custom entity catalog.
func RunWithCatalog(scenario *Scenario, catalog *entity.Catalog) (*Result, error) {
	fk := true
	if scenario.ForeignKeys != nil {
		fk = *scenario.ForeignKeys
	}

	h := &Harness{
		ids:      testutil.NewSequenceGenerator("row"),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		previous: make(map[string]store.Snapshot),
	}

	st, err := store.Open(":memory:", catalog,
		store.WithIDGenerator(h.ids),
		store.WithLogger(h.logger),
		store.WithSeed(false),
		store.WithForeignKeys(fk),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	ctx := context.Background()
	if err := st.EnsureAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	for _, e := range catalog.Entities() {
		snap, err := st.FetchAll(ctx, e.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read final state: %w", err)
		}
		result.State[e.Name] = snap.Records
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) executeSetup(ctx context.Context, setup []SetupStep) error {
	for i, step := range setup {
		res, err := h.store.Insert(ctx, step.Entity, step.Rows)
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Entity, err)
		}
		h.logger.Info("setup step completed", "step", i, "entity", step.Entity, "rows", res.Inserted)
	}
	return nil
}

func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		cs, err := step.changeSet()
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		current, err := h.store.FetchAll(ctx, step.Commit)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		snap := current
		if step.Snapshot == SnapshotPrevious {
			prev, ok := h.previous[step.Commit]
			if !ok {
				return fmt.Errorf("step %d: no previous snapshot of %s", i, step.Commit)
			}
			snap = prev
		}
		h.previous[step.Commit] = snap

		counts, err := changeset.Commit(ctx, h.store, snap, cs, changeset.WithLogger(h.logger))
		out := StepOutcome{
			Step:    i,
			Entity:  step.Commit,
			Outcome: classify(err),
			Kind:    constraintKind(err),
			Counts:  counts,
			Err:     err,
		}
		result.Steps = append(result.Steps, out)

		if msg := checkExpect(out, step.Expect); msg != "" {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Commit, msg))
		}

		h.logger.Info("step completed", "step", i, "entity", step.Commit, "outcome", out.Outcome)
	}
	return nil
}

// classify maps a commit error to the outcome names used by the store's
// metrics.
func classify(err error) string {
	switch {
	case err == nil:
		return store.OutcomeCommitted
	case store.IsStaleSnapshot(err):
		return store.OutcomeStale
	case store.IsConstraintViolation(err):
		return store.OutcomeConstraint
	case store.IsFieldError(err):
		return store.OutcomeRejected
	default:
		return store.OutcomeError
	}
}

func constraintKind(err error) string {
	var cv *store.ConstraintViolation
	if errors.As(err, &cv) {
		return string(cv.Kind)
	}
	return ""
}

func checkExpect(out StepOutcome, expect *Expect) string {
	if expect == nil {
		return ""
	}
	if out.Outcome != expect.Outcome {
		if out.Err != nil {
			return fmt.Sprintf("expected outcome %s, got %s: %v", expect.Outcome, out.Outcome, out.Err)
		}
		return fmt.Sprintf("expected outcome %s, got %s", expect.Outcome, out.Outcome)
	}
	if expect.Kind != "" && out.Kind != expect.Kind {
		return fmt.Sprintf("expected constraint kind %s, got %q", expect.Kind, out.Kind)
	}
	if expect.Counts != nil && *expect.Counts != out.Counts {
		return fmt.Sprintf("expected counts %+v, got %+v", *expect.Counts, out.Counts)
	}
	return ""
}
