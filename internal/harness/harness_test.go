package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/invtrack/internal/changeset"
	"github.com/roach88/invtrack/internal/store"
)

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
			assert.Len(t, result.Steps, len(scenario.Steps))
		})
	}
}

func TestRun_ReportsUnexpectedOutcome(t *testing.T) {
	scenario := &Scenario{
		Name: "wrong_expectation",
		Setup: []SetupStep{
			{Entity: "products", Rows: []store.Row{{"name": "Widget"}}},
		},
		Steps: []Step{
			{
				Commit:  "products",
				Changes: mustNode(t, "added:\n  - {name: Widget}\n"),
				Expect:  &Expect{Outcome: store.OutcomeCommitted},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected outcome committed, got constraint_violation")
	assert.Equal(t, "unique", result.Steps[0].Kind)
}

func TestRun_ReportsWrongCounts(t *testing.T) {
	scenario := &Scenario{
		Name: "wrong_counts",
		Steps: []Step{
			{
				Commit:  "products",
				Changes: mustNode(t, "added:\n  - {name: A}\n"),
				Expect: &Expect{
					Outcome: store.OutcomeCommitted,
					Counts:  &changeset.Counts{Added: 2},
				},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected counts")
}

func TestRun_SetupFailure(t *testing.T) {
	scenario := &Scenario{
		Name: "bad_setup",
		Setup: []SetupStep{
			{Entity: "inventory", Rows: []store.Row{{"warehouse_name": "none", "product_name": "none"}}},
		},
		Assertions: []Assertion{{Type: AssertRowCount, Entity: "inventory"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute setup")
}

func TestRun_PreviousSnapshotRequiresEarlierStep(t *testing.T) {
	scenario := &Scenario{
		Name: "no_previous",
		Steps: []Step{
			{Commit: "products", Snapshot: SnapshotPrevious, Changes: mustNode(t, "deleted: [0]\n")},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no previous snapshot")
}

func TestRun_DeterministicIDs(t *testing.T) {
	scenario := &Scenario{
		Name: "ids",
		Setup: []SetupStep{
			{Entity: "products", Rows: []store.Row{{"name": "A"}, {"name": "B"}}},
		},
		Assertions: []Assertion{{Type: AssertRowCount, Entity: "products", Count: 2}},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.State, second.State)
	assert.Equal(t, "row-0001", first.State["products"][0].ID)
	assert.Equal(t, "row-0002", first.State["products"][1].ID)
}
