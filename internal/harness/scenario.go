package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/invtrack/internal/changeset"
	"github.com/roach88/invtrack/internal/store"
)

// Scenario is one inventory scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// ForeignKeys turns engine foreign key enforcement on or off. When off
	// the store cascades deletes itself. Defaults to on.
	ForeignKeys *bool `yaml:"foreign_keys,omitempty"`

	// Setup rows are inserted before the first step and must succeed.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Steps are commit cycles, run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the final tables.
	Assertions []Assertion `yaml:"assertions"`
}

// SetupStep inserts rows into one entity.
type SetupStep struct {
	Entity string      `yaml:"entity"`
	Rows   []store.Row `yaml:"rows"`
}

// Step commits a change-set against a snapshot of one entity.
type Step struct {
	// Commit names the entity.
	Commit string `yaml:"commit"`

	// Snapshot selects which snapshot the change-set was made against:
	// "current" (default) reads the table now; "previous" reuses the
	// snapshot of the entity's last step, which is stale if that step
	// committed anything.
	Snapshot string `yaml:"snapshot,omitempty"`

	// Changes is a change-set document.
	Changes yaml.Node `yaml:"changes"`

	// Expect checks the commit outcome. If nil, any outcome is accepted.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	Outcome string            `yaml:"outcome"`
	Kind    string            `yaml:"kind,omitempty"`
	Counts  *changeset.Counts `yaml:"counts,omitempty"`
}

// Assertion checks the final contents of one entity.
type Assertion struct {
	// Type is one of row_count, row, absent.
	Type   string `yaml:"type"`
	Entity string `yaml:"entity"`

	// Count is the expected number of rows (row_count).
	Count int `yaml:"count,omitempty"`

	// Where selects rows by field value; "id" matches the identifier (row, absent).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds field values the selected row must have (row).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount = "row_count"
	AssertRow      = "row"
	AssertAbsent   = "absent"
)

// Snapshot selectors.
const (
	SnapshotCurrent  = "current"
	SnapshotPrevious = "previous"
)

var validOutcomes = map[string]bool{
	store.OutcomeCommitted:  true,
	store.OutcomeStale:      true,
	store.OutcomeConstraint: true,
	store.OutcomeRejected:   true,
	store.OutcomeError:      true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.Steps) == 0 && len(s.Assertions) == 0 {
		return errors.New("at least one step or assertion is required")
	}

	for i, setup := range s.Setup {
		if setup.Entity == "" {
			return fmt.Errorf("setup[%d]: entity is required", i)
		}
	}

	for i, step := range s.Steps {
		if step.Commit == "" {
			return fmt.Errorf("steps[%d]: commit is required", i)
		}
		switch step.Snapshot {
		case "", SnapshotCurrent, SnapshotPrevious:
		default:
			return fmt.Errorf("steps[%d]: snapshot must be %q or %q", i, SnapshotCurrent, SnapshotPrevious)
		}
		if step.Expect != nil && !validOutcomes[step.Expect.Outcome] {
			return fmt.Errorf("steps[%d]: unknown outcome %q", i, step.Expect.Outcome)
		}
	}

	for i, a := range s.Assertions {
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required", i)
		}
		switch a.Type {
		case AssertRowCount:
		case AssertRow:
			if len(a.Where) == 0 {
				return fmt.Errorf("assertions[%d]: row requires where", i)
			}
		case AssertAbsent:
			if len(a.Where) == 0 {
				return fmt.Errorf("assertions[%d]: absent requires where", i)
			}
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
	}

	return nil
}

// changeSet decodes the step's change-set document.
func (s Step) changeSet() (changeset.ChangeSet, error) {
	if s.Changes.Kind == 0 {
		return changeset.ChangeSet{}, nil
	}
	data, err := yaml.Marshal(&s.Changes)
	if err != nil {
		return changeset.ChangeSet{}, fmt.Errorf("re-encode changes: %w", err)
	}
	return changeset.Parse(data)
}
