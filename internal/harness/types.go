package harness

import (
	"github.com/roach88/invtrack/internal/changeset"
	"github.com/roach88/invtrack/internal/store"
)

// StepOutcome records what one step did.
type StepOutcome struct {
	Step    int              `json:"step"`
	Entity  string           `json:"entity"`
	Outcome string           `json:"outcome"`
	Kind    string           `json:"kind,omitempty"`
	Counts  changeset.Counts `json:"counts"`

	// Err is the commit error, if any. Not part of golden output: driver
	// messages differ between versions.
	Err error `json:"-"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	Steps []StepOutcome `json:"steps"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds every entity's final records, keyed by entity name.
	State map[string][]store.Record `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepOutcome{},
		Errors: []string{},
		State:  make(map[string][]store.Record),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
