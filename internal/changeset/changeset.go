package changeset

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/invtrack/internal/store"
)

// ChangeSet is the set of edits made against one snapshot.
type ChangeSet struct {
	Snapshot string            `yaml:"snapshot,omitempty" json:"snapshot,omitempty"`
	Edited   map[int]store.Row `yaml:"edited,omitempty" json:"edited,omitempty"`
	Added    []store.Row       `yaml:"added,omitempty" json:"added,omitempty"`
	Deleted  []int             `yaml:"deleted,omitempty" json:"deleted,omitempty"`
}

// Empty reports whether the change-set contains no edits.
func (cs ChangeSet) Empty() bool {
	return len(cs.Edited) == 0 && len(cs.Added) == 0 && len(cs.Deleted) == 0
}

// document is the wire form. JSON object keys are always strings, so edited
// positions are decoded as strings and converted.
type document struct {
	Snapshot string               `yaml:"snapshot"`
	Edited   map[string]store.Row `yaml:"edited"`
	Added    []store.Row          `yaml:"added"`
	Deleted  []int                `yaml:"deleted"`
}

// Parse decodes a change-set document. JSON documents are accepted as YAML.
// Unknown top-level keys are rejected.
func Parse(data []byte) (ChangeSet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return ChangeSet{}, nil
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return ChangeSet{}, fmt.Errorf("parse change-set: %w", err)
	}

	cs := ChangeSet{Snapshot: doc.Snapshot, Added: doc.Added, Deleted: doc.Deleted}
	if len(doc.Edited) > 0 {
		cs.Edited = make(map[int]store.Row, len(doc.Edited))
	}
	for key, row := range doc.Edited {
		pos, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return ChangeSet{}, fmt.Errorf("parse change-set: edited position %q is not an integer", key)
		}
		if pos < 0 {
			return ChangeSet{}, fmt.Errorf("parse change-set: negative edited position %d", pos)
		}
		cs.Edited[pos] = row
	}
	for _, pos := range cs.Deleted {
		if pos < 0 {
			return ChangeSet{}, fmt.Errorf("parse change-set: negative deleted position %d", pos)
		}
	}
	return cs, nil
}
