package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/invtrack/internal/store"
)

func TestParse_YAML(t *testing.T) {
	doc := `
snapshot: abc123
edited:
  1:
    quantity: 10
  0:
    description: shiny
added:
  - name: Gadget
deleted: [2, 2]
`
	cs, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "abc123", cs.Snapshot)
	assert.Equal(t, map[int]store.Row{
		1: {"quantity": 10},
		0: {"description": "shiny"},
	}, cs.Edited)
	assert.Equal(t, []store.Row{{"name": "Gadget"}}, cs.Added)
	assert.Equal(t, []int{2, 2}, cs.Deleted)
	assert.False(t, cs.Empty())
}

func TestParse_JSON(t *testing.T) {
	doc := `{"snapshot": "t", "edited": {"3": {"name": "x"}}, "deleted": [0]}`

	cs, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, map[int]store.Row{3: {"name": "x"}}, cs.Edited)
	assert.Equal(t, []int{0}, cs.Deleted)
	assert.Nil(t, cs.Added)
}

func TestParse_Empty(t *testing.T) {
	for _, doc := range []string{"", "  \n", "{}"} {
		cs, err := Parse([]byte(doc))
		require.NoError(t, err, "doc %q", doc)
		assert.True(t, cs.Empty(), "doc %q", doc)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "removed: [1]"},
		{"non-integer position", "edited:\n  first: {name: x}"},
		{"negative edited", "edited:\n  -1: {name: x}"},
		{"negative deleted", "deleted: [-2]"},
		{"malformed", "edited: [1, 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}
