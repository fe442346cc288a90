package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStateDefaults(t *testing.T) {
	st, err := ParseState([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultPhase, st.Phase)
	assert.Equal(t, []string{}, st.Queue)
	assert.Empty(t, st.Issue)
}

func TestParseStateFull(t *testing.T) {
	data := []byte(`
phase: planning
issue: GH-42
plan: docs/plan.md
tracking: in-progress
description: overhaul
queue:
  - step one
  - step two
custom_key:
  nested: true
`)
	st, err := ParseState(data)
	require.NoError(t, err)
	assert.Equal(t, "planning", st.Phase)
	assert.Equal(t, "GH-42", st.Issue)
	assert.Equal(t, "docs/plan.md", st.Plan)
	assert.Equal(t, "in-progress", st.Tracking)
	assert.Equal(t, "overhaul", st.Description)
	assert.Equal(t, []string{"step one", "step two"}, st.Queue)
	require.Contains(t, st.Extra, "custom_key")
}

func TestParseStateMalformed(t *testing.T) {
	_, err := ParseState([]byte(": [broken"))
	assert.Error(t, err)
}

// Parse(Marshal(state)) round-trips, ignoring field order.
func TestStateRoundTrip(t *testing.T) {
	orig := &State{
		Phase:       "review",
		Issue:       "GH-7",
		Plan:        "plan.md",
		Tracking:    "active",
		Description: "desc",
		Queue:       []string{"a", "b"},
		Extra:       map[string]any{"owner": "sam"},
	}

	data, err := orig.Marshal()
	require.NoError(t, err)
	parsed, err := ParseState(data)
	require.NoError(t, err)
	assert.Equal(t, orig, parsed)
}

func TestMarshalOmitsEmptyOptionals(t *testing.T) {
	st := &State{Phase: "discussion", Queue: []string{}}
	data, err := st.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "issue")
	assert.NotContains(t, string(data), "tracking")
}

func TestDiffScalarFields(t *testing.T) {
	prev := &State{Phase: "discussion", Issue: "GH-1", Queue: []string{}}
	next := &State{Phase: "planning", Issue: "GH-1", Tracking: "started", Queue: []string{}}

	changes := next.Diff(prev)
	require.Len(t, changes, 2)
	assert.Equal(t, Change{Field: FieldPhase, From: "discussion", To: "planning"}, changes[0])
	assert.Equal(t, Change{Field: FieldTracking, From: "", To: "started"}, changes[1])
}

func TestDiffPhaseChangeOnly(t *testing.T) {
	prev := &State{Phase: "discussion", Queue: []string{}}
	next := &State{Phase: "planning", Queue: []string{}}

	changes := next.Diff(prev)
	require.Len(t, changes, 1, "exactly one change event")
	assert.Equal(t, FieldPhase, changes[0].Field)
	assert.Equal(t, "planning", changes[0].To)
}

func TestDiffQueueSetDifferences(t *testing.T) {
	prev := &State{Phase: "planning", Queue: []string{"b", "a", "c"}}
	next := &State{Phase: "planning", Queue: []string{"c", "d", "e"}}

	changes := next.Diff(prev)
	require.Len(t, changes, 1)
	ch := changes[0]
	assert.Equal(t, FieldQueue, ch.Field)
	assert.Equal(t, []string{"b", "a", "c"}, ch.FromQueue)
	assert.Equal(t, []string{"c", "d", "e"}, ch.ToQueue)
	assert.Equal(t, []string{"d", "e"}, ch.Added)
	assert.Equal(t, []string{"a", "b"}, ch.Removed)
}

func TestDiffQueueReorderIsChangeWithoutMembershipDelta(t *testing.T) {
	prev := &State{Phase: "planning", Queue: []string{"a", "b"}}
	next := &State{Phase: "planning", Queue: []string{"b", "a"}}

	changes := next.Diff(prev)
	require.Len(t, changes, 1)
	assert.Empty(t, changes[0].Added)
	assert.Empty(t, changes[0].Removed)
}

func TestDiffIgnoresPlan(t *testing.T) {
	prev := &State{Phase: "planning", Plan: "old.md", Queue: []string{}}
	next := &State{Phase: "planning", Plan: "new.md", Queue: []string{}}
	assert.Empty(t, next.Diff(prev))
}

func TestDiffAgainstNilUsesDefaults(t *testing.T) {
	next := &State{Phase: DefaultPhase, Issue: "GH-9", Queue: []string{}}
	changes := next.Diff(nil)
	require.Len(t, changes, 1)
	assert.Equal(t, FieldIssue, changes[0].Field)
}

func TestParsePhase(t *testing.T) {
	tests := []struct {
		entry string
		want  Phase
	}{
		{"discussion", Phase{Name: "discussion"}},
		{"*planning", Phase{Name: "planning", EntryConsent: true}},
		{"review*", Phase{Name: "review", ExitConsent: true}},
		{"*deploy*", Phase{Name: "deploy", EntryConsent: true, ExitConsent: true}},
		{"  spaced  ", Phase{Name: "spaced"}},
	}
	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePhase(tt.entry))
		})
	}
}

func TestPhaseList(t *testing.T) {
	pl := ParsePhaseList([]string{"discussion", "*planning", "review*", "done", ""})
	require.Len(t, pl, 4)

	assert.Equal(t, 1, pl.Index("planning"))
	assert.Equal(t, -1, pl.Index("missing"))

	next, ok := pl.Next("planning")
	require.True(t, ok)
	assert.Equal(t, "review", next.Name)

	_, ok = pl.Next("done")
	assert.False(t, ok)

	assert.True(t, pl.NeedsConsent("discussion", "planning"), "entry consent on target")
	assert.True(t, pl.NeedsConsent("review", "done"), "exit consent on source")
	assert.False(t, pl.NeedsConsent("planning", "review"))
	assert.False(t, pl.NeedsConsent("done", "discussion"))
}
