// Package workflow models the project workflow-state file: parsing,
// serialization, and field-level diffing used by the monitor task.
package workflow

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultPhase is assumed when the state file names no phase.
const DefaultPhase = "discussion"

// State is the parsed workflow-state document. Keys outside the known set are
// preserved in Extra and round-trip through Marshal.
type State struct {
	Phase       string
	Issue       string
	Plan        string
	Tracking    string
	Description string
	Queue       []string
	Extra       map[string]any
}

var knownStateKeys = map[string]bool{
	"phase": true, "issue": true, "plan": true,
	"tracking": true, "description": true, "queue": true,
}

// ParseState decodes workflow-state YAML. A missing phase defaults to
// DefaultPhase and a missing queue to an empty list.
func ParseState(data []byte) (*State, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("workflow state: parse YAML: %w", err)
	}

	st := &State{Phase: DefaultPhase, Queue: []string{}}
	for key, v := range raw {
		switch key {
		case "phase":
			if s := asString(v); s != "" {
				st.Phase = s
			}
		case "issue":
			st.Issue = asString(v)
		case "plan":
			st.Plan = asString(v)
		case "tracking":
			st.Tracking = asString(v)
		case "description":
			st.Description = asString(v)
		case "queue":
			st.Queue = asStringList(v)
		default:
			if st.Extra == nil {
				st.Extra = map[string]any{}
			}
			st.Extra[key] = v
		}
	}
	return st, nil
}

// Marshal serializes the state back to YAML, preserving extra keys. Optional
// fields are omitted when empty.
func (s *State) Marshal() ([]byte, error) {
	doc := map[string]any{
		"phase": s.Phase,
		"queue": s.Queue,
	}
	if s.Issue != "" {
		doc["issue"] = s.Issue
	}
	if s.Plan != "" {
		doc["plan"] = s.Plan
	}
	if s.Tracking != "" {
		doc["tracking"] = s.Tracking
	}
	if s.Description != "" {
		doc["description"] = s.Description
	}
	for key, v := range s.Extra {
		if !knownStateKeys[key] {
			doc[key] = v
		}
	}
	return yaml.Marshal(doc)
}

// ChangeField identifies which state field a Change describes.
type ChangeField string

const (
	FieldPhase       ChangeField = "phase"
	FieldIssue       ChangeField = "issue"
	FieldTracking    ChangeField = "tracking"
	FieldDescription ChangeField = "description"
	FieldQueue       ChangeField = "queue"
)

// Change is one field-level difference between two states. Queue changes also
// carry the sorted added/removed set differences.
type Change struct {
	Field     ChangeField
	From      string
	To        string
	FromQueue []string
	ToQueue   []string
	Added     []string
	Removed   []string
}

// Diff compares s against prev and returns one Change per modified field.
// A nil prev diffs against the zero state. The plan path is tracked for
// round-tripping but intentionally not diffed.
func (s *State) Diff(prev *State) []Change {
	if prev == nil {
		prev = &State{Phase: DefaultPhase}
	}

	var changes []Change
	scalar := func(field ChangeField, from, to string) {
		if from != to {
			changes = append(changes, Change{Field: field, From: from, To: to})
		}
	}
	scalar(FieldPhase, prev.Phase, s.Phase)
	scalar(FieldIssue, prev.Issue, s.Issue)
	scalar(FieldTracking, prev.Tracking, s.Tracking)
	scalar(FieldDescription, prev.Description, s.Description)

	if !equalStrings(prev.Queue, s.Queue) {
		changes = append(changes, Change{
			Field:     FieldQueue,
			FromQueue: prev.Queue,
			ToQueue:   s.Queue,
			Added:     sortedDifference(s.Queue, prev.Queue),
			Removed:   sortedDifference(prev.Queue, s.Queue),
		})
	}
	return changes
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sortedDifference returns the elements of a absent from b, sorted.
func sortedDifference(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}
	var out []string
	seen := map[string]bool{}
	for _, s := range a {
		if !in[s] && !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	sort.Strings(out)
	return out
}

func asString(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	default:
		return fmt.Sprintf("%v", tv)
	}
}

func asStringList(v any) []string {
	switch tv := v.(type) {
	case nil:
		return []string{}
	case []string:
		return tv
	case []any:
		out := make([]string, 0, len(tv))
		for _, e := range tv {
			out = append(out, asString(e))
		}
		return out
	default:
		return []string{}
	}
}
