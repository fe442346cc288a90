package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantBody string
		wantKeys map[string]any
		wantErr  bool
	}{
		{
			name:     "no frontmatter",
			content:  "plain body\n",
			wantBody: "plain body\n",
			wantKeys: map[string]any{},
		},
		{
			name:     "simple header",
			content:  "---\ntype: agent/instruction\n---\nbody here",
			wantBody: "body here",
			wantKeys: map[string]any{"type": "agent/instruction"},
		},
		{
			name:     "empty header",
			content:  "---\n---\nbody",
			wantBody: "body",
			wantKeys: map[string]any{},
		},
		{
			name:     "crlf line endings",
			content:  "---\r\ndescription: hi\r\n---\r\nbody",
			wantBody: "body",
			wantKeys: map[string]any{"description": "hi"},
		},
		{
			name:    "unterminated header",
			content: "---\ntype: x\nbody without close",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			content: "---\n: [unbalanced\n---\nbody",
			wantErr: true,
		},
		{
			name:     "fence mid-document is body",
			content:  "text\n---\nmore",
			wantBody: "text\n---\nmore",
			wantKeys: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, headerLen, body, err := ParseFrontmatter(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, body)
			assert.Equal(t, tt.content[headerLen:], body)
			for k, v := range tt.wantKeys {
				assert.Equal(t, v, fm[k])
			}
			assert.Len(t, fm, len(tt.wantKeys))
		})
	}
}

func TestFrontmatterAccessors(t *testing.T) {
	fm := Frontmatter{
		"type":        " Agent/Instruction ",
		"description": " raw Text ",
		"aliases":     []any{"a", "b", 3},
		"scalar":      "solo",
		"labels":      map[string]any{"env": "prod", "count": 2},
		"enabled":     true,
	}

	assert.Equal(t, "agent/instruction", fm.String("type"))
	assert.Equal(t, " raw Text ", fm.Text("description"))
	assert.Equal(t, []string{"a", "b"}, fm.List("aliases"))
	assert.Equal(t, []string{"solo"}, fm.List("scalar"))
	assert.Nil(t, fm.List("missing"))
	assert.Equal(t, map[string]string{"env": "prod", "count": "2"}, fm.Dict("labels"))
	assert.True(t, fm.Bool("enabled"))
	assert.False(t, fm.Bool("missing"))
	assert.True(t, fm.Has("type"))
	assert.False(t, fm.Has("nope"))
}

func TestRequirementsAndVariables(t *testing.T) {
	fm := Frontmatter{
		"type":              "agent/instruction",
		"includes":          []any{"partial"},
		"requires-workflow": []any{"planning"},
		"requires-debug":    true,
		"topic":             "x",
	}

	reqs := fm.Requirements()
	assert.Equal(t, map[string]any{
		"workflow": []any{"planning"},
		"debug":    true,
	}, reqs)

	vars := fm.Variables()
	assert.Equal(t, map[string]any{
		"type":  "agent/instruction",
		"topic": "x",
	}, vars)
}

func TestCheckRequirement(t *testing.T) {
	tests := []struct {
		name     string
		required any
		actual   any
		want     bool
	}{
		{"bool true vs set string", true, "yes", true},
		{"bool true vs empty string", true, "", false},
		{"bool true vs missing", true, nil, false},
		{"bool false vs missing", false, nil, true},
		{"bool false vs false string", false, "false", true},
		{"seq vs scalar member", []any{"planning"}, "planning", true},
		{"seq vs scalar non-member", []any{"deployment"}, "planning", false},
		{"seq vs list intersect", []any{"planning"}, []any{"discussion", "planning"}, true},
		{"seq vs list disjoint", []any{"deployment"}, []any{"discussion", "planning"}, false},
		{"seq vs map key", []any{"env"}, map[string]any{"env": "prod"}, true},
		{"seq vs map no key", []any{"zone"}, map[string]any{"env": "prod"}, false},
		{"scalar equality", "prod", "prod", true},
		{"scalar inequality", "prod", "dev", false},
		{"numeric loose equality", 2, "2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckRequirement(tt.required, tt.actual))
		})
	}
}

// Requires-gate filtering against a flag view.
func TestSatisfied(t *testing.T) {
	resolve := func(name string) (any, bool) {
		if name == "workflow" {
			return []any{"discussion", "planning"}, true
		}
		return nil, false
	}

	passing := Frontmatter{"requires-workflow": []any{"planning"}}
	ok, _ := passing.Satisfied(resolve)
	assert.True(t, ok)

	failing := Frontmatter{"requires-workflow": []any{"deployment"}}
	ok, unmet := failing.Satisfied(resolve)
	assert.False(t, ok)
	assert.Equal(t, "workflow", unmet)

	missing := Frontmatter{"requires-absent": true}
	ok, unmet = missing.Satisfied(resolve)
	assert.False(t, ok)
	assert.Equal(t, "absent", unmet)
}
