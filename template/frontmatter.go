// Package template implements the guidance rendering pipeline: frontmatter
// parsing with requires-gates, mustache-dialect rendering with confined
// partials, layered context, and instruction composition.
package template

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RequiresPrefix marks frontmatter keys that gate a template on a flag.
const RequiresPrefix = "requires-"

// Frontmatter is the structured header of a template file. Unknown keys are
// preserved verbatim.
type Frontmatter map[string]any

// ParseFrontmatter strips an optional "---"-delimited YAML header from content.
// It returns the frontmatter (empty when absent), the byte length of the
// header including both fences, and the remaining body. A fenced but
// malformed header is an error.
func ParseFrontmatter(content string) (Frontmatter, int, string, error) {
	const fence = "---"

	if !strings.HasPrefix(content, fence+"\n") && !strings.HasPrefix(content, fence+"\r\n") {
		return Frontmatter{}, 0, content, nil
	}

	start := len(fence)
	if content[start] == '\r' {
		start++
	}
	start++ // consume the newline

	var yamlContent string
	var headerEnd int
	if strings.HasPrefix(content[start:], fence+"\n") || strings.HasPrefix(content[start:], fence+"\r\n") || content[start:] == fence {
		// Empty header: the closing fence immediately follows the opening one.
		headerEnd = start + len(fence)
	} else {
		closeIdx := strings.Index(content[start:], "\n"+fence)
		if closeIdx == -1 {
			return nil, 0, "", fmt.Errorf("frontmatter: no closing delimiter")
		}
		yamlContent = content[start : start+closeIdx]
		headerEnd = start + closeIdx + 1 + len(fence)
	}
	// Consume the line break after the closing fence.
	rest := content[headerEnd:]
	if strings.HasPrefix(rest, "\r\n") {
		headerEnd += 2
	} else if strings.HasPrefix(rest, "\n") {
		headerEnd++
	}

	fm := Frontmatter{}
	if err := yaml.Unmarshal([]byte(yamlContent), &fm); err != nil {
		return nil, 0, "", fmt.Errorf("frontmatter: parse YAML: %w", err)
	}
	if fm == nil {
		fm = Frontmatter{}
	}
	return fm, headerEnd, content[headerEnd:], nil
}

// Has reports whether the key is present.
func (fm Frontmatter) Has(key string) bool {
	_, ok := fm[key]
	return ok
}

// String returns the lowercased, trimmed string value for key, or "" when the
// key is absent or not a string.
func (fm Frontmatter) String(key string) string {
	return strings.ToLower(strings.TrimSpace(fm.Text(key)))
}

// Text returns the raw string value for key, or "" when absent or non-string.
func (fm Frontmatter) Text(key string) string {
	if s, ok := fm[key].(string); ok {
		return s
	}
	return ""
}

// List returns the value for key as a string slice. Scalars become a
// one-element list; non-string elements are skipped.
func (fm Frontmatter) List(key string) []string {
	switch v := fm[key].(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Dict returns the value for key as a string map. Non-string values are
// rendered with fmt.
func (fm Frontmatter) Dict(key string) map[string]string {
	m, ok := fm[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

// Bool returns the boolean value for key; absent or non-bool is false.
func (fm Frontmatter) Bool(key string) bool {
	b, ok := fm[key].(bool)
	return ok && b
}

// Requirements returns the requires-<flag> directives as flag-name → required
// value.
func (fm Frontmatter) Requirements() map[string]any {
	reqs := map[string]any{}
	for key, v := range fm {
		if flag, ok := strings.CutPrefix(key, RequiresPrefix); ok && flag != "" {
			reqs[flag] = v
		}
	}
	return reqs
}

// Variables returns the frontmatter as a context layer: every key except
// includes and the requires-* directives.
func (fm Frontmatter) Variables() map[string]any {
	vars := make(map[string]any, len(fm))
	for key, v := range fm {
		if key == "includes" || strings.HasPrefix(key, RequiresPrefix) {
			continue
		}
		vars[key] = v
	}
	return vars
}

// FlagResolver resolves a flag name to its value in the resolved view.
type FlagResolver func(name string) (any, bool)

// Satisfied evaluates every requires directive against the resolver. It
// returns false (and the first unmet flag name) when any directive fails.
func (fm Frontmatter) Satisfied(resolve FlagResolver) (bool, string) {
	for flag, required := range fm.Requirements() {
		actual, ok := resolve(flag)
		if !ok {
			actual = nil
		}
		if !CheckRequirement(required, actual) {
			return false, flag
		}
	}
	return true, ""
}

// CheckRequirement implements the requires-gate rules:
//   - boolean requirement: truthiness of actual must equal it;
//   - sequence requirement: any element present in actual (scalar membership,
//     list intersection, or mapping-key membership);
//   - otherwise: equality.
func CheckRequirement(required, actual any) bool {
	switch req := required.(type) {
	case bool:
		return truthy(actual) == req
	case []any:
		return anyElementPresent(toStrings(req), actual)
	case []string:
		return anyElementPresent(req, actual)
	default:
		return looseEqual(required, actual)
	}
}

func anyElementPresent(required []string, actual any) bool {
	switch act := actual.(type) {
	case nil:
		return false
	case string:
		for _, r := range required {
			if r == act {
				return true
			}
		}
	case []any:
		return intersects(required, toStrings(act))
	case []string:
		return intersects(required, act)
	case map[string]any:
		for _, r := range required {
			if _, ok := act[r]; ok {
				return true
			}
		}
	case map[string]string:
		for _, r := range required {
			if _, ok := act[r]; ok {
				return true
			}
		}
	default:
		for _, r := range required {
			if r == fmt.Sprintf("%v", act) {
				return true
			}
		}
	}
	return false
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	for _, s := range a {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

func toStrings(in []any) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		if s, ok := e.(string); ok {
			out = append(out, s)
		} else {
			out = append(out, fmt.Sprintf("%v", e))
		}
	}
	return out
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func truthy(v any) bool {
	switch tv := v.(type) {
	case nil:
		return false
	case bool:
		return tv
	case string:
		return tv != "" && tv != "false"
	case []any:
		return len(tv) > 0
	case []string:
		return len(tv) > 0
	case map[string]any:
		return len(tv) > 0
	case map[string]string:
		return len(tv) > 0
	default:
		return true
	}
}
