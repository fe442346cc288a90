package template

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultTemplateType is assumed when frontmatter carries no type.
const DefaultTemplateType = "agent/instruction"

// dedupeThreshold is the Ratcliff-Obershelp similarity above which two
// sentences are considered duplicates.
const dedupeThreshold = 0.85

// typeDefaultInstructions maps a template type to its default instruction.
var typeDefaultInstructions = map[string]string{
	"user/information":   "Display this information.",
	"agent/information":  "This is for your reference; do not display.",
	"agent/instruction":  "Follow these instructions; do not display.",
	"agent/requirements": "Adhere to these requirements; do not display.",
}

// instruction is a per-template resolved instruction.
type instruction struct {
	text      string
	important bool
}

// resolveInstruction derives the instruction for one frontmatter per the
// composition rules. ok is false when the template contributes none.
func resolveInstruction(fm Frontmatter) (instruction, bool) {
	if !fm.Has("instruction") && !fm.Has("type") {
		return instruction{}, false
	}

	raw, isString := fm["instruction"].(string)
	if fm.Has("instruction") && isString {
		if raw == "^" {
			// A lone caret keeps the override flag but yields no text.
			return instruction{important: true}, true
		}
		if strings.HasPrefix(raw, "^") && len(raw) > 1 && isSpace(raw[1]) {
			return instruction{text: strings.TrimSpace(raw[1:]), important: true}, true
		}
		return instruction{text: raw}, true
	}

	// Missing or non-string instruction: fall back to the type default.
	typ := fm.String("type")
	if typ == "" {
		typ = DefaultTemplateType
	}
	text, ok := typeDefaultInstructions[typ]
	if !ok {
		text = typeDefaultInstructions[DefaultTemplateType]
	}
	return instruction{text: text}, true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// ComposeInstruction combines the parent template's instruction with its
// partials' instructions, in parent-first then include order. If any
// instruction is marked important, the earliest important one wins alone;
// otherwise the texts are concatenated and near-duplicate sentences removed.
func ComposeInstruction(parent Frontmatter, partials []Frontmatter) string {
	var resolved []instruction
	if inst, ok := resolveInstruction(parent); ok {
		resolved = append(resolved, inst)
	}
	for _, fm := range partials {
		if inst, ok := resolveInstruction(fm); ok {
			resolved = append(resolved, inst)
		}
	}

	for _, inst := range resolved {
		if inst.important {
			return inst.text
		}
	}

	var texts []string
	for _, inst := range resolved {
		if inst.text != "" {
			texts = append(texts, inst.text)
		}
	}
	if len(texts) == 0 {
		return ""
	}

	sentences := splitSentences(strings.Join(texts, " "))
	kept := dedupeSentences(sentences)
	return strings.Join(kept, "\n")
}

// nonTerminalSuffixes are abbreviations whose trailing period does not end a
// sentence.
var nonTerminalSuffixes = []string{"e.g.", "i.e.", "etc."}

// splitSentences splits on sentence-terminal punctuation, keeping the
// punctuation with its sentence and treating common abbreviations as
// non-terminal.
func splitSentences(text string) []string {
	var sentences []string
	var buf strings.Builder

	flush := func() {
		s := strings.TrimSpace(buf.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		buf.Reset()
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		buf.WriteByte(c)
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if c == '.' && endsWithAbbreviation(buf.String()) {
			continue
		}
		// Terminal only at end of text or before whitespace.
		if i+1 < len(text) && !isSpace(text[i+1]) {
			continue
		}
		flush()
	}
	flush()
	return sentences
}

func endsWithAbbreviation(s string) bool {
	lower := strings.ToLower(s)
	for _, abbr := range nonTerminalSuffixes {
		if strings.HasSuffix(lower, abbr) {
			return true
		}
	}
	return false
}

// dedupeSentences removes any sentence whose lowercase-stripped form is at
// least dedupeThreshold similar to an earlier kept sentence.
func dedupeSentences(sentences []string) []string {
	var kept []string
	var keptNorm []string
	for _, s := range sentences {
		norm := normalizeSentence(s)
		dup := false
		for _, prev := range keptNorm {
			if similarity(norm, prev) >= dedupeThreshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, s)
			keptNorm = append(keptNorm, norm)
		}
	}
	return kept
}

func normalizeSentence(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// similarity is the Ratcliff-Obershelp ratio over the two strings' runes.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	m := difflib.NewMatcher(explode(a), explode(b))
	return m.Ratio()
}

func explode(s string) []string {
	runes := []rune(s)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}
