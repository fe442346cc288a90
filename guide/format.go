package guide

import "strings"

// Doc is one rendered document ready for formatting.
type Doc struct {
	Name string
	Body string
}

// FormatBase concatenates document bodies with newlines.
func FormatBase(docs []Doc) string {
	bodies := make([]string, 0, len(docs))
	for _, d := range docs {
		bodies = append(bodies, d.Body)
	}
	return strings.Join(bodies, "\n")
}

// FormatPlain returns a single document verbatim; multiple documents are
// separated by "--- name ---" headers.
func FormatPlain(docs []Doc) string {
	switch len(docs) {
	case 0:
		return ""
	case 1:
		return docs[0].Body
	}
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("--- ")
		b.WriteString(d.Name)
		b.WriteString(" ---\n")
		b.WriteString(d.Body)
	}
	return b.String()
}
