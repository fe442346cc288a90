// Package guide organizes documentation into categories and collections,
// resolves guide:// URIs, and formats rendered documents for delivery.
package guide

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/c360studio/guidance/fault"
)

// Scheme is the URI scheme for content resources.
const Scheme = "guide"

// URI is a parsed guide:// resource reference: a collection plus an optional
// document pattern.
type URI struct {
	Collection string
	Pattern    string
}

// ParseURI parses "guide://<collection>[/<document-pattern>]". The collection
// is required; an absent or bare-slash path yields an empty pattern.
func ParseURI(raw string) (URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URI{}, fault.Validation("invalid URI", fault.FieldError{
			Field: "uri", Message: fmt.Sprintf("parse %q: %v", raw, err),
		})
	}
	if u.Scheme != Scheme {
		return URI{}, fault.Validation("invalid URI scheme", fault.FieldError{
			Field: "uri", Message: fmt.Sprintf("scheme must be %q, got %q", Scheme, u.Scheme),
		})
	}
	if u.Host == "" {
		return URI{}, fault.Validation("missing collection", fault.FieldError{
			Field: "uri", Message: "guide:// URI requires a collection",
		})
	}
	return URI{
		Collection: u.Host,
		Pattern:    strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// String renders the URI back to guide:// form.
func (u URI) String() string {
	if u.Pattern == "" {
		return Scheme + "://" + u.Collection
	}
	return Scheme + "://" + u.Collection + "/" + u.Pattern
}

// TargetKind distinguishes the two addressable groupings.
type TargetKind string

const (
	TargetCategory   TargetKind = "category"
	TargetCollection TargetKind = "collection"
)

// Target is a parsed category-or-collection expression, as used by the
// startup-instruction flag.
type Target struct {
	Kind TargetKind
	Name string
}

// ParseTarget parses "category:<name>", "collection:<name>", or a bare name
// (treated as a category).
func ParseTarget(expr string) (Target, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Target{}, fault.Validation("empty target expression", fault.FieldError{
			Field: "target", Message: "expected category:<name>, collection:<name>, or a bare category name",
		})
	}

	kind, name, found := strings.Cut(expr, ":")
	if !found {
		return Target{Kind: TargetCategory, Name: expr}, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Target{}, fault.Validation("missing target name", fault.FieldError{
			Field: "target", Message: fmt.Sprintf("%q names no %s", expr, kind),
		})
	}
	switch TargetKind(strings.TrimSpace(kind)) {
	case TargetCategory:
		return Target{Kind: TargetCategory, Name: name}, nil
	case TargetCollection:
		return Target{Kind: TargetCollection, Name: name}, nil
	default:
		return Target{}, fault.Validation("unknown target kind", fault.FieldError{
			Field: "target", Message: fmt.Sprintf("kind %q is not category or collection", kind),
		})
	}
}
