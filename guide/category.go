package guide

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/guidance/fault"
)

// Category is a named directory of documents under the document-root.
type Category struct {
	Name string
	Dir  string // relative to the document-root
}

// Collection is a named union of categories.
type Collection struct {
	Name       string
	Categories []string
}

// Library indexes the categories and collections of one document-root. It
// answers listing queries; rendering is the template package's job.
type Library struct {
	root        string
	categories  map[string]Category
	collections map[string]Collection
}

// NewLibrary creates a library over the document-root.
func NewLibrary(root string) *Library {
	return &Library{
		root:        filepath.Clean(root),
		categories:  map[string]Category{},
		collections: map[string]Collection{},
	}
}

// Root returns the document-root.
func (l *Library) Root() string { return l.root }

// AddCategory registers a category. The directory must be relative and stay
// inside the document-root.
func (l *Library) AddCategory(name, dir string) error {
	if name == "" {
		return fault.Validation("empty category name", fault.FieldError{
			Field: "name", Message: "category name is required",
		})
	}
	if filepath.IsAbs(dir) {
		return fault.Security(fmt.Sprintf("absolute category dir %q not allowed", dir))
	}
	joined := filepath.Join(l.root, dir)
	if joined != l.root && !strings.HasPrefix(joined, l.root+string(filepath.Separator)) {
		return fault.Security(fmt.Sprintf("category dir %q escapes the document-root", dir))
	}
	l.categories[name] = Category{Name: name, Dir: dir}
	return nil
}

// AddCollection registers a collection over already-known category names.
func (l *Library) AddCollection(name string, categories ...string) error {
	if name == "" {
		return fault.Validation("empty collection name", fault.FieldError{
			Field: "name", Message: "collection name is required",
		})
	}
	for _, c := range categories {
		if _, ok := l.categories[c]; !ok {
			return fault.NotFound("category", c)
		}
	}
	l.collections[name] = Collection{Name: name, Categories: categories}
	return nil
}

// Category looks up a category by name.
func (l *Library) Category(name string) (Category, error) {
	c, ok := l.categories[name]
	if !ok {
		return Category{}, fault.NotFound("category", name)
	}
	return c, nil
}

// Collection looks up a collection by name.
func (l *Library) Collection(name string) (Collection, error) {
	c, ok := l.collections[name]
	if !ok {
		return Collection{}, fault.NotFound("collection", name)
	}
	return c, nil
}

// CategoryNames returns the registered category names, sorted.
func (l *Library) CategoryNames() []string {
	names := make([]string, 0, len(l.categories))
	for n := range l.categories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CollectionNames returns the registered collection names, sorted.
func (l *Library) CollectionNames() []string {
	names := make([]string, 0, len(l.collections))
	for n := range l.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Ref is one listed document: its name (path relative to the category dir,
// extension stripped) and the category it came from.
type Ref struct {
	Category string
	Name     string
}

// docSuffixes are stripped from listed file names, longest first.
var docSuffixes = []string{".md.mustache", ".mustache", ".md"}

// ListCategory returns the documents in a category whose relative paths match
// the doublestar pattern. An empty pattern lists everything.
func (l *Library) ListCategory(name, pattern string) ([]Ref, error) {
	cat, err := l.Category(name)
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fault.Validation("invalid document pattern", fault.FieldError{
			Field: "pattern", Message: fmt.Sprintf("%q is not a valid glob", pattern),
		})
	}

	dir := filepath.Join(l.root, cat.Dir)
	var refs []Ref
	seen := map[string]bool{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		docName := stripDocSuffix(rel)
		if seen[docName] {
			return nil
		}
		if ok, _ := doublestar.Match(pattern, rel); !ok {
			if ok, _ := doublestar.Match(pattern, docName); !ok {
				return nil
			}
		}
		seen[docName] = true
		refs = append(refs, Ref{Category: name, Name: docName})
		return nil
	})
	if err != nil {
		return nil, fault.FileRead(dir, err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// ListCollection lists matching documents across every category in the
// collection, in the collection's category order.
func (l *Library) ListCollection(name, pattern string) ([]Ref, error) {
	coll, err := l.Collection(name)
	if err != nil {
		return nil, err
	}
	var refs []Ref
	for _, cat := range coll.Categories {
		catRefs, err := l.ListCategory(cat, pattern)
		if err != nil {
			return nil, err
		}
		refs = append(refs, catRefs...)
	}
	return refs, nil
}

// Resolve lists the documents a parsed URI addresses.
func (l *Library) Resolve(u URI) ([]Ref, error) {
	return l.ListCollection(u.Collection, u.Pattern)
}

func stripDocSuffix(name string) string {
	for _, suffix := range docSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}
