package guide

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/guidance/fault"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    URI
		wantErr bool
	}{
		{"collection only", "guide://handbook", URI{Collection: "handbook"}, false},
		{"collection with slash", "guide://handbook/", URI{Collection: "handbook"}, false},
		{"collection and pattern", "guide://handbook/setup/install", URI{Collection: "handbook", Pattern: "setup/install"}, false},
		{"glob pattern", "guide://handbook/**", URI{Collection: "handbook", Pattern: "**"}, false},
		{"wrong scheme", "http://handbook/x", URI{}, true},
		{"no collection", "guide:///x", URI{}, true},
		{"empty", "", URI{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, fault.KindValidation, fault.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURIRoundTrip(t *testing.T) {
	for _, raw := range []string{"guide://handbook", "guide://handbook/setup/install"} {
		u, err := ParseURI(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, u.String())
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		expr    string
		want    Target
		wantErr bool
	}{
		{"category:setup", Target{Kind: TargetCategory, Name: "setup"}, false},
		{"collection:handbook", Target{Kind: TargetCollection, Name: "handbook"}, false},
		{"setup", Target{Kind: TargetCategory, Name: "setup"}, false},
		{"  setup  ", Target{Kind: TargetCategory, Name: "setup"}, false},
		{"bogus:setup", Target{}, true},
		{"category:", Target{}, true},
		{"", Target{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseTarget(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, fault.KindValidation, fault.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestLibrary(t *testing.T, files map[string]string) *Library {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return NewLibrary(root)
}

func TestLibraryCategoriesAndCollections(t *testing.T) {
	l := newTestLibrary(t, nil)
	require.NoError(t, l.AddCategory("setup", "setup"))
	require.NoError(t, l.AddCategory("ops", "guides/ops"))
	require.NoError(t, l.AddCollection("handbook", "setup", "ops"))

	assert.Equal(t, []string{"ops", "setup"}, l.CategoryNames())
	assert.Equal(t, []string{"handbook"}, l.CollectionNames())

	_, err := l.Category("missing")
	assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
	err = l.AddCollection("broken", "missing")
	assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
}

func TestLibraryRejectsEscapingDirs(t *testing.T) {
	l := newTestLibrary(t, nil)
	err := l.AddCategory("evil", "../outside")
	assert.Equal(t, fault.KindSecurity, fault.KindOf(err))
	err = l.AddCategory("abs", "/etc")
	assert.Equal(t, fault.KindSecurity, fault.KindOf(err))
}

func TestListCategory(t *testing.T) {
	l := newTestLibrary(t, map[string]string{
		"setup/install.md.mustache": "install",
		"setup/deep/extras.md":      "extras",
		"setup/notes.mustache":      "notes",
	})
	require.NoError(t, l.AddCategory("setup", "setup"))

	refs, err := l.ListCategory("setup", "")
	require.NoError(t, err)
	assert.Equal(t, []Ref{
		{Category: "setup", Name: "deep/extras"},
		{Category: "setup", Name: "install"},
		{Category: "setup", Name: "notes"},
	}, refs)

	refs, err = l.ListCategory("setup", "deep/**")
	require.NoError(t, err)
	assert.Equal(t, []Ref{{Category: "setup", Name: "deep/extras"}}, refs)

	refs, err = l.ListCategory("setup", "install")
	require.NoError(t, err)
	assert.Equal(t, []Ref{{Category: "setup", Name: "install"}}, refs)
}

func TestListCollectionPreservesCategoryOrder(t *testing.T) {
	l := newTestLibrary(t, map[string]string{
		"b/second.md": "2",
		"a/first.md":  "1",
	})
	require.NoError(t, l.AddCategory("beta", "b"))
	require.NoError(t, l.AddCategory("alpha", "a"))
	require.NoError(t, l.AddCollection("all", "beta", "alpha"))

	refs, err := l.ListCollection("all", "")
	require.NoError(t, err)
	assert.Equal(t, []Ref{
		{Category: "beta", Name: "second"},
		{Category: "alpha", Name: "first"},
	}, refs)
}

func TestResolveURI(t *testing.T) {
	l := newTestLibrary(t, map[string]string{"docs/intro.md": "hi"})
	require.NoError(t, l.AddCategory("docs", "docs"))
	require.NoError(t, l.AddCollection("handbook", "docs"))

	u, err := ParseURI("guide://handbook/intro")
	require.NoError(t, err)
	refs, err := l.Resolve(u)
	require.NoError(t, err)
	assert.Equal(t, []Ref{{Category: "docs", Name: "intro"}}, refs)

	u, err = ParseURI("guide://nowhere")
	require.NoError(t, err)
	_, err = l.Resolve(u)
	assert.Equal(t, fault.KindNotFound, fault.KindOf(err))
}

func TestFormatBase(t *testing.T) {
	docs := []Doc{{Name: "a", Body: "first"}, {Name: "b", Body: "second"}}
	assert.Equal(t, "first\nsecond", FormatBase(docs))
	assert.Equal(t, "", FormatBase(nil))
}

func TestFormatPlain(t *testing.T) {
	assert.Equal(t, "", FormatPlain(nil))
	assert.Equal(t, "solo body", FormatPlain([]Doc{{Name: "a", Body: "solo body"}}))

	docs := []Doc{{Name: "a", Body: "first"}, {Name: "b", Body: "second"}}
	want := "--- a ---\nfirst\n--- b ---\nsecond"
	assert.Equal(t, want, FormatPlain(docs))
}
