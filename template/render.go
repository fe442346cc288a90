package template

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cbroglie/mustache"

	"github.com/c360studio/guidance/fault"
)

// TemplateSuffix marks a file as a renderable template. Files without the
// sentinel are returned verbatim (frontmatter still stripped and gated).
const TemplateSuffix = ".mustache"

// candidateSuffixes are tried in order when resolving a template or partial
// name to a file.
var candidateSuffixes = []string{".md" + TemplateSuffix, TemplateSuffix, ".md", ""}

// Content is a parsed template file: stripped frontmatter plus body.
type Content struct {
	Frontmatter     Frontmatter
	FrontmatterLen  int
	Body            string
	BodyLength      int
}

// RenderedContent is the result of a successful render.
type RenderedContent struct {
	Content
	TemplatePath       string
	TemplateName       string
	PartialFrontmatter []Frontmatter
}

// TemplateType returns the frontmatter type or the default.
func (rc *RenderedContent) TemplateType() string {
	if t := rc.Frontmatter.String("type"); t != "" {
		return t
	}
	return DefaultTemplateType
}

// Instruction composes the parent and partial instructions.
func (rc *RenderedContent) Instruction() string {
	return ComposeInstruction(rc.Frontmatter, rc.PartialFrontmatter)
}

// Description returns the frontmatter description.
func (rc *RenderedContent) Description() string { return rc.Frontmatter.Text("description") }

// Usage returns the frontmatter usage.
func (rc *RenderedContent) Usage() string { return rc.Frontmatter.Text("usage") }

// Category returns the frontmatter category.
func (rc *RenderedContent) Category() string { return rc.Frontmatter.Text("category") }

// Aliases returns the frontmatter aliases.
func (rc *RenderedContent) Aliases() []string { return rc.Frontmatter.List("aliases") }

// Renderer expands templates under a single document-root. Partial resolution
// is confined to the root; templates whose requires-directives are unmet
// render to "no content" (nil, nil).
type Renderer struct {
	root     string
	resolver FlagResolver
	resolved func() map[string]any
	cache    *Cache
	logger   *slog.Logger
}

// NewRenderer creates a renderer over the document-root. resolver answers
// single-flag lookups for requires-gates; resolved materializes the merged
// flag view for the context chain.
func NewRenderer(root string, resolver FlagResolver, resolved func() map[string]any, cache *Cache, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{root: root, resolver: resolver, resolved: resolved, cache: cache, logger: logger}
}

// Root returns the document-root.
func (r *Renderer) Root() string { return r.root }

// Render loads and renders the named template from categoryDir (relative to
// the document-root; empty means the root itself) with extra as the
// most-specific context layer.
//
// Returns (nil, nil) when the template is filtered by a requires-gate.
func (r *Renderer) Render(categoryDir, name string, extra map[string]any) (*RenderedContent, error) {
	dir, err := r.confineDir(categoryDir)
	if err != nil {
		return nil, err
	}
	if err := r.confineName(dir, name); err != nil {
		return nil, err
	}

	path, found := r.resolveFile(dir, name)
	if !found {
		return nil, fault.NotFound("template", name)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.FileRead(path, err)
	}

	fm, headerLen, body, err := ParseFrontmatter(string(raw))
	if err != nil {
		return nil, fault.TemplateRender(name, err)
	}

	if ok, unmet := fm.Satisfied(r.resolver); !ok {
		r.logger.Debug("Template filtered by requires-gate",
			slog.String("template", name), slog.String("flag", unmet))
		return nil, nil
	}

	rendered := &RenderedContent{
		Content: Content{
			Frontmatter:    fm,
			FrontmatterLen: headerLen,
			Body:           body,
			BodyLength:     len(body),
		},
		TemplatePath: path,
		TemplateName: name,
	}

	isTemplate := strings.Contains(filepath.Base(path), TemplateSuffix)

	stack := NewStack(
		extra,
		fm.Variables(),
		r.baseLayer(categoryDir),
		r.flagsLayer(),
	)

	// Load gated partials from the includes list before rendering so the
	// provider can inline them and the composer sees their frontmatter. Each
	// partial body renders against the parent chain with its own frontmatter
	// prepended as the most-specific layer.
	loader := &partialLoader{renderer: r, dir: filepath.Dir(path), bodies: map[string]string{}}
	if isTemplate {
		loader.stack = stack
	}
	if err := loader.loadAll(fm.List("includes"), nil); err != nil {
		return nil, err
	}
	rendered.PartialFrontmatter = loader.frontmatters

	if !isTemplate {
		// Not a template: body is returned verbatim.
		return rendered, nil
	}

	tmpl, err := mustache.ParseStringPartialsRaw(body, loader, true)
	if err != nil {
		return nil, fault.TemplateRender(name, err)
	}
	out, err := tmpl.Render(stack.Flatten())
	if err != nil {
		return nil, fault.TemplateRender(name, err)
	}
	rendered.Body = out
	rendered.BodyLength = len(out)
	return rendered, nil
}

// baseLayer returns the session base context with the category overlay.
func (r *Renderer) baseLayer(categoryDir string) map[string]any {
	var base map[string]any
	if r.cache != nil {
		base = r.cache.Base()
	} else {
		base = map[string]any{}
	}
	if categoryDir != "" {
		base["category"] = map[string]any{"name": filepath.Base(categoryDir), "dir": categoryDir}
	}
	return base
}

// flagsLayer materializes the resolved flag view; failures yield an empty
// layer since flags are supplementary context data.
func (r *Renderer) flagsLayer() map[string]any {
	if r.resolved == nil {
		return map[string]any{}
	}
	view := r.resolved()
	if view == nil {
		return map[string]any{}
	}
	return view
}

// confineDir resolves a root-relative directory and rejects escapes.
func (r *Renderer) confineDir(rel string) (string, error) {
	if rel == "" {
		return r.root, nil
	}
	return confinePath(r.root, rel)
}

// confineName verifies that name, resolved against dir, stays inside the
// document-root. Absolute names and root escapes are security failures;
// upward traversal that remains inside the root is allowed.
func (r *Renderer) confineName(dir, name string) error {
	if filepath.IsAbs(name) {
		return fault.Security(fmt.Sprintf("absolute path %q not allowed", name))
	}
	root := filepath.Clean(r.root)
	joined := filepath.Join(dir, name)
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return fault.Security(fmt.Sprintf("path %q escapes the document-root", name))
	}
	return nil
}

// confinePath joins rel to root and verifies the result stays inside root.
// Absolute paths and upward traversal are security failures.
func confinePath(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fault.Security(fmt.Sprintf("absolute path %q not allowed", rel))
	}
	joined := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", fault.Security(fmt.Sprintf("path %q escapes the document-root", rel))
	}
	return joined, nil
}

// resolveFile finds the file for a template name, trying the candidate
// suffixes in order. Names already carrying a suffix match the empty
// candidate.
func (r *Renderer) resolveFile(dir, name string) (string, bool) {
	for _, suffix := range candidateSuffixes {
		path := filepath.Join(dir, name+suffix)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// partialLoader loads, gates, and serves partials for one render. It
// implements mustache.PartialProvider: gated-out or unknown partials inline
// as empty strings. When stack is set, each partial body is pre-rendered
// against the parent chain plus a layer of the partial's own frontmatter
// variables.
type partialLoader struct {
	renderer     *Renderer
	dir          string
	stack        *Stack
	bodies       map[string]string
	frontmatters []Frontmatter
}

// loadAll loads every include (depth-first), accumulating frontmatter in
// include order. visiting guards against include cycles.
func (p *partialLoader) loadAll(names []string, visiting map[string]bool) error {
	if visiting == nil {
		visiting = map[string]bool{}
	}
	for _, name := range names {
		if visiting[name] {
			continue
		}
		visiting[name] = true
		if err := p.load(name, visiting); err != nil {
			return err
		}
	}
	return nil
}

// load reads one partial, applies its requires-gate, and recurses into its
// own includes. Partial names resolve relative to the parent template's
// directory and must stay inside the document-root.
func (p *partialLoader) load(name string, visiting map[string]bool) error {
	if err := p.renderer.confineName(p.dir, name); err != nil {
		return err
	}
	path, found := p.renderer.resolveFile(p.dir, name)
	if !found {
		return fault.NotFound("partial", name)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fault.FileRead(path, err)
	}
	fm, _, body, err := ParseFrontmatter(string(raw))
	if err != nil {
		return fault.TemplateRender(name, err)
	}

	if ok, unmet := fm.Satisfied(p.renderer.resolver); !ok {
		p.renderer.logger.Debug("Partial filtered by requires-gate",
			slog.String("partial", name), slog.String("flag", unmet))
		p.bodies[name] = ""
		return nil
	}

	p.frontmatters = append(p.frontmatters, fm)
	if err := p.loadAll(fm.List("includes"), visiting); err != nil {
		return err
	}

	if p.stack == nil {
		p.bodies[name] = body
		return nil
	}
	tmpl, err := mustache.ParseStringPartialsRaw(body, p, true)
	if err != nil {
		return fault.TemplateRender(name, err)
	}
	out, err := tmpl.Render(p.stack.Child(fm.Variables()).Flatten())
	if err != nil {
		return fault.TemplateRender(name, err)
	}
	p.bodies[name] = out
	return nil
}

// Get implements mustache.PartialProvider.
func (p *partialLoader) Get(name string) (string, error) {
	if body, ok := p.bodies[name]; ok {
		return body, nil
	}
	// A {{>name}} site without a matching includes entry inlines empty.
	p.renderer.logger.Debug("Partial referenced but not listed in includes",
		slog.String("partial", name))
	return "", nil
}
