package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/guidance/fault"
	"github.com/c360studio/guidance/guide"
	"github.com/c360studio/guidance/template"
)

// Renderer is the template surface the doc executor renders documents with.
type Renderer interface {
	Render(categoryDir, name string, extra map[string]any) (*template.RenderedContent, error)
}

// DocExecutor serves guidance documentation: guide_get renders the documents
// a guide:// URI addresses; guide_list enumerates collections, categories,
// and documents.
type DocExecutor struct {
	library  *guide.Library
	renderer Renderer
	logger   *slog.Logger
}

// NewDocExecutor creates the documentation executor.
func NewDocExecutor(library *guide.Library, renderer Renderer, logger *slog.Logger) *DocExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocExecutor{library: library, renderer: renderer, logger: logger}
}

// Execute executes a documentation tool call. Failures come back as the
// structured fault payload rather than a transport error.
func (e *DocExecutor) Execute(ctx context.Context, call ToolCall) (ToolResult, error) {
	var (
		result ToolResult
		err    error
	)
	switch call.Name {
	case "guide_get":
		result, err = e.guideGet(call)
	case "guide_list":
		result, err = e.guideList(call)
	default:
		return nil, fmt.Errorf("unknown tool: %s", call.Name)
	}
	if err != nil {
		return ToolResult(fault.AsPayload(err)), nil
	}
	return result, nil
}

// ListTools returns the documentation tool definitions.
func (e *DocExecutor) ListTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "guide_get",
			Description: "Fetch guidance documents addressed by a guide:// URI",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"uri": map[string]any{
						"type":        "string",
						"description": "Resource URI, e.g. guide://handbook/setup/**",
					},
					"format": map[string]any{
						"type":        "string",
						"description": "Output format: base (concatenated) or plain (named sections)",
					},
				},
				"required": []string{"uri"},
			},
		},
		{
			Name:        "guide_list",
			Description: "List guidance collections, categories, or the documents a guide:// URI addresses",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"uri": map[string]any{
						"type":        "string",
						"description": "Optional guide:// URI to list documents for",
					},
				},
			},
		},
	}
}

// guideGet renders every document the URI addresses and formats the bodies.
// Requires-filtered documents are skipped silently.
func (e *DocExecutor) guideGet(call ToolCall) (ToolResult, error) {
	raw, _ := call.Params["uri"].(string)
	uri, err := guide.ParseURI(raw)
	if err != nil {
		return nil, err
	}

	refs, err := e.library.Resolve(uri)
	if err != nil {
		return nil, err
	}

	var docs []guide.Doc
	for _, ref := range refs {
		cat, err := e.library.Category(ref.Category)
		if err != nil {
			return nil, err
		}
		rc, err := e.renderer.Render(cat.Dir, ref.Name, nil)
		if err != nil {
			return nil, err
		}
		if rc == nil {
			continue
		}
		docs = append(docs, guide.Doc{Name: ref.Name, Body: rc.Body})
	}
	if len(docs) == 0 {
		return nil, fault.NotFound("document", uri.String())
	}

	format, _ := call.Params["format"].(string)
	var content string
	switch strings.ToLower(format) {
	case "", "base":
		content = guide.FormatBase(docs)
	case "plain":
		content = guide.FormatPlain(docs)
	default:
		return nil, fault.Validation("unknown format", fault.FieldError{
			Field: "format", Message: fmt.Sprintf("%q is not base or plain", format),
		})
	}

	return ToolResult{
		"uri":     uri.String(),
		"count":   len(docs),
		"content": content,
	}, nil
}

// guideList enumerates the library. Without a URI it returns the collection
// and category names; with one, the matching document names.
func (e *DocExecutor) guideList(call ToolCall) (ToolResult, error) {
	raw, _ := call.Params["uri"].(string)
	if raw == "" {
		return ToolResult{
			"collections": e.library.CollectionNames(),
			"categories":  e.library.CategoryNames(),
		}, nil
	}

	uri, err := guide.ParseURI(raw)
	if err != nil {
		return nil, err
	}
	refs, err := e.library.Resolve(uri)
	if err != nil {
		return nil, err
	}

	docs := make([]map[string]any, 0, len(refs))
	for _, ref := range refs {
		docs = append(docs, map[string]any{
			"category": ref.Category,
			"name":     ref.Name,
		})
	}
	return ToolResult{
		"uri":       uri.String(),
		"documents": docs,
	}, nil
}
