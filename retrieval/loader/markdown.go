package loader

import (
	"context"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/complyai/policygraph/retrieval"
)

// MarkdownLoader converts a Markdown policy document into plain text
// by rendering it to HTML and stripping every tag.
type MarkdownLoader struct {
	source   []byte
	sourceID string
	scope    retrieval.Scope
}

// NewMarkdownLoader creates a MarkdownLoader for in-memory content.
func NewMarkdownLoader(source []byte, sourceID string, scope retrieval.Scope) *MarkdownLoader {
	return &MarkdownLoader{
		source:   source,
		sourceID: sourceID,
		scope:    scope,
	}
}

// Load renders the Markdown and returns one document.
func (l *MarkdownLoader) Load(ctx context.Context) ([]retrieval.Document, error) {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	rendered := markdown.ToHTML(l.source, p, renderer)

	text := bluemonday.StrictPolicy().Sanitize(string(rendered))
	text = strings.TrimSpace(text)
	if text == "" {
		return []retrieval.Document{}, nil
	}

	return []retrieval.Document{{
		ID:    l.sourceID,
		Scope: l.scope,
		Text:  text,
		Metadata: map[string]any{
			"source": l.sourceID,
			"type":   "markdown",
		},
	}}, nil
}
