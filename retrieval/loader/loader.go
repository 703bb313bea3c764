// Package loader ingests policy texts from common document formats
// into retrieval documents. Extraction here is deliberately shallow;
// heavyweight OCR and PDF pipelines live outside the core.
package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/complyai/policygraph/retrieval"
)

// DocumentLoader produces retrieval documents from some source.
type DocumentLoader interface {
	Load(ctx context.Context) ([]retrieval.Document, error)
}

// StaticLoader serves a fixed list of documents. Useful for seeding
// stores in tests and demos.
type StaticLoader struct {
	Documents []retrieval.Document
}

// NewStaticLoader creates a StaticLoader.
func NewStaticLoader(documents []retrieval.Document) *StaticLoader {
	return &StaticLoader{Documents: documents}
}

// Load returns the static document list.
func (l *StaticLoader) Load(ctx context.Context) ([]retrieval.Document, error) {
	return l.Documents, nil
}

// SplitParagraphs splits a document's text on blank lines into chunk
// documents capped at maxChars, so one oversized policy page doesn't
// swamp the similarity ranking.
func SplitParagraphs(doc retrieval.Document, maxChars int) []retrieval.Document {
	if maxChars <= 0 {
		maxChars = 1000
	}

	paragraphs := strings.Split(doc.Text, "\n\n")
	chunks := []retrieval.Document{}
	var current strings.Builder

	flush := func() {
		text := strings.TrimSpace(current.String())
		current.Reset()
		if text == "" {
			return
		}
		chunk := doc
		chunk.ID = fmt.Sprintf("%s#%d", doc.ID, len(chunks))
		chunk.Text = text
		chunk.Embedding = nil
		chunks = append(chunks, chunk)
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()

	return chunks
}
