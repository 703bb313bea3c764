package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/complyai/policygraph/retrieval"
)

// TextLoader loads one policy document from a plain text file.
type TextLoader struct {
	filePath string
	scope    retrieval.Scope
	metadata map[string]any
}

// TextLoaderOption configures the TextLoader.
type TextLoaderOption func(*TextLoader)

// WithTextMetadata adds metadata to the loaded document.
func WithTextMetadata(metadata map[string]any) TextLoaderOption {
	return func(l *TextLoader) {
		for k, v := range metadata {
			l.metadata[k] = v
		}
	}
}

// NewTextLoader creates a TextLoader for the given file and scope.
func NewTextLoader(filePath string, scope retrieval.Scope, opts ...TextLoaderOption) *TextLoader {
	l := &TextLoader{
		filePath: filePath,
		scope:    scope,
		metadata: map[string]any{
			"source": filePath,
			"type":   "text",
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file into a single document.
func (l *TextLoader) Load(ctx context.Context) ([]retrieval.Document, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.filePath, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return []retrieval.Document{}, nil
	}

	return []retrieval.Document{{
		ID:       filepath.Base(l.filePath),
		Scope:    l.scope,
		Text:     text,
		Metadata: l.metadata,
	}}, nil
}
