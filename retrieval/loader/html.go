package loader

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/complyai/policygraph/retrieval"
)

// HTMLLoader extracts the readable text of an HTML policy page.
// Scripts and styles are dropped, and the remainder is run through a
// strict sanitizer before it is stored.
type HTMLLoader struct {
	reader   io.Reader
	sourceID string
	scope    retrieval.Scope
	policy   *bluemonday.Policy
}

// NewHTMLLoader creates an HTMLLoader reading from r.
func NewHTMLLoader(r io.Reader, sourceID string, scope retrieval.Scope) *HTMLLoader {
	return &HTMLLoader{
		reader:   r,
		sourceID: sourceID,
		scope:    scope,
		policy:   bluemonday.StrictPolicy(),
	}
}

// Load parses the HTML and returns one document per page.
func (l *HTMLLoader) Load(ctx context.Context) ([]retrieval.Document, error) {
	doc, err := goquery.NewDocumentFromReader(l.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html for %s: %w", l.sourceID, err)
	}

	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("h1, h2, h3, h4, p, li, td").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})

	text := l.policy.Sanitize(strings.Join(parts, "\n\n"))
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
			"type":   "html",
		},
	}}, nil
}
