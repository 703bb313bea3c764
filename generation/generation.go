package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/complyai/policygraph/retrieval"
	"github.com/complyai/policygraph/session"
)

var (
	// ErrUnavailable is returned on quota or availability failures of
	// the upstream model. Fatal for the request that hit it.
	ErrUnavailable = errors.New("generation unavailable")

	// ErrRejected is returned when the upstream model refuses the
	// request on content-policy grounds. Also fatal for the request.
	ErrRejected = errors.New("generation rejected")
)

// NoContextMarker is injected in place of retrieved snippets when
// retrieval produced nothing, so the model does not fabricate
// provenance for an answer it has no sources for.
const NoContextMarker = "No supporting policy context was found for this question. " +
	"Say so explicitly and do not cite any policy document."

// Prompt is the assembled input for one generation call.
type Prompt struct {
	// System is the system instruction for the route being executed.
	System string
	// History is the session's prior turns, oldest first.
	History []session.Turn
	// User is the current user message.
	User string
}

// Generator wraps a large-language-model call.
//
// Complete returns the full response text. Stream also returns the
// full text but invokes onDelta for each partial fragment as it
// arrives; onDelta may be nil.
type Generator interface {
	Complete(ctx context.Context, prompt Prompt, snippets []retrieval.Snippet) (string, error)
	Stream(ctx context.Context, prompt Prompt, snippets []retrieval.Snippet, onDelta func(fragment string)) (string, error)
}

// RenderContext flattens retrieved snippets into a context block for
// the user message, or the no-context marker when there are none.
func RenderContext(snippets []retrieval.Snippet) string {
	if len(snippets) == 0 {
		return NoContextMarker
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	for i, s := range snippets {
		fmt.Fprintf(&b, "[%d] (%s: %s) %s\n", i+1, s.Scope, s.SourceID, s.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderUserMessage combines the user's message with the rendered
// snippet context.
func RenderUserMessage(message string, snippets []retrieval.Snippet) string {
	return fmt.Sprintf("User Message: %s\n%s", message, RenderContext(snippets))
}
