package generation

import (
	"context"
	"sync"

	"github.com/complyai/policygraph/retrieval"
)

// MockGenerator is a scripted Generator for tests. It records every
// prompt it receives and replays a fixed response, optionally in
// fragments.
type MockGenerator struct {
	mu sync.Mutex

	// Response is returned by Complete and Stream on success.
	Response string
	// Fragments, when set, are emitted one by one through onDelta.
	// Otherwise the whole Response is emitted as one fragment.
	Fragments []string
	// Err, when set, fails every call.
	Err error

	// Calls records the prompts and snippets of every invocation.
	Calls []MockCall
}

// MockCall is one recorded generator invocation.
type MockCall struct {
	Prompt   Prompt
	Snippets []retrieval.Snippet
}

// Complete implements Generator.
func (m *MockGenerator) Complete(ctx context.Context, prompt Prompt, snippets []retrieval.Snippet) (string, error) {
	m.record(prompt, snippets)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Stream implements Generator.
func (m *MockGenerator) Stream(ctx context.Context, prompt Prompt, snippets []retrieval.Snippet, onDelta func(string)) (string, error) {
	m.record(prompt, snippets)
	if m.Err != nil {
		return "", m.Err
	}

	fragments := m.Fragments
	if fragments == nil {
		fragments = []string{m.Response}
	}
	for _, fragment := range fragments {
		if onDelta != nil && fragment != "" {
			onDelta(fragment)
		}
	}
	return m.Response, nil
}

// LastCall returns the most recent invocation, or nil.
func (m *MockGenerator) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return &m.Calls[len(m.Calls)-1]
}

func (m *MockGenerator) record(prompt Prompt, snippets []retrieval.Snippet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Prompt: prompt, Snippets: snippets})
}
