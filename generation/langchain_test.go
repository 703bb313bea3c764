package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/complyai/policygraph/session"
)

type fakeModel struct {
	response string
	err      error
	messages []llms.MessageContent
	chunks   []string
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.StreamingFunc != nil {
		for _, chunk := range m.chunks {
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.response}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.response, m.err
}

func TestLangchainGeneratorComplete(t *testing.T) {
	model := &fakeModel{response: "forty-two"}
	g := NewLangchainGenerator(model)

	answer, err := g.Complete(context.Background(), Prompt{
		System: "be terse",
		History: []session.Turn{
			{Role: session.RoleUser, Content: "earlier question"},
			{Role: session.RoleAssistant, Content: "earlier answer"},
		},
		User: "the question",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "forty-two", answer)

	// system, two history turns, current user message
	require.Len(t, model.messages, 4)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, schema.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[3].Role)
}

func TestLangchainGeneratorStream(t *testing.T) {
	model := &fakeModel{response: "hello world", chunks: []string{"hello", " world"}}
	g := NewLangchainGenerator(model)

	var got []string
	answer, err := g.Stream(context.Background(), Prompt{User: "hi"}, nil, func(fragment string) {
		got = append(got, fragment)
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", answer)
	assert.Equal(t, []string{"hello", " world"}, got)
}

func TestLangchainGeneratorErrorIsUnavailable(t *testing.T) {
	model := &fakeModel{err: errors.New("rate limited")}
	g := NewLangchainGenerator(model)
	g.retry = &RetryConfig{MaxAttempts: 1}

	_, err := g.Complete(context.Background(), Prompt{User: "hi"}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLangchainGeneratorEmptyResponse(t *testing.T) {
	g := NewLangchainGenerator(&emptyModel{})
	g.retry = &RetryConfig{MaxAttempts: 1}

	_, err := g.Complete(context.Background(), Prompt{User: "hi"}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

type emptyModel struct{}

func (emptyModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (emptyModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", nil
}
