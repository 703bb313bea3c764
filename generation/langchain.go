package generation

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/complyai/policygraph/retrieval"
	"github.com/complyai/policygraph/session"
)

// LangchainGenerator adapts any langchaingo llms.Model to the
// Generator interface, so providers without a native adapter here can
// still back the generation stage.
type LangchainGenerator struct {
	model llms.Model
	retry *RetryConfig
}

// NewLangchainGenerator wraps a langchaingo model.
func NewLangchainGenerator(model llms.Model) *LangchainGenerator {
	return &LangchainGenerator{
		model: model,
		retry: DefaultRetryConfig(),
	}
}

// Complete runs a single generation.
func (g *LangchainGenerator) Complete(ctx context.Context, prompt Prompt, snippets []retrieval.Snippet) (string, error) {
	return withRetry(ctx, g.retry, "langchain generation", func() (string, error) {
		resp, err := g.model.GenerateContent(ctx, buildLangchainMessages(prompt, snippets))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return firstChoice(resp)
	})
}

// Stream runs a generation with a streaming callback.
func (g *LangchainGenerator) Stream(ctx context.Context, prompt Prompt, snippets []retrieval.Snippet, onDelta func(string)) (string, error) {
	return withRetry(ctx, g.retry, "langchain generation stream", func() (string, error) {
		streamingFunc := func(_ context.Context, chunk []byte) error {
			if onDelta != nil && len(chunk) > 0 {
				onDelta(string(chunk))
			}
			return nil
		}
		resp, err := g.model.GenerateContent(ctx, buildLangchainMessages(prompt, snippets),
			llms.WithStreamingFunc(streamingFunc))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return firstChoice(resp)
	})
}

func buildLangchainMessages(prompt Prompt, snippets []retrieval.Snippet) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(prompt.History)+2)
	if prompt.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, prompt.System))
	}
	for _, turn := range prompt.History {
		messages = append(messages, llms.TextParts(langchainRole(turn.Role), turn.Content))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, RenderUserMessage(prompt.User, snippets)))
	return messages
}

func langchainRole(role session.Role) schema.ChatMessageType {
	switch role {
	case session.RoleAssistant:
		return schema.ChatMessageTypeAI
	case session.RoleSystem:
		return schema.ChatMessageTypeSystem
	default:
		return schema.ChatMessageTypeHuman
	}
}

func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty generation response", ErrUnavailable)
	}
	return resp.Choices[0].Content, nil
}
