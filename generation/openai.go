package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/complyai/policygraph/retrieval"
	"github.com/complyai/policygraph/session"
)

// OpenAIGenerator implements Generator using the OpenAI chat API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	retry       *RetryConfig
}

// OpenAIOption configures the OpenAIGenerator.
type OpenAIOption func(*OpenAIGenerator)

// WithModel overrides the chat model.
func WithModel(model string) OpenAIOption {
	return func(g *OpenAIGenerator) {
		g.model = model
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(temperature float32) OpenAIOption {
	return func(g *OpenAIGenerator) {
		g.temperature = temperature
	}
}

// WithRetry overrides the per-call retry policy. Pass nil to disable
// retries entirely.
func WithRetry(config *RetryConfig) OpenAIOption {
	return func(g *OpenAIGenerator) {
		g.retry = config
	}
}

// NewOpenAIGenerator creates a generator backed by the given client.
func NewOpenAIGenerator(client *openai.Client, opts ...OpenAIOption) *OpenAIGenerator {
	g := &OpenAIGenerator{
		client:      client,
		model:       openai.GPT4oMini,
		temperature: 0,
		retry:       DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete runs a single chat completion.
func (g *OpenAIGenerator) Complete(ctx context.Context, prompt Prompt, snippets []retrieval.Snippet) (string, error) {
	return withRetry(ctx, g.retry, "chat completion", func() (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Temperature: g.temperature,
			Messages:    buildMessages(prompt, snippets),
		})
		if err != nil {
			return "", classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%w: empty completion response", ErrUnavailable)
		}
		choice := resp.Choices[0]
		if choice.FinishReason == openai.FinishReasonContentFilter {
			return "", fmt.Errorf("%w: completion stopped by content filter", ErrRejected)
		}
		return choice.Message.Content, nil
	})
}

// Stream runs a streaming chat completion, invoking onDelta per
// fragment and returning the accumulated text.
func (g *OpenAIGenerator) Stream(ctx context.Context, prompt Prompt, snippets []retrieval.Snippet, onDelta func(string)) (string, error) {
	return withRetry(ctx, g.retry, "chat completion stream", func() (string, error) {
		stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Temperature: g.temperature,
			Messages:    buildMessages(prompt, snippets),
			Stream:      true,
		})
		if err != nil {
			return "", classifyOpenAIError(err)
		}
		defer stream.Close()

		var full strings.Builder
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return "", classifyOpenAIError(err)
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if choice.FinishReason == openai.FinishReasonContentFilter {
				return "", fmt.Errorf("%w: completion stopped by content filter", ErrRejected)
			}
			if fragment := choice.Delta.Content; fragment != "" {
				full.WriteString(fragment)
				if onDelta != nil {
					onDelta(fragment)
				}
			}
		}
		return full.String(), nil
	})
}

func buildMessages(prompt Prompt, snippets []retrieval.Snippet) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(prompt.History)+2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt.System,
		})
	}
	for _, turn := range prompt.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: RenderUserMessage(prompt.User, snippets),
	})
	return messages
}

func openAIRole(role session.Role) string {
	switch role {
	case session.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case session.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// classifyOpenAIError maps transport errors onto the package taxonomy.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 400 || apiErr.HTTPStatusCode == 403:
			return fmt.Errorf("%w: %v", ErrRejected, err)
		default:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
