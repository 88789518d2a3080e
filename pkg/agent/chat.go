package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// ChatGenerator sends each request as a system + user chat completion
type ChatGenerator struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewChatGenerator creates a chat completions generator. Extra request options are
// appended after the ones derived from cfg.
func NewChatGenerator(cfg GeneratorConfig, opts ...option.RequestOption) (*ChatGenerator, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &ChatGenerator{
		client:    openai.NewClient(clientOpts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

// Model returns the configured model name
func (g *ChatGenerator) Model() string {
	return g.model
}

// Generate implements Generator
func (g *ChatGenerator) Generate(ctx context.Context, req Request) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	messages = append(messages, openai.UserMessage(req.Input))

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(g.model),
		Messages:            messages,
		Temperature:         openai.Float(req.Temperature),
		MaxCompletionTokens: openai.Int(g.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
