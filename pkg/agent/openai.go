package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"
)

// Backend names accepted by NewGenerator
const (
	BackendAgents = "agents"
	BackendChat   = "chat"
)

// GeneratorConfig holds what every OpenAI backed generator needs
type GeneratorConfig struct {
	APIKey    string
	Model     string
	MaxTokens int

	// BaseURL overrides the API endpoint (chat backend only)
	BaseURL string
}

func (c GeneratorConfig) withDefaults() (GeneratorConfig, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return c, errors.New("OpenAI API key is required")
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c, nil
}

// NewGenerator builds the generator for the named backend. An empty backend selects the agents runner.
func NewGenerator(backend string, cfg GeneratorConfig) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendAgents:
		return NewAgentsGenerator(cfg)
	case BackendChat:
		return NewChatGenerator(cfg)
	default:
		return nil, fmt.Errorf("unknown generator backend %q", backend)
	}
}

// AgentsGenerator runs each request as a single-turn openai-agents-go agent
type AgentsGenerator struct {
	model     string
	maxTokens int64
}

// NewAgentsGenerator registers the API key with the agents runtime and returns a generator
func NewAgentsGenerator(cfg GeneratorConfig) (*AgentsGenerator, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	agents.SetDefaultOpenaiKey(cfg.APIKey, false)

	return &AgentsGenerator{
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

// Model returns the configured model name
func (g *AgentsGenerator) Model() string {
	return g.model
}

// Generate implements Generator. A fresh agent is built per call so no state leaks between requests.
func (g *AgentsGenerator) Generate(ctx context.Context, req Request) (string, error) {
	name := req.Agent
	if name == "" {
		name = "consultation-agent"
	}

	agentInstance := agents.New(name).
		WithInstructions(req.Instructions).
		WithModel(g.model).
		WithModelSettings(modelsettings.ModelSettings{
			Temperature: param.NewOpt(req.Temperature),
			MaxTokens:   param.NewOpt(g.maxTokens),
		})

	result, err := agents.Run(ctx, agentInstance, req.Input)
	if err != nil {
		return "", fmt.Errorf("agent run failed: %w", err)
	}

	if result.FinalOutput == nil {
		return "", errors.New("agent run returned no output")
	}

	return strings.TrimSpace(fmt.Sprintf("%v", result.FinalOutput)), nil
}
