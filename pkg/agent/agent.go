package agent

import (
	"context"

	"github.com/jkim999/primary-care-consultant/pkg/utils"
)

// Default generation limits shared by all stages
const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 500
)

// Request is one stateless text generation call
type Request struct {
	// Agent names the calling stage, used for logging and per-stage agent reuse
	Agent string

	// Instructions is the system prompt
	Instructions string

	// Input is the user content for this call
	Input string

	Temperature float64
}

// Generator turns a request into text. Implementations must be safe for concurrent use
// and must not keep conversation state between calls.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Stage is implemented by every consultation stage agent
type Stage interface {
	// ID returns the unique identifier for this stage
	ID() string

	// Config returns the configuration the stage was built from
	Config() *utils.Config
}
