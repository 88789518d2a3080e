package agent

import (
	"fmt"
	"strings"
)

type fact struct {
	key   string
	value string
}

// PromptBuilder assembles a system prompt from a base prompt, key facts and context lines.
// Facts keep insertion order; adding an existing key replaces its value in place.
type PromptBuilder struct {
	systemPrompt string
	facts        []fact
	sections     []section
	context      []string
}

type section struct {
	title string
	lines []string
}

// NewPromptBuilder creates a new prompt builder with a base system prompt
func NewPromptBuilder(systemPrompt string) *PromptBuilder {
	return &PromptBuilder{systemPrompt: systemPrompt}
}

// AddFact adds a key-value fact to the prompt
func (pb *PromptBuilder) AddFact(key, value string) *PromptBuilder {
	for i := range pb.facts {
		if pb.facts[i].key == key {
			pb.facts[i].value = value
			return pb
		}
	}
	pb.facts = append(pb.facts, fact{key: key, value: value})
	return pb
}

// AddSection adds a titled bullet list. Empty sections are skipped at build time.
func (pb *PromptBuilder) AddSection(title string, lines ...string) *PromptBuilder {
	pb.sections = append(pb.sections, section{title: title, lines: lines})
	return pb
}

// AddContext adds contextual information to the prompt
func (pb *PromptBuilder) AddContext(context string) *PromptBuilder {
	pb.context = append(pb.context, context)
	return pb
}

// Build constructs the final prompt: base prompt, key facts, sections, then recent context
func (pb *PromptBuilder) Build() string {
	parts := []string{pb.systemPrompt}

	if len(pb.facts) > 0 {
		parts = append(parts, "\n## Key Facts:")
		for _, f := range pb.facts {
			parts = append(parts, fmt.Sprintf("- %s: %s", f.key, f.value))
		}
	}

	for _, s := range pb.sections {
		if len(s.lines) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("\n## %s:", s.title))
		for _, line := range s.lines {
			parts = append(parts, "- "+line)
		}
	}

	if len(pb.context) > 0 {
		parts = append(parts, "\n## Recent Context:")
		for _, ctx := range pb.context {
			parts = append(parts, "- "+ctx)
		}
	}

	return strings.Join(parts, "\n")
}
