// Package communication rewrites a decision into patient-friendly language
package communication

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jkim999/primary-care-consultant/internal/logger"
	"github.com/jkim999/primary-care-consultant/internal/policy"
	"github.com/jkim999/primary-care-consultant/pkg/agent"
	"github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/utils"
	"github.com/sirupsen/logrus"
)

//go:embed prompt.md
var defaultPrompt string

// ID identifies the communication stage in generator requests and logs
const ID = "communication-agent"

// DefaultTemperature is used when the config does not set COMMUNICATION_TEMPERATURE
const DefaultTemperature = 0.5

// bannedPhrases are never acceptable in patient-facing text, whatever the policy says
var bannedPhrases = []string{"don't worry", "calm down"}

// CommunicationAgent rewrites decision text. It never changes what was decided.
type CommunicationAgent struct {
	generator    agent.Generator
	config       *utils.Config
	phrases      []string
	instructions string
	temperature  float64
	log          logrus.FieldLogger
}

// NewCommunicationAgent creates the communication stage
func NewCommunicationAgent(generator agent.Generator, pol *policy.Policy, config *utils.Config, log logrus.FieldLogger) (*CommunicationAgent, error) {
	if generator == nil {
		return nil, fmt.Errorf("communication agent needs a generator")
	}
	if pol == nil {
		pol = policy.Default()
	}
	if config == nil {
		config = utils.NewConfig(nil)
	}

	basePrompt := utils.LoadPromptWithFallback(config.Get("COMMUNICATION_SYSPROMPT_PATH"), strings.TrimSpace(defaultPrompt))

	return &CommunicationAgent{
		generator:    generator,
		config:       config,
		phrases:      pol.RequiredPhrases,
		instructions: buildInstructions(basePrompt, pol),
		temperature:  config.GetFloatWithDefault("COMMUNICATION_TEMPERATURE", DefaultTemperature),
		log:          logger.Component(log, ID),
	}, nil
}

func buildInstructions(basePrompt string, pol *policy.Policy) string {
	pb := agent.NewPromptBuilder(basePrompt)

	substitutions := make([]string, 0, len(pol.Replacements))
	for _, r := range pol.Replacements {
		substitutions = append(substitutions, fmt.Sprintf("%q -> %q", r.From, r.To))
	}
	pb.AddSection("Substitutions", substitutions...)

	empathy := make([]string, 0, len(pol.EmpathyPhrases))
	for _, e := range pol.EmpathyPhrases {
		empathy = append(empathy, fmt.Sprintf("%s: %q", e.Situation, e.Phrase))
	}
	pb.AddSection("Empathy Openers", empathy...)

	banned := make([]string, 0, len(bannedPhrases))
	for _, b := range bannedPhrases {
		banned = append(banned, fmt.Sprintf("%q", b))
	}
	pb.AddSection("Never Say", banned...)

	required := make([]string, 0, len(pol.RequiredPhrases))
	for _, p := range pol.RequiredPhrases {
		required = append(required, fmt.Sprintf("%q", p))
	}
	pb.AddSection("Required Phrases (keep verbatim when present)", required...)

	return pb.Build()
}

// ID returns the stage identifier
func (a *CommunicationAgent) ID() string {
	return ID
}

// Config returns the stage configuration
func (a *CommunicationAgent) Config() *utils.Config {
	return a.config
}

// Instructions returns the system prompt sent with the rewrite call
func (a *CommunicationAgent) Instructions() string {
	return a.instructions
}

// Rewrite asks the generator to restate decision for the patient. Required phrases the
// decision carried are restored if the rewrite dropped them, and an empty rewrite falls
// back to the decision itself.
func (a *CommunicationAgent) Rewrite(ctx context.Context, decision string, transcript consultation.TranscriptView) (string, error) {
	decision = strings.TrimSpace(decision)
	if decision == "" {
		return "", consultation.E(consultation.CodeInvalidArgument, "CommunicationAgent.Rewrite", "decision is empty", nil)
	}

	output, err := a.generator.Generate(ctx, agent.Request{
		Agent:        ID,
		Instructions: a.instructions,
		Input:        input(decision, transcript),
		Temperature:  a.temperature,
	})
	if err != nil {
		a.log.WithError(err).Error("generator call failed")
		return "", consultation.E(consultation.CodeGenerator, "CommunicationAgent.Rewrite", "generator call failed", err)
	}

	rewritten := strings.TrimSpace(output)
	if rewritten == "" {
		a.log.Warn("generator returned an empty rewrite, using decision text")
		return decision, nil
	}

	final, restored := PreservePhrases(decision, rewritten, a.phrases)
	if len(restored) > 0 {
		a.log.WithField("phrases", restored).Warn("rewrite dropped required phrases, restored them")
	}

	return final, nil
}

func input(decision string, transcript consultation.TranscriptView) string {
	var b strings.Builder

	if transcript != nil && transcript.Len() > 0 {
		b.WriteString("Conversation (for tone only, add no new medical content):\n")
		b.WriteString(transcript.Render())
		b.WriteString("\n\n")
	}

	b.WriteString("Transform this medical response:\n")
	b.WriteString(decision)
	return b.String()
}

// PreservePhrases appends every phrase that appears in decision but not in rewritten.
// Matching ignores case and trailing punctuation; appended phrases are verbatim.
func PreservePhrases(decision, rewritten string, phrases []string) (string, []string) {
	var restored []string

	for _, phrase := range phrases {
		if containsPhrase(decision, phrase) && !containsPhrase(rewritten, phrase) {
			restored = append(restored, phrase)
		}
	}

	if len(restored) == 0 {
		return rewritten, nil
	}
	return rewritten + "\n\n" + strings.Join(restored, "\n"), restored
}

func containsPhrase(text, phrase string) bool {
	core := strings.ToLower(strings.TrimRight(strings.TrimSpace(phrase), ".!? "))
	if core == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), core)
}
