// Package decision turns a history record into a triage decision: escalate or self-care
package decision

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

// ID identifies the decision stage in generator requests and logs
const ID = "decision-agent"

// DefaultTemperature is used when the config does not set DECISION_TEMPERATURE
const DefaultTemperature = 0.3

// DecisionAgent makes one generator call per consultation. Triage itself is left to the
// generator; the agent only supplies the policy as instructions.
type DecisionAgent struct {
	generator    agent.Generator
	config       *utils.Config
	policy       *policy.Policy
	instructions string
	temperature  float64
	log          logrus.FieldLogger
}

// NewDecisionAgent creates the decision stage
func NewDecisionAgent(generator agent.Generator, pol *policy.Policy, config *utils.Config, log logrus.FieldLogger) (*DecisionAgent, error) {
	if generator == nil {
		return nil, fmt.Errorf("decision agent needs a generator")
	}
	if pol == nil {
		pol = policy.Default()
	}
	if config == nil {
		config = utils.NewConfig(nil)
	}

	basePrompt := utils.LoadPromptWithFallback(config.Get("DECISION_SYSPROMPT_PATH"), strings.TrimSpace(defaultPrompt))

	return &DecisionAgent{
		generator:    generator,
		config:       config,
		policy:       pol,
		instructions: buildInstructions(basePrompt, pol),
		temperature:  config.GetFloatWithDefault("DECISION_TEMPERATURE", DefaultTemperature),
		log:          logger.Component(log, ID),
	}, nil
}

func buildInstructions(basePrompt string, pol *policy.Policy) string {
	pb := agent.NewPromptBuilder(basePrompt)

	if pol.ConservativeMode {
		pb.AddFact("Conservative mode", "on: when in doubt, escalate")
	}
	if pol.MaxResponseWords > 0 {
		pb.AddFact("Maximum response length", fmt.Sprintf("%d words", pol.MaxResponseWords))
	}

	timeframes := make([]string, 0, len(pol.EscalationTimeframes))
	for _, t := range pol.EscalationTimeframes {
		timeframes = append(timeframes, fmt.Sprintf("%s: %s", t.Level, t.Action))
	}
	pb.AddSection("Escalation Timeframes", timeframes...)

	phrases := make([]string, 0, len(pol.RequiredPhrases))
	for _, p := range pol.RequiredPhrases {
		phrases = append(phrases, fmt.Sprintf("%q", p))
	}
	pb.AddSection("Required Closing Phrases (self-care only, verbatim)", phrases...)

	selfCare := make([]string, 0, len(pol.SelfCare))
	for _, s := range pol.SelfCare {
		selfCare = append(selfCare, fmt.Sprintf("%s: %s", s.Condition, strings.Join(s.Steps, "; ")))
	}
	pb.AddSection("Self-Care Reference", selfCare...)

	return pb.Build()
}

// ID returns the stage identifier
func (a *DecisionAgent) ID() string {
	return ID
}

// Config returns the stage configuration
func (a *DecisionAgent) Config() *utils.Config {
	return a.config
}

// Instructions returns the system prompt sent with the decision call
func (a *DecisionAgent) Instructions() string {
	return a.instructions
}

// Decide asks the generator for a decision on record. The transcript is context only.
func (a *DecisionAgent) Decide(ctx context.Context, record *consultation.Record, transcript consultation.TranscriptView) (string, error) {
	if record == nil {
		return "", consultation.E(consultation.CodeInvalidArgument, "DecisionAgent.Decide", "record is required", nil)
	}

	log := a.log.WithFields(logrus.Fields{
		"status":   record.HandoffStatus,
		"severity": record.Severity,
	})

	output, err := a.generator.Generate(ctx, agent.Request{
		Agent:        ID,
		Instructions: a.instructions,
		Input:        a.input(record, transcript),
		Temperature:  a.temperature,
	})
	if err != nil {
		log.WithError(err).Error("generator call failed")
		return "", consultation.E(consultation.CodeGenerator, "DecisionAgent.Decide", "generator call failed", err)
	}

	decision := strings.TrimSpace(output)
	if decision == "" {
		log.Error("generator returned an empty decision")
		return "", consultation.E(consultation.CodeGenerator, "DecisionAgent.Decide", "generator returned an empty decision", nil)
	}

	log.Debug("decision made")
	return decision, nil
}

func (a *DecisionAgent) input(record *consultation.Record, transcript consultation.TranscriptView) string {
	var b strings.Builder

	b.WriteString("Patient data:\n")
	b.WriteString(record.JSON())
	b.WriteString("\n\n")

	if transcript != nil && transcript.Len() > 0 {
		b.WriteString("Conversation (context only, the patient data above is authoritative):\n")
		b.WriteString(transcript.Render())
		b.WriteString("\n\n")
	}

	if record.HandoffStatus == consultation.StatusEmergency {
		if action, ok := a.policy.Timeframe("emergency"); ok {
			fmt.Fprintf(&b, "Required action: %s.\n\n", action)
		}
	} else if condition, steps := a.selfCare(record.ChiefComplaint); len(steps) > 0 {
		fmt.Fprintf(&b, "Self-care reference for %s, if self-care is appropriate:\n- %s\n\n", condition, strings.Join(steps, "\n- "))
	}

	b.WriteString("Provide appropriate response based on the decision logic.")
	return b.String()
}

// selfCare finds the policy condition named in complaint. A condition such as minor_sprain
// matches on its full name or its last word.
func (a *DecisionAgent) selfCare(complaint string) (string, []string) {
	lower := strings.ToLower(complaint)
	if lower == "" {
		return "", nil
	}

	for _, s := range a.policy.SelfCare {
		words := strings.Split(s.Condition, "_")
		if strings.Contains(lower, strings.Join(words, " ")) || strings.Contains(lower, words[len(words)-1]) {
			return s.Condition, a.policy.SelfCareFor(s.Condition)
		}
	}
	return "", nil
}
