package history

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jkim999/primary-care-consultant/internal/logger"
	"github.com/jkim999/primary-care-consultant/internal/policy"
	"github.com/jkim999/primary-care-consultant/pkg/agent"
	"github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/redflag"
	"github.com/jkim999/primary-care-consultant/pkg/utils"
	"github.com/sirupsen/logrus"
)

//go:embed prompt.md
var defaultPrompt string

// ID identifies the history stage in generator requests and logs
const ID = "history-agent"

// DefaultTemperature is used when the config does not set HISTORY_TEMPERATURE
const DefaultTemperature = 0.7

// DefaultMaxExchanges is used when the config does not set MAX_EXCHANGES
const DefaultMaxExchanges = 5

// fallbackQuestion is asked when the generator replies with nothing at all
const fallbackQuestion = "Could you tell me a little more about what you're experiencing?"

// IsCancellation reports whether patient text asks to end the consultation
func IsCancellation(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "quit", "exit":
		return true
	default:
		return false
	}
}

// State is the intake state machine position
type State int

const (
	// StateAsking means a question is outstanding and the intake waits for an answer
	StateAsking State = iota

	// StateHandedOff means a record was produced; terminal
	StateHandedOff

	// StateCancelled means the patient quit; terminal, no record
	StateCancelled

	// StateFailed means a generator call failed; terminal, no record
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAsking:
		return "asking"
	case StateHandedOff:
		return "handed_off"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further answers are accepted
func (s State) Terminal() bool {
	return s != StateAsking
}

// Turn is the observable result of one intake step
type Turn struct {
	State    State
	Exchange int

	// Question is set while State is StateAsking
	Question string

	// Record is set once State is StateHandedOff
	Record *consultation.Record

	Outcome Outcome

	// Forced is true when the record was synthesized at the exchange ceiling
	Forced bool

	// RedFlags holds every flag detected so far in this consultation
	RedFlags []string
}

// HistoryAgent runs bounded history taking against a generator
type HistoryAgent struct {
	generator    agent.Generator
	detector     *redflag.Detector
	config       *utils.Config
	instructions string
	maxExchanges int
	temperature  float64
	log          logrus.FieldLogger
}

// NewHistoryAgent creates the history stage. The detector and prompt facts come from pol;
// MAX_EXCHANGES, HISTORY_TEMPERATURE and HISTORY_SYSPROMPT_PATH come from config.
func NewHistoryAgent(generator agent.Generator, pol *policy.Policy, config *utils.Config, log logrus.FieldLogger) (*HistoryAgent, error) {
	if generator == nil {
		return nil, fmt.Errorf("history agent needs a generator")
	}
	if pol == nil {
		pol = policy.Default()
	}
	if config == nil {
		config = utils.NewConfig(nil)
	}

	maxExchanges := config.GetIntWithDefault("MAX_EXCHANGES", DefaultMaxExchanges)
	if maxExchanges < 1 {
		return nil, fmt.Errorf("MAX_EXCHANGES must be positive, got %d", maxExchanges)
	}

	detector := pol.Detector()
	basePrompt := utils.LoadPromptWithFallback(config.Get("HISTORY_SYSPROMPT_PATH"), strings.TrimSpace(defaultPrompt))

	return &HistoryAgent{
		generator:    generator,
		detector:     detector,
		config:       config,
		instructions: buildInstructions(basePrompt, pol, detector, maxExchanges),
		maxExchanges: maxExchanges,
		temperature:  config.GetFloatWithDefault("HISTORY_TEMPERATURE", DefaultTemperature),
		log:          logger.Component(log, ID),
	}, nil
}

func buildInstructions(basePrompt string, pol *policy.Policy, detector *redflag.Detector, maxExchanges int) string {
	pb := agent.NewPromptBuilder(basePrompt).
		AddFact("Maximum exchanges", strconv.Itoa(maxExchanges)).
		AddFact("Handoff marker", HandoffMarker)

	questions := make([]string, 0, len(pol.RequiredQuestions))
	for _, q := range pol.RequiredQuestions {
		questions = append(questions, fmt.Sprintf("%s: %q", q.Field, q.Question))
	}
	pb.AddSection("Required Questions", questions...)
	pb.AddSection("Red Flags (hand off immediately)", detector.Phrases()...)

	return pb.Build()
}

// ID returns the stage identifier
func (a *HistoryAgent) ID() string {
	return ID
}

// Config returns the stage configuration
func (a *HistoryAgent) Config() *utils.Config {
	return a.config
}

// MaxExchanges returns the exchange ceiling
func (a *HistoryAgent) MaxExchanges() int {
	return a.maxExchanges
}

// Instructions returns the system prompt sent with every turn
func (a *HistoryAgent) Instructions() string {
	return a.instructions
}

// Detector returns the red flag detector used on patient text
func (a *HistoryAgent) Detector() *redflag.Detector {
	return a.detector
}

// Intake is one consultation's history taking. It writes patient and assistant turns
// into the transcript it was started with and is not safe for concurrent use.
type Intake struct {
	agent      *HistoryAgent
	transcript *consultation.Transcript
	complaint  string
	state      State
	exchange   int
	calls      int
	flags      []string
	record     *consultation.Record
}

// Start begins history taking with the patient's first message and performs turn 1
func (a *HistoryAgent) Start(ctx context.Context, transcript *consultation.Transcript, complaint string) (*Intake, Turn, error) {
	if transcript == nil {
		return nil, Turn{}, consultation.E(consultation.CodeInvalidArgument, "HistoryAgent.Start", "transcript is required", nil)
	}
	if strings.TrimSpace(complaint) == "" {
		return nil, Turn{}, consultation.E(consultation.CodeInvalidArgument, "HistoryAgent.Start", "complaint is empty", nil)
	}

	in := &Intake{
		agent:      a,
		transcript: transcript,
		complaint:  strings.TrimSpace(complaint),
		state:      StateAsking,
	}

	if IsCancellation(complaint) {
		return in, in.Cancel(), nil
	}

	turn, err := in.turn(ctx, in.complaint)
	return in, turn, err
}

// Answer feeds the patient's reply to the outstanding question
func (in *Intake) Answer(ctx context.Context, text string) (Turn, error) {
	if in.state.Terminal() {
		return in.snapshot(), consultation.E(consultation.CodeInvalidState, "Intake.Answer",
			fmt.Sprintf("history taking already %s", in.state), nil)
	}

	if IsCancellation(text) {
		return in.Cancel(), nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return in.snapshot(), consultation.E(consultation.CodeInvalidArgument, "Intake.Answer", "answer is empty", nil)
	}

	return in.turn(ctx, text)
}

// Cancel ends history taking without a record. Cancelling a terminal intake is a no-op.
func (in *Intake) Cancel() Turn {
	if !in.state.Terminal() {
		in.state = StateCancelled
		in.agent.log.WithField("exchange", in.exchange).Info("consultation cancelled by patient")
	}
	return in.snapshot()
}

// State returns the current state
func (in *Intake) State() State { return in.state }

// Exchange returns the number of the last patient turn processed
func (in *Intake) Exchange() int { return in.exchange }

// Calls returns how many generator calls this intake made
func (in *Intake) Calls() int { return in.calls }

// Record returns a copy of the handoff record, or nil before handoff
func (in *Intake) Record() *consultation.Record { return in.record.Clone() }

// RedFlags returns every flag detected so far
func (in *Intake) RedFlags() []string { return slices.Clone(in.flags) }

func (in *Intake) snapshot() Turn {
	t := Turn{
		State:    in.state,
		Exchange: in.exchange,
		Record:   in.record.Clone(),
		RedFlags: slices.Clone(in.flags),
	}
	if in.state == StateAsking {
		t.Question = in.lastQuestion()
	}
	return t
}

func (in *Intake) lastQuestion() string {
	entries := in.transcript.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Speaker == consultation.SpeakerAssistant {
			return entries[i].Text
		}
	}
	return ""
}

// turn runs one exchange: record the patient text, call the generator once, then either
// hand off, ask again, or force a handoff at the ceiling
func (in *Intake) turn(ctx context.Context, text string) (Turn, error) {
	a := in.agent
	in.exchange++
	n := in.exchange

	in.transcript.Append(consultation.SpeakerPatient, text)

	for _, flag := range a.detector.Detect(text) {
		if !slices.Contains(in.flags, flag) {
			in.flags = append(in.flags, flag)
		}
	}

	log := a.log.WithField("exchange", n)
	if len(in.flags) > 0 {
		log.WithFields(logrus.Fields{
			"red_flags":           in.flags,
			"red_flag_categories": a.detector.Categories(in.flags),
		}).Warn("red flags detected")
	}

	in.calls++
	output, err := a.generator.Generate(ctx, agent.Request{
		Agent:        ID,
		Instructions: a.instructions,
		Input:        in.context(n, text),
		Temperature:  a.temperature,
	})
	if err != nil {
		in.state = StateFailed
		log.WithError(err).Error("generator call failed")
		return in.snapshot(), consultation.E(consultation.CodeGenerator, "HistoryAgent.turn", "generator call failed", err)
	}

	result := ParseHandoff(output, n, in.flags, text)

	switch {
	case result.HasRecord():
		if result.Outcome == OutcomeRecovered {
			log.WithError(result.DecodeErr).Warn("handoff record could not be decoded, using partial record")
		}
		if len(result.Notes) > 0 {
			log.WithField("notes", result.Notes).Warn("handoff record fields coerced")
		}
		return in.handOff(result.Record, result.Outcome, false), nil

	case n >= a.maxExchanges:
		log.Warn("exchange ceiling reached without handoff, forcing handoff")
		record := consultation.NewForcedRecord(n, in.complaint)
		record.ApplyRedFlags(in.flags)
		return in.handOff(record, OutcomeQuestion, true), nil

	default:
		question := result.Question
		if question == "" {
			question = fallbackQuestion
		}
		in.transcript.Append(consultation.SpeakerAssistant, question)
		log.Debug("asked follow-up question")

		turn := in.snapshot()
		turn.Outcome = OutcomeQuestion
		return turn, nil
	}
}

func (in *Intake) handOff(record *consultation.Record, outcome Outcome, forced bool) Turn {
	in.record = record
	in.state = StateHandedOff

	in.agent.log.WithFields(logrus.Fields{
		"exchange": in.exchange,
		"status":   record.HandoffStatus,
		"outcome":  outcome.String(),
		"forced":   forced,
	}).Info("history handed off")

	turn := in.snapshot()
	turn.Outcome = outcome
	turn.Forced = forced
	return turn
}

// context renders the generator input for exchange n: earlier turns, the current patient
// text, accumulated red flags and the ceiling warning
func (in *Intake) context(n int, text string) string {
	var b strings.Builder

	if earlier := in.transcript.RenderBefore(in.transcript.Len() - 1); earlier != "" {
		b.WriteString("Previous exchanges:\n")
		b.WriteString(earlier)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Exchange %d:\nPatient: %s\n", n, text)

	if len(in.flags) > 0 {
		fmt.Fprintf(&b, "\nWARNING: Red flags detected: %s. Hand off now with handoff_status EMERGENCY.", strings.Join(in.flags, ", "))
	}

	limit := in.agent.maxExchanges
	switch {
	case n >= limit:
		fmt.Fprintf(&b, "\nNOTE: This is exchange %d of maximum %d. This is the final exchange: reply with %s and the record now.", n, limit, HandoffMarker)
	case n >= limit-1:
		fmt.Fprintf(&b, "\nNOTE: This is exchange %d of maximum %d. Prepare for handoff.", n, limit)
	}

	return b.String()
}
