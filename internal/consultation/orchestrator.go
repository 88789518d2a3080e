// Package consultation drives one patient through history taking, decision and communication
package consultation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jkim999/primary-care-consultant/internal/agents/communication"
	"github.com/jkim999/primary-care-consultant/internal/agents/decision"
	"github.com/jkim999/primary-care-consultant/internal/agents/history"
	"github.com/jkim999/primary-care-consultant/internal/logger"
	"github.com/jkim999/primary-care-consultant/internal/policy"
	"github.com/jkim999/primary-care-consultant/pkg/agent"
	"github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/utils"
	"github.com/sirupsen/logrus"
)

// CancelledText is the final text of a consultation the patient quit
const CancelledText = "Consultation cancelled by user."

// PatientInput supplies the patient's answer to a follow-up question
type PatientInput func(ctx context.Context, question string) (string, error)

// Result is the outcome of one consultation
type Result struct {
	ID          string
	FinalText   string
	Record      *consultation.Record
	IsEmergency bool
	Cancelled   bool
	Forced      bool
	Transcript  []consultation.Entry

	// Warnings collects non-fatal problems, ex: the consultation log could not be written
	Warnings []string

	StartedAt   time.Time
	CompletedAt time.Time
}

// Orchestrator wires the three stages together. It holds no per-consultation state and
// may run any number of sessions concurrently.
type Orchestrator struct {
	history       *history.HistoryAgent
	decision      *decision.DecisionAgent
	communication *communication.CommunicationAgent
	logger        consultation.Logger
	log           logrus.FieldLogger

	now   func() time.Time
	newID func() string
}

// New builds the three stages over one generator. store may be nil, in which case
// consultations are not logged.
func New(generator agent.Generator, pol *policy.Policy, config *utils.Config, store consultation.Logger, log logrus.FieldLogger) (*Orchestrator, error) {
	if pol == nil {
		pol = policy.Default()
	}

	h, err := history.NewHistoryAgent(generator, pol, config, log)
	if err != nil {
		return nil, fmt.Errorf("history stage: %w", err)
	}

	d, err := decision.NewDecisionAgent(generator, pol, config, log)
	if err != nil {
		return nil, fmt.Errorf("decision stage: %w", err)
	}

	c, err := communication.NewCommunicationAgent(generator, pol, config, log)
	if err != nil {
		return nil, fmt.Errorf("communication stage: %w", err)
	}

	return &Orchestrator{
		history:       h,
		decision:      d,
		communication: c,
		logger:        store,
		log:           logger.Component(log, "orchestrator"),
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
	}, nil
}

// MaxExchanges returns the history exchange ceiling
func (o *Orchestrator) MaxExchanges() int {
	return o.history.MaxExchanges()
}

// Begin starts a consultation with the patient's first message
func (o *Orchestrator) Begin(ctx context.Context, complaint string) (*Session, Step, error) {
	s := &Session{
		id:         o.newID(),
		orch:       o,
		transcript: consultation.NewTranscript(),
		startedAt:  o.now().UTC(),
	}
	s.lastActivity = s.startedAt

	o.log.WithField("consultation_id", s.id).Info("consultation started")

	intake, turn, err := o.history.Start(ctx, s.transcript, complaint)
	if err != nil {
		return nil, Step{}, err
	}
	s.intake = intake

	step, err := s.advance(ctx, turn)
	return s, step, err
}

// Run drives a consultation to the end, asking input for each follow-up answer
func (o *Orchestrator) Run(ctx context.Context, complaint string, input PatientInput) (*Result, error) {
	if input == nil {
		return nil, consultation.E(consultation.CodeInvalidArgument, "Orchestrator.Run", "patient input is required", nil)
	}

	s, step, err := o.Begin(ctx, complaint)
	if err != nil {
		return nil, err
	}

	for !step.Done {
		answer, err := input(ctx, step.Question)
		if err != nil {
			s.Cancel()
			return nil, fmt.Errorf("read patient answer: %w", err)
		}

		step, err = s.Answer(ctx, answer)
		if err != nil && !consultation.IsCode(err, consultation.CodeInvalidArgument) {
			return nil, err
		}
	}

	return step.Result, nil
}

// complete runs the decision and communication stages on a handed-off record and logs
// the consultation
func (o *Orchestrator) complete(ctx context.Context, s *Session, record *consultation.Record, forced bool) (*Result, error) {
	log := o.log.WithFields(logrus.Fields{
		"consultation_id": s.id,
		"status":          record.HandoffStatus,
	})

	decisionText, err := o.decision.Decide(ctx, record.Clone(), s.transcript)
	if err != nil {
		return nil, err
	}

	finalText, err := o.communication.Rewrite(ctx, decisionText, s.transcript)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ID:          s.id,
		FinalText:   finalText,
		Record:      record,
		IsEmergency: record.IsEmergency(),
		Forced:      forced,
		Transcript:  s.transcript.Entries(),
		StartedAt:   s.startedAt,
		CompletedAt: o.now().UTC(),
	}

	if o.logger != nil {
		entry := &consultation.LogEntry{
			ID:          result.ID,
			Timestamp:   result.CompletedAt,
			Record:      record.Clone(),
			Transcript:  result.Transcript,
			FinalText:   finalText,
			IsEmergency: result.IsEmergency,
		}
		if err := o.logger.LogConsultation(ctx, entry); err != nil {
			log.WithError(err).Warn("failed to log consultation")
			result.Warnings = append(result.Warnings, fmt.Sprintf("Could not save consultation log: %v", err))
		}
	}

	log.WithField("is_emergency", result.IsEmergency).Info("consultation completed")
	return result, nil
}

func (o *Orchestrator) cancelled(s *Session) *Result {
	o.log.WithField("consultation_id", s.id).Info("consultation cancelled")

	return &Result{
		ID:          s.id,
		FinalText:   CancelledText,
		Cancelled:   true,
		Transcript:  s.transcript.Entries(),
		StartedAt:   s.startedAt,
		CompletedAt: o.now().UTC(),
	}
}
