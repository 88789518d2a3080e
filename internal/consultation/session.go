package consultation

import (
	"context"
	"time"

	"github.com/jkim999/primary-care-consultant/internal/agents/history"
	"github.com/jkim999/primary-care-consultant/pkg/consultation"
)

// Step is what the patient sees after each message: another question, or the result
type Step struct {
	Question string
	Exchange int
	RedFlags []string

	Done   bool
	Result *Result
}

// Session is one consultation in progress. It owns its transcript and is not safe for
// concurrent use.
type Session struct {
	id         string
	orch       *Orchestrator
	transcript *consultation.Transcript
	intake     *history.Intake
	result     *Result
	failed     bool

	startedAt    time.Time
	lastActivity time.Time
}

// ID returns the consultation identifier
func (s *Session) ID() string { return s.id }

// Transcript returns a read-only view of the conversation so far
func (s *Session) Transcript() consultation.TranscriptView { return s.transcript }

// Exchange returns the number of patient messages processed by history taking
func (s *Session) Exchange() int { return s.intake.Exchange() }

// Done reports whether the consultation has ended, successfully or not
func (s *Session) Done() bool { return s.result != nil || s.failed }

// Failed reports whether the consultation ended on an error
func (s *Session) Failed() bool { return s.failed }

// Result returns the final result, or nil while the consultation is running or after a failure
func (s *Session) Result() *Result { return s.result }

// StartedAt returns when the consultation began
func (s *Session) StartedAt() time.Time { return s.startedAt }

// LastActivity returns when the patient last sent a message
func (s *Session) LastActivity() time.Time { return s.lastActivity }

// Answer sends the patient's reply to the outstanding question
func (s *Session) Answer(ctx context.Context, text string) (Step, error) {
	if s.Done() {
		return s.Step(), consultation.E(consultation.CodeInvalidState, "Session.Answer", "consultation already finished", nil)
	}

	s.lastActivity = s.orch.now().UTC()

	turn, err := s.intake.Answer(ctx, text)
	if err != nil {
		if consultation.IsCode(err, consultation.CodeGenerator) {
			s.failed = true
		}
		return s.Step(), err
	}

	return s.advance(ctx, turn)
}

// Cancel ends the consultation without a record. It returns the existing result when the
// consultation already finished.
func (s *Session) Cancel() *Result {
	if s.Done() {
		return s.result
	}

	s.intake.Cancel()
	s.result = s.orch.cancelled(s)
	return s.result
}

// advance turns a history turn into a step, running the downstream stages on handoff
func (s *Session) advance(ctx context.Context, turn history.Turn) (Step, error) {
	switch turn.State {
	case history.StateAsking:
		return s.Step(), nil

	case history.StateCancelled:
		s.result = s.orch.cancelled(s)
		return s.Step(), nil

	case history.StateHandedOff:
		result, err := s.orch.complete(ctx, s, turn.Record, turn.Forced)
		if err != nil {
			s.failed = true
			return s.Step(), err
		}
		s.result = result
		return s.Step(), nil

	default:
		s.failed = true
		return s.Step(), consultation.E(consultation.CodeInvalidState, "Session.advance", "history taking failed", nil)
	}
}

// Step returns where the consultation stands now
func (s *Session) Step() Step {
	step := Step{
		Exchange: s.intake.Exchange(),
		RedFlags: s.intake.RedFlags(),
		Done:     s.Done(),
		Result:   s.result,
	}
	if s.intake.State() == history.StateAsking && !step.Done {
		step.Question = lastAssistantText(s.transcript)
	}
	return step
}

func lastAssistantText(t consultation.TranscriptView) string {
	entries := t.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Speaker == consultation.SpeakerAssistant {
			return entries[i].Text
		}
	}
	return ""
}
