package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jkim999/primary-care-consultant/internal/agents/communication"
	"github.com/jkim999/primary-care-consultant/internal/agents/decision"
	"github.com/jkim999/primary-care-consultant/internal/agents/history"
	"github.com/jkim999/primary-care-consultant/internal/consultation"
	"github.com/jkim999/primary-care-consultant/internal/policy"
	stores "github.com/jkim999/primary-care-consultant/internal/stores/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/agent"
	model "github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	selfTestEmergency = "Call 911 immediately or go to the nearest emergency room."
	selfTestReferral  = "Please see a doctor within 24 hours for an in-person assessment."
)

var errOutOfAnswers = errors.New("scenario ran out of answers")

// scenario is one offline consultation. reply scripts the history stage for exchange n.
type scenario struct {
	name      string
	complaint string
	answers   []string
	reply     func(n int) string
	check     func(r *consultation.Result, logged []*model.LogEntry) error
}

func selfTestScenarios(maxExchanges int) []scenario {
	askAgain := func(int) string { return "Can you tell me more about it?" }

	return []scenario{
		{
			name:      "red flag escalation",
			complaint: "I have crushing chest pain and difficulty breathing",
			reply: func(int) string {
				return `JSON_HANDOFF: {"handoff_status": "COMPLETE", "chief_complaint": "chest pain", "severity": 9}`
			},
			check: func(r *consultation.Result, logged []*model.LogEntry) error {
				if !r.IsEmergency {
					return errors.New("expected an emergency result")
				}
				if len(logged) != 1 || !logged[0].IsEmergency {
					return errors.New("expected one emergency log entry")
				}
				if !strings.Contains(r.FinalText, "911") {
					return fmt.Errorf("final text does not escalate: %q", r.FinalText)
				}
				return nil
			},
		},
		{
			name:      "forced handoff at the exchange ceiling",
			complaint: "I feel tired all the time",
			answers:   repeat("not sure", maxExchanges-1),
			reply:     askAgain,
			check: func(r *consultation.Result, logged []*model.LogEntry) error {
				if !r.Forced {
					return errors.New("expected a forced handoff")
				}
				if r.Record.HandoffStatus != model.StatusIncomplete || r.Record.ExchangeCount != maxExchanges {
					return fmt.Errorf("unexpected record: status %s, exchanges %d", r.Record.HandoffStatus, r.Record.ExchangeCount)
				}
				if len(logged) != 1 {
					return fmt.Errorf("expected one log entry, got %d", len(logged))
				}
				return nil
			},
		},
		{
			name:      "unparseable handoff",
			complaint: "my ankle hurts after a run",
			answers:   []string{"since yesterday"},
			reply: func(n int) string {
				if n == 1 {
					return "When did it start?"
				}
				return `JSON_HANDOFF: {"handoff_status": "COMPLETE", "severity": `
			},
			check: func(r *consultation.Result, logged []*model.LogEntry) error {
				if r.Record.HandoffStatus != model.StatusIncomplete {
					return fmt.Errorf("expected INCOMPLETE, got %s", r.Record.HandoffStatus)
				}
				if r.Record.Severity != model.DefaultSeverity {
					return fmt.Errorf("expected default severity, got %d", r.Record.Severity)
				}
				return nil
			},
		},
		{
			name:      "patient cancels",
			complaint: "I have a headache",
			answers:   []string{"quit"},
			reply:     askAgain,
			check: func(r *consultation.Result, logged []*model.LogEntry) error {
				if !r.Cancelled || r.FinalText != consultation.CancelledText {
					return fmt.Errorf("expected a cancelled result, got %q", r.FinalText)
				}
				if len(logged) != 0 {
					return errors.New("cancelled consultations must not be logged")
				}
				return nil
			},
		},
	}
}

// scriptedStages answers every stage offline: history from the scenario, decision by
// record status, communication by passing the decision through
func scriptedStages(reply func(n int) string) *agent.ScriptedGenerator {
	gen := agent.NewScriptedGenerator()
	exchange := 0

	gen.Responder = func(req agent.Request) (string, error) {
		switch req.Agent {
		case history.ID:
			exchange++
			return reply(exchange), nil
		case decision.ID:
			if strings.Contains(req.Input, string(model.StatusEmergency)) {
				return selfTestEmergency, nil
			}
			return selfTestReferral, nil
		case communication.ID:
			_, text, _ := strings.Cut(req.Input, "Transform this medical response:\n")
			return text, nil
		default:
			return "", fmt.Errorf("unexpected stage %q", req.Agent)
		}
	}
	return gen
}

// runSelfTest runs every scenario offline and reports whether all passed
func runSelfTest(ctx context.Context, config *utils.Config, pol *policy.Policy, u *ui, log logrus.FieldLogger) bool {
	u.println()
	u.println(u.assistant.Render("Running offline self-test"))
	u.rule()

	passed := 0
	scenarios := selfTestScenarios(config.GetIntWithDefault("MAX_EXCHANGES", 5))
	for _, sc := range scenarios {
		if err := runScenario(ctx, sc, config, pol, log); err != nil {
			u.fail("FAIL  %s: %v", sc.name, err)
			continue
		}
		passed++
		u.ok("PASS  %s", sc.name)
	}

	u.rule()
	u.println(fmt.Sprintf("%d/%d scenarios passed", passed, len(scenarios)))
	return passed == len(scenarios)
}

func runScenario(ctx context.Context, sc scenario, config *utils.Config, pol *policy.Policy, log logrus.FieldLogger) error {
	store := stores.NewInMemoryStore()

	orchestrator, err := consultation.New(scriptedStages(sc.reply), pol, config, store, log)
	if err != nil {
		return err
	}

	answers := sc.answers
	result, err := orchestrator.Run(ctx, sc.complaint, func(context.Context, string) (string, error) {
		if len(answers) == 0 {
			return "", errOutOfAnswers
		}
		next := answers[0]
		answers = answers[1:]
		return next, nil
	})
	if err != nil {
		return err
	}

	return sc.check(result, store.Entries())
}

func repeat(s string, n int) []string {
	out := make([]string, 0, n)
	for range n {
		out = append(out, s)
	}
	return out
}
