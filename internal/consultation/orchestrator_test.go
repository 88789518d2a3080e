package consultation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/jkim999/primary-care-consultant/internal/agents/communication"
	"github.com/jkim999/primary-care-consultant/internal/agents/decision"
	"github.com/jkim999/primary-care-consultant/internal/agents/history"
	"github.com/jkim999/primary-care-consultant/pkg/agent"
	"github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	examPhrase  = "I can provide guidance, but I cannot replace an in-person examination."
	closePhrase = "How does this sound to you?"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []*consultation.LogEntry
	err     error
}

func (l *recordingLogger) LogConsultation(_ context.Context, entry *consultation.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entry)
	return nil
}

func newTestOrchestrator(t *testing.T, gen agent.Generator, store consultation.Logger) (*Orchestrator, *test.Hook) {
	t.Helper()

	log, hook := test.NewNullLogger()
	o, err := New(gen, nil, utils.NewConfig(map[string]string{"MAX_EXCHANGES": "5"}), store, log)
	require.NoError(t, err)
	return o, hook
}

// answers returns a PatientInput that replays the given answers and fails when they run out
func answers(texts ...string) PatientInput {
	i := 0
	return func(_ context.Context, _ string) (string, error) {
		if i >= len(texts) {
			return "", io.EOF
		}
		i++
		return texts[i-1], nil
	}
}

const completeHandoff = `JSON_HANDOFF: {"handoff_status": "COMPLETE", "chief_complaint": "stuffy nose", "severity": 3,
 "timeline": {"started": "yesterday", "trend": "stable"}, "red_flags": {"present": [], "ruled_out": ["fever"]},
 "patient_concern": "sleeping"}`

func TestNew(t *testing.T) {
	_, err := New(nil, nil, nil, nil, nil)
	assert.Error(t, err)

	o, err := New(agent.NewScriptedGenerator(), nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, history.DefaultMaxExchanges, o.MaxExchanges())
}

func TestRun_SelfCare(t *testing.T) {
	selfCare := "1. Rest\n2. Fluids\n3. Saline spray\nIf this isn't improving in 7 days, please contact your doctor.\n" + examPhrase + "\n" + closePhrase
	gen := agent.NewScriptedGenerator(
		agent.Say("How long has it been going on?"),
		agent.Say(completeHandoff),
		agent.Say(selfCare),
		agent.Say("That sounds really uncomfortable. "+selfCare),
	)
	store := &recordingLogger{}
	o, _ := newTestOrchestrator(t, gen, store)

	result, err := o.Run(context.Background(), "my nose is stuffy", answers("since yesterday"))
	require.NoError(t, err)

	assert.False(t, result.Cancelled)
	assert.False(t, result.IsEmergency)
	assert.False(t, result.Forced)
	assert.Empty(t, result.Warnings)
	assert.NotEmpty(t, result.ID)
	assert.Contains(t, result.FinalText, "That sounds really uncomfortable.")
	assert.Contains(t, result.FinalText, examPhrase)
	assert.Equal(t, consultation.StatusComplete, result.Record.HandoffStatus)
	assert.Equal(t, 2, result.Record.ExchangeCount)
	assert.Len(t, result.Transcript, 3)

	assert.Len(t, gen.CallsFor(history.ID), 2)
	assert.Len(t, gen.CallsFor(decision.ID), 1)
	assert.Len(t, gen.CallsFor(communication.ID), 1)

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.Equal(t, result.ID, entry.ID)
	assert.Equal(t, result.FinalText, entry.FinalText)
	assert.Equal(t, "stuffy nose", entry.Record.ChiefComplaint)
	assert.Len(t, entry.Transcript, 3)
}

func TestRun_RedFlagEmergency(t *testing.T) {
	// the generator's own record claims COMPLETE and lists no flags
	gen := agent.NewScriptedGenerator(
		agent.Say(completeHandoff),
		agent.Say("Call 911 immediately."),
		agent.Say("Please call 911 right now."),
	)
	o, _ := newTestOrchestrator(t, gen, nil)

	result, err := o.Run(context.Background(), "I have chest pain", answers())
	require.NoError(t, err)

	assert.True(t, result.IsEmergency)
	assert.Equal(t, consultation.StatusEmergency, result.Record.HandoffStatus)
	assert.Contains(t, result.Record.RedFlags.Present, "chest pain")
	assert.Contains(t, gen.CallsFor(decision.ID)[0].Input, `"handoff_status": "EMERGENCY"`)
}

func TestRun_ForcedHandoff(t *testing.T) {
	gen := agent.NewScriptedGenerator()
	gen.Responder = func(req agent.Request) (string, error) {
		switch req.Agent {
		case history.ID:
			return "Can you tell me more?", nil
		case decision.ID:
			return "Schedule an appointment within 2-3 days.", nil
		default:
			return "Please schedule an appointment within 2-3 days.", nil
		}
	}
	o, _ := newTestOrchestrator(t, gen, nil)

	result, err := o.Run(context.Background(), "I feel off", answers("tired", "a while", "not sure", "meh"))
	require.NoError(t, err)

	assert.True(t, result.Forced)
	assert.Equal(t, consultation.StatusIncomplete, result.Record.HandoffStatus)
	assert.Equal(t, consultation.DefaultSeverity, result.Record.Severity)
	assert.Equal(t, 5, result.Record.ExchangeCount)
	assert.Equal(t, "I feel off", result.Record.ChiefComplaint)
	assert.Len(t, gen.CallsFor(history.ID), 5)
}

func TestRun_ParseFailure(t *testing.T) {
	gen := agent.NewScriptedGenerator(
		agent.Say("JSON_HANDOFF: this is not json"),
		agent.Say("See a doctor within 24 hours."),
		agent.Say("I'd like you to see a doctor within 24 hours."),
	)
	o, _ := newTestOrchestrator(t, gen, nil)

	result, err := o.Run(context.Background(), "rash on my arm", answers())
	require.NoError(t, err)

	assert.Equal(t, consultation.StatusIncomplete, result.Record.HandoffStatus)
	assert.Equal(t, "Unable to parse complete history", result.Record.PatientConcern)
	assert.Equal(t, "rash on my arm", result.Record.ChiefComplaint)
}

func TestRun_Cancellation(t *testing.T) {
	tests := []struct {
		name      string
		complaint string
		answers   []string
		calls     int
	}{
		{"quit as first message", "quit", nil, 0},
		{"exit mid history", "my back hurts", []string{"  EXIT "}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := agent.NewScriptedGenerator(agent.Say("When did it start?"))
			store := &recordingLogger{}
			o, _ := newTestOrchestrator(t, gen, store)

			result, err := o.Run(context.Background(), tt.complaint, answers(tt.answers...))
			require.NoError(t, err)

			assert.True(t, result.Cancelled)
			assert.False(t, result.IsEmergency)
			assert.Nil(t, result.Record)
			assert.Equal(t, CancelledText, result.FinalText)
			assert.Len(t, gen.Calls(), tt.calls)
			assert.Empty(t, store.entries)
		})
	}
}

func TestRun_LogFailureIsWarning(t *testing.T) {
	gen := agent.NewScriptedGenerator(
		agent.Say(completeHandoff),
		agent.Say("Rest. "+examPhrase+" "+closePhrase),
		agent.Say("Please rest. "+examPhrase+" "+closePhrase),
	)
	o, hook := newTestOrchestrator(t, gen, &recordingLogger{err: errors.New("disk full")})

	result, err := o.Run(context.Background(), "stuffy nose", answers())
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "disk full")

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "failed to log") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRun_GeneratorFailure(t *testing.T) {
	tests := []struct {
		name    string
		replies []agent.Reply
	}{
		{"history", []agent.Reply{agent.Fail(errors.New("boom"))}},
		{"decision", []agent.Reply{agent.Say(completeHandoff), agent.Fail(errors.New("boom"))}},
		{"communication", []agent.Reply{agent.Say(completeHandoff), agent.Say("Rest."), agent.Fail(errors.New("boom"))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &recordingLogger{}
			o, _ := newTestOrchestrator(t, agent.NewScriptedGenerator(tt.replies...), store)

			result, err := o.Run(context.Background(), "stuffy nose", answers())
			assert.Nil(t, result)
			assert.True(t, consultation.IsCode(err, consultation.CodeGenerator))
			assert.Empty(t, store.entries)
		})
	}
}

func TestRun_InputError(t *testing.T) {
	gen := agent.NewScriptedGenerator(agent.Say("When did it start?"))
	o, _ := newTestOrchestrator(t, gen, nil)

	_, err := o.Run(context.Background(), "headache", answers())
	assert.ErrorIs(t, err, io.EOF)

	_, err = o.Run(context.Background(), "headache", nil)
	assert.True(t, consultation.IsCode(err, consultation.CodeInvalidArgument))
}

func TestSession_Stepwise(t *testing.T) {
	gen := agent.NewScriptedGenerator(
		agent.Say("How bad is it from 1 to 10?"),
		agent.Say(completeHandoff),
		agent.Say("Rest."),
		agent.Say("Please rest."),
	)
	o, _ := newTestOrchestrator(t, gen, nil)
	ctx := context.Background()

	s, step, err := o.Begin(ctx, "sore ankle")
	require.NoError(t, err)
	assert.False(t, step.Done)
	assert.Equal(t, "How bad is it from 1 to 10?", step.Question)
	assert.Equal(t, 1, step.Exchange)
	assert.Equal(t, 1, s.Exchange())
	assert.False(t, s.StartedAt().IsZero())

	step, err = s.Answer(ctx, "   ")
	assert.True(t, consultation.IsCode(err, consultation.CodeInvalidArgument))
	assert.False(t, step.Done)
	assert.Equal(t, "How bad is it from 1 to 10?", step.Question)

	step, err = s.Answer(ctx, "about a 3")
	require.NoError(t, err)
	require.True(t, step.Done)
	assert.Empty(t, step.Question)
	assert.Equal(t, "Please rest.", step.Result.FinalText)
	assert.Same(t, step.Result, s.Result())
	assert.Equal(t, 3, s.Transcript().Len())

	_, err = s.Answer(ctx, "thanks")
	assert.True(t, consultation.IsCode(err, consultation.CodeInvalidState))

	// cancelling a finished consultation keeps its result
	assert.Same(t, step.Result, s.Cancel())
}

func TestSession_CancelWhileAsking(t *testing.T) {
	gen := agent.NewScriptedGenerator(agent.Say("Where does it hurt?"))
	o, _ := newTestOrchestrator(t, gen, nil)

	s, _, err := o.Begin(context.Background(), "pain")
	require.NoError(t, err)

	result := s.Cancel()
	require.NotNil(t, result)
	assert.True(t, result.Cancelled)
	assert.True(t, s.Done())
	assert.Len(t, result.Transcript, 2)
}

func TestSession_RedFlagsReported(t *testing.T) {
	gen := agent.NewScriptedGenerator(agent.Say("Has it changed?"))
	o, _ := newTestOrchestrator(t, gen, nil)

	// the scripted reply is a question, but the red flag is still surfaced on the step
	_, step, err := o.Begin(context.Background(), "pain is 9/10 in my side")
	require.NoError(t, err)
	assert.Equal(t, []string{"severe pain (9/10)"}, step.RedFlags)
}
