package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jkim999/primary-care-consultant/internal/consultation"
	stores "github.com/jkim999/primary-care-consultant/internal/stores/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/agent"
	model "github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsole(t *testing.T, gen agent.Generator, store *stores.InMemoryStore, input string) (*console, *bytes.Buffer) {
	t.Helper()

	var logger model.Logger
	var history model.HistoryReader
	if store != nil {
		logger, history = store, store
	}

	orch, err := consultation.New(gen, nil, utils.NewConfig(map[string]string{"MAX_EXCHANGES": "3"}), logger, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	return newConsole(orch, history, strings.NewReader(input), &out), &out
}

func TestConsole_SelfCareConsultation(t *testing.T) {
	gen := agent.NewScriptedGenerator(
		agent.Say("How long has it hurt?"),
		agent.Say(`JSON_HANDOFF: {"handoff_status": "COMPLETE", "chief_complaint": "sore throat", "severity": 3}`),
		agent.Say("Rest and drink warm fluids."),
		agent.Say("Rest and drink warm fluids."),
	)
	store := stores.NewInMemoryStore()
	c, out := newTestConsole(t, gen, store, "my throat hurts\ntwo days\nno\n")

	require.NoError(t, c.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "IMPORTANT MEDICAL DISCLAIMER")
	assert.Contains(t, text, "Starting consultation #1...")
	assert.Contains(t, text, "How long has it hurt?")
	assert.Contains(t, text, "CONSULTATION SUMMARY")
	assert.Contains(t, text, "Rest and drink warm fluids.")
	assert.Contains(t, text, "✓ Consultation saved to history")
	assert.Contains(t, text, "Consultations completed: 1")
	assert.Contains(t, text, "Remember: For emergencies, always call 911")
	assert.NotContains(t, text, "URGENT MEDICAL ATTENTION REQUIRED")
	assert.Len(t, store.Entries(), 1)
}

func TestConsole_EmergencyBanner(t *testing.T) {
	gen := agent.NewScriptedGenerator(
		agent.Say(`JSON_HANDOFF: {"handoff_status": "EMERGENCY", "chief_complaint": "chest pain", "severity": 9}`),
		agent.Say("Call 911 now."),
		agent.Say("Call 911 now."),
	)
	c, out := newTestConsole(t, gen, stores.NewInMemoryStore(), "I have chest pain\nyes\nquit\n")

	require.NoError(t, c.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "URGENT MEDICAL ATTENTION REQUIRED")
	assert.Contains(t, text, "Call 911 now.")
	assert.Equal(t, 2, strings.Count(text, "Describe your symptoms (or type"), "yes loops back to the complaint prompt")
}

func TestConsole_Commands(t *testing.T) {
	store := stores.NewInMemoryStore()
	long := strings.Repeat("a very long complaint ", 5)
	require.NoError(t, store.LogConsultation(context.Background(), &model.LogEntry{
		ID:        "1",
		Timestamp: time.Date(2024, 3, 1, 10, 30, 0, 0, time.Local),
		Record:    &model.Record{ChiefComplaint: long, Severity: 4, HandoffStatus: model.StatusComplete},
	}))

	gen := agent.NewScriptedGenerator()
	c, out := newTestConsole(t, gen, store, "help\n\nhistory\nEXIT\n")

	require.NoError(t, c.Run(context.Background()))

	text := out.String()
	assert.Equal(t, 2, strings.Count(text, "How to use this system:"))
	assert.Contains(t, text, "Please describe your symptoms or type 'quit' to exit.")
	assert.Contains(t, text, "CONSULTATION HISTORY")
	assert.Contains(t, text, "#1 - 2024-03-01 10:30")
	assert.Contains(t, text, "Complaint: "+long[:50]+"...")
	assert.Contains(t, text, "Severity: 4/10")
	assert.Contains(t, text, "Status: COMPLETE")
	assert.Contains(t, text, "Consultations completed: 0")
	assert.Empty(t, gen.Calls())
}

func TestConsole_EmptyHistory(t *testing.T) {
	c, out := newTestConsole(t, agent.NewScriptedGenerator(), nil, "history\nquit\n")
	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "No consultation history found.")
}

func TestConsole_SurvivesConsultationError(t *testing.T) {
	gen := agent.NewScriptedGenerator(agent.Fail(errors.New("provider down")))
	c, out := newTestConsole(t, gen, stores.NewInMemoryStore(), "cough\nquit\n")

	require.NoError(t, c.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "An error occurred")
	assert.Contains(t, text, "Please try again")
	assert.Contains(t, text, "Consultations completed: 1")
}

func TestConsole_CancelDuringHistory(t *testing.T) {
	store := stores.NewInMemoryStore()
	c, out := newTestConsole(t, agent.NewScriptedGenerator(agent.Say("Where does it hurt?")), store, "pain\nquit\nno\n")

	require.NoError(t, c.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, consultation.CancelledText)
	assert.NotContains(t, text, "saved to history")
	assert.Empty(t, store.Entries())
}

func TestConsole_ClosedInput(t *testing.T) {
	c, out := newTestConsole(t, agent.NewScriptedGenerator(agent.Say("Since when?")), nil, "cough\n")

	require.NoError(t, c.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Thank you for using the AI Primary Care Consultation System")
	assert.NotContains(t, text, "An error occurred")
}

func TestConsole_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, out := newTestConsole(t, agent.NewScriptedGenerator(), nil, "")
	c.lines = make(chan string)

	require.NoError(t, c.Run(ctx))
	assert.Contains(t, out.String(), "Consultation interrupted.")
}

func TestConsole_ReaderStopsAfterRun(t *testing.T) {
	c, _ := newTestConsole(t, agent.NewScriptedGenerator(), nil, "quit\nleft over\nand more\n")
	lines := c.lines

	require.NoError(t, c.Run(context.Background()))

	select {
	case <-c.done:
	default:
		t.Fatal("done is still open after Run")
	}

	// leftover lines may still arrive, but the channel has to close
	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("line reader still running after Run returned")
		}
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("short"))
	assert.Equal(t, strings.Repeat("x", 50)+"...", excerpt(strings.Repeat("x", 51)))
}
