package decision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jkim999/primary-care-consultant/internal/policy"
	"github.com/jkim999/primary-care-consultant/pkg/agent"
	"github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(status consultation.HandoffStatus) *consultation.Record {
	r := consultation.NewForcedRecord(3, "sore throat")
	r.HandoffStatus = status
	return r
}

func TestNewDecisionAgent(t *testing.T) {
	_, err := NewDecisionAgent(nil, nil, nil, nil)
	assert.Error(t, err)

	a, err := NewDecisionAgent(agent.NewScriptedGenerator(), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ID, a.ID())
	assert.NotNil(t, a.Config())

	instructions := a.Instructions()
	assert.Contains(t, instructions, "Conservative bias")
	assert.Contains(t, instructions, "- Conservative mode: on: when in doubt, escalate")
	assert.Contains(t, instructions, "- semi_urgent: See a doctor within 24 hours")
	assert.Contains(t, instructions, `"How does this sound to you?"`)
	assert.Contains(t, instructions, "minor_sprain: Follow the RICE protocol")
}

func TestNewDecisionAgent_PromptOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decision.md")
	require.NoError(t, os.WriteFile(path, []byte("Always escalate."), 0o644))

	pol := policy.Default()
	pol.ConservativeMode = false

	a, err := NewDecisionAgent(agent.NewScriptedGenerator(), pol, utils.NewConfig(map[string]string{"DECISION_SYSPROMPT_PATH": path}), nil)
	require.NoError(t, err)
	assert.Contains(t, a.Instructions(), "Always escalate.")
	assert.NotContains(t, a.Instructions(), "Conservative mode")
}

func TestDecide(t *testing.T) {
	gen := agent.NewScriptedGenerator(agent.Say("  See a doctor within 24 hours.  \n"))
	a, err := NewDecisionAgent(gen, nil, nil, nil)
	require.NoError(t, err)

	transcript := consultation.NewTranscript()
	transcript.Append(consultation.SpeakerPatient, "my throat hurts")
	transcript.Append(consultation.SpeakerAssistant, "How long?")

	decision, err := a.Decide(context.Background(), record(consultation.StatusIncomplete), transcript)
	require.NoError(t, err)
	assert.Equal(t, "See a doctor within 24 hours.", decision)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, ID, calls[0].Agent)
	assert.InDelta(t, DefaultTemperature, calls[0].Temperature, 1e-9)
	assert.Equal(t, a.Instructions(), calls[0].Instructions)
	assert.Contains(t, calls[0].Input, "Patient data:\n{")
	assert.Contains(t, calls[0].Input, `"handoff_status": "INCOMPLETE"`)
	assert.Contains(t, calls[0].Input, "Patient: my throat hurts\nAssistant: How long?")
	assert.Contains(t, calls[0].Input, "based on the decision logic")
}

func TestDecide_NoTranscript(t *testing.T) {
	gen := agent.NewScriptedGenerator(agent.Say("Call 911 immediately."))
	a, err := NewDecisionAgent(gen, nil, utils.NewConfig(map[string]string{"DECISION_TEMPERATURE": "0.1"}), nil)
	require.NoError(t, err)

	_, err = a.Decide(context.Background(), record(consultation.StatusEmergency), nil)
	require.NoError(t, err)

	call := gen.Calls()[0]
	assert.NotContains(t, call.Input, "Conversation")
	assert.InDelta(t, 0.1, call.Temperature, 1e-9)
}

func TestDecide_Errors(t *testing.T) {
	tests := []struct {
		name   string
		record *consultation.Record
		reply  agent.Reply
		code   consultation.Code
		calls  int
	}{
		{"nil record", nil, agent.Say("unused"), consultation.CodeInvalidArgument, 0},
		{"generator failure", record(consultation.StatusComplete), agent.Fail(errors.New("rate limited")), consultation.CodeGenerator, 1},
		{"empty decision", record(consultation.StatusComplete), agent.Say("   "), consultation.CodeGenerator, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			gen := agent.NewScriptedGenerator(tt.reply)
			a, err := NewDecisionAgent(gen, nil, nil, log)
			require.NoError(t, err)

			decision, err := a.Decide(context.Background(), tt.record, consultation.NewTranscript())
			require.Error(t, err)
			assert.Empty(t, decision)
			assert.True(t, consultation.IsCode(err, tt.code))
			assert.Len(t, gen.Calls(), tt.calls)

			if tt.code == consultation.CodeGenerator {
				require.NotNil(t, hook.LastEntry())
				assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
			}
		})
	}
}

func TestDecide_PolicyHints(t *testing.T) {
	pol := policy.Default()

	tests := []struct {
		name      string
		status    consultation.HandoffStatus
		complaint string
		contains  []string
		excludes  []string
	}{
		{
			name:      "emergency gets the escalation action",
			status:    consultation.StatusEmergency,
			complaint: "chest pain",
			contains:  []string{"Required action: Call 911 immediately."},
			excludes:  []string{"Self-care reference"},
		},
		{
			name:      "matching condition gets its self-care steps",
			status:    consultation.StatusComplete,
			complaint: "twisted ankle, probably a sprain",
			contains:  []string{"Self-care reference for minor_sprain", "- " + pol.SelfCareFor("minor_sprain")[0]},
			excludes:  []string{"Required action"},
		},
		{
			name:      "no matching condition adds nothing",
			status:    consultation.StatusComplete,
			complaint: "sore throat",
			excludes:  []string{"Self-care reference", "Required action"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := agent.NewScriptedGenerator(agent.Say("ok"))
			a, err := NewDecisionAgent(gen, pol, nil, nil)
			require.NoError(t, err)

			r := consultation.NewForcedRecord(2, tt.complaint)
			r.HandoffStatus = tt.status

			_, err = a.Decide(context.Background(), r, nil)
			require.NoError(t, err)

			in := gen.Calls()[0].Input
			for _, want := range tt.contains {
				assert.Contains(t, in, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, in, unwanted)
			}
		})
	}
}
