package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptBuilder_Creation(t *testing.T) {
	tests := []struct {
		name         string
		systemPrompt string
	}{
		{"simple system prompt", "You are a primary care assistant."},
		{"empty system prompt", ""},
		{"multiline system prompt", "You are a primary care assistant.\nAsk one question at a time."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewPromptBuilder(tt.systemPrompt)
			require.NotNil(t, pb)
			assert.Equal(t, tt.systemPrompt, pb.Build())
		})
	}
}

func TestPromptBuilder_AddContext(t *testing.T) {
	tests := []struct {
		name     string
		contexts []string
		want     string
	}{
		{
			name:     "single context",
			contexts: []string{"Exchange 2 of 5"},
			want:     "Base\n\n## Recent Context:\n- Exchange 2 of 5",
		},
		{
			name:     "multiple contexts",
			contexts: []string{"Exchange 4 of 5", "Ceiling approaching"},
			want:     "Base\n\n## Recent Context:\n- Exchange 4 of 5\n- Ceiling approaching",
		},
		{
			name:     "no contexts",
			contexts: nil,
			want:     "Base",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewPromptBuilder("Base")
			for _, c := range tt.contexts {
				pb.AddContext(c)
			}
			assert.Equal(t, tt.want, pb.Build())
		})
	}
}

func TestPromptBuilder_FactsKeepInsertionOrder(t *testing.T) {
	pb := NewPromptBuilder("Base").
		AddFact("Emergency", "call 911 now").
		AddFact("Urgent", "within 24 hours").
		AddFact("Routine", "within 1-2 weeks").
		AddFact("Urgent", "same day")

	want := "Base\n\n## Key Facts:\n- Emergency: call 911 now\n- Urgent: same day\n- Routine: within 1-2 weeks"
	for range 10 {
		assert.Equal(t, want, pb.Build())
	}
}

func TestPromptBuilder_Sections(t *testing.T) {
	pb := NewPromptBuilder("Base").
		AddSection("Red Flags", "chest pain", "confusion").
		AddSection("Nothing Here").
		AddFact("Max exchanges", "5").
		AddContext("Exchange 1 of 5")

	got := pb.Build()
	assert.Equal(t, strings.Join([]string{
		"Base",
		"\n## Key Facts:",
		"- Max exchanges: 5",
		"\n## Red Flags:",
		"- chest pain",
		"- confusion",
		"\n## Recent Context:",
		"- Exchange 1 of 5",
	}, "\n"), got)
	assert.NotContains(t, got, "Nothing Here")
}
