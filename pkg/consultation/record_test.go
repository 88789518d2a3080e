package consultation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHandoffStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    HandoffStatus
		wantErr bool
	}{
		{"EMERGENCY", StatusEmergency, false},
		{"complete", StatusComplete, false},
		{" Incomplete ", StatusIncomplete, false},
		{"URGENT", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseHandoffStatus(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTrend(t *testing.T) {
	got, err := ParseTrend("WORSE")
	require.NoError(t, err)
	assert.Equal(t, TrendWorse, got)

	got, err = ParseTrend("")
	require.NoError(t, err)
	assert.Equal(t, TrendStable, got)

	_, err = ParseTrend("sideways")
	assert.Error(t, err)
}

func TestCoerceTrend(t *testing.T) {
	tests := []struct {
		raw    string
		want   Trend
		wantOK bool
	}{
		{"better", TrendBetter, true},
		{"", TrendStable, true},
		{"improving", TrendBetter, false},
		{"slowly resolving", TrendBetter, false},
		{"Getting Worse", TrendWorse, false},
		{"pain is spreading", TrendWorse, false},
		{"sideways", TrendStable, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := CoerceTrend(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestRecord_ApplyRedFlags(t *testing.T) {
	t.Run("no detected flags leaves the record alone", func(t *testing.T) {
		r := &Record{HandoffStatus: StatusComplete}
		assert.False(t, r.ApplyRedFlags(nil))
		assert.Equal(t, StatusComplete, r.HandoffStatus)
		assert.Empty(t, r.RedFlags.Present)
	})

	t.Run("detected flags force emergency", func(t *testing.T) {
		r := &Record{HandoffStatus: StatusComplete}
		assert.True(t, r.ApplyRedFlags([]string{"chest pain"}))
		assert.Equal(t, StatusEmergency, r.HandoffStatus)
		assert.Equal(t, []string{"chest pain"}, r.RedFlags.Present)
	})

	t.Run("generator flags are kept and missing ones appended", func(t *testing.T) {
		r := &Record{
			HandoffStatus: StatusEmergency,
			RedFlags:      RedFlags{Present: []string{"shortness of breath"}},
		}
		r.ApplyRedFlags([]string{"chest pain", "shortness of breath"})
		assert.Equal(t, []string{"shortness of breath", "chest pain"}, r.RedFlags.Present)
	})
}

func TestRecord_Clone(t *testing.T) {
	r := NewForcedRecord(5, "headache")
	r.SymptomDetails["location"] = "forehead"
	r.RedFlags.Present = append(r.RedFlags.Present, "confusion")

	c := r.Clone()
	c.SymptomDetails["location"] = "temple"
	c.RedFlags.Present[0] = "changed"

	assert.Equal(t, "forehead", r.SymptomDetails["location"])
	assert.Equal(t, "confusion", r.RedFlags.Present[0])
	assert.Nil(t, (*Record)(nil).Clone())
}

func TestRecord_JSONUsesSchemaKeys(t *testing.T) {
	r := NewForcedRecord(5, "sore throat")

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.JSON()), &raw))

	for _, key := range []string{
		"handoff_status", "exchange_count", "chief_complaint", "severity", "timeline",
		"symptom_details", "associated_symptoms", "red_flags", "patient_concern", "relevant_history",
	} {
		assert.Contains(t, raw, key)
	}
}

func TestNewForcedRecord(t *testing.T) {
	complaint := strings.Repeat("a", 150)
	r := NewForcedRecord(5, complaint)

	assert.Equal(t, StatusIncomplete, r.HandoffStatus)
	assert.Equal(t, 5, r.ExchangeCount)
	assert.Equal(t, DefaultSeverity, r.Severity)
	assert.Len(t, r.ChiefComplaint, ComplaintExcerptLength)
	assert.Equal(t, "unknown", r.Timeline.Started)
	assert.Equal(t, TrendStable, r.Timeline.Trend)
	assert.Empty(t, r.RedFlags.Present)
	assert.Empty(t, r.RedFlags.RuledOut)
}

func TestNewRecoveredRecord(t *testing.T) {
	r := NewRecoveredRecord(2, "my stomach hurts", []string{"severe pain"})

	assert.Equal(t, StatusIncomplete, r.HandoffStatus)
	assert.Equal(t, 2, r.ExchangeCount)
	assert.Equal(t, "my stomach hurts", r.ChiefComplaint)
	assert.Equal(t, "Unable to parse complete history", r.PatientConcern)
	assert.Equal(t, []string{"severe pain"}, r.RedFlags.Present)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "abc", Excerpt("abc", 10))
	assert.Equal(t, "ab", Excerpt("abc", 2))
	assert.Equal(t, "héll", Excerpt("héllo", 4))
}

func TestError(t *testing.T) {
	base := errors.New("connection reset")
	err := E(CodeGenerator, "HistoryAgent.turn", "generator call failed", base)

	assert.EqualError(t, err, "HistoryAgent.turn: generator call failed: connection reset")
	assert.True(t, IsCode(err, CodeGenerator))
	assert.False(t, IsCode(err, CodePersistence))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsCode(base, CodeGenerator))
}
