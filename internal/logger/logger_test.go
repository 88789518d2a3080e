package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"trace":   logrus.TraceLevel,
		"DEBUG":   logrus.DebugLevel,
		"warning": logrus.WarnLevel,
		" warn ":  logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"info":    logrus.InfoLevel,
		"":        logrus.InfoLevel,
		"verbose": logrus.InfoLevel,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug", FormatJSON, &buf)

	Component(l, "history").WithField("exchange", 2).Debug("turn complete")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "history", line["component"])
	assert.Equal(t, "turn complete", line["msg"])
	assert.EqualValues(t, 2, line["exchange"])
}

func TestNew_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("warning", FormatText, &buf)

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestComponent_NilLogger(t *testing.T) {
	entry := Component(nil, "decision")
	assert.NotPanics(t, func() { entry.Info("dropped") })
}

func TestComponent_Hook(t *testing.T) {
	l, hook := test.NewNullLogger()
	Component(l, "communication").Warn("phrase restored")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "communication", hook.LastEntry().Data["component"])
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
