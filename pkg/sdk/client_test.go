package sdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jkim999/primary-care-consultant/internal/api"
	"github.com/jkim999/primary-care-consultant/internal/consultation"
	"github.com/jkim999/primary-care-consultant/internal/settings"
	stores "github.com/jkim999/primary-care-consultant/internal/stores/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/agent"
	"github.com/jkim999/primary-care-consultant/pkg/sdk"
	"github.com/jkim999/primary-care-consultant/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiKey = "sdk-key"

func newBackend(t *testing.T, gen agent.Generator) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := settings.Load(utils.NewConfig(map[string]string{"API_KEY": apiKey}), "test")
	store := stores.NewInMemoryStore()

	orch, err := consultation.New(gen, nil, cfg.Config, store, nil)
	require.NoError(t, err)

	server, err := api.NewServer(cfg, orch, store, nil)
	require.NoError(t, err)

	backend := httptest.NewServer(server.Handler())
	t.Cleanup(backend.Close)
	return backend
}

func TestClient_Consultation(t *testing.T) {
	gen := agent.NewScriptedGenerator(
		agent.Say("How long have you had the cough?"),
		agent.Say(`JSON_HANDOFF: {"handoff_status": "COMPLETE", "chief_complaint": "cough", "severity": 2}`),
		agent.Say("Rest and fluids. If this isn't improving in 7 days, please contact your doctor."),
		agent.Say("I'm sorry you're dealing with this. Rest and fluids. If this isn't improving in 7 days, please contact your doctor."),
	)
	backend := newBackend(t, gen)
	client := sdk.NewClient(backend.URL+"/", apiKey)
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	c, err := client.StartConsultation(ctx, "I have a cough")
	require.NoError(t, err)
	assert.False(t, c.Done())
	assert.Equal(t, "How long have you had the cough?", c.Question)

	got, err := client.GetConsultation(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	c, err = client.Answer(ctx, c.ID, "three days")
	require.NoError(t, err)
	require.True(t, c.Done())
	assert.Equal(t, sdk.StateCompleted, c.State)
	assert.Contains(t, c.Result.FinalText, "please contact your doctor")

	history, err := client.History(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, 1, history.Count)
	assert.Equal(t, "cough", history.Consultations[0].ChiefComplaint)
}

func TestClient_Cancel(t *testing.T) {
	backend := newBackend(t, agent.NewScriptedGenerator(agent.Say("Where is the pain?")))
	client := sdk.NewClient(backend.URL, apiKey)
	ctx := context.Background()

	c, err := client.StartConsultation(ctx, "pain")
	require.NoError(t, err)

	c, err = client.CancelConsultation(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, sdk.StateCancelled, c.State)
	assert.True(t, c.Result.Cancelled)
}

func TestClient_StatusErrors(t *testing.T) {
	backend := newBackend(t, agent.NewScriptedGenerator())
	ctx := context.Background()

	_, err := sdk.NewClient(backend.URL, apiKey).GetConsultation(ctx, "missing")
	var statusErr *sdk.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	_, err = sdk.NewClient(backend.URL, "wrong").History(ctx, 0)
	assert.Error(t, err)
}

func TestClient_WithHTTPClient(t *testing.T) {
	var seen string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-API-KEY")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sdk.NewSuccess("OK"))
	}))
	defer backend.Close()

	client := sdk.NewClient(backend.URL, "k").WithHTTPClient(backend.Client())
	require.NoError(t, client.Health(context.Background()))
	assert.Equal(t, "k", seen)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sdk.NewErrorResponse(http.StatusOK, "bad", errors.New("boom")))
	}))
	defer backend.Close()

	_, err := sdk.NewClient(backend.URL, "k").StartConsultation(context.Background(), "cough")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
