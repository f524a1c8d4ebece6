package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/pipeline/core"
	"workflow-engine/internal/pipeline/stages"
	"workflow-engine/internal/workflow"
)

func newTestHandler(t *testing.T) (*Handler, *workflow.Engine) {
	t.Helper()

	registry := stages.NewRegistry()
	registry.Register("ok", func(cfg core.StageConfig, collab core.Collaborators) core.StageFunc {
		return func(ctx context.Context, dc *core.DataContext) error {
			dc.Output = dc.Input
			return nil
		}
	})

	engine := workflow.NewEngine(
		workflow.WithLogger(logging.NewNopLogger()),
		workflow.WithStageRegistry(registry),
	)
	t.Cleanup(func() { engine.Stop() })

	return New(engine, logging.NewNopLogger()), engine
}

func registerWorkflow(t *testing.T, engine *workflow.Engine, id string) {
	t.Helper()
	require.NoError(t, engine.RegisterWorkflow(&workflow.WorkflowConfig{
		ID:   id,
		Name: id,
		Pipelines: []core.PipelineConfig{{
			ID:     "p1",
			Name:   "p1",
			Stages: []core.StageConfig{{ID: "s1", Type: "ok"}},
		}},
	}))
}

func doRequest(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHandler_Health(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandler_ListWorkflows(t *testing.T) {
	h, engine := newTestHandler(t)
	registerWorkflow(t, engine, "w1")
	registerWorkflow(t, engine, "w2")

	rec := doRequest(t, h, "/api/workflows")
	require.Equal(t, http.StatusOK, rec.Code)

	var configs []workflow.WorkflowConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &configs))
	require.Len(t, configs, 2)
	assert.Equal(t, "w1", configs[0].ID)
	assert.Equal(t, "w2", configs[1].ID)
}

func TestHandler_GetWorkflow(t *testing.T) {
	h, engine := newTestHandler(t)
	registerWorkflow(t, engine, "w1")

	rec := doRequest(t, h, "/api/workflows/w1")
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg workflow.WorkflowConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "w1", cfg.ID)
}

func TestHandler_GetWorkflowNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, "/api/workflows/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "missing")
}

func TestHandler_ListExecutions(t *testing.T) {
	h, engine := newTestHandler(t)
	registerWorkflow(t, engine, "w1")

	_, err := engine.ExecuteWorkflow(context.Background(), "w1", nil)
	require.NoError(t, err)

	rec := doRequest(t, h, "/api/workflows/w1/executions")
	require.Equal(t, http.StatusOK, rec.Code)

	var executions []workflow.WorkflowExecution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &executions))
	require.Len(t, executions, 1)
	assert.Equal(t, "w1", executions[0].WorkflowID)
	assert.Equal(t, workflow.StatusCompleted, executions[0].Status)
}

func TestHandler_ListExecutionsAfterUnregister(t *testing.T) {
	h, engine := newTestHandler(t)
	registerWorkflow(t, engine, "w1")

	_, err := engine.ExecuteWorkflow(context.Background(), "w1", nil)
	require.NoError(t, err)
	require.NoError(t, engine.UnregisterWorkflow("w1"))

	// Unregistration keeps history, so the projection keeps serving it.
	rec := doRequest(t, h, "/api/workflows/w1/executions")
	require.Equal(t, http.StatusOK, rec.Code)

	var executions []workflow.WorkflowExecution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &executions))
	require.Len(t, executions, 1)
	assert.Equal(t, workflow.StatusCompleted, executions[0].Status)
}

func TestHandler_ListExecutionsUnknownWorkflow(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, "/api/workflows/missing/executions")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ListExecutionsInvalidLimit(t *testing.T) {
	h, engine := newTestHandler(t)
	registerWorkflow(t, engine, "w1")

	for _, limit := range []string{"abc", "-1"} {
		rec := doRequest(t, h, "/api/workflows/w1/executions?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestHandler_GetExecution(t *testing.T) {
	h, engine := newTestHandler(t)
	registerWorkflow(t, engine, "w1")

	exec, err := engine.ExecuteWorkflow(context.Background(), "w1", nil)
	require.NoError(t, err)

	rec := doRequest(t, h, "/api/executions/"+exec.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var got workflow.WorkflowExecution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, exec.ID, got.ID)

	rec = doRequest(t, h, "/api/executions/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
