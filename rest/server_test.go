package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohitkumar/stepflow/action"
	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/engine"
	"github.com/mohitkumar/stepflow/metadata"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/persistence/memory"
	"github.com/stretchr/testify/require"
)

const approvalDefinition = `{
  "id": "approval",
  "steps": [
    {"id": "prepare", "actions": [{"type": "prepare", "amount": "{{amount}}"}]},
    {"id": "approve", "type": "decision"},
    {"id": "apply", "outputs": {"result": "applied {{decision}}"}}
  ],
  "transitions": [
    {"from": "prepare", "to": "approve", "condition": "always"},
    {"from": "approve", "to": "apply", "condition": "{{decision}}"}
  ]
}`

func newTestServer(t *testing.T) *httptest.Server {
	registry := action.NewRegistry()
	registry.Register("prepare", func(ctx context.Context, a model.ActionSpec, view map[string]any) (map[string]any, error) {
		return map[string]any{"prepared": a["amount"]}, nil
	})
	metadataService := metadata.NewMetadataService(metadata.NewMemoryMetadataStorage())
	eng := engine.NewEngine(engine.DefaultConfig(), metadataService,
		memory.NewExecutionStore(time.Second, 0), action.NewDispatcher(registry, time.Second, nil), nil)
	s, err := NewServer(0, metadataService, eng, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method string, path string, body string, out any) int {
	req, err := http.NewRequest(method, srv.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestExecutionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/metadata/workflow", approvalDefinition, nil))

	var list map[string][]string
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/metadata/workflow", "", &list))
	require.Equal(t, []string{"approval"}, list["workflows"])

	var created map[string]string
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/execution", `{"workflowId": "approval", "context": {"amount": 12}}`, &created))
	id := created["executionId"]
	require.NotEmpty(t, id)

	var inst model.Instruction
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/execution/"+id+"/step/prepare", "", &inst))
	require.Equal(t, model.INSTRUCTION_AWAITING_DECISION, inst.Type)
	require.Equal(t, "approve", inst.StepId)

	var errBody map[string]string
	require.Equal(t, http.StatusConflict, call(t, srv, http.MethodPost, "/execution/"+id+"/decision", `{}`, &errBody))
	require.Equal(t, api.KIND_DECISION_MISMATCH, errBody["kind"])

	require.Equal(t, http.StatusOK, call(t, srv, http.MethodPost, "/execution/"+id+"/decision", `{"selection": {"id": "ok"}}`, &inst))
	require.Equal(t, model.INSTRUCTION_TERMINAL, inst.Type)

	var exec model.WorkflowExecution
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/execution/"+id, "", &exec))
	require.Equal(t, model.TERMINAL, exec.State)
	require.Equal(t, "applied ok", exec.Context["result"])
	require.Equal(t, float64(12), exec.Context["prepared"])
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)
	var errBody map[string]string

	require.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, "/metadata/workflow", `{"id": "bad", "steps": []}`, &errBody))
	require.Equal(t, api.KIND_DEFINITION_ERROR, errBody["kind"])

	require.Equal(t, http.StatusBadRequest, call(t, srv, http.MethodPost, "/metadata/workflow", `not json`, nil))

	require.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/metadata/workflow/nope", "", &errBody))
	require.Equal(t, http.StatusNotFound, call(t, srv, http.MethodPost, "/execution", `{"workflowId": "nope"}`, &errBody))
	require.Equal(t, api.KIND_WORKFLOW_NOT_FOUND, errBody["kind"])
	require.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/execution/nope", "", &errBody))
	require.Equal(t, api.KIND_EXECUTION_NOT_FOUND, errBody["kind"])
}

func TestHttpStatus(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, httpStatus(api.EngineSafetyFault{}))
	require.Equal(t, http.StatusConflict, httpStatus(api.HandlerError{}))
	require.Equal(t, http.StatusInternalServerError, httpStatus(context.Canceled))
}
