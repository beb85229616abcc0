package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"go.uber.org/zap"
)

// decodeBody decodes an optional JSON body into v; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) HandleCreateExecution(w http.ResponseWriter, r *http.Request) {
	var req model.CreateExecutionRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := s.engine.CreateExecution(context.WithoutCancel(r.Context()), req.WorkflowId, req.Context)
	if err != nil {
		logger.Error("error creating execution", zap.String("workflowId", req.WorkflowId), zap.Error(err))
		respondWithEngineError(w, err)
		return
	}
	respondOK(w, map[string]any{"executionId": id})
}

func (s *Server) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	exec, err := s.engine.GetExecutionState(r.Context(), id)
	if err != nil {
		respondWithEngineError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, exec)
}

func (s *Server) HandleExecuteStep(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, stepId := vars["id"], vars["stepId"]
	var patch map[string]any
	if err := decodeBody(r, &patch); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid context patch")
		return
	}
	inst, err := s.engine.ExecuteStep(context.WithoutCancel(r.Context()), id, stepId, patch)
	if err != nil {
		logger.Error("error executing step", zap.String("executionId", id), zap.String("stepId", stepId), zap.Error(err))
		respondWithEngineError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inst)
}

func (s *Server) HandleSubmitDecision(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req model.DecisionRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid decision")
		return
	}
	inst, err := s.engine.SubmitDecision(context.WithoutCancel(r.Context()), id, req.Decision, req.Selection)
	if err != nil {
		logger.Error("error submitting decision", zap.String("executionId", id), zap.Error(err))
		respondWithEngineError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inst)
}
