package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
)

func (s *Server) HandleCreateFlow(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var fl model.Workflow
	if err := json.NewDecoder(r.Body).Decode(&fl); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid workflow definition")
		return
	}
	if err := s.metadataService.SaveFlow(fl); err != nil {
		logger.Error("error creating workflow", zap.String("workflowId", fl.Id), zap.Error(err))
		respondWithEngineError(w, err)
		return
	}
	respondOK(w, map[string]any{"created": true, "id": fl.Id})
}

func (s *Server) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	ids, err := s.metadataService.GetMetadataStorage().ListWorkflowDefinitions()
	if err != nil {
		respondWithEngineError(w, err)
		return
	}
	respondOK(w, map[string]any{"workflows": ids})
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	wf, err := s.metadataService.GetMetadataStorage().GetWorkflowDefinition(id)
	if err != nil {
		respondWithEngineError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, wf)
}

func (s *Server) HandleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.metadataService.DeleteFlow(id); err != nil {
		logger.Error("error deleting workflow", zap.String("workflowId", id), zap.Error(err))
		respondWithEngineError(w, err)
		return
	}
	respondOK(w, map[string]any{"deleted": true})
}
