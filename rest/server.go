package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/engine"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/metadata"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Server struct {
	http.Server
	Port            int
	metadataService metadata.MetadataService
	engine          *engine.Engine
}

// NewServer wires the HTTP routes. events may be nil, in which case the
// websocket endpoint is not exposed.
func NewServer(httpPort int, metadataService metadata.MetadataService, eng *engine.Engine, events http.Handler) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:              fmt.Sprintf(":%d", httpPort),
			IdleTimeout:       2 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		},
		metadataService: metadataService,
		engine:          eng,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/metadata/workflow", s.HandleCreateFlow).Methods(http.MethodPost)
	router.HandleFunc("/metadata/workflow", s.HandleListFlows).Methods(http.MethodGet)
	router.HandleFunc("/metadata/workflow/{id}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/metadata/workflow/{id}", s.HandleDeleteFlow).Methods(http.MethodDelete)

	router.HandleFunc("/execution", s.HandleCreateExecution).Methods(http.MethodPost)
	router.HandleFunc("/execution/{id}", s.HandleGetExecution).Methods(http.MethodGet)
	router.HandleFunc("/execution/{id}/step/{stepId}", s.HandleExecuteStep).Methods(http.MethodPost)
	router.HandleFunc("/execution/{id}/decision", s.HandleSubmitDecision).Methods(http.MethodPost)

	if events != nil {
		router.Handle("/events", events).Methods(http.MethodGet)
	}

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
		return err
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("http request", zap.String("method", r.Method), zap.String("uri", r.RequestURI))
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithEngineError maps an engine error onto an HTTP status through
// its gRPC code.
func respondWithEngineError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	var kinded api.Kinded
	if errors.As(err, &kinded) {
		body["kind"] = kinded.Kind()
	}
	respondWithJSON(w, httpStatus(err), body)
}

func httpStatus(err error) int {
	var st interface{ GRPCStatus() *status.Status }
	if !errors.As(err, &st) {
		return http.StatusInternalServerError
	}
	switch st.GRPCStatus().Code() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition, codes.Aborted:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
