package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/database"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/orchestrator"
)

type Handlers struct {
	db            *database.Database
	svc           *orchestrator.Service
	streamingBase string
}

func NewHandlers(db *database.Database, svc *orchestrator.Service, streamingBase string) *Handlers {
	return &Handlers{
		db:            db,
		svc:           svc,
		streamingBase: strings.TrimRight(streamingBase, "/"),
	}
}

// Router registers every endpoint of the service.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/healthz", h.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/cameras", h.ListCamerasHandler).Methods("GET")
	api.HandleFunc("/cameras", h.RegisterCameraHandler).Methods("POST")
	api.HandleFunc("/cameras/{camera_id}", h.GetCameraHandler).Methods("GET")
	api.HandleFunc("/cameras/{camera_id}", h.UpdateCameraHandler).Methods("PUT")
	api.HandleFunc("/cameras/{camera_id}", h.UnregisterCameraHandler).Methods("DELETE")
	api.HandleFunc("/cameras/{camera_id}/trigger", h.TriggerHandler).Methods("POST")
	api.HandleFunc("/cameras/{camera_id}/result", h.ResultHandler).Methods("POST")

	api.HandleFunc("/algorithms", h.ListAlgorithmsHandler).Methods("GET")
	api.HandleFunc("/algorithms", h.CreateAlgorithmHandler).Methods("POST")
	api.HandleFunc("/algorithms/{algorithm_id}", h.GetAlgorithmHandler).Methods("GET")
	api.HandleFunc("/algorithms/{algorithm_id}", h.UpdateAlgorithmHandler).Methods("PUT")
	api.HandleFunc("/algorithms/{algorithm_id}", h.DeleteAlgorithmHandler).Methods("DELETE")

	api.HandleFunc("/actions", h.ListActionsHandler).Methods("GET")
	api.HandleFunc("/actions", h.CreateActionHandler).Methods("POST")
	api.HandleFunc("/actions/{action_id}", h.GetActionHandler).Methods("GET")
	api.HandleFunc("/actions/{action_id}", h.UpdateActionHandler).Methods("PUT")
	api.HandleFunc("/actions/{action_id}", h.DeleteActionHandler).Methods("DELETE")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DB.PingContext(r.Context()); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, "ok")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("HTTP request")
	})
}
