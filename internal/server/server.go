// internal/server/server.go

// Package server exposes the bypass service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/pkg/api"
)

// Server is the HTTP front for the bypass service.
type Server struct {
	service *api.Service
	log     utils.Logger
	server  *http.Server

	metricsPath string
}

// New creates the HTTP server around an assembled service.
func New(service *api.Service, metricsPath string) *Server {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Server{
		service:     service,
		log:         utils.NewComponentLogger("http"),
		metricsPath: metricsPath,
	}
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Infof("listening on %s", addr)
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/resolve", s.handleResolve).Methods(http.MethodPost)
	v1.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	v1.HandleFunc("/sites", s.handleSites).Methods(http.MethodGet)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle(s.metricsPath, s.service.MetricsHandler()).Methods(http.MethodGet)

	return router
}

type resolveRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a \"url\" field")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result := s.service.Resolve(r.Context(), req.URL)

	status := http.StatusOK
	if !result.Success {
		switch utils.CodeOf(result.Error) {
		case utils.ErrCodeInvalidInput:
			status = http.StatusBadRequest
		case utils.ErrCodeCanceled:
			status = http.StatusRequestTimeout
		default:
			status = http.StatusUnprocessableEntity
		}
	}
	writeJSON(w, status, result)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Statistics())
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.service.Sites().ActiveSites(r.Context())
	if err != nil {
		s.log.Errorf("site listing failed: %v", err)
		writeError(w, http.StatusInternalServerError, "site listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": sites, "count": len(sites)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
