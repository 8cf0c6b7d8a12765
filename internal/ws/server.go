// Package ws is the connection surface: websocket sessions for drivers
// and passengers, plus the small REST surface for ops (cancel,
// redispatch, inspection) and the usual health/metrics endpoints.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/trip-dispatch/internal/auth"
	"github.com/example/trip-dispatch/internal/dispatch"
	"github.com/example/trip-dispatch/internal/gateway"
	"github.com/example/trip-dispatch/internal/ingest"
	"github.com/example/trip-dispatch/internal/location"
	"github.com/example/trip-dispatch/internal/presence"
)

type Server struct {
	auth      auth.Authenticator
	hub       *gateway.Hub
	presence  *presence.Registry
	locations location.Store
	ctrl      *dispatch.Controller
	producer  *ingest.Producer // nil when Kafka is not configured
	logger    *slog.Logger

	router   *mux.Router
	upgrader websocket.Upgrader
}

func NewServer(a auth.Authenticator, hub *gateway.Hub, reg *presence.Registry, locs location.Store, ctrl *dispatch.Controller, producer *ingest.Producer, logger *slog.Logger) *Server {
	s := &Server{
		auth:      a,
		hub:       hub,
		presence:  reg,
		locations: locs,
		ctrl:      ctrl,
		producer:  producer,
		logger:    logger,
		router:    mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/ws", s.handleWS)
	s.router.HandleFunc("/api/v1/trips/{trip_id}", s.handleGetTrip).Methods("GET")
	s.router.HandleFunc("/api/v1/trips/{trip_id}/cancel", s.handleCancelTrip).Methods("POST")
	s.router.HandleFunc("/api/v1/trips/{trip_id}/complete", s.handleCompleteTrip).Methods("POST")
	s.router.HandleFunc("/api/v1/trips/{trip_id}/redispatch", s.handleRedispatchTrip).Methods("POST")
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// handleWS authenticates the token presented on the query string and,
// on success, upgrades and runs the session loop. Bad or missing
// credentials refuse the connection before the upgrade.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ident, err := s.auth.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		s.logger.Warn("connection refused", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response
		s.logger.Warn("upgrade failed", "participant", ident.ID, "error", err)
		return
	}
	s.runSession(ident, conn)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.ctrl.Get(mux.Vars(r)["trip_id"])
	if !ok {
		http.Error(w, "trip not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trip)
}

func (s *Server) handleCancelTrip(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.ctrl.Cancel)
}

func (s *Server) handleCompleteTrip(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.ctrl.Complete)
}

func (s *Server) handleRedispatchTrip(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.ctrl.Redispatch)
}

// transition runs one external lifecycle hook and maps the controller's
// sentinels to HTTP statuses.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, tripID string) error) {
	tripID := mux.Vars(r)["trip_id"]
	switch err := fn(r.Context(), tripID); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, dispatch.ErrNotFound):
		http.Error(w, "trip not found", http.StatusNotFound)
	case errors.Is(err, dispatch.ErrConflict):
		http.Error(w, "conflicting trip state", http.StatusConflict)
	default:
		s.logger.Error("trip transition failed", "trip_id", tripID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
