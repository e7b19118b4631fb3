// Package api exposes the HTTP surface of the hub: relay control, live
// status, usage accounting, sensor history, and the websocket endpoint.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/powersense/backend/internal/hub"
	"github.com/powersense/backend/internal/storage"
)

// Server wires the HTTP routes to the hub and the store.
type Server struct {
	httpServer *http.Server
	hub        *hub.Hub
	store      storage.Store
	log        *slog.Logger
}

// New creates a Server. The metrics handler may be nil to omit the
// /metrics endpoint.
func New(addr string, h *hub.Hub, store storage.Store, metricsHandler http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{hub: h, store: store, log: log.With("component", "api")}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods("GET")
	r.HandleFunc("/ws", h.ServeWS)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/relay/{id}/{action}", s.handleLegacyRelay).Methods("GET")
	api.HandleFunc("/relays", s.handleRelayList).Methods("GET")
	api.HandleFunc("/relays/{id}/toggle", s.handleToggle).Methods("POST")
	api.HandleFunc("/usage", s.handleUsage).Methods("GET")
	api.HandleFunc("/sensor-data", s.handleSensorData).Methods("GET")
	api.HandleFunc("/avg-power-consumption", s.handleAvgPower).Methods("GET")
	api.HandleFunc("/sensors/latest", s.handleLatest).Methods("GET")

	// Dashboards and apps connect from arbitrary origins with credentials,
	// matching the permissive policy of the websocket endpoint.
	cors := handlers.CORS(
		handlers.AllowedOriginValidator(func(string) bool { return true }),
		handlers.AllowCredentials(),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: cors(s.logRequests(r)),
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// logRequests logs each request with its origin, the way the old backend
// traced traffic.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = r.Host
		}
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "origin", origin)
		next.ServeHTTP(w, r)
	})
}
