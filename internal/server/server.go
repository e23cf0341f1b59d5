// Package server exposes the parking manager over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"parking-manager/internal/auth"
	"parking-manager/internal/logging"
	"parking-manager/internal/parking"
)

type Server struct {
	httpServer *http.Server
	handler    *Handler
}

func NewServer(port, serviceName string, manager *parking.InstrumentedManager, directory PersonDirectory, authService *auth.Service) *Server {
	handler := NewHandler(manager, directory, authService, serviceName)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(handler, manager.Manager, authService, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
	}
}

func NewRouter(handler *Handler, manager *parking.Manager, authService *auth.Service, serviceName string) http.Handler {
	httpMetrics := newHTTPMetrics()
	registry := newRegistry(manager, httpMetrics)

	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware(serviceName))
	r.Use(LoggingMiddleware)
	r.Use(httpMetrics.middleware)
	r.Use(CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metricsHandler(registry))

	r.Post("/api/auth/login", handler.Login)

	r.Group(func(r chi.Router) {
		r.Use(JWTAuth(authService))

		r.Get("/api/auth/verify", handler.VerifyToken)
		r.Get("/api/users/dni/{dni}", handler.GetPersonByDNI)
		r.With(RequireAdmin).Get("/api/users", handler.ListPeople)

		r.Route("/api/parking", func(r chi.Router) {
			r.Get("/spaces", handler.ListSpaces)
			r.Get("/sessions", handler.ListSessions)
			r.Get("/sessions/{id}", handler.GetSession)
			r.Post("/entry", handler.RegisterEntry)
			r.Post("/exit", handler.RegisterExit)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/sessions/{id}/cancel", handler.CancelSession)
				r.Post("/spaces", handler.CreateSpace)
				r.Delete("/spaces/{id}", handler.DeleteSpace)
				r.Put("/spaces/{id}/maintenance", handler.SetMaintenance)
			})
		})

		r.With(RequireAdmin).Get("/api/reports/stats", handler.Stats)
	})

	return r
}

func (s *Server) Start() error {
	logging.Info(context.Background(), "starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info(ctx, "shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
