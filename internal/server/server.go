// Package server exposes the triage engines over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/triage-router/internal/capacity"
	"github.com/tributary-ai/triage-router/internal/classify"
	"github.com/tributary-ai/triage-router/internal/middleware"
	"github.com/tributary-ai/triage-router/internal/routing"
	"github.com/tributary-ai/triage-router/internal/security"
	"github.com/tributary-ai/triage-router/internal/selector"
	"github.com/tributary-ai/triage-router/internal/types"
)

// Server is the HTTP front end over the selector and router engines.
type Server struct {
	router      *routing.Router
	selector    *selector.Selector
	classifiers *classify.Registry
	tracker     *capacity.Tracker
	groups      []types.ServiceGroup

	fallbackClassifier string

	auth       *security.Authenticator
	validation *middleware.ValidationMiddleware
	httpServer *http.Server
	config     *Config
	logger     *logrus.Logger
}

// Config holds server configuration.
type Config struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`

	Validation *middleware.ValidationConfig `yaml:"validation"`
	Auth       *security.Config             `yaml:"auth"`
}

// NewServer wires the engines behind the HTTP API. fallbackClassifier names
// the always-available classifier backend used when the selected one fails.
func NewServer(router *routing.Router, sel *selector.Selector, classifiers *classify.Registry, tracker *capacity.Tracker, groups []types.ServiceGroup, fallbackClassifier string, config *Config, logger *logrus.Logger) (*Server, error) {
	s := &Server{
		router:             router,
		selector:           sel,
		classifiers:        classifiers,
		tracker:            tracker,
		groups:             groups,
		fallbackClassifier: fallbackClassifier,
		config:             config,
		logger:             logger,
	}

	if config.Auth != nil {
		s.auth = security.NewAuthenticator(config.Auth, logger)
	}
	if config.Validation != nil {
		vm, err := middleware.NewValidationMiddleware(config.Validation, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize validation middleware: %w", err)
		}
		s.validation = vm
	}

	return s, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	r := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           ":" + s.config.Port,
		Handler:        r,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.logger.WithField("port", s.config.Port).Info("Starting triage router server")
	return s.httpServer.ListenAndServe()
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping triage router server")
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.loggingMiddleware)
	if s.validation != nil {
		r.Use(s.validation.Middleware)
	}

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/route", s.handleRoute).Methods("POST")
	api.HandleFunc("/decisions/{id}/outcome", s.handleOutcome).Methods("POST")
	api.HandleFunc("/providers/select", s.handleSelectProvider).Methods("POST")
	api.HandleFunc("/providers/switch", s.handleSwitchProvider).Methods("POST")
	api.HandleFunc("/providers/usage", s.handleUsageStatus).Methods("GET")
	api.HandleFunc("/groups/capacity", s.handleGroupCapacity).Methods("GET")

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.setupDocsRoutes(r)

	return r
}

// loggingMiddleware emits one structured line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Request handled")
	})
}

// authMiddleware enforces API-key or JWT bearer authentication when
// credentials are configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil || !s.auth.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		info, err := s.auth.Authenticate(token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		s.logger.WithFields(logrus.Fields{
			"subject":   info.Subject,
			"auth_type": info.AuthType,
		}).Debug("Request authenticated")

		next.ServeHTTP(w, r)
	})
}

// extractToken pulls the credential from the Authorization header or the
// X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError writes a structured JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    status,
		},
		"timestamp": time.Now().Unix(),
	})
}
