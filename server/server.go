// Package server implements the taskboard HTTP server: routing, auth and
// request middleware around the REST handlers in server/api.
package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/taskboard/auth"
	"github.com/GoCodeAlone/taskboard/config"
	"github.com/GoCodeAlone/taskboard/internal/version"
	"github.com/GoCodeAlone/taskboard/report"
	"github.com/GoCodeAlone/taskboard/server/api"
	"github.com/GoCodeAlone/taskboard/store"
	"github.com/GoCodeAlone/taskboard/task"
)

// Server is the taskboard HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	store    store.Store
	tasks    *task.Manager
	reports  *report.Engine
	auth     *auth.Service
	issuer   *auth.Issuer
	handlers *api.Handlers

	routesOnce sync.Once

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	version string
}

// New creates a Server backed by st.
func New(cfg config.Config, ver string, st store.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		logger:  logger,
		store:   st,
		tasks:   task.NewManager(st, logger),
		reports: report.NewEngine(st),
		version: ver,
	}

	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s.issuer = auth.NewIssuer(s.jwtSecret(), ttl)
	svc, err := auth.NewService(st, s.issuer, cfg.Auth.BcryptCost, logger)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	s.auth = svc
	return s, nil
}

// Handler returns the fully routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.registerRoutes)
	return s.accessLog(s.cors(s.mux))
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":3000"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Store:   s.store,
		Tasks:   s.tasks,
		Reports: s.reports,
		Logger:  s.logger,
	}
	s.handlers = h

	// Public routes (no auth required)
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /version", s.handleVersion)
	s.mux.HandleFunc("POST /auth/signup", s.handleSignup)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.Handle("GET /auth/me", s.authMiddleware(http.HandlerFunc(s.handleMe)))

	apiMux := http.NewServeMux()
	h.RegisterRoutes(apiMux)
	if s.cfg.Auth.RequireForAPI {
		s.mux.Handle("/", s.authMiddleware(apiMux))
	} else {
		s.mux.Handle("/", apiMux)
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{
		"version": s.version,
		"commit":  version.Commit,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "app is working."})
}

// generateSecret creates a random 32-byte secret.
func generateSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// jwtSecret returns the configured JWT secret, generating one if empty.
func (s *Server) jwtSecret() string {
	if s.cfg.Auth.JWTSecret != "" {
		return s.cfg.Auth.JWTSecret
	}
	s.secretOnce.Do(func() {
		s.generatedSecret = generateSecret()
		s.logger.Warn("no jwt secret configured; tokens will not survive a restart")
	})
	return s.generatedSecret
}
