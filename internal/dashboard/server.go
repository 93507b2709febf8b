// Package dashboard serves the analytics API consumed by the browser
// client: it orchestrates normalize -> fetch -> calculate -> aggregate on
// each request and serializes the result to JSON.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Config holds the server settings.
type Config struct {
	Port          int
	AuthToken     string
	PortfolioPath string
}

// Server is the HTTP front end over the analysis pipeline.
type Server struct {
	router        *chi.Mux
	server        *http.Server
	analyzer      *Analyzer
	logger        *logrus.Logger
	port          int
	authToken     string
	portfolioPath string
}

// NewServer creates the dashboard server.
func NewServer(cfg Config, analyzer *Analyzer, logger *logrus.Logger) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		analyzer:      analyzer,
		logger:        logger,
		port:          cfg.Port,
		authToken:     cfg.AuthToken,
		portfolioPath: cfg.PortfolioPath,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.logMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/api/portfolio", s.handleAnalyze)
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	raw, err := LoadRawPortfolio(s.portfolioPath)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load raw portfolio")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), raw)
	if err != nil {
		s.logger.WithError(err).Error("Analysis failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.WithError(err).Error("Failed to encode analysis result")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP. Blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting dashboard server on port %d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
