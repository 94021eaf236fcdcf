// Package httpapi exposes the scanner over HTTP: token queries,
// recommendations, strategy advice, alerts, portfolios and tracked wallets,
// plus health and Prometheus metrics.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/alerts"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/portfolio"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/recommend"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/strategy"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/wallets"
)

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DefaultServerConfig returns a local-only listener.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Deps are the components the API serves.
type Deps struct {
	Alerts     *alerts.Manager
	Portfolios *portfolio.Aggregator
	Recommend  *recommend.Engine
	Advisor    *strategy.Advisor
	Wallets    *wallets.Tracker
	Tokens     TokenLister
	Takeovers  TakeoverChecker
	Deployers  DeployerFeed
}

// Server is the HTTP front of the scanner.
type Server struct {
	router *mux.Router
	server *http.Server
	deps   Deps
	config ServerConfig
}

// NewServer creates a server with all routes configured.
func NewServer(config ServerConfig, deps Deps) *Server {
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		config: config,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/tokens", s.handleListTokens).Methods("GET")
	api.HandleFunc("/tokens/{mint}/takeover", s.handleTakeoverCheck).Methods("GET")
	api.HandleFunc("/deployers/{address}/tokens", s.handleDeployerTokens).Methods("GET")
	api.HandleFunc("/recommendations", s.handleRecommendations).Methods("GET")
	api.HandleFunc("/strategy/{mint}", s.handleStrategy).Methods("GET")

	api.HandleFunc("/users/{userID}/alerts", s.handleCreateAlert).Methods("POST")
	api.HandleFunc("/users/{userID}/alerts", s.handleListAlerts).Methods("GET")
	api.HandleFunc("/users/{userID}/alerts/{id}", s.handleDeleteAlert).Methods("DELETE")

	api.HandleFunc("/users/{userID}/portfolio", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/users/{userID}/portfolio/holdings", s.handleAddHolding).Methods("POST")
	api.HandleFunc("/users/{userID}/portfolio/holdings/{mint}", s.handleRemoveHolding).Methods("DELETE")

	api.HandleFunc("/users/{userID}/wallets", s.handleTrackWallet).Methods("POST")
	api.HandleFunc("/users/{userID}/wallets/{address}", s.handleUntrackWallet).Methods("DELETE")
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start begins serving. It blocks until the listener closes.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
