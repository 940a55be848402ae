// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/eventrank/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RecommendDependencies
	DiagnosticDependencies
	EmbeddingDependencies
	StatsProvider
}

const (
	defaultLimit = 10
	defaultMax   = 100
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	recommendHandler  *RecommendHandler
	diagnosticHandler *DiagnosticHandler
	embeddingsHandler *EmbeddingsHandler
	logger            logger.Logger
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	defaultLimit int
	maxLimit     int
	logger       logger.Logger
}

// WithLimits sets the default and maximum ?limit for recommendations.
func WithLimits(def, maxLimit int) Option {
	return func(c *serverConfig) {
		if def > 0 && maxLimit >= def {
			c.defaultLimit, c.maxLimit = def, maxLimit
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := serverConfig{defaultLimit: defaultLimit, maxLimit: defaultMax, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(deps),
		recommendHandler:  NewRecommendHandler(deps, cfg.defaultLimit, cfg.maxLimit),
		diagnosticHandler: NewDiagnosticHandler(deps),
		embeddingsHandler: NewEmbeddingsHandler(deps),
		logger:            cfg.logger,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/recommendations/", MetricsMiddleware(s.recommendHandler.HandleGetRecommendations, "recommendations"))
	mux.HandleFunc("/diagnostics/", MetricsMiddleware(s.diagnosticHandler.HandleGetDiagnostic, "diagnostics"))
	mux.HandleFunc("/embeddings/events", MetricsMiddleware(s.embeddingsHandler.HandlePostEventEmbedding, "embeddings"))
}

// Handler wraps mux with request ids and request logging.
func (s *Server) Handler(mux *http.ServeMux) http.Handler {
	return RequestIDMiddleware(LoggingMiddleware(mux, s.logger))
}
