// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, query string, conv *models.Conversation, opts ...rag.AskOption) (*models.Answer, error)
}

// Retriever runs similarity and keyword lookups.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (*models.RetrievalResult, error)
	Search(ctx context.Context, terms string, limit int) (*models.SearchResponse, error)
}

// StatsSource reports collection statistics.
type StatsSource interface {
	Stats(ctx context.Context) (*models.CollectionStats, error)
}

// Server is the HTTP server for the kotae API.
type Server struct {
	assistant Asker
	retriever Retriever
	stats     StatsSource
	config    *config.Config
	logger    *zap.Logger
	router    chi.Router
	server    *http.Server

	// askMu keeps one question in flight on the shared handles.
	askMu sync.Mutex
}

// NewServer creates a server with the given dependencies.
func NewServer(assistant Asker, retriever Retriever, stats StatsSource, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		assistant: assistant,
		retriever: retriever,
		stats:     stats,
		config:    cfg,
		logger:    utils.LoggerOrNop(logger),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Leave room past the generation timeout so a slow model yields a failed answer, not a 503.
	r.Use(middleware.Timeout(s.config.Generation.Timeout + 30*time.Second))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/retrieve", s.handleRetrieve)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
