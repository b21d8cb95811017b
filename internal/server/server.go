// Package server provides the HTTP API for kiritori.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kiritori/internal/config"
	"github.com/hyperjump/kiritori/internal/indexer"
	"github.com/hyperjump/kiritori/internal/models"
	"go.uber.org/zap"
)

// Retriever runs retrieval requests. It never fails; failures are reported in the response outcome.
type Retriever interface {
	Retrieve(ctx context.Context, req *models.RetrievalRequest) *models.RetrievalResponse
}

// Answerer composes answers from retrieval responses.
type Answerer interface {
	Answer(ctx context.Context, question string, resp *models.RetrievalResponse) *models.Answer
}

// WatchService manages watched inbox directories. Implemented by *watcher.Watcher.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the kiritori API.
type Server struct {
	indexer    *indexer.Indexer
	retriever  Retriever
	answerer   Answerer
	config     *config.ServerConfig
	logger     *zap.Logger
	server     *http.Server
	watch      WatchService
	configPath string
	// fullConfig is persisted to configPath when watch directories change.
	fullConfig *config.Config
	configMu   sync.Mutex
}

// NewServer creates a server with the given dependencies. watch may be nil, in which case the
// watch endpoints return 501. fullConfig and configPath may be empty, in which case watch
// changes are not persisted.
func NewServer(
	idx *indexer.Indexer,
	retriever Retriever,
	answerer Answerer,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
	fullConfig *config.Config,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		indexer:    idx,
		retriever:  retriever,
		answerer:   answerer,
		config:     cfg,
		logger:     logger,
		watch:      watch,
		configPath: configPath,
		fullConfig: fullConfig,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Post("/documents", s.handleUpload)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
		r.Get("/documents/{id}/chunks", s.handleDocumentChunks)
		r.Post("/documents/{id}/analyze", s.handleAnalyzeDocument)
		r.Post("/documents/{id}/reprocess", s.handleReprocess)

		r.Post("/retrieve", s.handleRetrieve)
		r.Post("/query", s.handleQuery)
		r.Post("/analyze", s.handleAnalyzeText)
		r.Post("/chunk", s.handleChunkPreview)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
