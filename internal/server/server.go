// Package server exposes the REST and SSE API over net/http.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/raphaelgruber/docrag/internal/chat"
	"github.com/raphaelgruber/docrag/internal/metrics"
	"github.com/raphaelgruber/docrag/internal/models"
)

// Ingestor is the document pipeline surface the handlers need.
type Ingestor interface {
	Accept(ctx context.Context, originalName string, data []byte) (*models.Document, error)
	Delete(ctx context.Context, documentID string) error
}

// DocumentReader serves document listings and status lookups.
type DocumentReader interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
}

// ConversationReader serves the conversation endpoints.
type ConversationReader interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	DeleteConversation(ctx context.Context, id string) error
	DeleteAllConversations(ctx context.Context) error
}

// Asker streams answers to questions.
type Asker interface {
	Ask(ctx context.Context, req chat.Request, emit func(chat.Event) error) error
}

// Config tunes the HTTP server.
type Config struct {
	ListenAddr string
	// MaxUploadSize bounds multipart reads on the upload endpoint.
	MaxUploadSize int64
	// Models is the list offered by the models endpoint; the first entry
	// marked default by DefaultModel.
	Models       []string
	DefaultModel string
}

// Server wires the HTTP API to its collaborators.
type Server struct {
	ingestor      Ingestor
	documents     DocumentReader
	conversations ConversationReader
	asker         Asker
	collector     *metrics.Collector
	cfg           Config
	logger        *slog.Logger
}

// New creates the API server.
func New(ingestor Ingestor, documents DocumentReader, conversations ConversationReader, asker Asker, collector *metrics.Collector, cfg Config, logger *slog.Logger) *Server {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 50 * 1024 * 1024
	}
	return &Server{
		ingestor:      ingestor,
		documents:     documents,
		conversations: conversations,
		asker:         asker,
		collector:     collector,
		cfg:           cfg,
		logger:        logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/documents/upload", s.handleUpload)
	mux.HandleFunc("GET /api/v1/documents", s.handleListDocuments)
	mux.HandleFunc("GET /api/v1/documents/{id}/status", s.handleDocumentStatus)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", s.handleDeleteDocument)

	mux.HandleFunc("POST /api/v1/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /api/v1/chat/conversations", s.handleListConversations)
	mux.HandleFunc("GET /api/v1/chat/conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("DELETE /api/v1/chat/conversations/{id}", s.handleDeleteConversation)
	mux.HandleFunc("DELETE /api/v1/chat/conversations", s.handleDeleteAllConversations)
	mux.HandleFunc("GET /api/v1/chat/models", s.handleModels)

	mux.HandleFunc("GET /api/v1/admin/stats", s.handleStats)
	mux.HandleFunc("DELETE /api/v1/admin/documents", s.handleDeleteAllDocuments)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.logging(mux)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     s.Handler(),
		ReadTimeout: 5 * time.Minute, // uploads can be large
		// No WriteTimeout: answer streams are open-ended.
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("shutting down http server")
	return httpServer.Shutdown(shutdownCtx)
}
