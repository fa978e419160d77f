// Package server exposes the synthesis service over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/book-expert/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/book-expert/voice-clone-service/internal/history"
	"github.com/book-expert/voice-clone-service/internal/synthesis"
	"github.com/book-expert/voice-clone-service/internal/voices"
)

// Synthesizer is the request path served by POST /synthesize.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synthesis.Request) (*synthesis.Result, error)
	ModelID() string
	OutputDir() string
}

// VoiceLibrary lists and stores reference clips.
type VoiceLibrary interface {
	List() ([]voices.Voice, error)
	Save(userID int64, src io.Reader) (voices.Voice, error)
}

// HistoryStore lists and deletes a user's synthesis records.
type HistoryStore interface {
	List(ctx context.Context, userID int64, limit int) ([]history.Record, error)
	Delete(ctx context.Context, id, userID int64) error
}

// Archive is the read side of the object store generated files are copied to.
type Archive interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// Deps are the collaborators of the HTTP server. History and Archive are
// optional.
type Deps struct {
	Synthesizer    Synthesizer
	Voices         VoiceLibrary
	History        HistoryStore
	Archive        Archive
	Log            *logger.Logger
	MaxUploadBytes int64
	AllowedOrigins []string
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
}

// New creates a Server.
func New(deps Deps) *Server {
	return &Server{deps: deps}
}

// Router builds the chi router with every route and middleware installed.
func (s *Server) Router() *chi.Mux {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	router.Use(middleware.RequestID)
	router.Use(middleware.StripSlashes)
	router.Use(s.accessLog)
	router.Use(middleware.Recoverer)

	router.Post("/synthesize", s.handleSynthesize)
	router.Get("/health", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	router.Get("/voices", s.handleListVoices)
	router.Post("/voices", s.handleUploadVoice)

	router.Get("/outputs/{filename}", s.handleOutput)

	if s.deps.History != nil {
		router.Get("/history", s.handleListHistory)
		router.Delete("/history/{id}", s.handleDeleteHistory)
	}

	return router
}

// StatusFor maps a synthesis failure to its HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	kind, ok := synthesis.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch kind {
	case synthesis.KindInvalidRequest:
		return http.StatusBadRequest
	case synthesis.KindReferenceNotFound:
		return http.StatusNotFound
	case synthesis.KindAudioProcessingFailed:
		return http.StatusUnprocessableEntity
	case synthesis.KindModelFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
