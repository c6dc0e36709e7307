// Package api exposes upload, processing status and chat over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lecture-chat/cli/internal/model"
	"github.com/lecture-chat/cli/internal/pipeline"
)

// Processor registers uploads and starts processing attempts
type Processor interface {
	Register(ctx context.Context, m pipeline.Media) (*model.VideoRecord, error)
	Start(ctx context.Context, videoID string) (*model.VideoRecord, error)
	Retry(ctx context.Context, videoID string) (*model.VideoRecord, error)
	Delete(ctx context.Context, videoID string) (*model.VideoRecord, error)
	ValidateUpload(filename string, size int64) error
	MaxUploadBytes() int64
}

// Answerer answers questions about processed videos
type Answerer interface {
	Ask(ctx context.Context, videoID, question string, history []model.ConversationTurn) (*model.AnswerResult, error)
	Search(ctx context.Context, videoID, query string, limit int) ([]model.Source, error)
	Suggestions(ctx context.Context, videoID string) ([]string, error)
}

// VideoLister reads video records
type VideoLister interface {
	GetVideo(ctx context.Context, id string) (*model.VideoRecord, error)
	ListVideos(ctx context.Context) ([]*model.VideoRecord, error)
}

// ChunkLoader reads the canonical chunk set of a video
type ChunkLoader interface {
	LoadChunks(videoID string) ([]model.Chunk, error)
}

// DurationProber reads the duration of a media file
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// HealthCheck is one component reported by the detailed health endpoint
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators of the HTTP handlers
type Deps struct {
	Videos    VideoLister
	Processor Processor
	Answerer  Answerer
	Chunks    ChunkLoader
	Prober    DurationProber
	Checks    []HealthCheck
}

// Options configure the server
type Options struct {
	UploadDir string
	// APIKey, when set, is required in the X-API-Key header of every route but /health
	APIKey  string
	Version string
}

// Server holds the handlers
type Server struct {
	Deps
	opts    Options
	logger  *slog.Logger
	started time.Time
}

// NewServer creates the HTTP server handlers
func NewServer(deps Deps, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	return &Server{Deps: deps, opts: opts, logger: logger, started: time.Now()}
}

// Router returns the route table under /api/v1
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/health", s.health).Methods(http.MethodGet)

	// Protected routes
	protected := v1.PathPrefix("").Subrouter()
	if s.opts.APIKey != "" {
		protected.Use(s.requireAPIKey)
	}
	protected.HandleFunc("/health/detailed", s.detailedHealth).Methods(http.MethodGet)

	videos := protected.PathPrefix("/videos").Subrouter()
	videos.HandleFunc("/upload", s.uploadVideo).Methods(http.MethodPost)
	videos.HandleFunc("", s.listVideos).Methods(http.MethodGet)
	videos.HandleFunc("/{id}", s.getVideo).Methods(http.MethodGet)
	videos.HandleFunc("/{id}", s.deleteVideo).Methods(http.MethodDelete)
	videos.HandleFunc("/{id}/status", s.videoStatus).Methods(http.MethodGet)
	videos.HandleFunc("/{id}/process", s.processVideo).Methods(http.MethodPost)
	videos.HandleFunc("/{id}/retry", s.retryVideo).Methods(http.MethodPost)

	chat := protected.PathPrefix("/chat").Subrouter()
	chat.HandleFunc("/search/{id}", s.search).Methods(http.MethodGet)
	chat.HandleFunc("/suggestions/{id}", s.suggestions).Methods(http.MethodGet)
	chat.HandleFunc("/{id}", s.chat).Methods(http.MethodPost)

	return r
}
