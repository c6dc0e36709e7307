package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/lecture-chat/cli/config"
	"github.com/lecture-chat/cli/internal/api"
	"github.com/lecture-chat/cli/internal/artifacts"
	"github.com/lecture-chat/cli/internal/chunker"
	"github.com/lecture-chat/cli/internal/db"
	"github.com/lecture-chat/cli/internal/embeddings"
	"github.com/lecture-chat/cli/internal/generation"
	"github.com/lecture-chat/cli/internal/model"
	"github.com/lecture-chat/cli/internal/ollama"
	"github.com/lecture-chat/cli/internal/pipeline"
	"github.com/lecture-chat/cli/internal/queue"
	"github.com/lecture-chat/cli/internal/rag"
	"github.com/lecture-chat/cli/internal/store"
	"github.com/lecture-chat/cli/internal/transcription"
	"github.com/lecture-chat/cli/internal/vectorindex"
)

// components is everything a run mode needs, built once from the config
type components struct {
	cfg    *config.Config
	logger *slog.Logger

	db        *db.DB
	videos    store.Videos
	artifacts *artifacts.Store
	ffmpeg    *transcription.FFmpeg
	ollama    *ollama.Client
	index     *vectorindex.Index
	redis     *queue.RedisQueue

	controller *pipeline.Controller
	answerer   *rag.Answerer

	closers []func()
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func openAIClient(cfg *config.Config) *openai.Client {
	oc := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		oc.BaseURL = cfg.OpenAI.BaseURL
	}
	return openai.NewClientWithConfig(oc)
}

// build wires the stores, adapters, controller and answerer. worker is true
// for the queue consumer, which must run claimed attempts itself.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, worker bool) (*components, error) {
	c := &components{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			c.close()
		}
	}()

	if cfg.Store.Kind == "postgres" {
		database, err := db.New(ctx, cfg.Database.ConnectionString)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, database.Close)
		if err := database.Migrate(ctx, cfg.VectorIndex.Dimension); err != nil {
			return nil, err
		}
		c.db = database
		c.videos = database
	} else {
		c.videos = store.NewMemory()
	}

	c.artifacts = artifacts.New(cfg.Paths.ProcessedDir)
	c.ffmpeg = transcription.NewFFmpeg(cfg.Transcription.FFmpegBin, cfg.Transcription.FFprobeBin)
	c.ollama = ollama.NewClient(cfg.Ollama.BaseURL)

	var oai *openai.Client
	if cfg.OpenAI.APIKey != "" || cfg.OpenAI.BaseURL != "" {
		oai = openAIClient(cfg)
	}

	transcriber, err := buildTranscriber(cfg, oai, c.ffmpeg)
	if err != nil {
		return nil, err
	}
	embedder, err := buildEmbedder(cfg, oai)
	if err != nil {
		return nil, err
	}
	generator, err := buildGenerator(ctx, cfg, oai, c.ollama, logger)
	if err != nil {
		return nil, err
	}

	backend, err := c.buildBackend(ctx)
	if err != nil {
		return nil, err
	}
	c.index = vectorindex.New(backend)

	ch, err := chunker.New(cfg.Processing.ChunkSize, cfg.Processing.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	var dispatcher pipeline.Dispatcher
	switch cfg.Queue.Kind {
	case "redis":
		rq, err := queue.ConnectRedis(ctx, queue.RedisConfig{
			Addr:     cfg.Queue.Redis.Addr,
			Password: cfg.Queue.Redis.Password,
			DB:       cfg.Queue.Redis.DB,
			Key:      cfg.Queue.Redis.Key,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { rq.Close() })
		c.redis = rq
		dispatcher = rq
	case "pgnotify":
		dispatcher = queue.NewPGDispatcher(c.db)
	}
	if worker {
		dispatcher = nil
	}

	opts := pipeline.DefaultOptions()
	opts.AllowedExtensions = cfg.Upload.AllowedExtensions
	opts.MaxUploadBytes = cfg.Upload.MaxBytes
	opts.EmbedBatchSize = cfg.Embeddings.BatchSize
	opts.MaxConcurrent = int64(cfg.Processing.MaxConcurrent)
	opts.ExtractTimeout = cfg.Processing.ExtractTimeout
	opts.TranscriptionTimeout = cfg.Processing.TranscriptionTimeout
	opts.EmbeddingTimeout = cfg.Processing.EmbeddingTimeout
	opts.StaleGrace = cfg.Processing.StaleGrace

	c.controller = pipeline.New(pipeline.Deps{
		Videos:      c.videos,
		Artifacts:   c.artifacts,
		Extractor:   c.ffmpeg,
		Transcriber: transcriber,
		Chunker:     ch,
		Embedder:    embedder,
		Index:       c.index,
		Dispatcher:  dispatcher,
	}, opts, logger.With("component", "pipeline"))

	retriever := rag.NewRetriever(embedder, c.index, cfg.Processing.TopK)
	builder := rag.NewContextBuilder(0, cfg.Processing.HistoryTurns)
	c.answerer = rag.NewAnswerer(c.videos, retriever, builder, generator, cfg.Generation.Timeout, logger.With("component", "rag"))

	ok = true
	return c, nil
}

func buildTranscriber(cfg *config.Config, oai *openai.Client, ff *transcription.FFmpeg) (transcription.Transcriber, error) {
	t := cfg.Transcription
	switch t.Provider {
	case "whisper_cli":
		return &transcription.WhisperCLI{Bin: t.WhisperBin, Model: t.WhisperModel, Language: t.Language}, nil
	default:
		if oai == nil {
			return nil, fmt.Errorf("openai transcription requires openai.api_key or OPENAI_API_KEY")
		}
		return transcription.NewWhisperAPI(oai, t.Model, t.Language, ff, t.PartSeconds), nil
	}
}

func buildEmbedder(cfg *config.Config, oai *openai.Client) (embeddings.Embedder, error) {
	switch cfg.Embeddings.Provider {
	case "openai":
		if oai == nil {
			return nil, fmt.Errorf("openai embeddings require openai.api_key or OPENAI_API_KEY")
		}
		return embeddings.NewOpenAIEmbedder(oai, cfg.Embeddings.Model), nil
	default:
		return embeddings.NewOllamaEmbedder(cfg.Ollama.BaseURL, cfg.Embeddings.Model), nil
	}
}

func buildGenerator(ctx context.Context, cfg *config.Config, oai *openai.Client, oc *ollama.Client, logger *slog.Logger) (generation.Generator, error) {
	g := cfg.Generation
	if g.Provider == "openai" {
		if oai == nil {
			return nil, fmt.Errorf("openai generation requires openai.api_key or OPENAI_API_KEY")
		}
		name := g.Model
		if name == "" {
			name = openai.GPT4oMini
		}
		return generation.NewOpenAIGenerator(oai, name, float32(g.Temperature), g.MaxTokens), nil
	}

	preferred := g.Model
	if preferred == "" {
		preferred = cfg.Ollama.DefaultModel
	}
	name, err := oc.ResolveModel(ctx, preferred)
	if err != nil {
		// the server may come up later; generation failures degrade answers
		logger.Warn("could not resolve ollama model", "preferred", preferred, "error", err)
		name = preferred
	}
	logger.Info("generation model", "provider", "ollama", "model", name)
	return generation.NewOllamaGenerator(oc, name, g.Temperature), nil
}

func (c *components) buildBackend(ctx context.Context) (vectorindex.Backend, error) {
	vi := c.cfg.VectorIndex
	switch vi.Backend {
	case "pgvector":
		if c.db == nil {
			return nil, fmt.Errorf("pgvector backend requires the postgres store")
		}
		return vectorindex.NewPgvector(c.db), nil
	case "milvus":
		m, err := vectorindex.DialMilvus(ctx, vectorindex.MilvusConfig{
			Address:    vi.Milvus.Address,
			Username:   vi.Milvus.Username,
			Password:   vi.Milvus.Password,
			APIKey:     vi.Milvus.APIKey,
			Collection: vi.Milvus.Collection,
			Dimension:  vi.Dimension,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { m.Close() })
		return m, nil
	default:
		return vectorindex.NewMemory(), nil
	}
}

func (c *components) healthChecks() []api.HealthCheck {
	checks := []api.HealthCheck{
		{Name: "vector_index", Check: c.index.Ping},
	}
	if c.db != nil {
		checks = append(checks, api.HealthCheck{Name: "database", Check: c.db.Ping})
	}
	if c.redis != nil {
		checks = append(checks, api.HealthCheck{Name: "queue", Check: c.redis.Ping})
	}
	if c.cfg.Generation.Provider == "ollama" || c.cfg.Embeddings.Provider == "ollama" {
		checks = append(checks, api.HealthCheck{Name: "ollama", Check: func(ctx context.Context) error {
			_, err := c.ollama.ListModels(ctx)
			return err
		}})
	}
	return checks
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// tuiBackend adapts the store, answerer and controller to the terminal UI
type tuiBackend struct {
	c *components
}

func (b tuiBackend) ListVideos(ctx context.Context) ([]*model.VideoRecord, error) {
	return b.c.videos.ListVideos(ctx)
}

func (b tuiBackend) Ask(ctx context.Context, videoID, question string, history []model.ConversationTurn) (*model.AnswerResult, error) {
	return b.c.answerer.Ask(ctx, videoID, question, history)
}

func (b tuiBackend) Retry(ctx context.Context, videoID string) (*model.VideoRecord, error) {
	return b.c.controller.Retry(ctx, videoID)
}
