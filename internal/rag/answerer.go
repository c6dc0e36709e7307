package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lecture-chat/cli/internal/generation"
	"github.com/lecture-chat/cli/internal/model"
)

const (
	// NoContextAnswer is returned when retrieval finds nothing to ground an answer on
	NoContextAnswer = "I couldn't find relevant information in the lecture to answer your question. " +
		"Please try rephrasing or asking about a different topic."
	// FallbackAnswer replaces the answer when the generative model fails
	FallbackAnswer = "I'm experiencing technical difficulties. Please try again later."

	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

var baseSuggestions = []string{
	"What are the main topics covered in this lecture?",
	"Can you summarize the key points?",
	"What examples were given to explain the concepts?",
	"What did the professor emphasize the most?",
	"Are there any important definitions I should know?",
	"What are the takeaways from this lecture?",
}

var longLectureSuggestions = []string{
	"What was discussed in the first hour?",
	"Can you summarize the second half of the lecture?",
	"What topics were covered around the middle of the lecture?",
}

// VideoReader looks up video records
type VideoReader interface {
	GetVideo(ctx context.Context, id string) (*model.VideoRecord, error)
}

// Answerer answers questions about completed videos
type Answerer struct {
	videos    VideoReader
	retriever *Retriever
	builder   *ContextBuilder
	generator generation.Generator
	timeout   time.Duration
	logger    *slog.Logger
}

// NewAnswerer wires an answerer. A zero timeout leaves generation unbounded.
func NewAnswerer(videos VideoReader, retriever *Retriever, builder *ContextBuilder, generator generation.Generator, timeout time.Duration, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		videos:    videos,
		retriever: retriever,
		builder:   builder,
		generator: generator,
		timeout:   timeout,
		logger:    logger,
	}
}

// ready returns the record if the video exists and finished processing
func (a *Answerer) ready(ctx context.Context, videoID string) (*model.VideoRecord, error) {
	v, err := a.videos.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.Status != model.StatusCompleted {
		return nil, &model.NotReadyError{VideoID: videoID, Status: v.Status}
	}
	return v, nil
}

// Ask retrieves the chunks closest to the question and has the generative
// model answer from them. The returned sources are exactly the retrieved
// chunks. A generation failure yields a degraded result rather than an error.
func (a *Answerer) Ask(ctx context.Context, videoID, question string, history []model.ConversationTurn) (*model.AnswerResult, error) {
	start := time.Now()
	if strings.TrimSpace(question) == "" {
		return nil, model.Validationf("question must not be empty")
	}
	if _, err := a.ready(ctx, videoID); err != nil {
		return nil, err
	}

	hits, err := a.retriever.Retrieve(ctx, videoID, question, 0)
	if err != nil {
		return nil, err
	}
	// a retry claimed during retrieval clears the chunk set
	if _, err := a.ready(ctx, videoID); err != nil {
		return nil, err
	}

	result := &model.AnswerResult{
		VideoID: videoID,
		Sources: Sources(hits),
	}
	if len(hits) == 0 {
		result.Answer = NoContextAnswer
		result.ProcessingTime = time.Since(start).Seconds()
		return result, nil
	}

	prompt := a.builder.BuildPrompt(hits, history, question)
	answer, err := a.generate(ctx, prompt)
	if err != nil {
		var gf *model.GenerationFailure
		if !errors.As(err, &gf) {
			gf = &model.GenerationFailure{Err: err}
		}
		a.logger.Warn("answer generation failed", "video_id", videoID, "error", gf)
		result.Answer = FallbackAnswer
		result.Degraded = true
		result.ProcessingTime = time.Since(start).Seconds()
		return result, nil
	}

	result.Answer = answer
	result.ConfidenceScore = Confidence(result.Sources)
	result.ProcessingTime = time.Since(start).Seconds()
	a.logger.Info("question answered", "video_id", videoID, "sources", len(hits), "elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

func (a *Answerer) generate(ctx context.Context, prompt string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	answer, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return "", &model.GenerationFailure{Err: err}
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", &model.GenerationFailure{Err: errors.New("empty response")}
	}
	return answer, nil
}

// Search returns the chunks most similar to the query without generating an answer
func (a *Answerer) Search(ctx context.Context, videoID, query string, limit int) ([]model.Source, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	if strings.TrimSpace(query) == "" {
		return nil, model.Validationf("query must not be empty")
	}
	if _, err := a.ready(ctx, videoID); err != nil {
		return nil, err
	}
	hits, err := a.retriever.Retrieve(ctx, videoID, query, limit)
	if err != nil {
		return nil, err
	}
	if _, err := a.ready(ctx, videoID); err != nil {
		return nil, err
	}
	return Sources(hits), nil
}

// Suggestions returns starter questions for a video, with extra ones for lectures over an hour
func (a *Answerer) Suggestions(ctx context.Context, videoID string) ([]string, error) {
	v, err := a.videos.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	out := append([]string(nil), baseSuggestions...)
	if v.Duration > 3600 {
		out = append(out, longLectureSuggestions...)
	}
	return out, nil
}
