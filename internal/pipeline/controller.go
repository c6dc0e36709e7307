// Package pipeline drives a video through audio extraction, transcription,
// chunking and embedding, persisting each stage on the VideoRecord.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/lecture-chat/cli/internal/artifacts"
	"github.com/lecture-chat/cli/internal/chunker"
	"github.com/lecture-chat/cli/internal/embeddings"
	"github.com/lecture-chat/cli/internal/model"
	"github.com/lecture-chat/cli/internal/store"
	"github.com/lecture-chat/cli/internal/transcription"
	"github.com/lecture-chat/cli/internal/vectorindex"
)

// AudioExtractor writes the audio track of a media file to a WAV file
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, src, dst string) error
}

// Dispatcher hands a claimed attempt to whatever will run it
type Dispatcher interface {
	Dispatch(ctx context.Context, videoID string) error
}

// Media describes an uploaded file handed over by the upload collaborator
type Media struct {
	ID       string
	Filename string
	Title    string
	Path     string
	Size     int64
	Duration float64
}

// Options tune validation, batching and stage timeouts
type Options struct {
	AllowedExtensions    []string
	MaxUploadBytes       int64
	EmbedBatchSize       int
	MaxConcurrent        int64
	ExtractTimeout       time.Duration
	TranscriptionTimeout time.Duration
	EmbeddingTimeout     time.Duration
	// StaleGrace is added to a stage timeout before ReapStale gives up on a record
	StaleGrace           time.Duration
}

// DefaultOptions returns the stock settings
func DefaultOptions() Options {
	return Options{
		AllowedExtensions:    []string{".mp4", ".avi", ".mov", ".mkv", ".webm", ".flv", ".wmv"},
		MaxUploadBytes:       2 << 30,
		EmbedBatchSize:       embeddings.DefaultBatchSize,
		MaxConcurrent:        2,
		ExtractTimeout:       30 * time.Minute,
		TranscriptionTimeout: 2 * time.Hour,
		EmbeddingTimeout:     10 * time.Minute,
		StaleGrace:           5 * time.Minute,
	}
}

// Deps are the collaborators of a Controller
type Deps struct {
	Videos      store.Videos
	Artifacts   *artifacts.Store
	Extractor   AudioExtractor
	Transcriber transcription.Transcriber
	Chunker     *chunker.Chunker
	Embedder    embeddings.Embedder
	Index       *vectorindex.Index
	// Dispatcher receives claimed attempts from Start; nil runs them in-process
	Dispatcher Dispatcher
}

// Controller owns every VideoRecord mutation
type Controller struct {
	Deps
	opts   Options
	logger *slog.Logger
	sem    *semaphore.Weighted
	now    func() time.Time

	// base context for in-process attempts; cancelled by Shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]struct{}
}

// New creates a controller
func New(deps Deps, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		Deps:   deps,
		opts:   opts,
		logger: logger,
		sem:    semaphore.NewWeighted(opts.MaxConcurrent),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		active: make(map[string]struct{}),
	}
}

// Register validates an upload and creates its record in the uploaded state
func (c *Controller) Register(ctx context.Context, m Media) (*model.VideoRecord, error) {
	if err := c.ValidateUpload(m.Filename, m.Size); err != nil {
		return nil, err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	title := strings.TrimSpace(m.Title)
	if title == "" {
		title = strings.TrimSuffix(m.Filename, filepath.Ext(m.Filename))
	}
	duration := m.Duration
	if duration < 0 {
		duration = 0
	}

	rec := &model.VideoRecord{
		ID:         m.ID,
		Filename:   m.Filename,
		Title:      title,
		Duration:   duration,
		FileSize:   m.Size,
		UploadedAt: time.Now().UTC(),
		Status:     model.StatusUploaded,
		SourcePath: m.Path,
	}
	if err := c.Videos.CreateVideo(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to register video: %w", err)
	}
	c.logger.Info("video registered", "video_id", rec.ID, "filename", rec.Filename, "size", rec.FileSize)
	return rec, nil
}

// ValidateUpload checks a file name and size against the upload rules
func (c *Controller) ValidateUpload(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return model.Validationf("no filename provided")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, a := range c.opts.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			allowed = true
			break
		}
	}
	if !allowed {
		return model.Validationf("file type %q not allowed, allowed types: %s", ext, strings.Join(c.opts.AllowedExtensions, ", "))
	}
	if size <= 0 {
		return model.Validationf("file is empty")
	}
	if c.opts.MaxUploadBytes > 0 && size > c.opts.MaxUploadBytes {
		return model.Validationf("file too large: %d bytes, maximum is %d", size, c.opts.MaxUploadBytes)
	}
	return nil
}

// MaxUploadBytes is the configured upload limit
func (c *Controller) MaxUploadBytes() int64 {
	return c.opts.MaxUploadBytes
}

// Begin claims a new attempt. Records that are uploaded, completed or failed
// move to processing; a record with a running attempt returns model.ErrAttemptActive.
func (c *Controller) Begin(ctx context.Context, videoID string) (*model.VideoRecord, error) {
	c.mu.Lock()
	_, running := c.active[videoID]
	c.mu.Unlock()
	if running {
		return nil, model.ErrAttemptActive
	}

	rec, err := c.Videos.ClaimAttempt(ctx, videoID)
	if err != nil {
		return nil, err
	}
	c.logger.Info("attempt claimed", "video_id", videoID, "attempt", rec.Attempt)
	return rec, nil
}

// Process claims an attempt and runs it to a terminal state before returning
func (c *Controller) Process(ctx context.Context, videoID string) error {
	if _, err := c.Begin(ctx, videoID); err != nil {
		return err
	}
	return c.RunClaimed(ctx, videoID)
}

// Start claims an attempt and dispatches it without waiting for it to run
func (c *Controller) Start(ctx context.Context, videoID string) (*model.VideoRecord, error) {
	rec, err := c.Begin(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if c.Dispatcher == nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.RunClaimed(c.ctx, videoID)
		}()
		return rec, nil
	}

	if err := c.Dispatcher.Dispatch(ctx, videoID); err != nil {
		err = fmt.Errorf("failed to dispatch processing job: %w", err)
		c.fail(videoID, rec.Attempt, err)
		return nil, err
	}
	return rec, nil
}

// Retry starts a fresh attempt for a video. Every stage is re-run and the
// previous chunk set is removed before a new one is produced.
func (c *Controller) Retry(ctx context.Context, videoID string) (*model.VideoRecord, error) {
	rec, err := c.Videos.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if rec.Status.IsActive() {
		return nil, model.ErrAttemptActive
	}
	c.logger.Info("retrying video", "video_id", videoID, "previous_status", rec.Status)
	return c.Start(ctx, videoID)
}

// Delete removes a video with no running attempt, together with its chunk set
// and artifacts. The returned record is the one that was removed.
func (c *Controller) Delete(ctx context.Context, videoID string) (*model.VideoRecord, error) {
	c.mu.Lock()
	_, running := c.active[videoID]
	c.mu.Unlock()
	if running {
		return nil, model.ErrAttemptActive
	}

	rec, err := c.Videos.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if err := c.Videos.DeleteVideo(ctx, videoID); err != nil {
		return nil, err
	}
	if err := c.Index.Delete(ctx, videoID); err != nil {
		return nil, fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := c.Artifacts.Remove(videoID); err != nil {
		return nil, err
	}
	c.logger.Info("video deleted", "video_id", videoID)
	return rec, nil
}

// RunClaimed runs the attempt of a record already claimed with Begin. The
// returned error is the one recorded on the record.
func (c *Controller) RunClaimed(ctx context.Context, videoID string) error {
	c.mu.Lock()
	if _, running := c.active[videoID]; running {
		c.mu.Unlock()
		return model.ErrAttemptActive
	}
	c.active[videoID] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.active, videoID)
		c.mu.Unlock()
	}()

	rec, err := c.Videos.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if rec.Status != model.StatusProcessing {
		return fmt.Errorf("%w: attempt for video %s is %s, not %s", model.ErrInvalidTransition, videoID, rec.Status, model.StatusProcessing)
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		err = &model.StageFailure{Stage: model.StatusProcessing, Err: err}
		c.fail(videoID, rec.Attempt, err)
		return err
	}
	defer c.sem.Release(1)

	logger := c.logger.With("video_id", videoID, "attempt", rec.Attempt)
	start := time.Now()
	n, err := c.run(ctx, rec, logger)
	if err != nil {
		c.fail(videoID, rec.Attempt, err)
		return err
	}
	logger.Info("video processing completed", "chunks", n, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// fail records err on the video. It uses its own context so that a cancelled
// attempt is still written down.
func (c *Controller) fail(videoID string, attempt int, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c.logger.Error("video processing failed", "video_id", videoID, "attempt", attempt, "error", err)
	if merr := c.Videos.MarkFailed(ctx, videoID, err.Error()); merr != nil {
		c.logger.Error("failed to record processing failure", "video_id", videoID, "error", merr)
	}
}

// RecoverInterrupted fails records left in an in-flight stage by a previous
// process, so they can be retried
func (c *Controller) RecoverInterrupted(ctx context.Context) (int, error) {
	return c.failActive(ctx, func(v *model.VideoRecord) (string, bool) {
		return "processing interrupted", true
	})
}

// ReapStale fails in-flight records that have not changed for longer than
// their stage may take. A live attempt advances or fails within its stage
// timeout, so such a record has lost the process that was running it. Claimed
// attempts still waiting in a queue count against the processing limit.
func (c *Controller) ReapStale(ctx context.Context) (int, error) {
	now := c.now()
	return c.failActive(ctx, func(v *model.VideoRecord) (string, bool) {
		if now.Sub(v.UpdatedAt) < c.staleAfter(v.Status) {
			return "", false
		}
		return fmt.Sprintf("processing stalled in %s stage", v.Status), true
	})
}

// RunReaper calls ReapStale every interval until ctx is cancelled
func (c *Controller) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := c.ReapStale(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to reap stale attempts", "error", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) staleAfter(s model.Status) time.Duration {
	var limit time.Duration
	switch s {
	case model.StatusProcessing:
		limit = c.opts.ExtractTimeout
	case model.StatusTranscribing:
		limit = c.opts.TranscriptionTimeout
	case model.StatusEmbedding:
		limit = c.opts.EmbeddingTimeout
	}
	return limit + c.opts.StaleGrace
}

// failActive marks failed every in-flight record not running in this process
// for which reason returns true
func (c *Controller) failActive(ctx context.Context, reason func(*model.VideoRecord) (string, bool)) (int, error) {
	active, err := c.Videos.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active videos: %w", err)
	}
	n := 0
	for _, v := range active {
		c.mu.Lock()
		_, running := c.active[v.ID]
		c.mu.Unlock()
		if running {
			continue
		}
		msg, ok := reason(v)
		if !ok {
			continue
		}
		if err := c.Videos.MarkFailed(ctx, v.ID, msg); err != nil {
			if errors.Is(err, model.ErrInvalidTransition) {
				continue
			}
			return n, fmt.Errorf("failed to recover video %s: %w", v.ID, err)
		}
		c.logger.Warn("abandoned attempt marked failed", "video_id", v.ID, "status", v.Status, "reason", msg)
		n++
	}
	return n, nil
}

// Shutdown cancels in-process attempts and waits for them to record their outcome
func (c *Controller) Shutdown(ctx context.Context) error {
	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until in-process attempts started with Start have finished
func (c *Controller) Wait() {
	c.wg.Wait()
}
