package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lecture-chat/cli/internal/embeddings"
	"github.com/lecture-chat/cli/internal/model"
	"github.com/lecture-chat/cli/internal/store"
	"github.com/lecture-chat/cli/internal/transcription"
)

// run executes every stage of one attempt in order and returns the chunk count.
// A stage's output is recorded before the status moves on.
func (c *Controller) run(ctx context.Context, rec *model.VideoRecord, logger *slog.Logger) (int, error) {
	id := rec.ID

	// processing: drop the previous attempt's outputs, then extract audio
	var audioPath string
	err := c.stage(ctx, logger, model.StatusProcessing, c.opts.ExtractTimeout, func(ctx context.Context) error {
		if err := c.Index.Delete(ctx, id); err != nil {
			return err
		}
		if err := c.Artifacts.Clear(id); err != nil {
			return err
		}
		dst, err := c.Artifacts.AudioPath(id)
		if err != nil {
			return err
		}
		if err := c.Extractor.ExtractAudio(ctx, rec.SourcePath, dst); err != nil {
			return err
		}
		audioPath = dst
		return c.Videos.SetArtifacts(ctx, id, store.Artifacts{AudioPath: dst})
	})
	if err != nil {
		return 0, err
	}
	if err := c.advance(ctx, id, model.StatusProcessing, model.StatusTranscribing); err != nil {
		return 0, err
	}

	var segments []model.Segment
	err = c.stage(ctx, logger, model.StatusTranscribing, c.opts.TranscriptionTimeout, func(ctx context.Context) error {
		raw, err := c.Transcriber.Transcribe(ctx, audioPath)
		if err != nil {
			return err
		}
		segments, err = transcription.Normalize(raw, rec.Duration)
		if err != nil {
			return err
		}
		path, err := c.Artifacts.SaveTranscript(id, segments)
		if err != nil {
			return err
		}
		return c.Videos.SetArtifacts(ctx, id, store.Artifacts{TranscriptPath: path})
	})
	if err != nil {
		return 0, err
	}
	if err := c.advance(ctx, id, model.StatusTranscribing, model.StatusChunking); err != nil {
		return 0, err
	}

	var chunks []model.Chunk
	err = c.stage(ctx, logger, model.StatusChunking, 0, func(ctx context.Context) error {
		chunks = c.Chunker.Split(id, segments, rec.Duration)
		if len(chunks) == 0 {
			return model.Validationf("empty transcript: no chunks could be produced")
		}
		if _, err := c.Artifacts.SaveChunks(id, chunks); err != nil {
			return err
		}
		return c.Videos.SetTotalChunks(ctx, id, len(chunks))
	})
	if err != nil {
		return 0, err
	}
	if err := c.advance(ctx, id, model.StatusChunking, model.StatusEmbedding); err != nil {
		return 0, err
	}

	err = c.stage(ctx, logger, model.StatusEmbedding, c.opts.EmbeddingTimeout, func(ctx context.Context) error {
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		vectors, err := embeddings.EmbedAll(ctx, c.Embedder, texts, c.opts.EmbedBatchSize)
		if err != nil {
			return err
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
		return c.Index.Upsert(ctx, id, chunks)
	})
	if err != nil {
		return 0, err
	}
	if err := c.advance(ctx, id, model.StatusEmbedding, model.StatusCompleted); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// stage runs fn under the stage timeout. Validation errors pass through as is,
// everything else is wrapped in a StageFailure for the stage.
func (c *Controller) stage(ctx context.Context, logger *slog.Logger, stage model.Status, timeout time.Duration, fn func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	logger.Info("stage started", "stage", stage)
	err := fn(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if model.IsValidation(err) {
			return err
		}
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return &model.StageFailure{Stage: stage, Err: err}
	}
	logger.Info("stage finished", "stage", stage, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Controller) advance(ctx context.Context, id string, from, to model.Status) error {
	if err := c.Videos.Advance(ctx, id, from, to); err != nil {
		return fmt.Errorf("failed to advance video from %s to %s: %w", from, to, err)
	}
	return nil
}
