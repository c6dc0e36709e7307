// Package queue moves claimed processing attempts from the API to workers.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lecture-chat/cli/internal/model"
)

// Runner runs an attempt that was already claimed
type Runner interface {
	RunClaimed(ctx context.Context, videoID string) error
}

// Source yields video ids to process. Next returns an empty id when nothing
// arrived before its poll interval ran out.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// Worker pulls ids from a source and runs them
type Worker struct {
	source      Source
	runner      Runner
	logger      *slog.Logger
	concurrency int64
	backoff     time.Duration
}

// NewWorker creates a worker running at most concurrency attempts at a time
func NewWorker(source Source, runner Runner, concurrency int64, logger *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		source:      source,
		runner:      runner,
		logger:      logger,
		concurrency: concurrency,
		backoff:     time.Second,
	}
}

// Run consumes jobs until ctx is cancelled, then waits for running attempts
func (w *Worker) Run(ctx context.Context) error {
	sem := semaphore.NewWeighted(w.concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	w.logger.Info("worker started", "concurrency", w.concurrency)
	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		id, err := w.source.Next(ctx)
		if err != nil {
			sem.Release(1)
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("failed to receive job", "error", err)
			select {
			case <-time.After(w.backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if id == "" {
			sem.Release(1)
			continue
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)

			w.logger.Info("job received", "video_id", id)
			err := w.runner.RunClaimed(ctx, id)
			switch {
			case err == nil:
			case errors.Is(err, model.ErrAttemptActive), errors.Is(err, model.ErrInvalidTransition):
				w.logger.Warn("job skipped", "video_id", id, "error", err)
			default:
				w.logger.Error("job failed", "video_id", id, "error", err)
			}
		}(id)
	}
}
