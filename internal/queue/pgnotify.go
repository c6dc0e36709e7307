package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Notifier publishes job ids on a Postgres channel
type Notifier interface {
	NotifyJob(ctx context.Context, videoID string) error
}

// PGDispatcher sends jobs with pg_notify
type PGDispatcher struct {
	notifier Notifier
}

// NewPGDispatcher creates a dispatcher over the database
func NewPGDispatcher(n Notifier) *PGDispatcher {
	return &PGDispatcher{notifier: n}
}

// Dispatch notifies listening workers of a claimed video
func (d *PGDispatcher) Dispatch(ctx context.Context, videoID string) error {
	return d.notifier.NotifyJob(ctx, videoID)
}

// PGListener receives job ids with LISTEN. Notifications sent while no
// listener is connected are lost; run a single listening worker per database.
type PGListener struct {
	listener *pq.Listener
	poll     time.Duration
}

// ListenJobs connects a listener on the channel
func ListenJobs(dsn, channel string, logger *slog.Logger) (*PGListener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Error("listen error", "error", err)
			}
		})

	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen error: %w", err)
	}
	logger.Info("listening for jobs", "channel", channel)
	return &PGListener{listener: listener, poll: time.Minute}, nil
}

// Next waits for a notification and returns its payload. When the poll
// interval passes quietly the connection is pinged.
func (l *PGListener) Next(ctx context.Context) (string, error) {
	select {
	case n := <-l.listener.Notify:
		// nil is sent after a reconnect
		if n == nil {
			return "", nil
		}
		return n.Extra, nil
	case <-time.After(l.poll):
		if err := l.listener.Ping(); err != nil {
			return "", fmt.Errorf("ping error: %w", err)
		}
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops listening
func (l *PGListener) Close() error {
	return l.listener.Close()
}
