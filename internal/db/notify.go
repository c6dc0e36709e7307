package db

import (
	"context"
	"fmt"
)

// JobChannel is the LISTEN/NOTIFY channel carrying video ids to process
const JobChannel = "lecture_jobs"

// NotifyJob publishes a video id on the job channel
func (db *DB) NotifyJob(ctx context.Context, videoID string) error {
	if _, err := db.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, JobChannel, videoID); err != nil {
		return fmt.Errorf("failed to notify job: %w", err)
	}
	return nil
}
