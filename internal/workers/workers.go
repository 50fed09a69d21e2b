package workers

import (
	"context"
	"log/slog"
	"time"

	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/logger"
)

const historyRetention = 30 * 24 * time.Hour

// StartCleanupWorker clears expired login codes and old notification history
// once an hour until ctx is cancelled.
func StartCleanupWorker(ctx context.Context, db database.DB, codeTTL time.Duration) {
	ticker := time.NewTicker(1 * time.Hour)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				start := time.Now()
				err := Cleanup(ctx, db, codeTTL, start)
				logger.LogJob("cleanup", time.Since(start), err)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Cleanup runs one pass of the hourly cleanup.
func Cleanup(ctx context.Context, db database.DB, codeTTL time.Duration, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	tag, err := db.Exec(ctx, `
		UPDATE users
		SET verification_code = NULL, verification_sent_at = NULL
		WHERE verification_code IS NOT NULL AND verification_sent_at < $1`, now.Add(-codeTTL))
	if err != nil {
		return err
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Info("Cleared expired login codes", "count", n)
	}

	tag, err = db.Exec(ctx, `DELETE FROM notification_history WHERE sent_at < $1`, now.Add(-historyRetention))
	if err != nil {
		return err
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Info("Deleted old notification history", "count", n)
	}
	return nil
}
