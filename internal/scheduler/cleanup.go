package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	historyCleanupJobName = "reservation_history_cleanup"
	historyCleanupTimeout = 2 * time.Minute
)

// Purger deletes reservations that ended at or before a cutoff.
type Purger interface {
	PurgeEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryCleanup removes reservations older than the retention period.
type HistoryCleanup struct {
	Purger        Purger
	RetentionDays int
	Now           func() time.Time
}

// Run performs one cleanup pass and returns the number of rows removed.
func (c HistoryCleanup) Run(ctx context.Context) (int64, error) {
	if c.Purger == nil {
		return 0, fmt.Errorf("history cleanup requires a purger")
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	cutoff := now().UTC().AddDate(0, 0, -c.RetentionDays)

	purged, err := c.Purger.PurgeEndedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge reservations ended before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	log.Ctx(ctx).Info().
		Int64("purged", purged).
		Time("cutoff", cutoff).
		Msg("Reservation history cleaned up")
	return purged, nil
}

// RegisterHistoryCleanupJob schedules c on cronExpr. Zero retention
// disables the job.
func (s *Service) RegisterHistoryCleanupJob(c HistoryCleanup, cronExpr string) error {
	if c.RetentionDays <= 0 {
		log.Info().Msg("Reservation history cleanup disabled")
		return nil
	}
	jobLogger := log.With().
		Str("component", "history_cleanup_job").
		Str("job_name", historyCleanupJobName).
		Int("retention_days", c.RetentionDays).
		Logger()

	_, err := s.AddJob(historyCleanupJobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyCleanupTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		if _, err := c.Run(ctx); err != nil {
			jobLogger.Error().Err(err).Msg("Reservation history cleanup failed")
		}
	})
	return err
}
