package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PurgeJob removes stale answers from a backend without native expiry.
// It should be scheduled to run daily.
type PurgeJob struct {
	purger  Purger
	timeout time.Duration
	log     zerolog.Logger
}

func NewPurgeJob(purger Purger, log zerolog.Logger) *PurgeJob {
	return &PurgeJob{
		purger:  purger,
		timeout: 5 * time.Minute,
		log:     log.With().Str("job", "answer_cache_purge").Logger(),
	}
}

// Run deletes expired entries.
func (j *PurgeJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	deleted, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to purge expired answers")
		return err
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Purged expired cached answers")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *PurgeJob) Name() string {
	return "answer_cache_purge"
}
