package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const JobPruneQueryLog = "prune_query_log"

// QueryLogPruner deletes query log rows older than a cutoff.
type QueryLogPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneQueryLog builds the job that keeps retention worth of query log.
func PruneQueryLog(schedule string, retention time.Duration, pruner QueryLogPruner, logger zerolog.Logger) Job {
	return Job{
		Name:     JobPruneQueryLog,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-retention)
			n, err := pruner.PruneBefore(ctx, cutoff)
			if err != nil {
				return err
			}
			logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("pruned query log")
			return nil
		},
	}
}
