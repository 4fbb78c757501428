package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Pruner deletes read notifications created before a cutoff
type Pruner interface {
	PruneNotifications(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationPruneJob removes read notifications older than retention
func NotificationPruneJob(pruner Pruner, retention, interval time.Duration, logger *logrus.Logger) Job {
	return Job{
		Name:     "prune_notifications",
		Interval: interval,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().UTC().Add(-retention)
			removed, err := pruner.PruneNotifications(ctx, cutoff)
			if err != nil {
				return err
			}
			if removed > 0 && logger != nil {
				logger.WithFields(logrus.Fields{
					"removed": removed,
					"cutoff":  cutoff.Format(time.RFC3339),
				}).Info("Pruned read notifications")
			}
			return nil
		},
	}
}
