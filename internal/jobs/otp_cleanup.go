package jobs

import (
	"context"
	"log/slog"
	"time"
)

// OTPPurger deletes verification codes that were used or expired before cutoff.
type OTPPurger interface {
	DeleteStaleOTPs(ctx context.Context, cutoff time.Time) (int64, error)
}

type OTPCleanupJob struct {
	purger    OTPPurger
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewOTPCleanupJob(purger OTPPurger, retention time.Duration, logger *slog.Logger) *OTPCleanupJob {
	return &OTPCleanupJob{
		purger:    purger,
		retention: retention,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (j *OTPCleanupJob) Name() string {
	return "otp_cleanup"
}

func (j *OTPCleanupJob) Run(ctx context.Context) error {
	if j.purger == nil {
		return nil
	}
	deleted, err := j.purger.DeleteStaleOTPs(ctx, j.now().Add(-j.retention))
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.logger.Info("stale otp codes purged", slog.Int64("deleted", deleted))
	}
	return nil
}
