package service

import (
	"context"
	"time"

	"github.com/neria/manager/internal/pkg/logger"
	"github.com/robfig/cron/v3"
)

type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob deletes usage and audit rows older than their retention window.
// A window of zero days keeps rows forever.
type RetentionJob struct {
	usage     Pruner
	audit     Pruner
	usageDays int
	auditDays int
	now       func() time.Time
}

func NewRetentionJob(usage, audit Pruner, usageDays, auditDays int) *RetentionJob {
	return &RetentionJob{usage: usage, audit: audit, usageDays: usageDays, auditDays: auditDays, now: time.Now}
}

func (j *RetentionJob) Run(ctx context.Context) {
	now := j.now().UTC()
	prune := func(name string, p Pruner, days int) {
		if p == nil || days <= 0 {
			return
		}
		cutoff := now.AddDate(0, 0, -days)
		n, err := p.DeleteBefore(ctx, cutoff)
		if err != nil {
			logger.LogError(ctx, err, "retention cleanup failed", "table", name)
			return
		}
		logger.Info("retention cleanup", "table", name, "deleted", n, "cutoff", cutoff)
	}
	prune("usage_events", j.usage, j.usageDays)
	prune("audit_events", j.audit, j.auditDays)
}

// Schedule registers the job on c using a standard cron spec or descriptor such as "@hourly".
func (j *RetentionJob) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		j.Run(ctx)
	})
}
