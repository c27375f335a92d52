package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Job is a maintenance task run on a cron schedule. Run reports the number
// of rows it touched.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) (int64, error)
}

type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

type InvitationExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type AuditCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

type OutboxCleaner interface {
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

func SessionPurgeJob(schedule string, sessions SessionPurger) Job {
	return Job{
		Name:     "session_purge",
		Schedule: schedule,
		Run: func(ctx context.Context) (int64, error) {
			return sessions.PurgeExpiredSessions(ctx, time.Now())
		},
	}
}

func InvitationExpiryJob(schedule string, invitations InvitationExpirer) Job {
	return Job{
		Name:     "invitation_expiry",
		Schedule: schedule,
		Run: func(ctx context.Context) (int64, error) {
			return invitations.ExpireStale(ctx, time.Now())
		},
	}
}

func AuditCleanupJob(schedule string, audit AuditCleaner, retentionDays int) Job {
	return Job{
		Name:     "audit_cleanup",
		Schedule: schedule,
		Run: func(ctx context.Context) (int64, error) {
			return audit.Cleanup(ctx, days(retentionDays))
		},
	}
}

func OutboxCleanupJob(schedule string, outbox OutboxCleaner, retentionDays int) Job {
	return Job{
		Name:     "outbox_cleanup",
		Schedule: schedule,
		Run: func(ctx context.Context) (int64, error) {
			return outbox.DeleteProcessedBefore(ctx, time.Now().Add(-days(retentionDays)))
		},
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// Scheduler runs Jobs on their cron schedules. Overlapping runs of the same
// job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewScheduler(logger *logger.Logger, metrics *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		metrics: metrics,
	}
}

// Add registers job; an empty schedule disables it.
func (s *Scheduler) Add(job Job) error {
	if job.Schedule == "" {
		s.logger.Info("job disabled", "job", job.Name)
		return nil
	}
	if _, err := s.cron.AddFunc(job.Schedule, func() { s.RunNow(job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
	}
	return nil
}

// RunNow executes job once on the calling goroutine.
func (s *Scheduler) RunNow(job Job) {
	ctx := s.ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := job.Run(ctx)
	if err != nil {
		s.metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
		s.logger.Error(err, "job failed", "job", job.Name)
		return
	}

	s.metrics.JobRuns.WithLabelValues(job.Name, "success").Inc()
	s.metrics.JobRowsDeleted.WithLabelValues(job.Name).Add(float64(rows))
	s.logger.Info("job finished", "job", job.Name, "rows", rows, "duration", time.Since(start).String())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}
