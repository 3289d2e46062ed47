package payout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gormlock "github.com/go-co-op/gocron-gorm-lock/v2"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Sadick14/ticket-flow/internal"
)

const batchJobName = "payout_batch"

// Daemon triggers RunBatch on a fixed interval. Runs never overlap inside one
// process; across processes the optional gorm lock keeps most runs exclusive
// and CreatePayoutAtomic covers the rest.
type Daemon struct {
	scheduler gocron.Scheduler
	runner    BatchRunner
	logger    *slog.Logger
	cfg       internal.SchedulerConfig
	clock     func() time.Time

	job       gocron.Job
	started   bool
	startLock sync.Mutex
}

// NewDaemonWithGORMLocker builds a Daemon whose runs are guarded by a
// database lock shared by every instance.
func NewDaemonWithGORMLocker(ctx context.Context, runner BatchRunner, cfg internal.SchedulerConfig, db *gorm.DB, logger *slog.Logger) (*Daemon, error) {
	if err := db.WithContext(ctx).AutoMigrate(&gormlock.CronJobLock{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cronjob lock table: %w", err)
	}

	workerName := "payoutd-" + uuid.New().String()[:8]
	locker, err := gormlock.NewGormLocker(db, workerName, gormlock.WithDefaultJobIdentifier(time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to create gorm locker: %w", err)
	}

	return NewDaemon(runner, cfg, logger.With("worker", workerName), gocron.WithDistributedLocker(locker))
}

func NewDaemon(runner BatchRunner, cfg internal.SchedulerConfig, logger *slog.Logger, opts ...gocron.SchedulerOption) (*Daemon, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %s", cfg.Interval)
	}
	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Daemon{
		scheduler: scheduler,
		runner:    runner,
		logger:    logger.With("component", "payout_daemon"),
		cfg:       cfg,
		clock:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (d *Daemon) Start() error {
	d.startLock.Lock()
	defer d.startLock.Unlock()

	if d.started {
		d.logger.Warn("payout daemon is already started, skipping")
		return nil
	}

	opts := []gocron.JobOption{
		gocron.WithName(batchJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if d.cfg.StartImmediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	job, err := d.scheduler.NewJob(
		gocron.DurationJob(d.cfg.Interval),
		gocron.NewTask(func(ctx context.Context) { d.run(ctx) }),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", batchJobName, err)
	}
	d.job = job

	d.scheduler.Start()
	d.started = true
	d.logger.Info("payout daemon started",
		"interval", d.cfg.Interval,
		"batch_timeout", d.cfg.BatchTimeout,
		"start_immediately", d.cfg.StartImmediately)
	return nil
}

// Stop waits for a running batch to finish and releases the scheduler. The
// daemon cannot be restarted afterwards.
func (d *Daemon) Stop() error {
	d.startLock.Lock()
	defer d.startLock.Unlock()

	if !d.started {
		return nil
	}
	if err := d.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	d.started = false
	d.logger.Info("payout daemon stopped")
	return nil
}

// RunOnce executes a single batch with the configured timeout.
func (d *Daemon) RunOnce(ctx context.Context) (*BatchResult, error) {
	if d.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.BatchTimeout)
		defer cancel()
	}
	return d.runner.RunBatch(ctx, d.clock())
}

func (d *Daemon) run(ctx context.Context) {
	result, err := d.RunOnce(ctx)
	if err != nil {
		d.logger.Error("scheduled payout batch failed", "error", err)
		return
	}

	var nextRun time.Time
	if d.job != nil {
		nextRun, _ = d.job.NextRun()
	}
	d.logger.Info("scheduled payout batch finished",
		"run_id", result.RunID,
		"payouts", len(result.Payouts),
		"errors", len(result.Errors),
		"next_run", nextRun)
}
