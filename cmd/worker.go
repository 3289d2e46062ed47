package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start long running background workers such as the payout scheduler.`,
}

var schedulerWorkerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Start the payout scheduler",
	Long:  `Run payout batches on a fixed interval until interrupted. With distributed locking enabled only one replica runs each batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchedulerWorker(cmd.Context())
	},
}

var (
	schedulerInterval    time.Duration
	schedulerImmediately bool
)

func runSchedulerWorker(ctx context.Context) error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()
	lg := deps.Logger

	cfg := &deps.Config.Scheduler
	cfg.Interval = getDurationFlag(schedulerInterval, cfg.Interval)
	cfg.StartImmediately = cfg.StartImmediately || schedulerImmediately

	daemon, err := deps.newDaemon(ctx)
	if err != nil {
		return fmt.Errorf("create payout scheduler: %w", err)
	}
	if err := daemon.Start(); err != nil {
		return fmt.Errorf("start payout scheduler: %w", err)
	}
	lg.Info("payout scheduler running",
		"interval", cfg.Interval,
		"concurrency", cfg.Concurrency,
		"distributed_lock", cfg.DistributedLock)

	<-ctx.Done()
	lg.Info("stopping payout scheduler")

	stopped := make(chan error, 1)
	go func() { stopped <- daemon.Stop() }()

	select {
	case err := <-stopped:
		if err != nil {
			return fmt.Errorf("stop payout scheduler: %w", err)
		}
		lg.Info("payout scheduler stopped")
	case <-time.After(shutdownTimeout):
		lg.Warn("payout scheduler did not stop in time")
	}
	return nil
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	schedulerWorkerCmd.Flags().DurationVar(&schedulerInterval, "interval", 0, "Time between batches (overrides config)")
	schedulerWorkerCmd.Flags().BoolVar(&schedulerImmediately, "now", false, "Run a batch as soon as the worker starts")

	workerCmd.AddCommand(schedulerWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
