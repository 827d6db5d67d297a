package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
}

var hodSyncCmd = &cobra.Command{
	Use:   "hod-sync",
	Short: "Reconcile department head projections",
	Long:  `Rewrites departments.hod_user_id from the HOD role assignments on a cron schedule`,
	Run: func(cmd *cobra.Command, args []string) {
		startHODSyncWorker()
	},
}

var hodSyncOnce bool

func startHODSyncWorker() {
	ctx := context.Background()
	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	lg := deps.Logger.With("worker", "hod-sync")

	reconcile := func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		drifts, err := deps.Departments.ReconcileAll(runCtx)
		if err != nil {
			lg.Error("reconciliation failed", "error", err, "rewritten", len(drifts))
			return
		}
		lg.Info("reconciliation done", "rewritten", len(drifts))
	}

	if hodSyncOnce {
		reconcile()
		return
	}

	schedule := deps.Config.Worker.HODSyncSchedule
	c := cron.New()
	if _, err := c.AddFunc(schedule, reconcile); err != nil {
		lg.Error("invalid schedule", "schedule", schedule, "error", err)
		os.Exit(1)
	}

	c.Start()
	lg.Info("worker is running", "schedule", schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	lg.Info("received signal, shutting down", "signal", sig)

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		lg.Info("worker stopped")
	case <-time.After(30 * time.Second):
		lg.Warn("shutdown timeout reached, forcing exit")
	}
}

func init() {
	hodSyncCmd.Flags().BoolVar(&hodSyncOnce, "once", false, "run a single reconciliation and exit")

	workerCmd.AddCommand(hodSyncCmd)
	rootCmd.AddCommand(workerCmd)
}
