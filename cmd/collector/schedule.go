package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"options-data-lab/internal/pipeline"
)

func scheduleCmd() *cobra.Command {
	var mode, expr string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run collection cycles on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := pipeline.ParseMode(mode)
			if err != nil {
				return err
			}
			if expr == "" {
				expr = cfg.Collector.Schedule
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stopMetrics := serveMetrics(cfg.Collector.MetricsAddr)
			defer stopMetrics()

			c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
			_, err = c.AddFunc(expr, func() {
				res, err := runLocked(ctx, m)
				switch {
				case err != nil:
					log.Errorw("scheduled run failed to start", "mode", m, "error", err)
				case res != nil:
					log.Infow("scheduled run done", "run_id", res.RunID, "outcome", res.Outcome(), "exit_code", res.ExitCode())
				}
			})
			if err != nil {
				return err
			}

			log.Infow("scheduler started", "schedule", expr, "mode", m)
			c.Start()
			<-ctx.Done()
			log.Infow("scheduler stopping")
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(pipeline.ModeAll), "run mode for each cycle")
	cmd.Flags().StringVar(&expr, "cron", "", "cron expression (default from COLLECTOR_SCHEDULE)")
	return cmd
}
