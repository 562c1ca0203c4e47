package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/alerts"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the sweep and dispatch loop until interrupted",
	Run: func(cmd *cobra.Command, _ []string) {
		runWatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("interval", 5*time.Minute, "how often to sweep and dispatch")
}

func runWatch(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		logger.Fatal("parsing flags", zap.String("error", "--interval must be positive"))
	}

	st, err := openStore(ctx, config)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	dispatcher, err := newDispatcher(config, st, logger)
	if err != nil {
		logger.Fatal("building the dispatcher", zap.Error(err))
	}

	sweeper := alerts.NewSweeper(st, sweepExpiryWindow(config), logger)

	sweepLease := newLease(config, "matchd:sweep", sweepLeaseTTL)
	dispatchLease := newLease(config, "matchd:dispatch", dispatchLeaseTTL)

	tick := func() {
		err := withLease(ctx, sweepLease, logger, "sweep", func() error {
			summary, err := sweeper.Sweep(ctx)
			if err != nil {
				return err
			}
			logger.Info("sweep finished",
				zap.Int("queries", summary.Queries),
				zap.Int("matches", summary.Matches),
				zap.Int("created", summary.Created),
				zap.Int("expiring", summary.Expiring),
				zap.Int("errors", len(summary.Errors)),
			)
			return nil
		})
		if err != nil {
			logger.Error("sweep failed", zap.Error(err))
		}

		err = withLease(ctx, dispatchLease, logger, "dispatch", func() error {
			report, err := dispatcher.Drain(ctx, dispatchBatchSize(config))
			if err != nil {
				return err
			}
			logger.Info("dispatch finished",
				zap.Int("sent", report.Sent),
				zap.Int("errors", len(report.Errors)),
			)
			return nil
		})
		if err != nil {
			logger.Error("dispatch failed", zap.Error(err))
		}
	}

	// First pass runs immediately so a fresh deployment does not sit idle
	// for a full interval.
	tick()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", interval), tick); err != nil {
		logger.Fatal("scheduling the loop", zap.Error(err))
	}
	scheduler.Start()

	logger.Info("watching", zap.Duration("interval", interval))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	<-scheduler.Stop().Done()
}
