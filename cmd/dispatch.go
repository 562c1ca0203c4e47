package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/notify"
)

const dispatchLeaseTTL = 5 * time.Minute

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Deliver queued notifications by email",
	Run: func(cmd *cobra.Command, _ []string) {
		runDispatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(_ *cobra.Command) {
	ctx := context.Background()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
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

	var report *notify.Report
	err = withLease(ctx, newLease(config, "matchd:dispatch", dispatchLeaseTTL), logger, "dispatch", func() error {
		var err error
		report, err = dispatcher.Drain(ctx, dispatchBatchSize(config))
		return err
	})
	if err != nil {
		logger.Fatal("dispatch failed", zap.Error(err))
	}
	if report == nil {
		return
	}

	printReport(report)
}

func dispatchBatchSize(config *Config) int {
	if config == nil || config.Dispatch == nil {
		return 0
	}

	return config.Dispatch.BatchSize
}

func printReport(r *notify.Report) {
	fmt.Printf("Delivered %d notifications.\n", r.Sent)
	for _, e := range r.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}
