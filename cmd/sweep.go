package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/alerts"
)

const sweepLeaseTTL = 5 * time.Minute

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate every active saved search once and queue match notifications",
	Run: func(cmd *cobra.Command, _ []string) {
		runSweep(cmd)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(_ *cobra.Command) {
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

	sweeper := alerts.NewSweeper(st, sweepExpiryWindow(config), logger)

	var summary *alerts.Summary
	err = withLease(ctx, newLease(config, "matchd:sweep", sweepLeaseTTL), logger, "sweep", func() error {
		var err error
		summary, err = sweeper.Sweep(ctx)
		return err
	})
	if err != nil {
		logger.Fatal("sweep failed", zap.Error(err))
	}
	if summary == nil {
		return
	}

	printSummary(summary)
}

func sweepExpiryWindow(config *Config) time.Duration {
	if config == nil || config.Sweep == nil {
		return 0
	}

	return time.Duration(config.Sweep.ExpiryWindowHours) * time.Hour
}

func printSummary(s *alerts.Summary) {
	fmt.Printf("Swept %d saved searches: %d matches, %d notifications queued, %d expiring listings flagged.\n",
		s.Queries, s.Matches, s.Created, s.Expiring)
	for _, e := range s.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}
