package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/model"
)

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Post and maintain your own listings",
}

var listingsPostCmd = &cobra.Command{
	Use:   "post",
	Short: "Create a new listing",
	Run: func(cmd *cobra.Command, _ []string) {
		runListingsPost(cmd)
	},
}

var listingsRenewCmd = &cobra.Command{
	Use:   "renew <listing-id>",
	Short: "Extend a listing's expiry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runListingsRenew(cmd, args[0])
	},
}

var listingsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <listing-id>",
	Short: "Remove a listing from matching",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runListingsDeactivate(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(listingsCmd)
	listingsCmd.AddCommand(listingsPostCmd, listingsRenewCmd, listingsDeactivateCmd)

	listingsCmd.PersistentFlags().String("owner", "", "owning user id")
	listingsCmd.MarkPersistentFlagRequired("owner")

	listingsPostCmd.Flags().String("kind", "seeking-work", "listing kind: seeking-work or seeking-help")
	listingsPostCmd.Flags().String("title", "", "listing title")
	listingsPostCmd.Flags().String("description", "", "free-text description")
	listingsPostCmd.Flags().StringSlice("skills", nil, "skill tags")
	listingsPostCmd.Flags().Int("rate-min", 0, "minimum rate")
	listingsPostCmd.Flags().Int("rate-max", 0, "maximum rate")
	listingsPostCmd.Flags().Bool("remote", false, "remote work")
	listingsPostCmd.Flags().String("location", "", "location")
	listingsPostCmd.Flags().Int("expires-in-days", 0, "days until expiry (0 means no expiry)")
	listingsPostCmd.MarkFlagRequired("title")

	listingsRenewCmd.Flags().Int("days", 30, "days to extend the expiry from now")
}

func listingsSetup(cmd *cobra.Command) (context.Context, *zap.Logger, *Config, uuid.UUID) {
	ctx := context.Background()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	owner, err := parseUser(cmd.Flag("owner").Value.String(), "owner")
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}

	return ctx, logger, config, owner
}

func runListingsPost(cmd *cobra.Command) {
	ctx, logger, config, owner := listingsSetup(cmd)

	kind, err := parseKind(cmd.Flag("kind").Value.String())
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}

	st, err := openStore(ctx, config)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	skills, _ := cmd.Flags().GetStringSlice("skills")
	rateMin, _ := cmd.Flags().GetInt("rate-min")
	rateMax, _ := cmd.Flags().GetInt("rate-max")
	remote, _ := cmd.Flags().GetBool("remote")
	expiresInDays, _ := cmd.Flags().GetInt("expires-in-days")

	min := optionalRate(rateMin, cmd.Flags().Changed("rate-min"))
	max := optionalRate(rateMax, cmd.Flags().Changed("rate-max"))
	if min != nil && max != nil && *min > *max {
		logger.Fatal("parsing flags", zap.String("error", "rate minimum exceeds rate maximum"))
	}

	var expiresAt *time.Time
	if expiresInDays > 0 {
		t := time.Now().AddDate(0, 0, expiresInDays)
		expiresAt = &t
	}

	id, err := st.CreateListing(ctx, model.Listing{
		OwnerID:     owner,
		Kind:        kind,
		Title:       cmd.Flag("title").Value.String(),
		Description: cmd.Flag("description").Value.String(),
		Skills:      skills,
		RateMin:     min,
		RateMax:     max,
		Remote:      remote,
		Location:    cmd.Flag("location").Value.String(),
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		logger.Fatal("creating the listing", zap.Error(err))
	}

	fmt.Printf("Listing created: %s\n", id)
}

func runListingsRenew(cmd *cobra.Command, rawID string) {
	ctx, logger, config, owner := listingsSetup(cmd)

	id, err := uuid.Parse(rawID)
	if err != nil {
		logger.Fatal("parsing the listing id", zap.Error(err))
	}

	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		logger.Fatal("parsing flags", zap.String("error", "--days must be positive"))
	}

	st, err := openStore(ctx, config)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	until := time.Now().AddDate(0, 0, days)
	if err := st.RenewListing(ctx, id, owner, until); err != nil {
		logger.Fatal("renewing the listing", zap.Error(err))
	}

	fmt.Printf("Listing %s renewed until %s.\n", id, until.Format(time.DateOnly))
}

func runListingsDeactivate(cmd *cobra.Command, rawID string) {
	ctx, logger, config, owner := listingsSetup(cmd)

	id, err := uuid.Parse(rawID)
	if err != nil {
		logger.Fatal("parsing the listing id", zap.Error(err))
	}

	st, err := openStore(ctx, config)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	if err := st.DeactivateListing(ctx, id, owner); err != nil {
		logger.Fatal("deactivating the listing", zap.Error(err))
	}

	fmt.Printf("Listing %s deactivated.\n", id)
}
