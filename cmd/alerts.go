package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/alerts"
	"github.com/localhands/matchd/internal/model"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage saved searches (alerts)",
}

var alertsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create a saved search",
	Run: func(cmd *cobra.Command, _ []string) {
		runAlertsSave(cmd)
	},
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your saved searches",
	Run: func(cmd *cobra.Command, _ []string) {
		runAlertsList(cmd)
	},
}

var alertsRunCmd = &cobra.Command{
	Use:   "run <saved-query-id>",
	Short: "Evaluate a saved search right now and rank the matches",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAlertsRun(cmd, args[0])
	},
}

var alertsDisableCmd = &cobra.Command{
	Use:   "disable <saved-query-id>",
	Short: "Stop a saved search from alerting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAlertsDisable(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsSaveCmd, alertsListCmd, alertsRunCmd, alertsDisableCmd)

	alertsCmd.PersistentFlags().String("owner", "", "owning user id")
	alertsCmd.MarkPersistentFlagRequired("owner")

	alertsSaveCmd.Flags().String("name", "", "display name for the alert")
	alertsSaveCmd.Flags().String("kind", "seeking-work", "listing kind: seeking-work or seeking-help")
	alertsSaveCmd.Flags().String("query", "", "free-text query")
	alertsSaveCmd.Flags().StringSlice("skills", nil, "required skill tags")
	alertsSaveCmd.Flags().Int("rate-min", 0, "minimum rate")
	alertsSaveCmd.Flags().Int("rate-max", 0, "maximum rate")
	alertsSaveCmd.Flags().Bool("remote-only", false, "only remote listings")
	alertsSaveCmd.Flags().String("location", "", "location substring filter")
	alertsSaveCmd.Flags().Bool("email", true, "notify by email on new matches")
	alertsSaveCmd.MarkFlagRequired("name")
}

// alertsSetup wires the pieces every alerts subcommand needs.
func alertsSetup(cmd *cobra.Command) (context.Context, *zap.Logger, *Config, uuid.UUID) {
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

func runAlertsSave(cmd *cobra.Command) {
	ctx, logger, config, owner := alertsSetup(cmd)

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
	remoteOnly, _ := cmd.Flags().GetBool("remote-only")
	email, _ := cmd.Flags().GetBool("email")

	registry := alerts.NewRegistry(st, nil, logger)
	saved, err := registry.Save(ctx, model.SavedQuery{
		OwnerID:       owner,
		Name:          cmd.Flag("name").Value.String(),
		Kind:          kind,
		Query:         cmd.Flag("query").Value.String(),
		Skills:        skills,
		RateMin:       optionalRate(rateMin, cmd.Flags().Changed("rate-min")),
		RateMax:       optionalRate(rateMax, cmd.Flags().Changed("rate-max")),
		RemoteOnly:    remoteOnly,
		Location:      cmd.Flag("location").Value.String(),
		NotifyByEmail: email,
	})
	if err != nil {
		logger.Fatal("saving the search", zap.Error(err))
	}

	fmt.Printf("Saved search %q created: %s\n", saved.Name, saved.ID)
}

func runAlertsList(cmd *cobra.Command) {
	ctx, logger, config, owner := alertsSetup(cmd)

	st, err := openStore(ctx, config)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	registry := alerts.NewRegistry(st, nil, logger)
	queries, err := registry.List(ctx, owner)
	if err != nil {
		logger.Fatal("listing saved searches", zap.Error(err))
	}

	if len(queries) == 0 {
		fmt.Println("No saved searches.")
		return
	}

	for _, q := range queries {
		state := "active"
		if !q.Active {
			state = "disabled"
		}
		line := fmt.Sprintf("%s  %-20q %s %s", q.ID, q.Name, q.Kind, state)
		if len(q.Skills) > 0 {
			line += "  skills: " + strings.Join(q.Skills, ", ")
		}
		fmt.Println(line)
	}
}

func runAlertsRun(cmd *cobra.Command, rawID string) {
	ctx, logger, config, owner := alertsSetup(cmd)

	id, err := uuid.Parse(rawID)
	if err != nil {
		logger.Fatal("parsing the saved query id", zap.Error(err))
	}

	st, err := openStore(ctx, config)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	scorer, _, err := newScorer(ctx, config, st, logger)
	if err != nil {
		logger.Fatal("building the ranking backend", zap.Error(err))
	}

	registry := alerts.NewRegistry(st, scorer, logger)
	results, err := registry.Run(ctx, id, owner)
	if err != nil {
		logger.Fatal("running the saved search", zap.Error(err))
	}

	printResults(results)
}

func runAlertsDisable(cmd *cobra.Command, rawID string) {
	ctx, logger, config, owner := alertsSetup(cmd)

	id, err := uuid.Parse(rawID)
	if err != nil {
		logger.Fatal("parsing the saved query id", zap.Error(err))
	}

	st, err := openStore(ctx, config)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	registry := alerts.NewRegistry(st, nil, logger)
	if err := registry.Deactivate(ctx, id, owner); err != nil {
		logger.Fatal("disabling the saved search", zap.Error(err))
	}

	fmt.Printf("Saved search %s disabled.\n", id)
}
