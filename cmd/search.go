package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/alerts"
	"github.com/localhands/matchd/internal/matching"
	"github.com/localhands/matchd/internal/model"
)

const (
	PromptSaveYes = "Yes"
	PromptSaveNo  = "No"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search listings and rank them against the query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSearch(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("as", "", "acting user id")
	searchCmd.Flags().String("kind", "seeking-work", "listing kind to search: seeking-work or seeking-help")
	searchCmd.Flags().Bool("remote-only", false, "only remote listings")
	searchCmd.Flags().String("location", "", "location substring filter")
	searchCmd.Flags().StringSlice("skills", nil, "required skill tags")
	searchCmd.Flags().Int("rate-min", 0, "minimum rate")
	searchCmd.Flags().Int("rate-max", 0, "maximum rate")
	searchCmd.Flags().String("save", "", "save this search as an alert with the given name")
	searchCmd.Flags().BoolP("interactive", "i", false, "offer to save the search after showing results")

	searchCmd.MarkFlagRequired("as")
}

func runSearch(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	query := strings.Join(args, " ")

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	caller, err := parseUser(cmd.Flag("as").Value.String(), "as")
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}

	kind, err := parseKind(cmd.Flag("kind").Value.String())
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}

	st, err := openStore(ctx, config)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	scorer, lexical, err := newScorer(ctx, config, st, logger)
	if err != nil {
		logger.Fatal("building the ranking backend", zap.Error(err))
	}

	filters := searchFilters(cmd)
	service := matching.NewService(st, scorer, lexical, logger)

	results, err := service.Search(ctx, query, kind, caller, filters)
	if err != nil {
		logger.Fatal("search failed", zap.Error(err))
	}

	printResults(results)

	saveName := cmd.Flag("save").Value.String()
	interactive := cmd.Flag("interactive").Value.String() == "true"
	if saveName == "" && interactive {
		saveName = promptForSave()
	}
	if saveName == "" {
		return
	}

	registry := alerts.NewRegistry(st, scorer, logger)
	saved, err := registry.Save(ctx, model.SavedQuery{
		OwnerID:       caller,
		Name:          saveName,
		Kind:          kind,
		Query:         query,
		Skills:        filters.Skills,
		RateMin:       filters.RateMin,
		RateMax:       filters.RateMax,
		RemoteOnly:    filters.RemoteOnly,
		Location:      filters.Location,
		NotifyByEmail: true,
	})
	if err != nil {
		logger.Fatal("saving the search", zap.Error(err))
	}

	logger.Info("search saved as an alert",
		zap.String("saved_query_id", saved.ID.String()),
		zap.String("name", saved.Name),
	)
}

func searchFilters(cmd *cobra.Command) matching.Filters {
	skills, _ := cmd.Flags().GetStringSlice("skills")
	rateMin, _ := cmd.Flags().GetInt("rate-min")
	rateMax, _ := cmd.Flags().GetInt("rate-max")
	remoteOnly, _ := cmd.Flags().GetBool("remote-only")

	return matching.Filters{
		RemoteOnly: remoteOnly,
		Location:   cmd.Flag("location").Value.String(),
		Skills:     skills,
		RateMin:    optionalRate(rateMin, cmd.Flags().Changed("rate-min")),
		RateMax:    optionalRate(rateMax, cmd.Flags().Changed("rate-max")),
	}
}

func printResults(results []matching.MatchResult) {
	if len(results) == 0 {
		fmt.Println("No matches found.")
		return
	}

	for i, r := range results {
		fmt.Printf("%2d. [%.2f] %s\n", i+1, r.Score, r.Listing.Title)
		if label := listingLabel(&r.Listing); label != "" {
			fmt.Printf("           %s\n", label)
		}
		for _, reason := range r.Reasons {
			fmt.Printf("           %s\n", reason)
		}
	}
}

func listingLabel(l *model.Listing) string {
	parts := make([]string, 0, 3)
	if len(l.Skills) > 0 {
		parts = append(parts, strings.Join(l.Skills, ", "))
	}
	if l.Remote {
		parts = append(parts, "remote")
	} else if l.Location != "" {
		parts = append(parts, l.Location)
	}

	return strings.Join(parts, " / ")
}

func promptForSave() string {
	prompt := promptui.Select{
		Label: "Save this search as an alert?",
		Items: []string{PromptSaveYes, PromptSaveNo},
	}

	_, answer, err := prompt.Run()
	if err != nil || answer != PromptSaveYes {
		return ""
	}

	namePrompt := promptui.Prompt{
		Label: "Alert name",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("name must not be empty")
			}
			return nil
		},
	}

	name, err := namePrompt.Run()
	if err != nil {
		return ""
	}

	return strings.TrimSpace(name)
}
