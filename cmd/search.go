package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avasquez/searchledger/internal/search"
)

var searchResults int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a one-off search with pagination",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchResults, "results", "n", 0,
		"Number of results to fetch (1-100, default from config)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireConfigured(); err != nil {
		return err
	}

	query := args[0]
	numResults := searchResults
	if numResults < 1 {
		numResults = a.cfg.Limits.DefaultResultsPerQuery
	}
	if numResults > 100 {
		numResults = 100
	}

	pages := search.PagesNeeded(numResults)
	fmt.Printf("Searching for %q (%d results, %d API calls)\n", query, numResults, pages)

	stats := a.client.UsageStats()
	if stats.RemainingToday < pages {
		question := fmt.Sprintf("This search needs %d API calls but only %d remain today. Continue anyway?",
			pages, stats.RemainingToday)
		if !promptConfirm(question) {
			fmt.Println("Search cancelled")
			return nil
		}
	}

	ctx := context.Background()
	var collected []search.Item

	for page := 1; page <= pages; page++ {
		want := numResults - len(collected)
		if want > search.MaxResultsPerCall {
			want = search.MaxResultsPerCall
		}

		fmt.Printf("Fetching page %d/%d...\n", page, pages)
		outcome := a.client.Execute(ctx, query, want, search.StartIndexForPage(page))
		if !outcome.OK() {
			return fmt.Errorf("search failed on page %d: %s", page, outcome.Err)
		}

		collected = append(collected, outcome.Items...)
		if page < pages {
			time.Sleep(time.Second)
		}
	}

	fmt.Printf("\nResults for %q (%d found):\n", query, len(collected))
	for i, item := range collected {
		fmt.Printf("\n%2d. %s\n    %s\n", i+1, item.Title, item.Link)
		if item.Snippet != "" {
			fmt.Printf("    %s\n", item.Snippet)
		}
	}

	printUsageStats(a.client.UsageStats())
	return nil
}

func printUsageStats(stats search.UsageStats) {
	fmt.Printf("\nAPI usage today: %d/%d (%.1f%%), %d remaining\n",
		stats.UsedToday, stats.DailyLimit, stats.PercentUsed, stats.RemainingToday)
}
