package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avasquez/searchledger/internal/search"
)

var (
	bulkResults      int
	bulkDelaySecs    int
	bulkKeywordsFile string
	bulkNoFreeTier   bool
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Run a one-time bulk search over a keyword list",
	RunE:  runBulk,
}

func init() {
	bulkCmd.Flags().IntVarP(&bulkResults, "results", "n", 10,
		"Results per keyword (1-100)")
	bulkCmd.Flags().IntVar(&bulkDelaySecs, "delay", 2,
		"Delay between keywords in seconds")
	bulkCmd.Flags().StringVar(&bulkKeywordsFile, "keywords-file", "",
		"Read keywords from a file (one per line) instead of the config")
	bulkCmd.Flags().BoolVar(&bulkNoFreeTier, "no-free-tier-protection", false,
		"Disable the free tier safety ceiling")
	rootCmd.AddCommand(bulkCmd)
}

func runBulk(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireConfigured(); err != nil {
		return err
	}

	keywords, err := resolveKeywords(a, bulkKeywordsFile)
	if err != nil {
		return err
	}

	resultsPerKeyword := clamp(bulkResults, 1, 100)
	delay := time.Duration(bulkDelaySecs) * time.Second
	if delay < time.Second {
		delay = time.Second
	}

	fmt.Printf("Bulk search: %d keywords, %d results each, %d API calls needed\n",
		len(keywords), resultsPerKeyword,
		search.TotalCallsNeeded(len(keywords), resultsPerKeyword))

	searcher := search.NewBulkSearcher(a.client, promptConfirm)
	summary, err := searcher.Run(context.Background(), search.BulkOptions{
		Keywords:          keywords,
		ResultsPerKeyword: resultsPerKeyword,
		KeywordDelay:      delay,
		EnforceFreeTier:   !bulkNoFreeTier,
	})
	if err != nil {
		if errors.Is(err, search.ErrCancelled) {
			fmt.Println("Bulk search cancelled to protect free tier limits")
			return nil
		}
		if errors.Is(err, search.ErrInsufficientQuota) {
			return fmt.Errorf("%v; raise daily_request_limit or reduce the search scope", err)
		}
		return err
	}

	printBulkSummary(summary)
	printUsageStats(a.client.UsageStats())
	return nil
}

func printBulkSummary(s *search.Summary) {
	fmt.Printf("\nBulk search summary (run %s)\n", s.RunID)
	fmt.Printf("  Duration:   %s\n", s.Duration().Round(time.Second))
	fmt.Printf("  Keywords:   %d (%d successful, %d failed)\n",
		len(s.Keywords), s.SuccessfulSearches, s.FailedSearches)
	fmt.Printf("  Results:    %d collected\n", s.TotalResultsCollected)
	fmt.Printf("  API calls:  %d (free tier limit %d, within: %t)\n",
		s.APICallsMade, s.FreeTierLimit, s.WithinFreeTier)

	for _, kw := range s.Keywords {
		if kw.Status == search.KeywordSuccess {
			fmt.Printf("  + %s: %d results (%d calls)\n", kw.Keyword, kw.ResultsCount, kw.APICalls)
		} else {
			fmt.Printf("  - %s: failed after %d results: %s\n", kw.Keyword, kw.PartialResults, kw.Err)
		}
	}
}

func resolveKeywords(a *app, file string) ([]string, error) {
	if file != "" {
		keywords, err := loadKeywordsFile(file)
		if err != nil {
			return nil, err
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("no keywords in %s", file)
		}
		return keywords, nil
	}
	if len(a.cfg.Keywords) == 0 {
		return nil, fmt.Errorf("no keywords configured")
	}
	return a.cfg.Keywords, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
