package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avasquez/searchledger/internal/search"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's API quota consumption",
	RunE:  runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats := a.client.UsageStats()

	fmt.Println("Application quota:")
	fmt.Printf("  Daily limit:  %d\n", stats.DailyLimit)
	fmt.Printf("  Used today:   %d\n", stats.UsedToday)
	fmt.Printf("  Remaining:    %d\n", stats.RemainingToday)
	fmt.Printf("  Usage:        %.1f%%\n", stats.PercentUsed)

	freeTierUsed := stats.UsedToday
	if freeTierUsed > search.FreeTierDailyLimit {
		freeTierUsed = search.FreeTierDailyLimit
	}
	fmt.Println("\nFree tier:")
	fmt.Printf("  Limit:        %d calls/day\n", search.FreeTierDailyLimit)
	fmt.Printf("  Used:         %d/%d\n", freeTierUsed, search.FreeTierDailyLimit)
	fmt.Printf("  Remaining:    %d\n", search.FreeTierDailyLimit-freeTierUsed)

	if excess := stats.UsedToday - search.FreeTierDailyLimit; excess > 0 {
		fmt.Printf("  Exceeded by:  %d calls (estimated cost today: $%.2f)\n",
			excess, float64(excess)*0.005)
	}

	return nil
}
