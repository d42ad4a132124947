package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avasquez/searchledger/internal/store"
)

var (
	recentLimit     int
	recentRequestID int64
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Browse recent requests and their stored results",
	RunE:  runRecent,
}

func init() {
	recentCmd.Flags().IntVar(&recentLimit, "limit", 20,
		"How many recent requests to list")
	recentCmd.Flags().Int64Var(&recentRequestID, "request", 0,
		"Show stored results for this request id instead of the list")
	rootCmd.AddCommand(recentCmd)
}

func runRecent(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if recentRequestID > 0 {
		return showRequestResults(a, recentRequestID)
	}

	requests, err := a.store.RecentRequests(recentLimit)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		fmt.Println("No recent searches found")
		return nil
	}

	fmt.Printf("Recent searches (%d):\n", len(requests))
	for _, req := range requests {
		line := fmt.Sprintf("  [%d] %s  %-12s %q (num=%d start=%d)",
			req.ID, req.CreatedAt.Format("2006-01-02 15:04:05"),
			req.Status, req.Query, req.NumResults, req.StartIndex)
		if req.ResponseTimeMS != nil {
			line += fmt.Sprintf(" %dms", *req.ResponseTimeMS)
		}
		fmt.Println(line)
		if req.Status != store.StatusSuccess && req.ErrorMessage != "" {
			fmt.Printf("        %s\n", req.ErrorMessage)
		}
	}
	return nil
}

func showRequestResults(a *app, requestID int64) error {
	req, err := a.store.RequestByID(requestID)
	if err != nil {
		return err
	}

	items, err := a.store.ResultsByRequestID(requestID)
	if err != nil {
		return err
	}

	fmt.Printf("Results for request %d (%q, %s):\n", req.ID, req.Query, req.Status)
	if len(items) == 0 {
		fmt.Println("  no stored results")
		return nil
	}

	for _, item := range items {
		fmt.Printf("\n%2d. %s\n    %s\n", item.Position, item.Title, item.Link)
		if item.Snippet != "" {
			fmt.Printf("    %s\n", item.Snippet)
		}
	}
	return nil
}
