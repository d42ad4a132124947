package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"

	"github.com/avasquez/searchledger/internal/scheduler"
	"github.com/avasquez/searchledger/internal/search"
)

var (
	scheduleHours        int
	scheduleResults      int
	scheduleMaxDays      int
	scheduleKeywordsFile string
	scheduleYes          bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run bulk searches on a fixed interval until stopped",
	Long: `Runs the bulk search orchestrator immediately and then on every
interval, in the foreground, until interrupted or the maximum duration
passes. Prints a projection of daily API usage before starting.`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().IntVar(&scheduleHours, "interval", 0,
		"Hours between runs (default from config)")
	scheduleCmd.Flags().IntVarP(&scheduleResults, "results", "n", 0,
		"Results per keyword (default from config)")
	scheduleCmd.Flags().IntVar(&scheduleMaxDays, "max-days", 0,
		"Stop after this many days (0 = run until interrupted)")
	scheduleCmd.Flags().StringVar(&scheduleKeywordsFile, "keywords-file", "",
		"Read keywords from a file (one per line) instead of the config")
	scheduleCmd.Flags().BoolVarP(&scheduleYes, "yes", "y", false,
		"Start without asking for confirmation")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireConfigured(); err != nil {
		return err
	}

	keywords, err := resolveKeywords(a, scheduleKeywordsFile)
	if err != nil {
		return err
	}

	hours := scheduleHours
	if hours < 1 {
		hours = a.cfg.Scheduler.IntervalHours
	}
	if hours < 1 {
		hours = 1
	}
	resultsPerKeyword := scheduleResults
	if resultsPerKeyword < 1 {
		resultsPerKeyword = a.cfg.Scheduler.ResultsPerKeyword
	}
	resultsPerKeyword = clamp(resultsPerKeyword, 1, 100)
	maxDays := scheduleMaxDays
	if maxDays == 0 {
		maxDays = a.cfg.Scheduler.MaxDays
	}

	callsPerDay := printScheduleProjection(a, hours, resultsPerKeyword, maxDays, keywords)

	if callsPerDay > search.FreeTierDailyLimit && !scheduleYes {
		if !promptConfirm("This schedule exceeds the free tier allowance. Continue anyway?") {
			fmt.Println("Schedule cancelled")
			return nil
		}
	}
	if !scheduleYes && !promptConfirm("Start the scheduler?") {
		fmt.Println("Schedule cancelled")
		return nil
	}

	searcher := search.NewBulkSearcher(a.client, promptConfirm)
	sched := scheduler.New(searcher, a.client)

	opts := scheduler.Options{
		Interval:          time.Duration(hours) * time.Hour,
		Keywords:          keywords,
		ResultsPerKeyword: resultsPerKeyword,
	}
	if maxDays > 0 {
		opts.MaxDuration = time.Duration(maxDays) * 24 * time.Hour
	}

	if err := sched.Start(opts); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	heartbeat := time.NewTicker(10 * time.Minute)
	defer heartbeat.Stop()

	fmt.Println("Scheduler running; press Ctrl-C to stop")

loop:
	for {
		select {
		case <-sigCh:
			fmt.Println("\nStopping scheduler...")
			if err := sched.Stop(); err != nil {
				fmt.Println(err)
			}
			break loop
		case <-heartbeat.C:
			st := sched.Status()
			if !st.Running {
				// Reached the configured end time.
				break loop
			}
			printSchedulerStatus(st)
		}
	}

	printSchedulerStatus(sched.Status())
	printUsageStats(a.client.UsageStats())
	return nil
}

// printScheduleProjection shows what the schedule will consume per day and
// how it sits against the free tier. Returns projected calls per day.
func printScheduleProjection(a *app, hours, resultsPerKeyword, maxDays int, keywords []string) float64 {
	callsPerRun := search.TotalCallsNeeded(len(keywords), resultsPerKeyword)
	runsPerDay := 24.0 / float64(hours)
	callsPerDay := float64(callsPerRun) * runsPerDay

	fmt.Println("Schedule projection:")
	fmt.Printf("  Frequency:            every %d hour(s) (%.1f runs/day)\n", hours, runsPerDay)
	fmt.Printf("  Keywords:             %d\n", len(keywords))
	fmt.Printf("  Results per keyword:  %d (%d calls each)\n",
		resultsPerKeyword, search.CallsForKeyword(resultsPerKeyword))
	fmt.Printf("  API calls per run:    %d\n", callsPerRun)
	fmt.Printf("  API calls per day:    %.0f\n", callsPerDay)
	if maxDays > 0 {
		fmt.Printf("  Maximum duration:     %d day(s)\n", maxDays)
	}

	stats := a.client.UsageStats()
	fmt.Printf("  Quota today:          %d/%d used, %d remaining\n",
		stats.UsedToday, stats.DailyLimit, stats.RemainingToday)

	if callsPerDay > search.FreeTierDailyLimit {
		fmt.Printf("  Free tier:            EXCEEDED by %.0f calls/day\n",
			callsPerDay-search.FreeTierDailyLimit)
	} else {
		fmt.Printf("  Free tier:            within the %d calls/day allowance\n",
			search.FreeTierDailyLimit)
	}

	return callsPerDay
}

func printSchedulerStatus(st scheduler.Status) {
	state := "stopped"
	if st.Running {
		state = "running"
	}
	fmt.Printf("\nScheduler %s: %d runs (%d ok, %d failed, %.1f%% success), up %s\n",
		state, st.TotalRuns, st.SuccessfulRuns, st.FailedRuns, st.SuccessRate,
		st.Runtime.Round(time.Second))
	if st.Running && !st.NextRun.IsZero() {
		fmt.Printf("Next run: %s\n", st.NextRun.Format(time.RFC3339))
	}
	if rss, ok := processRSS(); ok {
		fmt.Printf("Process memory: %.1f MiB\n", float64(rss)/(1024*1024))
	}
}

// processRSS reports the scheduler process's resident memory.
func processRSS() (uint64, bool) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, false
	}
	mem, err := p.MemoryInfo()
	if err != nil || mem == nil {
		return 0, false
	}
	return mem.RSS, true
}
