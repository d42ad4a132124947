package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/avasquez/searchledger/internal/search"
)

// Runner executes one bulk search. Satisfied by *search.BulkSearcher.
type Runner interface {
	Run(ctx context.Context, opts search.BulkOptions) (*search.Summary, error)
}

// QuotaReader reports current quota consumption. Satisfied by *search.Client.
type QuotaReader interface {
	UsageStats() search.UsageStats
}

// Options parameterizes a scheduler session.
type Options struct {
	Interval          time.Duration
	Keywords          []string
	ResultsPerKeyword int
	// MaxDuration bounds the session; zero means run until stopped.
	MaxDuration time.Duration
}

// Status is a consistent snapshot of the scheduler's state.
type Status struct {
	Running        bool
	StartTime      time.Time
	Runtime        time.Duration
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	SuccessRate    float64
	NextRun        time.Time // zero when stopped
	EndTime        time.Time // zero when unbounded
}

// Scheduler triggers bulk searches on a fixed interval. All run counters are
// in-memory for the process lifetime and reset on each Start.
type Scheduler struct {
	runner Runner
	quota  QuotaReader

	// pollInterval is how often the end-time watcher wakes up.
	pollInterval time.Duration

	mu             sync.Mutex
	running        bool
	startTime      time.Time
	endTime        time.Time
	totalRuns      int
	successfulRuns int
	failedRuns     int
	opts           Options
	cron           *cron.Cron
	entryID        cron.EntryID
	stopCh         chan struct{}
}

// New builds a stopped scheduler.
func New(runner Runner, quota QuotaReader) *Scheduler {
	return &Scheduler{
		runner:       runner,
		quota:        quota,
		pollInterval: time.Minute,
	}
}

// Start transitions to running, executes one bulk search immediately, then
// triggers one every opts.Interval. It fails without side effects when the
// scheduler is already running.
func (s *Scheduler) Start(opts Options) error {
	if opts.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if len(opts.Keywords) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}
	if opts.ResultsPerKeyword < 1 {
		opts.ResultsPerKeyword = search.MaxResultsPerCall
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler is already running")
	}

	s.running = true
	s.startTime = time.Now()
	s.endTime = time.Time{}
	if opts.MaxDuration > 0 {
		s.endTime = s.startTime.Add(opts.MaxDuration)
	}
	s.totalRuns = 0
	s.successfulRuns = 0
	s.failedRuns = 0
	s.opts = opts
	s.cron = cron.New()
	s.stopCh = make(chan struct{})

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", opts.Interval), s.runOnce)
	if err != nil {
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("failed to schedule: %w", err)
	}
	s.entryID = entryID

	cronInst := s.cron
	stopCh := s.stopCh
	s.mu.Unlock()

	log.Printf("[SCHED] Started: every %s, %d keywords, %d results each",
		opts.Interval, len(opts.Keywords), opts.ResultsPerKeyword)
	if !s.endTime.IsZero() {
		log.Printf("[SCHED] Will stop at %s", s.endTime.Format(time.RFC3339))
	}

	// First run happens immediately and synchronously.
	s.runOnce()

	cronInst.Start()
	go s.watchEndTime(stopCh)

	return nil
}

// Stop transitions to stopped, clears the pending trigger and waits for an
// in-flight run to finish. It fails without side effects when the scheduler
// is not running.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("scheduler is not running")
	}
	s.running = false
	cronInst := s.cron
	stopCh := s.stopCh
	s.mu.Unlock()

	close(stopCh)

	// cron.Stop's context completes once in-flight jobs have returned.
	<-cronInst.Stop().Done()

	log.Printf("[SCHED] Stopped")
	return nil
}

// Status returns a consistent snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:        s.running,
		StartTime:      s.startTime,
		TotalRuns:      s.totalRuns,
		SuccessfulRuns: s.successfulRuns,
		FailedRuns:     s.failedRuns,
		EndTime:        s.endTime,
	}
	if !s.startTime.IsZero() {
		st.Runtime = time.Since(s.startTime)
	}
	if s.totalRuns > 0 {
		st.SuccessRate = float64(s.successfulRuns) / float64(s.totalRuns) * 100
	}
	if s.running && s.cron != nil {
		st.NextRun = s.cron.Entry(s.entryID).Next
	}
	return st
}

// runOnce executes one scheduled bulk search, recording it as a failed run
// when quota is insufficient or the orchestrator errors.
func (s *Scheduler) runOnce() {
	s.mu.Lock()
	runNumber := s.totalRuns + 1
	opts := s.opts
	s.mu.Unlock()

	log.Printf("[SCHED] Starting scheduled run #%d", runNumber)

	needed := search.TotalCallsNeeded(len(opts.Keywords), opts.ResultsPerKeyword)
	stats := s.quota.UsageStats()
	if stats.RemainingToday < needed {
		log.Printf("[SCHED] Insufficient quota for run #%d: need %d, %d remaining",
			runNumber, needed, stats.RemainingToday)
		s.recordRun(false)
		return
	}

	summary, err := s.runner.Run(context.Background(), search.BulkOptions{
		Keywords:          opts.Keywords,
		ResultsPerKeyword: opts.ResultsPerKeyword,
		KeywordDelay:      time.Second, // shorter delay for automated runs
		EnforceFreeTier:   true,
	})
	if err != nil || summary == nil {
		log.Printf("[SCHED] Run #%d failed: %v", runNumber, err)
		s.recordRun(false)
		return
	}

	log.Printf("[SCHED] Run #%d completed: %d results, %d API calls",
		runNumber, summary.TotalResultsCollected, summary.APICallsMade)
	s.recordRun(true)
}

func (s *Scheduler) recordRun(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRuns++
	if success {
		s.successfulRuns++
	} else {
		s.failedRuns++
	}
}

// watchEndTime polls until the session's end time passes, then stops the
// scheduler. A session without MaxDuration only exits via Stop.
func (s *Scheduler) watchEndTime(stopCh chan struct{}) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			end := s.endTime
			s.mu.Unlock()
			if !end.IsZero() && !time.Now().Before(end) {
				log.Printf("[SCHED] Reached end time, stopping")
				// Stop returns an error only if another caller stopped
				// the scheduler first, which is fine here.
				_ = s.Stop()
				return
			}
		}
	}
}
