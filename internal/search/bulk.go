package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// FreeTierDailyLimit is the provider's no-cost daily call allowance. It is
// a property of the provider, independent of the application's own
// configured daily_request_limit.
const FreeTierDailyLimit = 100

var (
	// ErrCancelled means the operator declined to proceed past the free
	// tier warning; no calls were made.
	ErrCancelled = errors.New("bulk search cancelled")

	// ErrInsufficientQuota means the application quota cannot cover the
	// batch; no calls were made.
	ErrInsufficientQuota = errors.New("insufficient API quota")
)

// ConfirmFunc answers an operator yes/no question. The orchestrator calls
// it synchronously when a batch would exceed the free tier; callers supply
// a terminal prompt, a test stub, or nothing (nil declines everything).
type ConfirmFunc func(question string) bool

const (
	KeywordSuccess = "success"
	KeywordFailed  = "failed"
)

// KeywordOutcome is the per-keyword slice of a bulk run summary.
type KeywordOutcome struct {
	Keyword        string `json:"keyword"`
	Status         string `json:"status"`
	ResultsCount   int    `json:"results_count,omitempty"`
	PartialResults int    `json:"partial_results,omitempty"`
	APICalls       int    `json:"api_calls"`
	Err            string `json:"error,omitempty"`
}

// Summary aggregates one bulk run. It is held in memory and returned to the
// caller; the underlying request records persist independently.
type Summary struct {
	RunID                 string           `json:"run_id"`
	StartTime             time.Time        `json:"start_time"`
	EndTime               time.Time        `json:"end_time"`
	Keywords              []KeywordOutcome `json:"keywords_searched"`
	SuccessfulSearches    int              `json:"successful_searches"`
	FailedSearches        int              `json:"failed_searches"`
	TotalResultsCollected int              `json:"total_results_collected"`
	APICallsMade          int              `json:"api_calls_made"`
	FreeTierLimit         int              `json:"free_tier_limit"`
	WithinFreeTier        bool             `json:"within_free_tier"`
}

// Duration returns the wall time the run took.
func (s *Summary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// BulkOptions parameterizes one orchestrator run. Keywords is an explicit
// value per run; there is no shared default list inside the orchestrator.
type BulkOptions struct {
	Keywords          []string
	ResultsPerKeyword int
	KeywordDelay      time.Duration
	EnforceFreeTier   bool
}

// BulkSearcher drives a keyword list through the pagination planner and the
// search client, enforcing the free tier ceiling and the application quota.
type BulkSearcher struct {
	client  *Client
	confirm ConfirmFunc

	// pageDelay separates pages of the same keyword. Tests set it to 0.
	pageDelay time.Duration
}

// NewBulkSearcher builds an orchestrator. A nil confirm declines every
// free-tier override.
func NewBulkSearcher(client *Client, confirm ConfirmFunc) *BulkSearcher {
	return &BulkSearcher{
		client:    client,
		confirm:   confirm,
		pageDelay: time.Second,
	}
}

// Run executes a bulk search. Individual keyword failures are recorded and
// the run continues; only quota exhaustion or operator cancellation aborts
// it before any call is made.
func (b *BulkSearcher) Run(ctx context.Context, opts BulkOptions) (*Summary, error) {
	if opts.ResultsPerKeyword < 1 {
		opts.ResultsPerKeyword = MaxResultsPerCall
	}

	totalCalls := TotalCallsNeeded(len(opts.Keywords), opts.ResultsPerKeyword)
	log.Printf("[BULK] Starting bulk search: %d keywords, %d results each, %d API calls needed",
		len(opts.Keywords), opts.ResultsPerKeyword, totalCalls)

	if opts.EnforceFreeTier && totalCalls > FreeTierDailyLimit {
		question := fmt.Sprintf(
			"This operation needs %d API calls, exceeding the free tier limit of %d by %d (may incur charges). Continue?",
			totalCalls, FreeTierDailyLimit, totalCalls-FreeTierDailyLimit)
		if b.confirm == nil || !b.confirm(question) {
			log.Printf("[BULK] Cancelled to protect free tier limits")
			return nil, ErrCancelled
		}
		log.Printf("[BULK] Free tier protection overridden by operator")
	}

	if stats := b.client.UsageStats(); stats.RemainingToday < totalCalls {
		log.Printf("[BULK] Insufficient quota: need %d, %d remaining", totalCalls, stats.RemainingToday)
		return nil, fmt.Errorf("%w: need %d, %d remaining", ErrInsufficientQuota, totalCalls, stats.RemainingToday)
	}

	summary := &Summary{
		RunID:         uuid.New().String(),
		StartTime:     time.Now(),
		FreeTierLimit: FreeTierDailyLimit,
	}

	callsMade := 0

keywords:
	for i, keyword := range opts.Keywords {
		if ctx.Err() != nil {
			log.Printf("[BULK] Context cancelled, finalizing after %d keywords", i)
			break
		}

		callsForKeyword := CallsForKeyword(opts.ResultsPerKeyword)
		if opts.EnforceFreeTier && callsMade+callsForKeyword > FreeTierDailyLimit {
			log.Printf("[BULK] Stopping: next keyword would exceed free tier limit of %d (made %d, needs %d)",
				FreeTierDailyLimit, callsMade, callsForKeyword)
			break
		}

		log.Printf("[BULK] [%d/%d] Searching %q", i+1, len(opts.Keywords), keyword)

		collected := 0
		outcome := KeywordOutcome{Keyword: keyword, Status: KeywordSuccess}
		rateLimited := false

		for page := 1; page <= callsForKeyword; page++ {
			want := opts.ResultsPerKeyword - collected
			if want > MaxResultsPerCall {
				want = MaxResultsPerCall
			}

			result := b.client.Execute(ctx, keyword, want, StartIndexForPage(page))
			callsMade++
			summary.APICallsMade++
			outcome.APICalls++

			if !result.OK() {
				outcome.Status = KeywordFailed
				outcome.Err = result.Err
				outcome.PartialResults = collected
				rateLimited = result.Kind == OutcomeRateLimited
				log.Printf("[BULK] Page %d/%d failed for %q: %s", page, callsForKeyword, keyword, result.Err)
				break
			}

			collected += len(result.Items)
			log.Printf("[BULK] Page %d/%d: got %d results for %q", page, callsForKeyword, len(result.Items), keyword)

			if page < callsForKeyword {
				if !sleepCtx(ctx, b.pageDelay) {
					break
				}
			}
		}

		if outcome.Status == KeywordSuccess {
			outcome.ResultsCount = collected
			summary.SuccessfulSearches++
			summary.TotalResultsCollected += collected
		} else {
			summary.FailedSearches++
		}
		summary.Keywords = append(summary.Keywords, outcome)

		// Application quota exhaustion mid-run is a stop signal, not a
		// per-keyword failure to skip past.
		if rateLimited {
			log.Printf("[BULK] Application quota exhausted, stopping run")
			break keywords
		}

		// Checked before the inter-keyword delay; a capped run ends
		// without a final sleep.
		if opts.EnforceFreeTier && callsMade >= FreeTierDailyLimit {
			log.Printf("[BULK] Reached free tier limit of %d calls, stopping", FreeTierDailyLimit)
			break
		}

		if i < len(opts.Keywords)-1 {
			if !sleepCtx(ctx, opts.KeywordDelay) {
				break
			}
		}
	}

	summary.EndTime = time.Now()
	summary.WithinFreeTier = summary.APICallsMade <= FreeTierDailyLimit

	log.Printf("[BULK] Finished: %d successful, %d failed, %d results, %d API calls",
		summary.SuccessfulSearches, summary.FailedSearches,
		summary.TotalResultsCollected, summary.APICallsMade)

	return summary, nil
}

// sleepCtx waits for d or until ctx is done; it reports whether the full
// delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
