package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestBulkRunContinuesPastKeywordFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "bad keyword" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, itemsJSON(10))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 50)
	b := NewBulkSearcher(c, nil)
	b.pageDelay = 0

	summary, err := b.Run(context.Background(), BulkOptions{
		Keywords:          []string{"alpha", "bad keyword", "gamma"},
		ResultsPerKeyword: 10,
		EnforceFreeTier:   true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.SuccessfulSearches != 2 {
		t.Errorf("SuccessfulSearches = %d, want 2", summary.SuccessfulSearches)
	}
	if summary.FailedSearches != 1 {
		t.Errorf("FailedSearches = %d, want 1", summary.FailedSearches)
	}
	if summary.APICallsMade != 3 {
		t.Errorf("APICallsMade = %d, want 3", summary.APICallsMade)
	}
	if summary.TotalResultsCollected != 20 {
		t.Errorf("TotalResultsCollected = %d, want 20", summary.TotalResultsCollected)
	}
	if len(summary.Keywords) != 3 {
		t.Fatalf("got %d keyword outcomes, want 3", len(summary.Keywords))
	}

	failed := summary.Keywords[1]
	if failed.Status != KeywordFailed {
		t.Errorf("keyword 2 status = %q, want %q", failed.Status, KeywordFailed)
	}
	if failed.PartialResults != 0 {
		t.Errorf("keyword 2 PartialResults = %d, want 0", failed.PartialResults)
	}
	if failed.Err == "" {
		t.Error("keyword 2 has no error message")
	}
	if summary.Keywords[2].Status != KeywordSuccess {
		t.Errorf("keyword 3 status = %q, run should have continued past the failure", summary.Keywords[2].Status)
	}
	if summary.RunID == "" {
		t.Error("RunID is empty")
	}
	if !summary.WithinFreeTier {
		t.Error("WithinFreeTier = false for 3 calls")
	}
}

func TestBulkRunPaginates(t *testing.T) {
	var starts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		starts = append(starts, r.URL.Query().Get("start"))
		num, _ := strconv.Atoi(r.URL.Query().Get("num"))
		fmt.Fprint(w, itemsJSON(num))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 50)
	b := NewBulkSearcher(c, nil)
	b.pageDelay = 0

	summary, err := b.Run(context.Background(), BulkOptions{
		Keywords:          []string{"deep dive"},
		ResultsPerKeyword: 25,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"1", "11", "21"}
	if len(starts) != len(want) {
		t.Fatalf("got %d calls with starts %v, want starts %v", len(starts), starts, want)
	}
	for i := range want {
		if starts[i] != want[i] {
			t.Errorf("call %d start = %s, want %s", i+1, starts[i], want[i])
		}
	}
	if summary.APICallsMade != 3 {
		t.Errorf("APICallsMade = %d, want 3", summary.APICallsMade)
	}
	if summary.TotalResultsCollected != 25 {
		t.Errorf("TotalResultsCollected = %d, want 25", summary.TotalResultsCollected)
	}
}

func TestBulkRunFreeTierDeclined(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, itemsJSON(10))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 500)

	asked := false
	decline := func(question string) bool {
		asked = true
		return false
	}
	b := NewBulkSearcher(c, decline)
	b.pageDelay = 0

	keywords := make([]string, 15)
	for i := range keywords {
		keywords[i] = fmt.Sprintf("keyword %d", i)
	}

	// 15 keywords at 100 results each needs 150 calls, past the free tier.
	_, err := b.Run(context.Background(), BulkOptions{
		Keywords:          keywords,
		ResultsPerKeyword: 100,
		EnforceFreeTier:   true,
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run() error = %v, want ErrCancelled", err)
	}
	if !asked {
		t.Error("confirm callback was never invoked")
	}
	if hits != 0 {
		t.Errorf("server got %d requests after decline, want 0", hits)
	}
}

func TestBulkRunNilConfirmDeclines(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, itemsJSON(10))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 500)
	b := NewBulkSearcher(c, nil)
	b.pageDelay = 0

	keywords := make([]string, 11)
	for i := range keywords {
		keywords[i] = fmt.Sprintf("keyword %d", i)
	}

	_, err := b.Run(context.Background(), BulkOptions{
		Keywords:          keywords,
		ResultsPerKeyword: 100,
		EnforceFreeTier:   true,
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run() error = %v, want ErrCancelled", err)
	}
	if hits != 0 {
		t.Errorf("server got %d requests, want 0", hits)
	}
}

func TestBulkRunWithinFreeTierSkipsConfirm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, itemsJSON(10))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 50)
	b := NewBulkSearcher(c, func(string) bool {
		t.Error("confirm invoked for a batch inside the free tier")
		return false
	})
	b.pageDelay = 0

	summary, err := b.Run(context.Background(), BulkOptions{
		Keywords:          []string{"one", "two"},
		ResultsPerKeyword: 10,
		EnforceFreeTier:   true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.APICallsMade != 2 {
		t.Errorf("APICallsMade = %d, want 2", summary.APICallsMade)
	}
}

func TestBulkRunStopsAtFreeTierCap(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		num, _ := strconv.Atoi(r.URL.Query().Get("num"))
		fmt.Fprint(w, itemsJSON(num))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 200)

	b := NewBulkSearcher(c, func(string) bool { return true })
	b.pageDelay = 0

	keywords := make([]string, 11)
	for i := range keywords {
		keywords[i] = fmt.Sprintf("keyword %d", i)
	}

	// 11 keywords at 100 results each needs 110 calls; with the override
	// accepted, the run must still stop at the free tier ceiling.
	summary, err := b.Run(context.Background(), BulkOptions{
		Keywords:          keywords,
		ResultsPerKeyword: 100,
		EnforceFreeTier:   true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.APICallsMade != FreeTierDailyLimit {
		t.Errorf("APICallsMade = %d, want exactly %d", summary.APICallsMade, FreeTierDailyLimit)
	}
	if hits != FreeTierDailyLimit {
		t.Errorf("server got %d requests, want %d", hits, FreeTierDailyLimit)
	}
	if len(summary.Keywords) != 10 {
		t.Errorf("got %d keyword outcomes, want 10 (11th skipped at the cap)", len(summary.Keywords))
	}
	if summary.SuccessfulSearches != 10 {
		t.Errorf("SuccessfulSearches = %d, want 10", summary.SuccessfulSearches)
	}
	if !summary.WithinFreeTier {
		t.Error("WithinFreeTier = false at exactly the ceiling")
	}
}

func TestBulkRunStopsWhenQuotaExhaustedMidRun(t *testing.T) {
	hits := 0
	var drain func()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, itemsJSON(10))
		if hits == 1 {
			// Another consumer drains the remaining quota right after
			// the first call.
			drain()
		}
	}))
	defer srv.Close()

	c, st := newTestClient(t, srv.URL, 3)
	drain = func() {
		for i := 0; i < 2; i++ {
			if err := st.IncrementDailyUsage(time.Now()); err != nil {
				t.Errorf("IncrementDailyUsage() error = %v", err)
			}
		}
	}

	b := NewBulkSearcher(c, nil)
	b.pageDelay = 0

	summary, err := b.Run(context.Background(), BulkOptions{
		Keywords:          []string{"one", "two", "three"},
		ResultsPerKeyword: 10,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Keyword 2 hits the quota gate; keyword 3 must not be attempted.
	if hits != 1 {
		t.Errorf("server got %d requests, want 1", hits)
	}
	if len(summary.Keywords) != 2 {
		t.Fatalf("got %d keyword outcomes, want 2 (run aborted at quota)", len(summary.Keywords))
	}
	if summary.Keywords[0].Status != KeywordSuccess {
		t.Errorf("keyword 1 status = %q, want %q", summary.Keywords[0].Status, KeywordSuccess)
	}
	if summary.Keywords[1].Status != KeywordFailed {
		t.Errorf("keyword 2 status = %q, want %q", summary.Keywords[1].Status, KeywordFailed)
	}
	if summary.SuccessfulSearches != 1 || summary.FailedSearches != 1 {
		t.Errorf("SuccessfulSearches = %d FailedSearches = %d, want 1 and 1",
			summary.SuccessfulSearches, summary.FailedSearches)
	}
}

func TestBulkRunInsufficientQuota(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, itemsJSON(10))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 2)
	b := NewBulkSearcher(c, nil)
	b.pageDelay = 0

	_, err := b.Run(context.Background(), BulkOptions{
		Keywords:          []string{"one", "two", "three"},
		ResultsPerKeyword: 10,
	})
	if !errors.Is(err, ErrInsufficientQuota) {
		t.Fatalf("Run() error = %v, want ErrInsufficientQuota", err)
	}
	if hits != 0 {
		t.Errorf("server got %d requests, want 0 when quota cannot cover the batch", hits)
	}
}

func TestBulkRunCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, itemsJSON(10))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 50)
	b := NewBulkSearcher(c, nil)
	b.pageDelay = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := b.Run(ctx, BulkOptions{
		Keywords:          []string{"one", "two"},
		ResultsPerKeyword: 10,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.APICallsMade != 0 {
		t.Errorf("APICallsMade = %d with cancelled context, want 0", summary.APICallsMade)
	}
}
