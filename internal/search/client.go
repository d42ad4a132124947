package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avasquez/searchledger/internal/config"
	"github.com/avasquez/searchledger/internal/store"
)

// OutcomeKind classifies what happened to one call attempt.
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeError        OutcomeKind = "error"
	OutcomeRateLimited  OutcomeKind = "rate_limited"
	OutcomeUnconfigured OutcomeKind = "unconfigured"
)

// Outcome is the result of a single Execute call.
type Outcome struct {
	Kind           OutcomeKind
	Err            string
	RequestID      int64 // 0 when no record was written
	Items          []Item
	TotalResults   string  // provider-reported estimate
	SearchTime     float64 // provider-reported seconds
	ResponseTimeMS int
}

// OK reports whether the call reached the provider and returned results.
func (o *Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Item is one search hit as returned by the provider.
type Item struct {
	Title        string          `json:"title"`
	Link         string          `json:"link"`
	Snippet      string          `json:"snippet"`
	DisplayLink  string          `json:"displayLink"`
	FormattedURL string          `json:"formattedUrl"`
	HTMLTitle    string          `json:"htmlTitle"`
	HTMLSnippet  string          `json:"htmlSnippet"`
	CacheID      string          `json:"cacheId"`
	PageMap      json.RawMessage `json:"pagemap,omitempty"`
}

type apiResponse struct {
	Items             []Item `json:"items"`
	SearchInformation struct {
		TotalResults string  `json:"totalResults"`
		SearchTime   float64 `json:"searchTime"`
	} `json:"searchInformation"`
}

// UsageStats is a snapshot of today's quota consumption.
type UsageStats struct {
	DailyLimit     int
	UsedToday      int
	RemainingToday int
	PercentUsed    float64
}

// Client wraps single outbound queries against the Custom Search API,
// recording every attempt and keeping the daily usage ledger.
type Client struct {
	cfg     *config.Config
	store   *store.Store
	http    *http.Client
	baseURL string
}

// NewClient builds a search client. Configuration and storage are injected;
// the client holds no global state.
func NewClient(cfg *config.Config, st *store.Store) *Client {
	baseURL := cfg.Google.BaseURL
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/customsearch/v1"
	}
	return &Client{
		cfg:     cfg,
		store:   st,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured reports whether the client can reach the provider at all.
func (c *Client) IsConfigured() bool {
	return c.cfg.IsConfigured()
}

// UsageStats returns today's quota consumption against the application's
// configured daily limit.
func (c *Client) UsageStats() UsageStats {
	used := c.store.DailyRequestCount(time.Now())
	limit := c.cfg.Limits.DailyRequestLimit
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	percent := 0.0
	if limit > 0 {
		percent = float64(used) / float64(limit) * 100
	}
	return UsageStats{
		DailyLimit:     limit,
		UsedToday:      used,
		RemainingToday: remaining,
		PercentUsed:    percent,
	}
}

// Execute performs one search call: quota check, outbound request, request
// record, and (on success) the ledger increment and result batch. count is
// clamped to the provider's per-call maximum. The ledger is incremented only
// on success; failed and rate-limited attempts are recorded without
// counting against quota.
func (c *Client) Execute(ctx context.Context, query string, count, startIndex int) *Outcome {
	if !c.IsConfigured() {
		errMsg := "Google API key and search context ID must be provided"
		log.Printf("[SEARCH] %s", errMsg)
		return &Outcome{Kind: OutcomeUnconfigured, Err: errMsg}
	}

	if count < 1 {
		count = c.cfg.Limits.DefaultResultsPerQuery
	}
	if startIndex < 1 {
		startIndex = 1
	}

	today := time.Now()
	if used := c.store.DailyRequestCount(today); used >= c.cfg.Limits.DailyRequestLimit {
		errMsg := fmt.Sprintf("daily API request limit of %d exceeded", c.cfg.Limits.DailyRequestLimit)
		log.Printf("[SEARCH] Rate limit reached: %d/%d", used, c.cfg.Limits.DailyRequestLimit)
		requestID := c.logRequest(query, count, startIndex, store.StatusRateLimited, nil, errMsg)
		return &Outcome{Kind: OutcomeRateLimited, Err: errMsg, RequestID: requestID}
	}

	params := url.Values{}
	params.Set("key", c.cfg.Google.APIKey)
	params.Set("cx", c.cfg.Google.SearchContextID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(min(count, MaxResultsPerCall)))
	params.Set("start", strconv.Itoa(startIndex))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		errMsg := fmt.Sprintf("failed to build request: %v", err)
		log.Printf("[SEARCH] %s", errMsg)
		requestID := c.logRequest(query, count, startIndex, store.StatusError, nil, errMsg)
		return &Outcome{Kind: OutcomeError, Err: errMsg, RequestID: requestID}
	}

	log.Printf("[SEARCH] Requesting %q (num=%d start=%d)", query, count, startIndex)
	startTime := time.Now()

	resp, err := c.http.Do(req)
	elapsed := int(time.Since(startTime).Milliseconds())
	if err != nil {
		errMsg := fmt.Sprintf("network error: %v", err)
		log.Printf("[SEARCH] %s", errMsg)
		requestID := c.logRequest(query, count, startIndex, store.StatusError, &elapsed, errMsg)
		return &Outcome{Kind: OutcomeError, Err: errMsg, RequestID: requestID, ResponseTimeMS: elapsed}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errMsg := fmt.Sprintf("failed to read response: %v", err)
		log.Printf("[SEARCH] %s", errMsg)
		requestID := c.logRequest(query, count, startIndex, store.StatusError, &elapsed, errMsg)
		return &Outcome{Kind: OutcomeError, Err: errMsg, RequestID: requestID, ResponseTimeMS: elapsed}
	}

	if resp.StatusCode != http.StatusOK {
		errMsg := fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, bodyExcerpt(body))
		log.Printf("[SEARCH] %s", errMsg)
		requestID := c.logRequest(query, count, startIndex, store.StatusError, &elapsed, errMsg)
		return &Outcome{Kind: OutcomeError, Err: errMsg, RequestID: requestID, ResponseTimeMS: elapsed}
	}

	var data apiResponse
	if err := json.Unmarshal(body, &data); err != nil {
		errMsg := fmt.Sprintf("failed to parse response: %v", err)
		log.Printf("[SEARCH] %s", errMsg)
		requestID := c.logRequest(query, count, startIndex, store.StatusError, &elapsed, errMsg)
		return &Outcome{Kind: OutcomeError, Err: errMsg, RequestID: requestID, ResponseTimeMS: elapsed}
	}

	requestID := c.logRequest(query, count, startIndex, store.StatusSuccess, &elapsed, "")

	if err := c.store.IncrementDailyUsage(today); err != nil {
		log.Printf("[SEARCH] Failed to increment daily usage: %v", err)
	}

	if requestID != 0 && len(data.Items) > 0 {
		if err := c.store.SaveResults(requestID, toStoreItems(data.Items)); err != nil {
			log.Printf("[SEARCH] Failed to save results for request %d: %v", requestID, err)
		}
	}

	log.Printf("[SEARCH] Search successful: %d results for %q", len(data.Items), query)

	return &Outcome{
		Kind:           OutcomeSuccess,
		RequestID:      requestID,
		Items:          data.Items,
		TotalResults:   data.SearchInformation.TotalResults,
		SearchTime:     data.SearchInformation.SearchTime,
		ResponseTimeMS: elapsed,
	}
}

// logRequest records the attempt; storage failures are logged and the call
// continues with a zero request id.
func (c *Client) logRequest(query string, count, startIndex int, status string, responseTimeMS *int, errMsg string) int64 {
	id, err := c.store.LogRequest(query, count, startIndex, status, responseTimeMS, errMsg)
	if err != nil {
		log.Printf("[SEARCH] Failed to log api request: %v", err)
		return 0
	}
	return id
}

func toStoreItems(items []Item) []store.ResultItem {
	out := make([]store.ResultItem, 0, len(items))
	for _, it := range items {
		out = append(out, store.ResultItem{
			Title:        it.Title,
			Link:         it.Link,
			Snippet:      it.Snippet,
			DisplayLink:  it.DisplayLink,
			FormattedURL: it.FormattedURL,
			HTMLTitle:    it.HTMLTitle,
			HTMLSnippet:  it.HTMLSnippet,
			CacheID:      it.CacheID,
			PageMap:      string(it.PageMap),
		})
	}
	return out
}

func bodyExcerpt(body []byte) string {
	const maxExcerpt = 512
	if len(body) > maxExcerpt {
		return string(body[:maxExcerpt]) + "..."
	}
	return string(body)
}
