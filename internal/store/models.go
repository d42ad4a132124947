package store

import "time"

// Request statuses recorded in the api_requests table.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusRateLimited = "rate_limited"
)

// Request is one recorded call attempt against the search API.
// Rows are immutable after insertion.
type Request struct {
	ID             int64     `json:"id"`
	Query          string    `json:"query"`
	NumResults     int       `json:"num_results"`
	StartIndex     int       `json:"start_index"`
	Status         string    `json:"status"`
	ResponseTimeMS *int      `json:"response_time_ms,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ResultItem is a single search hit tied to a successful request.
// Position is the 1-based rank within the request's result page.
type ResultItem struct {
	ID           int64  `json:"id"`
	RequestID    int64  `json:"request_id"`
	Title        string `json:"title"`
	Link         string `json:"link"`
	Snippet      string `json:"snippet"`
	DisplayLink  string `json:"display_link"`
	FormattedURL string `json:"formatted_url"`
	HTMLTitle    string `json:"html_title"`
	HTMLSnippet  string `json:"html_snippet"`
	CacheID      string `json:"cache_id"`
	PageMap      string `json:"page_map,omitempty"`
	Position     int    `json:"position_in_results"`
}
