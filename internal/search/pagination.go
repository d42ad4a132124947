package search

// MaxResultsPerCall is the provider's hard cap on results per API call.
const MaxResultsPerCall = 10

// PagesNeeded returns how many API calls it takes to collect the requested
// number of results at MaxResultsPerCall per call.
func PagesNeeded(requestedResults int) int {
	if requestedResults < 1 {
		return 0
	}
	return (requestedResults + MaxResultsPerCall - 1) / MaxResultsPerCall
}

// StartIndexForPage returns the provider's 1-based start offset for a page.
func StartIndexForPage(page int) int {
	return (page-1)*MaxResultsPerCall + 1
}

// CallsForKeyword returns how many API calls one keyword consumes.
func CallsForKeyword(resultsPerKeyword int) int {
	return PagesNeeded(resultsPerKeyword)
}

// TotalCallsNeeded returns how many API calls a whole keyword batch consumes.
func TotalCallsNeeded(keywordCount, resultsPerKeyword int) int {
	return keywordCount * CallsForKeyword(resultsPerKeyword)
}
