package rag

import (
	"strings"

	"zerorag/internal/zerotypes"
)

// classifierKeywords maps each QueryType to the keywords that route a
// query to it, checked in the order listed below.
var classifierKeywords = []struct {
	queryType zerotypes.QueryType
	keywords  []string
}{
	{zerotypes.QueryFactual, []string{"what", "when", "where", "who", "which"}},
	{zerotypes.QueryAnalytical, []string{"analyze", "analyse", "explain", "why"}},
	{zerotypes.QueryComparative, []string{"compare", "difference", "versus", "vs"}},
	{zerotypes.QuerySummarization, []string{"summarize", "summarise", "summary"}},
	{zerotypes.QueryCreative, []string{"create", "design", "imagine", "write a"}},
}

// Classify buckets a query into a QueryType by keyword heuristics, per
// the first keyword set it matches. An explicit override always wins.
func Classify(queryText string, override *zerotypes.QueryType) zerotypes.QueryType {
	if override != nil {
		return *override
	}
	lower := strings.ToLower(queryText)
	for _, bucket := range classifierKeywords {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				return bucket.queryType
			}
		}
	}
	return zerotypes.QueryGeneral
}
