// Package trends holds the domain model of the proxy: keyword interest
// requests, raw score series, analyzed results, and the single-keyword and
// batch pipelines that produce them.
package trends

import (
	"strings"

	"trends-proxy/internal/common/errors"
)

// Direction classifies where a keyword's interest is heading.
type Direction string

const (
	DirectionRising           Direction = "rising"
	DirectionFalling          Direction = "falling"
	DirectionStable           Direction = "stable"
	DirectionInsufficientData Direction = "insufficient_data"
	DirectionNoData           Direction = "no_data"
)

// SupportedTimeframes lists the lookback windows the provider accepts.
var SupportedTimeframes = []string{"today 3-m", "today 12-m", "today 5-y"}

// IsSupportedTimeframe reports whether the provider accepts the given lookback window.
func IsSupportedTimeframe(tf string) bool {
	for _, s := range SupportedTimeframes {
		if tf == s {
			return true
		}
	}
	return false
}

// Request identifies one keyword/timeframe/region lookup. Immutable once built.
type Request struct {
	Keyword   string `json:"keyword"`
	Timeframe string `json:"timeframe"`
	Geo       string `json:"geo"`
}

// Validate checks the request fields against provider constraints.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Keyword) == "" {
		return errors.ValidationError("keyword must not be empty")
	}
	if !IsSupportedTimeframe(r.Timeframe) {
		return errors.ValidationError("unsupported timeframe: " + r.Timeframe).
			WithContext("supported", SupportedTimeframes)
	}
	if r.Geo == "" {
		return errors.ValidationError("geo must not be empty")
	}
	return nil
}

// Series is a chronological sequence of interest scores on the provider's
// 0-100 integer scale. An empty series means the provider has no data for
// the keyword; that is a valid outcome, not an error.
type Series []int

// Result is the analyzed outcome for one keyword. Immutable once produced.
type Result struct {
	Keyword      string    `json:"keyword"`
	CurrentScore int       `json:"current_score"`
	AverageScore int       `json:"average_score"`
	PeakScore    int       `json:"peak_score"`
	Direction    Direction `json:"trend_direction"`
	DataPoints   Series    `json:"data_points"`
}

// BatchResult carries the ordered outcomes of a multi-keyword run. When a
// quota condition stops the run early, Partial is set and the results
// gathered so far are preserved.
type BatchResult struct {
	Results         []Result `json:"results"`
	Partial         bool     `json:"partial"`
	CompletedCount  int      `json:"completed_count"`
	TotalCount      int      `json:"total_count"`
	FailedOnKeyword string   `json:"failed_on_keyword,omitempty"`
}
