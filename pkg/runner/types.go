package runner

import (
	"github.com/shopspring/decimal"

	"github.com/heig-tin/baygon/pkg/matchers"
)

// Entry is one line of a run: a group header or a test case outcome.
type Entry struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Group      bool              `json:"group,omitempty"`
	Depth      int               `json:"depth"`
	Status     string            `json:"status,omitempty"` // passed, failed, skipped
	DurationMs int64             `json:"duration_ms"`
	Points     *decimal.Decimal  `json:"points,omitempty"`
	Earned     *decimal.Decimal  `json:"earned,omitempty"`
	SkipReason string            `json:"skip_reason,omitempty"`
	Issues     []*matchers.Issue `json:"issues,omitempty"`
}

// Summary aggregates the outcome of a run.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`

	// Set when score computation is enabled.
	Points *decimal.Decimal `json:"points,omitempty"`
	Earned *decimal.Decimal `json:"earned,omitempty"`
}

// Report is the outcome of one run of a suite.
type Report struct {
	Name       string  `json:"name,omitempty"`
	Version    int     `json:"version"`
	Entries    []Entry `json:"tests"`
	Summary    Summary `json:"summary"`
	DurationMs int64   `json:"duration_ms"`
	Stopped    bool    `json:"stopped,omitempty"` // failure limit reached
}

// OK reports whether no case failed.
func (r *Report) OK() bool { return r.Summary.Failed == 0 }
