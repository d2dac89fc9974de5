package apply

import "github.com/Veraticus/spice-ledger/internal/model"

// RuleCount is how many transactions one rule matched.
type RuleCount struct {
	RuleName string `json:"ruleName"`
	RuleID   int    `json:"ruleId"`
	Matched  int    `json:"matched"`
}

// TransactionError records a matched transaction whose update failed.
type TransactionError struct {
	Err           error  `json:"-"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"error"`
	RuleID        int    `json:"ruleId"`
}

func (e TransactionError) Error() string {
	return e.TransactionID + ": " + e.Message
}

func (e TransactionError) Unwrap() error {
	return e.Err
}

// Report summarizes a bulk rule application.
//
// Matched counts transactions a rule matched. Updated counts those whose
// fields actually changed and were written, so it is always zero in preview
// mode and never exceeds Matched.
type Report struct {
	Breakdown []RuleCount        `json:"breakdown"`
	Errors    []TransactionError `json:"errors,omitempty"`
	Total     int                `json:"total"`
	Matched   int                `json:"matched"`
	Updated   int                `json:"updated"`
	Preview   bool               `json:"preview"`
}

// Failed reports whether any update failed.
func (r Report) Failed() bool {
	return len(r.Errors) > 0
}

// ImportResult is the outcome of running rules over an import batch.
type ImportResult struct {
	Transactions []model.Transaction
	Breakdown    []RuleCount
	Matched      int
}

// breakdown accumulates per-rule match counts in rule order, keeping only
// rules that matched something.
type breakdown struct {
	rules  []model.TransactionRule
	counts []int
}

func newBreakdown(ruleSet []model.TransactionRule) *breakdown {
	return &breakdown{rules: ruleSet, counts: make([]int, len(ruleSet))}
}

func (b *breakdown) add(idx int) {
	b.counts[idx]++
}

func (b *breakdown) list() []RuleCount {
	out := make([]RuleCount, 0, len(b.rules))
	for i, n := range b.counts {
		if n == 0 {
			continue
		}
		out = append(out, RuleCount{RuleID: b.rules[i].ID, RuleName: b.rules[i].Name, Matched: n})
	}
	return out
}
