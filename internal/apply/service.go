// Package apply runs transaction rules over transactions: the first-match
// cascade used on import, bulk application with preview, and applying a
// single rule to every stored transaction.
package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/Veraticus/spice-ledger/internal/service"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the matching concurrency used when none is configured.
const DefaultWorkers = 4

// Store is the persistence the driver needs.
type Store interface {
	ListEnabledRules(ctx context.Context) ([]model.TransactionRule, error)
	GetRule(ctx context.Context, id int) (*model.TransactionRule, error)
	GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error)
	ApplyRuleUpdate(ctx context.Context, txn model.Transaction, rule model.TransactionRule) error
}

// ProgressFunc is called after each transaction is persisted or skipped.
type ProgressFunc func(done, total int)

// Service applies rules to transactions.
type Service struct {
	store    Store
	matcher  *rules.Matcher
	progress ProgressFunc
	retry    common.RetryOptions
	workers  int
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers bounds how many goroutines evaluate rules concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMatcher sets the matcher, and with it the time zone used for dates.
func WithMatcher(m *rules.Matcher) Option {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithProgress registers a progress callback for persisted updates.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Service) {
		s.progress = fn
	}
}

// WithRetry sets how updates are retried when the database is busy.
func WithRetry(opts common.RetryOptions) Option {
	return func(s *Service) {
		s.retry = opts
	}
}

// NewService creates a rule application service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		matcher: rules.NewMatcher(nil),
		retry:   common.DefaultRetryOptions(),
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyRequest selects transactions for a bulk cascade.
type ApplyRequest struct {
	TransactionIDs []string `json:"transactionIds"`
	Preview        bool     `json:"preview"`
}

// ApplyOnImport runs the enabled rules over freshly imported transactions,
// first match wins, and returns them with actions applied in memory.
// Nothing is persisted.
func (s *Service) ApplyOnImport(ctx context.Context, txns []model.Transaction) (ImportResult, error) {
	result := ImportResult{Transactions: txns}
	if len(txns) == 0 {
		return result, nil
	}

	ruleSet, err := s.enabledRules(ctx)
	if err != nil {
		return result, err
	}
	if len(ruleSet) == 0 {
		slog.Debug("No enabled rules; import left as is", "transactions", len(txns))
		return result, nil
	}

	matches, err := s.cascade(ctx, txns, ruleSet)
	if err != nil {
		return result, err
	}

	out := make([]model.Transaction, len(txns))
	copy(out, txns)
	counts := newBreakdown(ruleSet)
	for i, idx := range matches {
		if idx < 0 {
			continue
		}
		ruleSet[idx].Action.Apply(&out[i])
		counts.add(idx)
		result.Matched++
	}

	result.Transactions = out
	result.Breakdown = counts.list()

	slog.Info("Applied rules on import",
		"transactions", len(txns),
		"matched", result.Matched,
		"rules", len(ruleSet))
	return result, nil
}

// ApplyRules runs the enabled-rule cascade over the selected transactions.
// In preview mode nothing is written.
func (s *Service) ApplyRules(ctx context.Context, req ApplyRequest) (Report, error) {
	report := Report{Preview: req.Preview}
	if len(req.TransactionIDs) == 0 {
		return report, fmt.Errorf("%w: no transaction IDs given", common.ErrInvalidInput)
	}

	txns, err := s.store.GetTransactions(ctx, service.TransactionFilter{IDs: req.TransactionIDs})
	if err != nil {
		return report, fmt.Errorf("failed to load transactions: %w", err)
	}
	report.Total = len(txns)

	ruleSet, err := s.enabledRules(ctx)
	if err != nil {
		return report, err
	}
	if len(ruleSet) == 0 || len(txns) == 0 {
		report.Breakdown = []RuleCount{}
		return report, nil
	}

	matches, err := s.cascade(ctx, txns, ruleSet)
	if err != nil {
		return report, err
	}

	counts := newBreakdown(ruleSet)
	for _, idx := range matches {
		if idx >= 0 {
			counts.add(idx)
			report.Matched++
		}
	}
	report.Breakdown = counts.list()

	if !req.Preview {
		if err := s.persist(ctx, txns, matches, ruleSet, &report); err != nil {
			return report, err
		}
	}

	s.logReport("Applied rules", report)
	return report, nil
}

// ApplyRuleToAll applies one rule to every stored transaction. Other rules are
// not consulted, and the rule runs even when disabled.
func (s *Service) ApplyRuleToAll(ctx context.Context, ruleID int, preview bool) (Report, error) {
	report := Report{Preview: preview}

	rule, err := s.store.GetRule(ctx, ruleID)
	if err != nil {
		return report, err
	}

	txns, err := s.store.GetTransactions(ctx, service.TransactionFilter{})
	if err != nil {
		return report, fmt.Errorf("failed to load transactions: %w", err)
	}
	report.Total = len(txns)

	ruleSet := []model.TransactionRule{*rule}
	matches, err := s.cascade(ctx, txns, ruleSet)
	if err != nil {
		return report, err
	}

	for _, idx := range matches {
		if idx >= 0 {
			report.Matched++
		}
	}
	report.Breakdown = []RuleCount{{RuleID: rule.ID, RuleName: rule.Name, Matched: report.Matched}}

	if !preview {
		if err := s.persist(ctx, txns, matches, ruleSet, &report); err != nil {
			return report, err
		}
	}

	s.logReport("Applied rule to all transactions", report, "rule_id", rule.ID)
	return report, nil
}

func (s *Service) enabledRules(ctx context.Context) ([]model.TransactionRule, error) {
	ruleSet, err := s.store.ListEnabledRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	enabled := ruleSet[:0:0]
	for _, r := range ruleSet {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	model.SortRules(enabled)
	return enabled, nil
}

// cascade returns, per transaction, the index of the first matching rule or -1.
// Evaluation is spread over the configured number of workers.
func (s *Service) cascade(ctx context.Context, txns []model.Transaction, ruleSet []model.TransactionRule) ([]int, error) {
	matches := make([]int, len(txns))
	if len(txns) == 0 {
		return matches, nil
	}

	workers := min(s.workers, len(txns))
	chunk := (len(txns) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(txns); start += chunk {
		start := start
		end := min(start+chunk, len(txns))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				matches[i] = s.matcher.FirstMatch(txns[i], ruleSet)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rule evaluation interrupted: %w", err)
	}
	return matches, nil
}

// persist writes matched transactions one at a time. A failed update is
// recorded in the report and the remaining transactions are still processed.
func (s *Service) persist(ctx context.Context, txns []model.Transaction, matches []int, ruleSet []model.TransactionRule, report *Report) error {
	total := 0
	for _, idx := range matches {
		if idx >= 0 {
			total++
		}
	}

	done := 0
	for i, idx := range matches {
		if idx < 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("rule application interrupted after %d of %d updates: %w", done, total, err)
		}

		rule := ruleSet[idx]
		txn := txns[i]
		if rule.Action.Apply(&txn) {
			err := common.WithRetry(ctx, func() error {
				return s.store.ApplyRuleUpdate(ctx, txn, rule)
			}, s.retry)
			switch {
			case err == nil:
				report.Updated++
			case errors.Is(err, context.Canceled):
				return err
			default:
				slog.Warn("Failed to apply rule to transaction",
					"transaction_id", txn.ID,
					"rule_id", rule.ID,
					"error", err)
				report.Errors = append(report.Errors, TransactionError{
					TransactionID: txn.ID,
					RuleID:        rule.ID,
					Message:       err.Error(),
					Err:           err,
				})
			}
		}

		done++
		if s.progress != nil {
			s.progress(done, total)
		}
	}
	return nil
}

func (s *Service) logReport(msg string, report Report, args ...any) {
	args = append(args,
		"total", report.Total,
		"matched", report.Matched,
		"updated", report.Updated,
		"failed", len(report.Errors),
		"preview", report.Preview)
	slog.Info(msg, args...)
}
