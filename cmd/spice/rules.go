package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Veraticus/spice-ledger/internal/apply"
	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage and apply transaction rules",
		Long: `Rules are evaluated in ascending order; the first enabled rule whose filters
match a transaction sets its category, internal flag or notes.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(showRuleCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(updateRuleCmd())
	cmd.AddCommand(setRuleEnabledCmd(true))
	cmd.AddCommand(setRuleEnabledCmd(false))
	cmd.AddCommand(deleteRuleCmd())
	cmd.AddCommand(testRuleCmd())
	cmd.AddCommand(applyRulesCmd())
	cmd.AddCommand(applyRuleCmd())

	return cmd
}

func parseRuleID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid rule id %q", common.ErrInvalidInput, arg)
	}
	return id, nil
}

func listRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ruleSet, err := store.ListRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}
			cmd.Println(cli.RenderRules(ruleSet))
			return nil
		},
	}
}

func showRuleCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Show a rule's filters and action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rule, err := store.GetRule(ctx, id)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, rule)
			}

			status := "enabled"
			if !rule.Enabled {
				status = "disabled"
			}
			body := fmt.Sprintf("Order:  %d (%s)\nAction: %s\n\n%s",
				rule.Order, status, cli.DescribeAction(rule.Action), cli.DescribeFilters(rule.Filters))
			cmd.Println(cli.RenderBox(fmt.Sprintf("Rule %d: %s", rule.ID, rule.Name), body))
			warnIssues(cmd, rule.Filters)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the rule as JSON")
	return cmd
}

// ruleFlags are shared by add and update.
type ruleFlags struct {
	name     string
	filters  string
	category string
	internal string
	notes    string
	order    int
	disabled bool
}

func (f *ruleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "rule name")
	cmd.Flags().IntVar(&f.order, "order", 0, "evaluation order; lower runs first")
	cmd.Flags().StringVar(&f.filters, "filters", "", "filter tree as JSON, or @file.json")
	cmd.Flags().StringVar(&f.category, "category", "", "category to assign")
	cmd.Flags().StringVar(&f.internal, "internal", "", "mark as internal transfer (yes or no)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "notes to set")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "store the rule disabled")
}

func (f *ruleFlags) build(cmd *cobra.Command) (model.TransactionRule, error) {
	action, err := buildAction(f.category, f.internal, f.notes, cmd.Flags().Changed("notes"))
	if err != nil {
		return model.TransactionRule{}, err
	}

	rule := model.TransactionRule{
		Name:    f.name,
		Order:   f.order,
		Enabled: !f.disabled,
		Action:  action,
		Filters: model.GroupFilter{Operator: model.CombinatorAnd},
	}
	if f.filters != "" {
		if err := readJSONArg(f.filters, &rule.Filters); err != nil {
			return rule, err
		}
	}
	rules.AssignIDs(&rule.Filters)
	return rule, nil
}

func addRuleCmd() *cobra.Command {
	var flags ruleFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a rule",
		Example: `  spice rules add --name Coffee --order 10 --category Dining \
    --filters '{"operator":"and","filters":[{"field":"description","operator":"contains","value":"coffee"}]}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rule, err := flags.build(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.CreateRule(ctx, &rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Created rule %d: %s", rule.ID, rule.Name)))
			warnIssues(cmd, rule.Filters)
			return nil
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func updateRuleCmd() *cobra.Command {
	var flags ruleFlags
	cmd := &cobra.Command{
		Use:   "update <rule-id>",
		Short: "Change a rule; unset flags keep their current values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rule, err := store.GetRule(ctx, id)
			if err != nil {
				return err
			}
			if err := mergeRuleFlags(cmd, &flags, rule); err != nil {
				return err
			}
			if err := store.UpdateRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to update rule: %w", err)
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Updated rule %d: %s", rule.ID, rule.Name)))
			warnIssues(cmd, rule.Filters)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// mergeRuleFlags overwrites only the fields whose flags were given.
func mergeRuleFlags(cmd *cobra.Command, f *ruleFlags, rule *model.TransactionRule) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		rule.Name = f.name
	}
	if changed("order") {
		rule.Order = f.order
	}
	if changed("disabled") {
		rule.Enabled = !f.disabled
	}
	if changed("filters") {
		var filters model.GroupFilter
		if err := readJSONArg(f.filters, &filters); err != nil {
			return err
		}
		rules.AssignIDs(&filters)
		rule.Filters = filters
	}
	if changed("category") {
		rule.Action.Category = optional(f.category)
	}
	if changed("internal") {
		if f.internal != "" && f.internal != model.InternalYes && f.internal != model.InternalNo {
			return fmt.Errorf("%w: --internal must be %q or %q", common.ErrInvalidInput, model.InternalYes, model.InternalNo)
		}
		rule.Action.IsInternal = optional(f.internal)
	}
	if changed("notes") {
		rule.Action.Notes = model.StringPtr(f.notes)
	}
	if rule.Action.IsEmpty() {
		return fmt.Errorf("%w: the rule would have no action", common.ErrInvalidRule)
	}
	return nil
}

// optional maps an empty flag value to "unset".
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return model.StringPtr(s)
}

func setRuleEnabledCmd(enabled bool) *cobra.Command {
	use, verb := "enable", "Enabled"
	if !enabled {
		use, verb = "disable", "Disabled"
	}
	return &cobra.Command{
		Use:   use + " <rule-id>",
		Short: verb + " a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rule, err := store.GetRule(ctx, id)
			if err != nil {
				return err
			}
			rule.Enabled = enabled
			if err := store.UpdateRule(ctx, rule); err != nil {
				return err
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("%s rule %d: %s", verb, rule.ID, rule.Name)))
			return nil
		},
	}
}

func deleteRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteRule(ctx, id); err != nil {
				return err
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", id)))
			return nil
		},
	}
}

func testRuleCmd() *cobra.Command {
	var (
		filtersArg string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "test [rule-id]",
		Short: "List stored transactions a rule or filter tree would match",
		Long: `Evaluates a stored rule, or an ad-hoc filter tree given with --filters,
against stored transactions. Nothing is written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && filtersArg == "" {
				return fmt.Errorf("%w: give a rule id or --filters", common.ErrInvalidInput)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var filters model.GroupFilter
			if len(args) == 1 {
				id, err := parseRuleID(args[0])
				if err != nil {
					return err
				}
				rule, err := store.GetRule(ctx, id)
				if err != nil {
					return err
				}
				filters = rule.Filters
			} else if err := readJSONArg(filtersArg, &filters); err != nil {
				return err
			}

			matcher, err := newMatcher()
			if err != nil {
				return err
			}
			warnIssues(cmd, filters)

			txns, err := store.GetTransactions(ctx, service.TransactionFilter{})
			if err != nil {
				return err
			}
			var matched []model.Transaction
			for _, txn := range txns {
				if matcher.MatchesGroup(txn, filters) {
					matched = append(matched, txn)
				}
			}

			cmd.Println(cli.FormatInfo(fmt.Sprintf("%d of %d transactions match", len(matched), len(txns))))
			if limit > 0 && len(matched) > limit {
				matched = matched[:limit]
			}
			cmd.Println(cli.RenderTransactions(matched))
			return nil
		},
	}
	cmd.Flags().StringVar(&filtersArg, "filters", "", "filter tree as JSON, or @file.json")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum matches to print (0 for all)")
	return cmd
}

// applyFlags are shared by apply and apply-rule.
type applyFlags struct {
	preview bool
	backup  bool
}

func (f *applyFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.preview, "preview", false, "count matches without writing anything")
	cmd.Flags().BoolVar(&f.backup, "backup", true, "back up the database before writing")
}

func applyRulesCmd() *cobra.Command {
	var (
		flags applyFlags
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "apply [transaction-id...]",
		Short: "Run the enabled rules over transactions, first match wins",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("%w: give transaction ids or --all", common.ErrInvalidInput)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ids := args
			if all {
				txns, err := store.GetTransactions(ctx, service.TransactionFilter{})
				if err != nil {
					return err
				}
				ids = make([]string, 0, len(txns))
				for _, txn := range txns {
					ids = append(ids, txn.ID)
				}
				if len(ids) == 0 {
					cmd.Println(cli.FormatInfo("No transactions to process."))
					return nil
				}
			}

			return runApply(cmd, store, flags, func(ctx context.Context, svc *apply.Service) (apply.Report, error) {
				return svc.ApplyRules(ctx, apply.ApplyRequest{TransactionIDs: ids, Preview: flags.preview})
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "process every stored transaction")
	return cmd
}

func applyRuleCmd() *cobra.Command {
	var flags applyFlags
	cmd := &cobra.Command{
		Use:   "apply-rule <rule-id>",
		Short: "Apply one rule to every stored transaction, even if it is disabled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return runApply(cmd, store, flags, func(ctx context.Context, svc *apply.Service) (apply.Report, error) {
				return svc.ApplyRuleToAll(ctx, id, flags.preview)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// runApply wires progress, interrupt handling and the optional backup around
// one apply operation and prints its report.
func runApply(cmd *cobra.Command, store *storage.SQLiteStorage, flags applyFlags,
	run func(ctx context.Context, svc *apply.Service) (apply.Report, error),
) error {
	ctx := cmd.Context()

	if flags.backup && !flags.preview {
		dest, err := backupBeforeWrite(ctx, store)
		if err != nil {
			return err
		}
		cmd.Println(cli.FormatInfo("Backed up database to " + dest))
	}

	progress := cli.NewProgress(cmd.ErrOrStderr(), "Applying rules...")
	svc, err := newApplyService(store, apply.WithProgress(progress.Update))
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(cmd.OutOrStdout(), "Rule application",
		"Updates written so far are kept; rerun to finish the rest.")
	ctx = interrupts.HandleInterrupts(ctx)

	report, err := run(ctx, svc)
	progress.Finish()
	if err != nil {
		return err
	}

	cmd.Println(cli.RenderReport(report))
	if report.Failed() {
		return common.NewUserError(fmt.Sprintf("%d of %d updates failed", len(report.Errors), report.Matched), nil)
	}
	return nil
}

// warnIssues prints authoring issues for a filter tree. They never block a
// save.
func warnIssues(cmd *cobra.Command, filters model.GroupFilter) {
	if issues := rules.Validate(filters); len(issues) > 0 {
		cmd.PrintErrln(cli.RenderIssues(issues))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
