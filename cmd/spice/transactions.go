package main

import (
	"fmt"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/spf13/cobra"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txns"},
		Short:   "Browse stored transactions",
	}
	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(showTransactionCmd())
	return cmd
}

func listTransactionsCmd() *cobra.Command {
	var (
		start, end, account string
		limit, offset       int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions by date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			startDate, err := parseDateFlag(start, false)
			if err != nil {
				return err
			}
			endDate, err := parseDateFlag(end, true)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txns, err := store.GetTransactions(ctx, service.TransactionFilter{
				StartDate:   startDate,
				EndDate:     endDate,
				BankAccount: account,
				Limit:       limit,
				Offset:      offset,
			})
			if err != nil {
				return err
			}
			cmd.Println(cli.RenderTransactions(txns))
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&account, "account", "", "only this bank account")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum transactions to show (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "transactions to skip")
	return cmd
}

func showTransactionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <transaction-id>",
		Short: "Show a transaction and the rules applied to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txn, err := store.GetTransactionByID(ctx, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, txn)
			}

			apps, err := store.GetRuleApplications(ctx, txn.ID)
			if err != nil {
				return err
			}

			body := fmt.Sprintf("Date:        %s\nAmount:      %.2f (%s)\nAccount:     %s\nCategory:    %s\nInternal:    %t\nNotes:       %s",
				txn.Date.Format("2006-01-02"), txn.Amount, txn.Type, txn.BankAccount,
				txn.CategoryName(), txn.IsInternal, txn.Notes)
			if len(apps) > 0 {
				body += "\n\nRule history:"
				for _, app := range apps {
					body += fmt.Sprintf("\n  %s  rule %d (%s)", app.AppliedAt.Local().Format("2006-01-02 15:04"), app.RuleID, app.RuleName)
				}
			}
			cmd.Println(cli.RenderBox(txn.Description, body))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the transaction as JSON")
	return cmd
}
