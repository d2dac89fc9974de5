package main

import (
	"fmt"
	"os"

	"github.com/Veraticus/spice-ledger/internal/apply"
	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/importer"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	var (
		format     string
		account    string
		dateFormat string
		noRules    bool
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV or OFX/QFX statement",
		Long: `Reads a bank export, runs the enabled rules over the new transactions
(first match wins), and saves them. Transactions already in the ledger are
skipped.

CSV column names come from import.columns in the config file; the defaults are
date, amount, description, category, type, bankAccount and notes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			f, err := importer.DetectFormat(path)
			if format != "" {
				f, err = importer.ParseFormat(format)
			}
			if err != nil {
				return err
			}

			reader, err := newImportReader(f, account, dateFormat)
			if err != nil {
				return err
			}

			file, err := os.Open(path) // #nosec G304 - user-provided import path
			if err != nil {
				return common.NewUserError("Could not open "+path, err)
			}
			defer func() { _ = file.Close() }()

			ctx := cmd.Context()
			result, err := reader.Read(ctx, file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			for _, rowErr := range result.Errors {
				cmd.PrintErrln(cli.FormatWarning(rowErr.Error()))
			}
			if len(result.Transactions) == 0 {
				cmd.Println(cli.FormatInfo("No transactions found."))
				return nil
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txns := result.Transactions
			var imported apply.ImportResult
			if !noRules {
				svc, err := newApplyService(store)
				if err != nil {
					return err
				}
				if imported, err = svc.ApplyOnImport(ctx, txns); err != nil {
					return err
				}
				txns = imported.Transactions
			}

			if dryRun {
				cmd.Println(cli.RenderTransactions(txns))
				cmd.Println(cli.FormatInfo(fmt.Sprintf("Dry run: %d transactions read, %d matched a rule, nothing saved",
					len(txns), imported.Matched)))
				return nil
			}

			saved, err := store.SaveTransactions(ctx, txns)
			if err != nil {
				return fmt.Errorf("failed to save transactions: %w", err)
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d new transactions from %s (%d already present)",
				saved, path, len(txns)-saved)))
			if imported.Matched > 0 {
				cmd.Println(cli.FormatInfo(fmt.Sprintf("%d categorized by rules", imported.Matched)))
				for _, rc := range imported.Breakdown {
					cmd.Printf("  %s: %d\n", rc.RuleName, rc.Matched)
				}
			}
			if len(result.Errors) > 0 {
				cmd.Println(cli.FormatWarning(fmt.Sprintf("%d rows could not be read", len(result.Errors))))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "file format (csv or ofx); detected from the extension by default")
	cmd.Flags().StringVar(&account, "account", "", "bank account for CSV rows without one")
	cmd.Flags().StringVar(&dateFormat, "date-format", "", "Go time layout for CSV dates (default from import.date_format)")
	cmd.Flags().BoolVar(&noRules, "no-rules", false, "save transactions without running rules")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be imported without saving")
	return cmd
}

func newImportReader(f importer.Format, account, dateFormat string) (importer.Reader, error) {
	if f == importer.FormatOFX {
		return importer.NewOFXReader(), nil
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := importer.CSVOptions{
		Columns:     cfg.Import.Columns,
		DateFormat:  cfg.Import.DateFormat,
		BankAccount: cfg.Import.BankAccount,
		Location:    loc,
	}
	if account != "" {
		opts.BankAccount = account
	}
	if dateFormat != "" {
		opts.DateFormat = dateFormat
	}
	return importer.NewCSVReader(opts), nil
}
