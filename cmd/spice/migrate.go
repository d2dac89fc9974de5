package main

import (
	"fmt"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := storage.NewSQLiteStorage(cfg.Database.Path)
			if err != nil {
				return common.NewUserError("Could not open the database at "+cfg.Database.Path, err)
			}
			defer func() { _ = store.Close() }()

			current, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			pending, err := store.PendingMigrations(ctx)
			if err != nil {
				return err
			}

			if status {
				cmd.Println(cli.FormatInfo(fmt.Sprintf("Schema version %d of %d", current, storage.ExpectedSchemaVersion)))
				for _, m := range pending {
					cmd.Printf("  pending %d: %s\n", m.Version, m.Description)
				}
				return nil
			}

			if len(pending) == 0 {
				cmd.Println(cli.FormatSuccess(fmt.Sprintf("Database is up to date (version %d)", current)))
				return nil
			}
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			for _, m := range pending {
				cmd.Printf("  applied %d: %s\n", m.Version, m.Description)
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Migrated to schema version %d", storage.ExpectedSchemaVersion)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "show the schema version and pending migrations without applying them")
	return cmd
}
