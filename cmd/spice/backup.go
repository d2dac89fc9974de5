package main

import (
	"fmt"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/spf13/cobra"
)

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup [destination]",
		Short: "Copy the database to a new file",
		Long: `Write a consistent snapshot of the database. Without a destination the copy
goes to a timestamped file in a backups directory next to the database.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var dest string
			if len(args) == 1 {
				dest = args[0]
				if err := store.Backup(ctx, dest); err != nil {
					return common.NewUserError(fmt.Sprintf("Backup to %s failed", dest), err)
				}
			} else if dest, err = backupBeforeWrite(ctx, store); err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess("Backed up database to " + dest))
			return nil
		},
	}
}
