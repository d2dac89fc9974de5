package main

import (
	"log/slog"

	"github.com/Veraticus/spice-ledger/internal/api"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the rules API over HTTP",
		Long: `Start the HTTP API for managing rules, testing filters against a transaction,
applying rules, and browsing transactions. The server stops gracefully on
interrupt.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			matcher, err := newMatcher()
			if err != nil {
				return err
			}
			applier, err := newApplyService(store)
			if err != nil {
				return err
			}

			handler := api.NewHandler(store, applier, matcher).Router()
			slog.Info("Starting API server",
				"addr", cfg.Server.Addr,
				"database", store.Path(),
				"timezone", matcher.Location().String())
			return api.Serve(ctx, cfg.Server.Addr, handler, cfg.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default: server.addr from config)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}
