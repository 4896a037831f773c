package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cuetime/reservations/migrations"
)

func migrateCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := st.cfg.ValidateStore(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), startupTimeout)
			defer cancel()

			db, err := openStore(ctx, st.cfg.DB)
			if err != nil {
				return err
			}
			defer db.close()

			names, err := migrations.Names(st.cfg.DB.Driver)
			if err != nil {
				return err
			}
			st.logger.Info("migrations applied",
				slog.String("db_driver", st.cfg.DB.Driver),
				slog.Int("count", len(names)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%d migrations)\n", len(names))
			return nil
		},
	}
}
