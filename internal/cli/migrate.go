package cli

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/spf13/cobra"

	"bizzytrack/backend/internal/adapters/postgres"
	"bizzytrack/backend/internal/httpapi"
)

const migrateTimeout = 2 * time.Minute

func migrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}
	cmd.AddCommand(migrateListCmd(), migrateUpCmd(e))
	return cmd
}

func migrateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the embedded schema files in apply order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := postgres.Migrations()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), path.Base(name))
			}
			return nil
		},
	}
}

func migrateUpCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply the embedded schema to BIZZY_DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			config, err := e.config()
			if err != nil {
				return err
			}
			if config.Store != httpapi.StorePostgres {
				fmt.Fprintf(cmd.OutOrStdout(), "store %q needs no migrations\n", config.Store)
				return nil
			}
			logger, err := e.logger(cmd, config)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
			defer cancel()

			db, err := postgres.Open(ctx, config.DatabaseURL)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, db.Close())
			}()

			if err := postgres.Apply(ctx, db); err != nil {
				return err
			}
			logger.Info("schema applied")
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
