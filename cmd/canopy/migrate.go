package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy/internal/schema"
	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/db"
	"github.com/canopyhq/canopy/pkg/job"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Applies the canopy schema and the job queue tables. With --root-user the
root of the user tree is created as well, unless one exists.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := open(cmd)
		if err != nil {
			return err
		}
		defer s.close()
		ctx := cmd.Context()

		v, err := db.Migrate(ctx, s.pool, schema.Migrations(), s.cfg.Database.MigrationsTable, s.log)
		if err != nil {
			return err
		}
		applied, err := job.Migrate(ctx, s.pool, s.log)
		if err != nil {
			return err
		}
		s.log.Info("database migrated", slog.Int64("version", v), slog.Any("job_versions", applied))

		uname, _ := cmd.Flags().GetString("root-user")
		if uname == "" {
			return nil
		}
		password, _ := cmd.Flags().GetString("root-password")
		if password == "" {
			password = os.Getenv("CANOPY_ROOT_PASSWORD")
		}

		root, err := s.users.CreateRoot(ctx, users.Input{
			Uname:    uname,
			Password: password,
			Fullname: uname,
			Admin:    true,
		})
		if errors.Is(err, users.ErrRootExists) {
			s.log.Info("root user exists, skipped")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "root user %q created with id %d\n", root.Uname, root.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().String("root-user", "", "create the root user with this name")
	migrateCmd.Flags().String("root-password", "", "root password (default $CANOPY_ROOT_PASSWORD)")
}
