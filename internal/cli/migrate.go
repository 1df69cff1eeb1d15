package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hray3182/ledgerline/internal/database"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &Output{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if list {
				return listMigrations(out)
			}
			return runMigrate(cmd.Context(), out)
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list embedded migrations without connecting")

	return cmd
}

func listMigrations(out *Output) error {
	names, err := database.Migrations()
	if err != nil {
		return err
	}
	return out.Write(names, func(w io.Writer) error {
		for _, name := range names {
			if _, err := fmt.Fprintln(w, name); err != nil {
				return err
			}
		}
		return nil
	})
}

func runMigrate(ctx context.Context, out *Output) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return out.Write(map[string]string{"status": "ok"}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "migrations applied")
		return err
	})
}
