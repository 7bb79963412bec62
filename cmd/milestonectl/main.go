// Command milestonectl is an operator tool for the milestone catalog, the
// token hasher and the contact form schemas.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"communitysite/internal/db"
	"communitysite/internal/i18n"
	"communitysite/internal/logger"
	"communitysite/internal/milestone"
	"communitysite/internal/validation"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "milestonectl",
		Short:        "Inspect milestones, tokens and form schemas",
		SilenceUsage: true,
	}
	root.AddCommand(newHashCmd(), newCatalogCmd(), newSchemasCmd(), newMigrationsCmd())
	return root
}

func newHashCmd() *cobra.Command {
	var salt string
	cmd := &cobra.Command{
		Use:   "hash <id>...",
		Short: "Print the stored token for each raw milestone id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasher, err := milestone.NewHasher(salt)
			if err != nil {
				return fmt.Errorf("%w (use --salt or MILESTONE_SALT)", err)
			}
			for _, id := range args {
				token, err := hasher.Hash(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, token)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&salt, "salt", os.Getenv("MILESTONE_SALT"), "milestone salt")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	var showIDs bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the milestone catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := milestone.DefaultCatalog()
			if err != nil {
				return err
			}
			return writeCatalog(cmd.OutOrStdout(), catalog, showIDs)
		},
	}
	cmd.Flags().BoolVar(&showIDs, "ids", false, "include raw milestone ids")
	return cmd
}

func writeCatalog(out io.Writer, catalog *milestone.Catalog, showIDs bool) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if showIDs {
		fmt.Fprintln(tw, "NAME\tIMAGE KEY\tICON\tID")
	} else {
		fmt.Fprintln(tw, "NAME\tIMAGE KEY\tICON")
	}
	for _, m := range catalog.All() {
		if showIDs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, m.ImageKey, m.Icon, m.ID)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, m.ImageKey, m.Icon)
		}
	}
	return tw.Flush()
}

func newSchemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas <locale> [schema]",
		Short: "Print the form validation rules as JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			locale := i18n.Resolve(args[0], "")
			schemas := validation.CreateValidationSchemas(i18n.NewBundle().Func(locale))
			var payload any = schemas
			if len(args) == 2 {
				schema, err := schemas.Get(args[1])
				if err != nil {
					return err
				}
				payload = schema
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
}

func newMigrationsCmd() *cobra.Command {
	var (
		dir   string
		apply bool
	)
	cmd := &cobra.Command{
		Use:   "migrations",
		Short: "List database migrations, or apply them with --apply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fsys := db.Migrations(dir)
			if !apply {
				files, err := db.PendingMigrations(fsys)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			}
			url := os.Getenv("DATABASE_URL")
			if url == "" {
				return errors.New("DATABASE_URL is required to apply migrations")
			}
			log, err := logger.New("dev")
			if err != nil {
				return err
			}
			defer log.Sync()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pool, err := db.NewPool(ctx, url)
			if err != nil {
				return fmt.Errorf("connect db: %w", err)
			}
			defer pool.Close()
			return db.RunMigrations(ctx, pool, fsys, log)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "migrations directory; the embedded set is used when it does not exist")
	cmd.Flags().BoolVar(&apply, "apply", false, "apply migrations to DATABASE_URL")
	return cmd
}
