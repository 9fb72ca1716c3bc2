package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdxmph/todo-tui/internal/auth"
	"github.com/pdxmph/todo-tui/internal/config"
	"github.com/pdxmph/todo-tui/internal/db"
)

func initCmd(opts *options) *cobra.Command {
	var fixtures bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the local task database",
		Long: `Create the SQLite database used by the sqlite backend. With --fixtures the
database is filled with sample tasks, including a few with legacy date strings.
A default config file is written if none exists yet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			dc := opts.cfg.Database

			create := db.Initialize
			if fixtures {
				create = db.CreateFixturesDatabase
			}
			if err := create(dc.Driver, dc.Path); err != nil {
				return err
			}
			fmt.Fprintf(out, "Created database at %s\n", dc.Path)

			path := opts.path()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				cfg := config.Default()
				cfg.Database = dc
				if err := saveConfig(cfg, opts.configPath); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote default config to %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fixtures, "fixtures", false, "fill the database with sample tasks")
	return cmd
}

// saveConfig writes to the standard location unless --config named a file
func saveConfig(cfg *config.Config, path string) error {
	if path == "" {
		return cfg.Save()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return cfg.SaveTo(path)
}

func loginCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize access to Cloud Firestore",
		Long: `Run the browser OAuth flow using the client secrets in firestore.client_secrets
and cache the token in firestore.token_file. Not needed with a service account
credentials file or application default credentials.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return auth.Login(cmd.Context(), opts.cfg.Firestore, cmd.OutOrStdout())
		},
	}
}
