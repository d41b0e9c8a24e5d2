package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/codecraft/internal/config"
	"github.com/sakif/codecraft/internal/repository/sqlite"
)

// NewMigrateCommand creates the migrate command. Migrations also run on
// every server start; this lets a deploy create the schema ahead of time.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				dbPath = cfg.DBPath
			}
			if err := ensureDBDir(dbPath); err != nil {
				return err
			}

			db, err := sqlite.New(dbPath)
			if err != nil {
				return err
			}
			if err := db.Close(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return json.NewEncoder(out).Encode(map[string]string{"status": "ok", "database": dbPath})
			}
			fmt.Fprintf(out, "✓ database ready at %s\n", dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default: DB_PATH)")
	return cmd
}
