package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogger(cfg.Log.Level, "text")

		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		applied, err := st.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		v, err := st.SchemaVersion(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: applied %d migration(s), schema version %d\n", cfg.Store.Path, applied, v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
