package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"exchange-backend/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if cfg.Storage.Driver != "mysql" {
			return errors.New("migrate requires storage.driver=mysql")
		}
		conn, err := openDB(cmd.Context(), cfg.MySQL)
		if err != nil {
			return err
		}
		defer conn.Close()

		return db.Migrate(conn, logger)
	},
}
