package cmd

import (
	"github.com/greatsami/g-drive-clone/database"
	"github.com/greatsami/g-drive-clone/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.AutoMigrate(database.DB); err != nil {
			return err
		}
		logger.L().Info("database migration completed")
		return nil
	},
}
