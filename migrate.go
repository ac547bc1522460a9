package main

import (
	"github.com/spf13/cobra"

	"github.com/sei-platform/seibackend/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()
		defer db.Close()

		if err := database.AutoMigrateModels(db.Gorm); err != nil {
			return err
		}
		log.Info("schema up to date", "driver", db.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
