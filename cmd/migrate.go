package cmd

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Wirlhawk/skillswap-sub000/internal/database"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dbs, err := database.Connect(cfg.DB)
		if err != nil {
			return err
		}
		defer dbs.Close()

		if err := models.SetupModels(dbs.Write); err != nil {
			return errors.Wrap(err, "failed to run migrations")
		}

		log.Info().Msg("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
