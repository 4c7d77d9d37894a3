package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// configPath is the directory searched for config.yaml
var configPath string

var rootCmd = &cobra.Command{
	Use:   "skillswap",
	Short: "Order service for the Skillswap freelance marketplace",
	Long: `A service that manages marketplace orders: their status lifecycle,
milestones, delivery submissions and client reviews. It exposes an HTTP API
and a background worker that keeps the order search index current.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")
}
