package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "complaints_service",
	Short: "Complaint service for recording and deduplicating product complaints",
	Long: `A service that ingests product complaints over HTTP and Azure Service
Bus, deduplicates repeated complaints per product and complainant, and
enriches new complaints with the submitter's country.`,
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
	cobra.OnInitialize()
}
