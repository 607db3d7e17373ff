package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/railsim/formation/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   ServiceName,
	Short: "Formation management service for coupled rail cars",
	Long: `formationd keeps formations of coupled rail cars consistent while cars are
spawned, coupled, split and driven. Commands arrive on stdin or from scenario
scripts; observers follow every structural change over a websocket.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("config-dir")
		if err := config.Load(dir); err != nil {
			// defaults are registered even when the file is missing
			fmt.Fprintf(cmd.ErrOrStderr(), "Failed to load config, using defaults: %v\n", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			viper.Set("logLevel", level)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config-dir", ".", "Directory containing "+config.FileName)
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}
