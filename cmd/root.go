package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const Version = "0.3.0"

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "mcts",
		Short: "shared-tree parallel Monte Carlo tree search",
		Long: fmt.Sprintf(`mcts (v%s)

Parallel tree search where independent workers grow private trees and
periodically merge their discoveries into one shared master tree.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mcts v%s\n", Version)
		},
	}
)

func init() {
	// A .env file is optional; real env always wins.
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(searchCmd)
}

// Execute runs the root command.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
