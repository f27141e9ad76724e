package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "entrypass",
		Short:         "Entry-pass ticketing for team events",
		Long:          `Issue, import, render and verify QR entry passes for registered teams.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("failed to load %s: %w", envFile, err)
				}
				return nil
			}
			_ = godotenv.Load() // Loads .env file if present
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to an env file (default: ./.env if present)")

	rootCmd.AddCommand(
		newImportCommand(),
		newVerifyCommand(),
		newListCommand(),
		newIssueCommand(),
		newPassCommand(),
		newWatchCommand(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
