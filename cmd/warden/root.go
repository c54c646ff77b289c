package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var envFiles []string

// NewRootCmd creates the root command for the warden CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warden",
		Short: "warden - credential and session-token service",
		Long: `warden authenticates users by password, issues access and renewal
credentials, and runs the password-reset and email-verification flows.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPruneCmd())
	cmd.AddCommand(NewUserAddCmd())

	return cmd
}
