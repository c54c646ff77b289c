package main

import (
	"github.com/layer-3/warden/service"
	"github.com/spf13/cobra"
)

// NewPruneCmd creates the prune subcommand.
func NewPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired ledger entries once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			d, err := buildDeps(cmd.Context(), cfg, log)
			defer d.Close()
			if err != nil {
				return err
			}

			n, err := service.NewJanitor(d.ledger, cfg.JanitorInterval).WithLogger(log).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Pruned %d expired ledger entries\n", n)
			return nil
		},
	}
}
