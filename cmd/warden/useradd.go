package main

import (
	"strings"

	"github.com/layer-3/warden/adapters/hasher"
	"github.com/layer-3/warden/core"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewUserAddCmd creates the useradd subcommand.
func NewUserAddCmd() *cobra.Command {
	var (
		email    string
		password string
		verified bool
	)

	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create a user in the PostgreSQL user store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !strings.Contains(email, "@") {
				return oops.Code("INVALID_ARGUMENT").Errorf("--email must be an email address")
			}
			if password == "" {
				return oops.Code("INVALID_ARGUMENT").Errorf("--password is required")
			}

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL is required to create users")
			}

			d, err := buildDeps(cmd.Context(), cfg, log)
			defer d.Close()
			if err != nil {
				return err
			}

			digest, err := hasher.NewBcrypt(cfg.BcryptCost).Hash(password)
			if err != nil {
				return err
			}

			user, err := d.users.Create(cmd.Context(), &core.User{
				Email:         email,
				PasswordHash:  digest,
				EmailVerified: verified,
			})
			if err != nil {
				return oops.Code("USER_CREATE_FAILED").With("email", email).Wrap(err)
			}

			cmd.Printf("Created user %s (%s)\n", user.ID, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().BoolVar(&verified, "verified", false, "mark the email as already verified")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
