package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-sequencer/internal/auth"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
)

func newTokenCmd(configPath func() string) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API bearer token",
		Long: `Signs a bearer token with security.jwt.secret, for scripts and show
control systems that cannot log in interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !auth.IsValidUsername(subject) {
				return fmt.Errorf("invalid subject %q", subject)
			}
			if !auth.IsValidRole(auth.Role(role)) {
				return fmt.Errorf("invalid role %q (want one of %v)", role, auth.ValidRoles)
			}
			cfg, err := config.Load(configPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.GetAccessTokenTTL()
			}

			token, err := auth.GenerateAccessToken(subject, auth.Role(role), cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "role: viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default security.jwt.access_token_ttl)")
	return cmd
}
