package main

import (
	"fmt"
	"time"

	"payhub/internal/auth"

	"github.com/spf13/cobra"
)

func tokenCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer tokens for support and smoke tests",
	}

	var (
		email  string
		role   string
		ttl    time.Duration
		secret string
	)
	issue := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Sign an access token with the configured JWT secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != auth.RoleUser && role != auth.RoleAdmin {
				return fmt.Errorf("--role must be %q or %q", auth.RoleUser, auth.RoleAdmin)
			}
			if secret == "" {
				cfg, err := e.loadConfig()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				secret = cfg.JWTSecret
			}

			token, err := auth.GenerateToken(args[0], email, role, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&email, "email", "", "email claim")
	issue.Flags().StringVar(&role, "role", auth.RoleUser, "role claim (user or admin)")
	issue.Flags().DurationVar(&ttl, "ttl", auth.AccessTokenTTL, "token lifetime")
	issue.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")

	cmd.AddCommand(issue)
	return cmd
}
