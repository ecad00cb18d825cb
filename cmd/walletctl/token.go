package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/wallet-engine/internal/auth"
	"github.com/jmylchreest/wallet-engine/internal/config"
)

func newTokenCmd() *cobra.Command {
	var (
		subject  string
		roles    []string
		projects []string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET",
		Long:  "Mint a bearer token for a provider or operator. JWT_SECRET must be set; a generated secret would not match the server's.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecretGenerated {
				return fmt.Errorf("JWT_SECRET is not set")
			}

			parsed := make([]auth.Role, 0, len(roles))
			for _, r := range roles {
				role := auth.Role(r)
				if !role.Valid() {
					return fmt.Errorf("unknown role %q", r)
				}
				parsed = append(parsed, role)
			}

			token, err := auth.NewVerifier(cfg.JWTSigningKey, cfg.JWTIssuer).Mint(subject, parsed, projects, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject (username or service name)")
	cmd.Flags().StringSliceVar(&roles, "role", []string{string(auth.RoleUser)}, "Roles to grant: SERVICE, PRIVILEGED, ADMIN, USER")
	cmd.Flags().StringSliceVar(&projects, "project", nil, "Projects the subject may act for")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
