package cmd

import (
	"fmt"
	"time"

	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/service"

	"github.com/spf13/cobra"
)

func newTokenCommand(a *app) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <operator-id>",
		Short: "Issue an API token for an operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWT.Secret == "" {
				return &domain.ConfigError{Missing: []string{"JWT_SECRET"}}
			}

			token, err := service.NewTokenService(a.cfg.JWT.Secret).Issue(args[0], role, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", service.RoleOperator, "viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", service.DefaultTokenExpiration, "token lifetime")
	return cmd
}
