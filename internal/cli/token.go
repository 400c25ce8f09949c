package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bizzytrack/backend/internal/adapters/auth"
	"bizzytrack/backend/internal/ports"
)

func tokenCmd(e *env) *cobra.Command {
	var (
		userID     string
		businessID string
		roles      []string
		ttl        time.Duration
	)

	c := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token with BIZZY_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := e.config()
			if err != nil {
				return err
			}
			secret := strings.TrimSpace(config.JWTSecret)
			if secret == "" {
				return errors.New("BIZZY_JWT_SECRET is required to issue tokens")
			}

			provider, err := auth.NewJWTAuthProvider(secret)
			if err != nil {
				return err
			}
			token, err := provider.Issue(ports.AuthContext{
				UserID:     userID,
				BusinessID: businessID,
				Roles:      roles,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	c.Flags().StringVarP(&userID, "user", "u", "", "token subject")
	c.Flags().StringVarP(&businessID, "business", "b", "", "business the token is scoped to")
	c.Flags().StringSliceVarP(&roles, "role", "r", []string{"staff"}, "roles granted (repeatable)")
	c.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = c.MarkFlagRequired("user")
	return c
}
