package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Wirlhawk/skillswap-sub000/internal/session"
)

var (
	tokenUserID string
	tokenName   string
)

// tokenCmd issues a session token, for local development and smoke tests
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		id, err := uuid.Parse(tokenUserID)
		if err != nil {
			return errors.Wrap(err, "invalid --user")
		}

		provider := session.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		token, err := provider.Issue(session.User{ID: id, Name: tokenName})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "user id the token is issued for")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name carried in the token")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
