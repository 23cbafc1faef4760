package cmd

import (
	"fmt"

	"github.com/nfrund/evmarket/internal/auth"
	"github.com/nfrund/evmarket/internal/config"
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/spf13/cobra"
)

var (
	tokenUserID uint
	tokenRole   string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local testing",
	Long: `Sign an access token with JWT_SECRET for the given user id and role.

Examples:
  evmarket-cli token --user 1
  evmarket-cli token --user 7 --role admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUserID == 0 {
			return fmt.Errorf("--user is required")
		}
		switch tokenRole {
		case domain.RoleMember, domain.RoleAdmin:
		default:
			return fmt.Errorf("unsupported role %q (want %s or %s)", tokenRole, domain.RoleMember, domain.RoleAdmin)
		}

		cfg, err := config.New()
		if err != nil {
			return err
		}
		token, err := auth.NewJWT(cfg.GetJWTSecret(), cfg.GetJWTIssuer(), cfg.GetJWTTTL()).GenerateToken(tokenUserID, tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().UintVarP(&tokenUserID, "user", "u", 0, "User id to embed in the token")
	tokenCmd.Flags().StringVarP(&tokenRole, "role", "r", domain.RoleMember, "Role to embed in the token (member, admin)")
}
