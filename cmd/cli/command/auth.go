package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"taskhub/cmd/cli/authentication"
)

// auth.go handles the bearer token the CLI sends to the API and the live channel.

// authCmd represents the auth command for authentication related subcommands
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  `Store, inspect and remove the bearer token used to talk to the taskhub API.`,
}

// loginCmd stores a token issued by the taskhub deployment
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a bearer token in the OS keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		creds, err := authentication.CredentialsFromToken(strings.TrimSpace(token))
		if err != nil {
			return err
		}
		if creds.Expired(time.Now()) {
			return errors.New("token has already expired")
		}
		if err := authentication.StoreTokens(creds); err != nil {
			return fmt.Errorf("saving token: %w", err)
		}

		color.Green("✓ Logged in as %s", displayIdentity(creds))
		return nil
	},
}

// statusCmd shows who the stored token belongs to
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := authentication.GetTokens()
		if err != nil {
			return err
		}
		fmt.Printf("User: %s\n", displayIdentity(creds))
		fmt.Printf("API:  %s\n", apiURL)
		if creds.ExpiresAt > 0 {
			expires := time.Unix(creds.ExpiresAt, 0)
			if creds.Expired(time.Now()) {
				color.Red("Token expired at %s", expires.Format("2006-01-02 15:04:05"))
			} else {
				fmt.Printf("Token expires at %s\n", expires.Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authentication.DeleteTokens(); err != nil {
			return fmt.Errorf("removing token: %w", err)
		}
		fmt.Println("✓ Successfully logged out.")
		return nil
	},
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringP("token", "t", "", "JWT issued for your account")
	loginCmd.MarkFlagRequired("token")
}

// currentCredentials loads the stored token and refuses expired ones.
func currentCredentials() (*authentication.StoredCredentials, error) {
	creds, err := authentication.GetTokens()
	if err != nil {
		return nil, err
	}
	if creds.Expired(time.Now()) {
		return nil, errors.New("stored token has expired: run 'taskhub auth login --token <jwt>'")
	}
	return creds, nil
}

func displayIdentity(creds *authentication.StoredCredentials) string {
	if creds.Username != "" {
		return fmt.Sprintf("%s (%s)", creds.Username, creds.UserID)
	}
	return creds.UserID
}
