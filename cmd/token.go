package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the acting user's Google OAuth2 token",
	Long: `Tokens are obtained outside schedsync (e.g. with the OAuth playground or
gcloud) and imported as oauth2.Token JSON: {"access_token": "...", "expiry": "..."}.
schedsync never refreshes tokens; import a new one when it expires.`,
}

var tokenImportCmd = &cobra.Command{
	Use:   "import <token.json>",
	Short: "Store a token for the acting user",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenImport,
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the acting user's token",
	Args:  cobra.NoArgs,
	RunE:  runTokenDelete,
}

func init() {
	tokenCmd.AddCommand(tokenImportCmd)
	tokenCmd.AddCommand(tokenDeleteCmd)
}

func runTokenImport(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		tok, err := a.tokens.Import(a.userID(), args[0])
		if err != nil {
			return err
		}
		expiry := "no expiry"
		if !tok.Expiry.IsZero() {
			expiry = "expires " + tok.Expiry.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token stored for %s (%s)\n", a.userID(), expiry)
		return nil
	})
}

func runTokenDelete(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.tokens.Delete(a.userID()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token removed for %s\n", a.userID())
		return nil
	})
}
