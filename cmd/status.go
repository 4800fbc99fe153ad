package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/schedsync/internal/tokens"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the acting user, calendar link and token state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := a.currentUser(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User: %s\n", user.ID)
		if !user.Linked() {
			fmt.Fprintln(out, "Calendar: not linked (schedules stay local)")
		} else {
			fmt.Fprintf(out, "Calendar: %s\n", *user.RemoteCalendarID)
		}
		fmt.Fprintf(out, "Token: %s\n", tokenState(a.tokens, user.ID))

		schedules, err := a.store.FindByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		synced := 0
		for _, s := range schedules {
			if s.Linked() {
				synced++
			}
		}
		fmt.Fprintf(out, "Schedules: %d (%d synced, %d local only)\n", len(schedules), synced, len(schedules)-synced)
		return nil
	})
}

func tokenState(store *tokens.FileStore, userID string) string {
	tok, err := store.Load(userID)
	switch {
	case errors.Is(err, tokens.ErrNoToken):
		return "none (import with: schedsync token import <token.json>)"
	case err != nil:
		return "unreadable: " + err.Error()
	case !tok.Valid():
		return "expired"
	case tok.Expiry.IsZero():
		return "valid"
	default:
		return "valid until " + tok.Expiry.Local().Format("2006-01-02 15:04")
	}
}
