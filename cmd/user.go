package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/schedsync/internal/model"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage the acting user's calendar link",
}

var userLinkCmd = &cobra.Command{
	Use:   "link <calendar-id>",
	Short: "Mirror schedules to a Google Calendar (e.g. primary)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserLink,
}

var userUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Stop mirroring new schedules; existing links are kept",
	Args:  cobra.NoArgs,
	RunE:  runUserUnlink,
}

func init() {
	userCmd.AddCommand(userLinkCmd)
	userCmd.AddCommand(userUnlinkCmd)
}

func runUserLink(cmd *cobra.Command, args []string) error {
	calendarID := strings.TrimSpace(args[0])
	if calendarID == "" {
		return fmt.Errorf("%w: calendar id must not be empty", errUsage)
	}
	return withApp(func(ctx context.Context, a *app) error {
		user := model.User{ID: a.userID(), RemoteCalendarID: model.StringPtr(calendarID)}
		if err := a.store.SaveUser(ctx, user); err != nil {
			return err
		}
		level.Info(a.logger).Log("msg", "linked calendar", "user", user.ID, "calendar", calendarID)
		fmt.Fprintf(cmd.OutOrStdout(), "User %s linked to calendar %s\n", user.ID, calendarID)
		return nil
	})
}

func runUserUnlink(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user := model.User{ID: a.userID()}
		if err := a.store.SaveUser(ctx, user); err != nil {
			return err
		}
		level.Info(a.logger).Log("msg", "unlinked calendar", "user", user.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "User %s is no longer linked; existing synced schedules keep their calendar.\n", user.ID)
		return nil
	})
}
