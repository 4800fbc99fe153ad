package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import events from the linked Google Calendar",
	Long: `sync lists the linked calendar and imports its events as schedules.
Events without a title and recurring events are skipped. Events already known
locally take the remote title and date; budget and color stay as they are.
Nothing is ever deleted locally.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := a.currentUser(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !user.Linked() {
			fmt.Fprintf(out, "User %s has no linked calendar; nothing to sync.\n", user.ID)
			fmt.Fprintln(out, "Link one with: schedsync user link <calendar-id>")
			return nil
		}

		fmt.Fprintf(out, "Syncing calendar %s...\n", *user.RemoteCalendarID)
		result, err := a.engine.Reconcile(ctx, user)
		if err != nil {
			return err
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "Summary:")
		fmt.Fprintf(out, "  %d imported\n", result.Imported)
		fmt.Fprintf(out, "  %d updated\n", result.Updated)
		fmt.Fprintf(out, "  %d unchanged\n", result.Unchanged)
		fmt.Fprintf(out, "  %d skipped\n", result.Filtered)
		if result.Malformed > 0 {
			fmt.Fprintf(out, "  %d malformed\n", result.Malformed)
		}
		if result.Errors > 0 {
			fmt.Fprintf(out, "  %d errors\n", result.Errors)
			return fmt.Errorf("sync finished with %d errors", result.Errors)
		}
		return nil
	})
}
