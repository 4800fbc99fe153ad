package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/schedsync/internal/calsync"
	"github.com/Tiliavir/schedsync/internal/model"
	"github.com/Tiliavir/schedsync/internal/storage"
)

var (
	scheduleDate   string
	scheduleName   string
	scheduleBudget int64
	scheduleColor  int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage schedules",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a schedule (also on the linked calendar)",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleAdd,
}

var scheduleImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Create schedules from a JSON array; stops at the first failure",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleImport,
}

var scheduleUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a schedule; unset flags keep their current value",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleUpdate,
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a schedule (remote event first)",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleDelete,
}

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleDate, "date", "", "Date (YYYY-MM-DD)")
	scheduleAddCmd.Flags().Int64Var(&scheduleBudget, "budget", 0, "Budget amount")
	scheduleAddCmd.Flags().IntVar(&scheduleColor, "color", model.DefaultColor, "Palette color index")
	_ = scheduleAddCmd.MarkFlagRequired("date")

	scheduleUpdateCmd.Flags().StringVar(&scheduleName, "name", "", "New name")
	scheduleUpdateCmd.Flags().StringVar(&scheduleDate, "date", "", "New date (YYYY-MM-DD)")
	scheduleUpdateCmd.Flags().Int64Var(&scheduleBudget, "budget", 0, "New budget amount")
	scheduleUpdateCmd.Flags().IntVar(&scheduleColor, "color", 0, "New palette color index")

	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleImportCmd)
	scheduleCmd.AddCommand(scheduleUpdateCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := a.currentUser(ctx)
		if err != nil {
			return err
		}
		s, err := a.engine.CreateSchedule(ctx, user, model.ScheduleInput{
			Name:   args[0],
			Date:   scheduleDate,
			Budget: scheduleBudget,
			Color:  scheduleColor,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created schedule %s %q on %s%s\n", s.ID, s.Name, s.Date, linkNote(s))
		return nil
	})
}

func runScheduleImport(cmd *cobra.Command, args []string) error {
	inputs, err := readScheduleInputs(args[0])
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app) error {
		user, err := a.currentUser(ctx)
		if err != nil {
			return err
		}
		created, err := a.engine.CreateSchedules(ctx, user, inputs)
		fmt.Fprintf(cmd.OutOrStdout(), "Created %d of %d schedules.\n", len(created), len(inputs))
		return err
	})
}

func readScheduleInputs(path string) ([]model.ScheduleInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var inputs []model.ScheduleInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("%w: %s is not a JSON array of schedules: %v", errUsage, path, err)
	}
	return inputs, nil
}

func runScheduleUpdate(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := a.currentUser(ctx)
		if err != nil {
			return err
		}
		current, err := a.store.FindByID(ctx, args[0])
		if errors.Is(err, storage.ErrNotFound) || (err == nil && current.UserID != user.ID) {
			return &calsync.Error{Op: "update", Kind: calsync.ErrNotFound}
		}
		if err != nil {
			return err
		}
		in := mergeUpdate(cmd, current)
		s, err := a.engine.UpdateSchedule(ctx, user, current.ID, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated schedule %s %q on %s%s\n", s.ID, s.Name, s.Date, linkNote(s))
		return nil
	})
}

// mergeUpdate overlays the flags the user set onto the current schedule.
func mergeUpdate(cmd *cobra.Command, current model.Schedule) model.ScheduleInput {
	in := model.ScheduleInput{
		Name:   current.Name,
		Date:   current.Date,
		Budget: current.Budget,
		Color:  current.Color,
	}
	flags := cmd.Flags()
	if flags.Changed("name") {
		in.Name = scheduleName
	}
	if flags.Changed("date") {
		in.Date = scheduleDate
	}
	if flags.Changed("budget") {
		in.Budget = scheduleBudget
	}
	if flags.Changed("color") {
		in.Color = scheduleColor
	}
	return in
}

func runScheduleDelete(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := a.currentUser(ctx)
		if err != nil {
			return err
		}
		if err := a.engine.DeleteSchedule(ctx, user, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted schedule %s\n", args[0])
		return nil
	})
}

func linkNote(s model.Schedule) string {
	if !s.Linked() {
		return " (local only)"
	}
	return fmt.Sprintf(" (event %s on %s)", *s.RemoteEventID, *s.RemoteCalendarID)
}
