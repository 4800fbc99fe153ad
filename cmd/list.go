package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/schedsync/internal/model"
	"github.com/Tiliavir/schedsync/internal/timecalc"
)

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local schedules without contacting the remote calendar",
	Args:  cobra.NoArgs,
	RunE:  runScheduleList,
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		schedules, err := a.store.FindByUser(ctx, a.userID())
		if err != nil {
			return err
		}
		printSchedules(cmd.OutOrStdout(), schedules)
		return nil
	})
}

// sortSchedules orders by calendar day, then name. Undated schedules go last.
func sortSchedules(schedules []model.Schedule) {
	sort.SliceStable(schedules, func(i, j int) bool {
		di, dj := timecalc.DayKey(schedules[i].Date), timecalc.DayKey(schedules[j].Date)
		if (di == "") != (dj == "") {
			return dj == ""
		}
		if di != dj {
			return di < dj
		}
		return schedules[i].Name < schedules[j].Name
	})
}

// printSchedules groups schedules by day and prints them.
func printSchedules(w io.Writer, schedules []model.Schedule) {
	if len(schedules) == 0 {
		fmt.Fprintln(w, "No schedules found.")
		return
	}
	sorted := append([]model.Schedule(nil), schedules...)
	sortSchedules(sorted)

	currentDay := "-"
	for _, s := range sorted {
		day := timecalc.DayKey(s.Date)
		if day != currentDay {
			if day == "" {
				fmt.Fprintln(w, "(no date)")
			} else {
				fmt.Fprintln(w, day)
			}
			currentDay = day
		}
		budget := ""
		if s.Budget != 0 {
			budget = "  " + timecalc.FormatAmount(s.Budget)
		}
		remote := ""
		if s.Linked() {
			remote = "  [synced]"
		}
		fmt.Fprintf(w, "  %s  %s%s%s\n", s.ID, s.Name, budget, remote)
	}
}
