package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/schedsync/internal/model"
	"github.com/Tiliavir/schedsync/internal/timecalc"
)

var calendarFormat string

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show schedules, work shifts and daily totals",
	Long: `calendar syncs the linked calendar first, then prints everything stored
for the user. A failed sync is logged and the local state is shown anyway.`,
	Args: cobra.NoArgs,
	RunE: runCalendar,
}

func init() {
	calendarCmd.Flags().StringVar(&calendarFormat, "format", "md", "Output format: md, json")
}

func runCalendar(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		user, err := a.currentUser(ctx)
		if err != nil {
			return err
		}
		view, err := a.engine.CalendarView(ctx, user)
		if err != nil {
			return err
		}
		switch calendarFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		case "md", "":
			printCalendar(cmd.OutOrStdout(), view)
			return nil
		default:
			return fmt.Errorf("%w: unknown format %q", errUsage, calendarFormat)
		}
	})
}

func printCalendar(w io.Writer, view model.CalendarView) {
	fmt.Fprintln(w, "Schedules")
	fmt.Fprintln(w, "--------------------------------")
	printSchedules(w, view.Schedules)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Work")
	fmt.Fprintln(w, "--------------------------------")
	if len(view.Works) == 0 {
		fmt.Fprintln(w, "No work entries.")
	}
	works := append([]model.Work(nil), view.Works...)
	sort.SliceStable(works, func(i, j int) bool { return works[i].Date < works[j].Date })
	for _, wk := range works {
		hours := ""
		if wk.Start != "" || wk.End != "" {
			hours = fmt.Sprintf("  %s–%s", wk.Start, wk.End)
		}
		fmt.Fprintf(w, "%s  %-20s%s  %s\n", wk.Date, wk.Name, hours, timecalc.FormatAmount(wk.Pay))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Daily totals")
	fmt.Fprintln(w, "--------------------------------")
	days := mergedDays(view.DailyIncome, view.DailyExpense)
	if len(days) == 0 {
		fmt.Fprintln(w, "No ledger entries.")
		return
	}
	var income, expense int64
	for _, d := range days {
		income += view.DailyIncome[d]
		expense += view.DailyExpense[d]
		fmt.Fprintf(w, "%s  +%-14s-%s\n", d,
			timecalc.FormatAmount(view.DailyIncome[d]),
			timecalc.FormatAmount(view.DailyExpense[d]))
	}
	fmt.Fprintln(w, "--------------------------------")
	fmt.Fprintf(w, "%-10s  +%-14s-%s\n", "Total", timecalc.FormatAmount(income), timecalc.FormatAmount(expense))
}

func mergedDays(a, b map[string]int64) []string {
	merged := make(map[string]int64, len(a)+len(b))
	for d := range a {
		merged[d] = 0
	}
	for d := range b {
		merged[d] = 0
	}
	return timecalc.SortedDays(merged)
}
