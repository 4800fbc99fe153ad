package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/schedsync/internal/icsexport"
	"github.com/Tiliavir/schedsync/internal/model"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export local schedules to stdout",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, ics")
}

func runExport(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		schedules, err := a.store.FindByUser(ctx, a.userID())
		if err != nil {
			return err
		}
		sortSchedules(schedules)

		out := cmd.OutOrStdout()
		switch exportFormat {
		case "json":
			data, err := json.MarshalIndent(schedules, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
		case "ics":
			if _, err := icsexport.Write(out, schedules, time.Now()); err != nil {
				return err
			}
		case "csv", "":
			writeCSV(out, schedules)
		default:
			return fmt.Errorf("%w: unknown format %q", errUsage, exportFormat)
		}
		return nil
	})
}

func writeCSV(w io.Writer, schedules []model.Schedule) {
	fmt.Fprintln(w, "id,date,name,budget,color,remote_calendar_id,remote_event_id")
	for _, s := range schedules {
		fmt.Fprintln(w, strings.Join([]string{
			csvEscape(s.ID),
			csvEscape(s.Date),
			csvEscape(s.Name),
			strconv.FormatInt(s.Budget, 10),
			strconv.Itoa(s.Color),
			csvEscape(model.Deref(s.RemoteCalendarID)),
			csvEscape(model.Deref(s.RemoteEventID)),
		}, ","))
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
