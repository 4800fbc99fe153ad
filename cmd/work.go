package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/schedsync/internal/model"
	"github.com/Tiliavir/schedsync/internal/timecalc"
)

var (
	workDate   string
	workPay    int64
	workPayday string
	workColor  int
	workStart  string
	workEnd    string
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Record work shifts (local only, never synced)",
}

var workAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a work shift",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkAdd,
}

func init() {
	workAddCmd.Flags().StringVar(&workDate, "date", "", "Shift date (YYYY-MM-DD)")
	workAddCmd.Flags().Int64Var(&workPay, "pay", 0, "Pay for the shift")
	workAddCmd.Flags().StringVar(&workPayday, "payday", "", "Payday (YYYY-MM-DD)")
	workAddCmd.Flags().IntVar(&workColor, "color", model.DefaultColor, "Palette color index")
	workAddCmd.Flags().StringVar(&workStart, "start", "", "Start time (HH:MM)")
	workAddCmd.Flags().StringVar(&workEnd, "end", "", "End time (HH:MM)")
	_ = workAddCmd.MarkFlagRequired("date")
	workCmd.AddCommand(workAddCmd)
}

func runWorkAdd(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", errUsage)
	}
	if _, err := timecalc.ParseDate(workDate); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return withApp(func(ctx context.Context, a *app) error {
		w, err := a.store.SaveWork(ctx, model.Work{
			UserID: a.userID(),
			Name:   name,
			Date:   workDate,
			Pay:    workPay,
			Payday: workPayday,
			Color:  workColor,
			Start:  workStart,
			End:    workEnd,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added work %s %q on %s\n", w.ID, w.Name, w.Date)
		return nil
	})
}
