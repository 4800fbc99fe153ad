package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/schedsync/internal/model"
	"github.com/Tiliavir/schedsync/internal/timecalc"
)

var (
	ledgerDate    string
	ledgerContent string
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Record income and expenses",
}

var ledgerAddCmd = &cobra.Command{
	Use:       "add <income|expense> <amount>",
	Short:     "Add an income or expense entry",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(model.LedgerIncome), string(model.LedgerExpense)},
	RunE:      runLedgerAdd,
}

func init() {
	ledgerAddCmd.Flags().StringVar(&ledgerDate, "date", "", "Entry date (YYYY-MM-DD, default today)")
	ledgerAddCmd.Flags().StringVar(&ledgerContent, "content", "", "Description")
	ledgerCmd.AddCommand(ledgerAddCmd)
}

func runLedgerAdd(cmd *cobra.Command, args []string) error {
	entry, err := parseLedgerArgs(args, ledgerDate, ledgerContent)
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app) error {
		entry.UserID = a.userID()
		saved, err := a.store.SaveLedgerEntry(ctx, entry)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s of %s on %s\n", saved.Kind, timecalc.FormatAmount(saved.Amount), saved.Date)
		return nil
	})
}

func parseLedgerArgs(args []string, date, content string) (model.LedgerEntry, error) {
	kind := model.LedgerKind(args[0])
	if kind != model.LedgerIncome && kind != model.LedgerExpense {
		return model.LedgerEntry{}, fmt.Errorf("%w: kind must be income or expense, got %q", errUsage, args[0])
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount < 0 {
		return model.LedgerEntry{}, fmt.Errorf("%w: amount must be a non-negative integer, got %q", errUsage, args[1])
	}
	if date == "" {
		date = today()
	} else if _, err := timecalc.ParseDate(date); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	return model.LedgerEntry{Kind: kind, Date: date, Amount: amount, Content: content}, nil
}
