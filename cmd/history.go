package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vault-solver/config"
	"vault-solver/pkg/journal"
)

var (
	historyLimit        int
	historyStatusFilter string
	historyStrategy     string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List submitted transactions",
	Long: `List the approvals, deposits, withdrawals and migrations submitted from
this machine, newest first.

Examples:
  vault-solver history
  vault-solver history --status reverted
  vault-solver history --strategy router --limit 5`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one submitted transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of entries (0 for all)")
	historyCmd.Flags().StringVar(&historyStatusFilter, "status", "", "Filter by status (confirmed, reverted, failed)")
	historyCmd.Flags().StringVar(&historyStrategy, "strategy", "", "Filter by strategy")
}

func openJournal() (*journal.Journal, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return journal.Open(cfg.JournalPath)
}

func runHistory(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	j, err := openJournal()
	if err != nil {
		return err
	}

	var entries []*journal.Entry
	for _, e := range j.List() {
		if historyStatusFilter != "" && string(e.Status) != historyStatusFilter {
			continue
		}
		if historyStrategy != "" && !strings.EqualFold(e.Strategy, historyStrategy) {
			continue
		}
		entries = append(entries, e)
		if historyLimit > 0 && len(entries) == historyLimit {
			break
		}
	}

	if jsonOutput {
		if entries == nil {
			entries = []*journal.Entry{}
		}
		printJSON(entries)
		return nil
	}

	if len(entries) == 0 {
		color.Yellow("No transactions found in %s\n", j.FilePath())
		return nil
	}

	fmt.Println("\n" + strings.Repeat("=", 100))
	color.Green("                                     TRANSACTIONS")
	fmt.Println(strings.Repeat("=", 100))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nTIME\tSTRATEGY\tOPERATION\tCHAIN\tAMOUNT\tSTATUS\tTX")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			e.Time.Local().Format(time.DateTime), e.Strategy, e.Operation, e.ChainID,
			e.Amount, getStatusColor(e.Status), shortHash(e.TxHash))
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 100))
	fmt.Printf("%d of %d entries from %s\n\n", len(entries), j.Count(), j.FilePath())
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	j, err := openJournal()
	if err != nil {
		return err
	}
	entry, err := j.Get(args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(entry)
		return nil
	}

	fmt.Printf("\n  ID:          %s\n", color.CyanString(entry.ID))
	fmt.Printf("  Time:        %s\n", entry.Time.Local().Format(time.RFC1123))
	fmt.Printf("  Strategy:    %s\n", entry.Strategy)
	fmt.Printf("  Operation:   %s\n", entry.Operation)
	fmt.Printf("  Chain:       %d\n", entry.ChainID)
	fmt.Printf("  Owner:       %s\n", entry.Owner)
	fmt.Printf("  Contract:    %s\n", entry.Contract)
	if entry.Amount != "" {
		fmt.Printf("  Amount:      %s\n", entry.Amount)
	}
	if entry.TxHash != "" {
		fmt.Printf("  Tx Hash:     %s\n", entry.TxHash)
	}
	fmt.Printf("  Status:      %s\n", getStatusColor(entry.Status))
	if entry.Error != "" {
		fmt.Printf("  Error:       %s\n", color.RedString(entry.Error))
	}
	fmt.Println()
	return nil
}

func getStatusColor(status journal.Status) string {
	switch status {
	case journal.StatusConfirmed:
		return color.GreenString(string(status))
	case journal.StatusReverted:
		return color.YellowString(string(status))
	case journal.StatusFailed:
		return color.RedString(string(status))
	default:
		return string(status)
	}
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:8] + "..." + hash[len(hash)-4:]
}
