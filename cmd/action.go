package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vault-solver/pkg/controller"
	"vault-solver/pkg/journal"
	"vault-solver/pkg/presenter"
	"vault-solver/pkg/types"
)

// maxPresses bounds one run: an approval followed by the action
const maxPresses = 2

var (
	depositFlags  intentFlags
	withdrawFlags intentFlags
	migrateFlags  intentFlags
)

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Deposit a token into a vault",
	Long: `Deposit into a vault through the best available strategy. Native coin,
partner tracking and staking zaps are picked automatically from the
configuration. If an approval is needed it is submitted first.

Examples:
  # Deposit 100 USDC into a v3 vault
  vault-solver deposit --from 0xA0b8... --to 0xBe53... --amount 100

  # Deposit ETH and stake the shares
  vault-solver deposit --from native --to 0xAc37... --amount 0.5 --stake --pool 0x8E2...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, &depositFlags, types.Deposit)
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw from a vault",
	Long: `Redeem vault shares for the underlying token. --amount is in shares.

Example:
  vault-solver withdraw --from 0xBe53... --to 0xA0b8... --amount 95.2 --max-loss 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, &withdrawFlags, types.Withdraw)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move a position from one vault to another",
	Long: `Migrate shares of one vault into another through a router, or through
the internal zap when --migrator is the configured zap address.

Example:
  vault-solver migrate --from 0x5f18... --to 0xBe53... --amount 10 \
    --input-version v2 --migrator 0x1112...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateFlags.migrator == "" {
			return errors.New("--migrator is required")
		}
		return runAction(cmd, &migrateFlags, types.Deposit)
	},
}

func init() {
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(migrateCmd)

	depositFlags.register(depositCmd)
	withdrawFlags.register(withdrawCmd)
	migrateFlags.register(migrateCmd)
}

func runAction(cmd *cobra.Command, flags *intentFlags, dir types.Direction) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	e, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, ok := e.client.Account(); !ok {
		return errNoAccount
	}

	ctx := cmd.Context()
	req, err := flags.build(ctx, e.client, dir)
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}
	quote := e.ctrl.SetIntent(ctx, req, e.maxFor(ctx, req))
	if !jsonOutput {
		s.Stop()
	}

	if quote == nil {
		return fmt.Errorf("no quote available (%s)", e.ctrl.State())
	}

	if jsonOutput {
		printJSON(quoteOutput(e.ctrl, req, quote))
	} else {
		displayQuote(e.ctrl, req, quote)
	}

	view := presenter.New(e.ctrl, os.Stdout)
	if !flags.yes && !jsonOutput {
		label := view.Button().Label
		if !confirm(fmt.Sprintf("Proceed with %s?", strings.ToLower(label))) {
			fmt.Println("\nCancelled.")
			return nil
		}
	}

	for i := 0; i < maxPresses; i++ {
		state := e.ctrl.State()
		button := view.Button()
		op := strings.ToLower(button.Label)

		if state != controller.NeedsApproval && state != controller.ReadyToExecute {
			return fmt.Errorf("cannot %s: %s", op, state)
		}

		recorded := e.journal.Count()
		ok, err := press(ctx, e.ctrl, button.Label, jsonOutput)
		if err != nil {
			return err
		}
		last := latestEntry(e.journal, recorded)
		if !ok {
			if last != nil && last.Error != "" {
				return fmt.Errorf("%s failed: %s", op, last.Error)
			}
			return fmt.Errorf("%s failed", op)
		}

		if !jsonOutput {
			printSuccess(fmt.Sprintf("%s confirmed", button.Label))
			if last != nil && last.TxHash != "" {
				fmt.Printf("  Transaction: %s\n", color.CyanString(last.TxHash))
			}
		}

		if state == controller.ReadyToExecute {
			finish(ctx, e, req, last, jsonOutput)
			return nil
		}
	}

	return errors.New("allowance still insufficient after approval")
}

func press(ctx context.Context, ctrl *controller.Controller, label string, quiet bool) (bool, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !quiet {
		s.Suffix = fmt.Sprintf(" Submitting %s...", strings.ToLower(label))
		s.Start()
		defer s.Stop()
	}
	return ctrl.Press(ctx)
}

// finish reports the result and the balances the action touched
func finish(ctx context.Context, e *engine, req types.SolverRequest, last *journal.Entry, jsonOutput bool) {
	owner, _ := e.client.Account()

	balances := make(map[string]string)
	for _, asset := range []types.Asset{req.Input, req.Output} {
		balance, err := e.client.Balance(ctx, asset.ChainID, asset.Address, owner)
		if err != nil {
			continue
		}
		balances[asset.Address.Hex()] = types.FormatUnits(balance, asset.Decimals)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"status":   "confirmed",
			"balances": balances,
		}
		if last != nil {
			output["tx_hash"] = last.TxHash
			output["strategy"] = last.Strategy
		}
		printJSON(output)
		return
	}

	fmt.Println("\nBalances:")
	for _, asset := range []types.Asset{req.Input, req.Output} {
		if balance, ok := balances[asset.Address.Hex()]; ok {
			fmt.Printf("  %-10s %s\n", asset.Symbol, balance)
		}
	}
	fmt.Println()
}

// latestEntry returns the newest entry if one was added since the journal
// held recorded entries
func latestEntry(j *journal.Journal, recorded int) *journal.Entry {
	entries := j.List()
	if len(entries) <= recorded {
		return nil
	}
	return entries[0]
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
