package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vault-solver/pkg/controller"
	"vault-solver/pkg/presenter"
	"vault-solver/pkg/solver"
	"vault-solver/pkg/types"
)

var (
	quoteFlags     intentFlags
	quoteDirection string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Show the strategy and expected output for an intent",
	Long: `Select the strategy that will carry out an intent and show the amount
it expects to produce. Nothing is submitted.

Examples:
  # Quote a deposit into a v3 vault
  vault-solver quote --from 0xA0b8... --to 0xBe53... --amount 100

  # Quote a withdrawal from a v2 vault
  vault-solver quote --from 0xa258... --to 0x6B17... --amount 10 --version v2 --direction withdraw`,
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteFlags.register(quoteCmd)
	quoteCmd.Flags().StringVar(&quoteDirection, "direction", string(types.Deposit), "deposit or withdraw")
}

func runQuote(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	dir, err := parseDirection(quoteDirection)
	if err != nil {
		return err
	}

	e, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	req, err := quoteFlags.build(ctx, e.client, dir)
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

	if jsonOutput {
		output := quoteOutput(e.ctrl, req, quote)
		output["enabled_strategies"] = kindNames(e.selector.Enabled())
		printJSON(output)
		return nil
	}
	displayQuote(e.ctrl, req, quote)
	fmt.Printf("Enabled strategies: %s\n\n", strings.Join(kindNames(e.selector.Enabled()), ", "))
	return presenter.New(e.ctrl, os.Stdout).Render()
}

func kindNames(kinds []solver.Kind) []string {
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = kind.String()
	}
	return names
}

func quoteOutput(ctrl *controller.Controller, req types.SolverRequest, quote *types.Quote) map[string]interface{} {
	output := map[string]interface{}{
		"direction":    req.Direction,
		"input":        req.Input.Address.Hex(),
		"output":       req.Output.Address.Hex(),
		"amount":       types.FormatUnits(req.Amount, req.Input.Decimals),
		"state":        ctrl.State(),
		"allowance_ok": ctrl.Allowance().Covers(req.Amount),
	}
	if active := ctrl.Active(); active != nil {
		output["strategy"] = active.Kind().String()
		if spender, ok := active.Spender(); ok {
			output["spender"] = spender.Hex()
		}
	}
	if quote != nil {
		output["expected"] = quote.Amount.String()
		output["quoted_from"] = quote.From.Hex()
		output["quoted_to"] = quote.To.Hex()
	}
	return output
}

func displayQuote(ctrl *controller.Controller, req types.SolverRequest, quote *types.Quote) {
	title := strings.ToUpper(string(req.Direction)) + " QUOTE"
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("%s%s", strings.Repeat(" ", (60-len(title))/2), title)
	fmt.Println(strings.Repeat("=", 60))

	if active := ctrl.Active(); active != nil {
		fmt.Printf("\n  Strategy:          %s\n", color.CyanString(active.Kind().String()))
		if spender, ok := active.Spender(); ok {
			fmt.Printf("  Spender:           %s\n", spender.Hex())
		}
	}
	fmt.Printf("  From:              %s %s\n", types.FormatUnits(req.Amount, req.Input.Decimals), color.YellowString(req.Input.Symbol))
	if quote != nil {
		fmt.Printf("  To:                ~%s %s\n", quote.Amount.String(), color.YellowString(req.Output.Symbol))
		if quote.From != req.Input.Address {
			fmt.Printf("  Quoted As:         %s\n", quote.From.Hex())
		}
	} else {
		fmt.Printf("  To:                %s\n", color.RedString("unavailable"))
	}
	fmt.Printf("  Chain:             %d\n", req.Input.ChainID)

	allowance := ctrl.Allowance()
	if allowance.Covers(req.Amount) {
		fmt.Printf("  Allowance:         %s\n", color.GreenString("sufficient"))
	} else {
		fmt.Printf("  Allowance:         %s\n", color.YellowString("%s (approval required)", allowance.Amount.String()))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func printJSON(v interface{}) {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(jsonData))
}
