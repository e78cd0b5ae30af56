package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vault-solver/pkg/solver"
	"vault-solver/pkg/types"
)

var (
	allowanceFlags     intentFlags
	allowanceDirection string
)

var allowanceCmd = &cobra.Command{
	Use:   "allowance",
	Short: "Show the spending authorizations an intent depends on",
	Long: `Read, bypassing the cache, the allowance the selected strategy needs
before it can execute. For router migrations the router's authorization
on the target vault is shown as well.

Example:
  vault-solver allowance --from 0xA0b8... --to 0xBe53... --amount 100`,
	RunE: runAllowance,
}

func init() {
	rootCmd.AddCommand(allowanceCmd)

	allowanceFlags.register(allowanceCmd)
	allowanceCmd.Flags().StringVar(&allowanceDirection, "direction", string(types.Deposit), "deposit or withdraw")
}

func runAllowance(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	dir, err := parseDirection(allowanceDirection)
	if err != nil {
		return err
	}

	e, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, ok := e.client.Account(); !ok {
		return errNoAccount
	}

	ctx := cmd.Context()
	req, err := allowanceFlags.build(ctx, e.client, dir)
	if err != nil {
		return err
	}

	active := e.selector.Active(req)
	active.Init(ctx, req)
	record := active.RetrieveAllowance(ctx, true)

	var target *types.AllowanceRecord
	if router, ok := active.(*solver.RouterSolver); ok {
		if rec, ok := router.TargetAllowance(ctx, false); ok {
			target = &rec
		}
	}

	if jsonOutput {
		output := map[string]interface{}{
			"strategy":  active.Kind().String(),
			"allowance": record,
			"covers":    record.Covers(req.Amount),
		}
		if target != nil {
			output["router_target"] = target
		}
		printJSON(output)
		return nil
	}

	fmt.Printf("\nStrategy: %s\n", color.CyanString(active.Kind().String()))
	printAllowance("Allowance", record)
	if record.Covers(req.Amount) {
		fmt.Printf("  Status:   %s\n", color.GreenString("sufficient"))
	} else {
		fmt.Printf("  Status:   %s\n", color.RedString("approval required"))
	}
	if target != nil {
		printAllowance("Router target", *target)
	}
	fmt.Println()
	return nil
}

func printAllowance(title string, record types.AllowanceRecord) {
	fmt.Printf("\n%s:\n", title)
	fmt.Printf("  Owner:    %s\n", record.Key.Owner.Hex())
	fmt.Printf("  Spender:  %s\n", record.Key.Spender.Hex())
	fmt.Printf("  Asset:    %s\n", record.Key.Asset.Hex())

	amount := record.Amount.String()
	if record.Amount.Raw != nil && record.Amount.Raw.Cmp(math.MaxBig256) == 0 {
		amount = "unlimited"
	}
	fmt.Printf("  Amount:   %s\n", color.YellowString(amount))
}
