package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "vault-solver",
	Short: "Quote, approve and execute vault deposits, withdrawals and migrations",
	Long: `vault-solver picks the right execution path for moving value into, out of
or between yield vaults, quotes it against the target contracts, takes care of
token approvals and submits the transaction.

Examples:
  vault-solver quote --chain 1 --from 0xA0b8...eB48 --to 0xBe53...0204 --amount 100
  vault-solver deposit --chain 1 --from native --to 0xa258...6E36 --amount 0.5
  vault-solver withdraw --chain 1 --from 0xBe53...0204 --to 0xA0b8...eB48 --amount 50
  vault-solver migrate --chain 1 --from 0x... --to 0x... --amount 10 --migrator 0x...
  vault-solver history`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints the error it fails with
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().Bool("metrics", false, "Print engine counters to stderr on exit (implied by --verbose)")
}

// newLogger builds the process logger. Verbose mode logs at debug level in
// a human readable format.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
