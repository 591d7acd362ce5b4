package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ronbb/donut/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "donut",
	Short: "Donut procedure execution engine CLI",
	Long:  "donut — validate and run procedure graphs of nodes, flows, and cursors.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "", false, "Accepted but not read by any subcommand; logging is unchanged")
	rootCmd.PersistentFlags().BoolP("quiet", "", false, "Accepted but not read by any subcommand; output is unchanged")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("donut version %s\n", version))

	rootCmd.AddCommand(cli.NewRunCmd())
	rootCmd.AddCommand(cli.NewValidateCmd())
}
