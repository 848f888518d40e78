package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// versionString is stamped at release time the way the teacher's build
// pipeline stamps its own cmd/fsb binary; left as a plain constant here
// since this module has no equivalent release tooling wired up yet.
var versionString = "dev"

var rootCmd = &cobra.Command{
	Use:   "tgforward",
	Short: "tgforward forwards and re-uploads Telegram messages between channels.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tgforward", versionString)
		fmt.Println("Run `tgforward run` to start a forwarding run.")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command, exiting non-zero on error the way
// cobra.Command.Execute's caller is expected to.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
