package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy/internal/jobs"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Check or repair the user tree boundaries",
}

var treeCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the tree and report gaps without changing it",
	RunE:  runTreeCheck(false),
}

var treeCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Validate the tree and renumber its boundaries densely",
	RunE:  runTreeCheck(true),
}

func init() {
	treeCmd.AddCommand(treeCheckCmd, treeCleanupCmd)
	rootCmd.AddCommand(treeCmd)
}

func runTreeCheck(fix bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		s, err := open(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		report, err := jobs.NewTreeCheck(s.users, s.metrics, s.log).Run(cmd.Context(), fix)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
}
