package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the registered units and their methods",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg, _, err := mount(cfg, nil)
		if err != nil {
			return err
		}
		return printRoutes(cmd.OutOrStdout(), reg)
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

func printRoutes(w io.Writer, reg *canopy.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tKIND\tMETHODS\tGUEST\tDESCRIPTION")
	for _, u := range reg.Units() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			u.Route(), u.Kind, strings.Join(u.Methods, ","), strings.Join(u.Guest, ","), u.Description)
	}
	return tw.Flush()
}
