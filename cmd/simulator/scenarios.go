package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/epidemic-simulator/core"
)

func newScenariosCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the scenarios available to --scenario and load_scenario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.config(cmd)
			if err != nil {
				return err
			}
			catalog := core.NewScenarioCatalog(cfg.Scenarios...)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ALIAS\tNAME\tINFECTION\tRECOVERY\tVACCINATION\tQUARANTINE\tDESCRIPTION")
			for _, s := range catalog.List() {
				m := s.Multipliers
				fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%.1f\t%t\t%s\n",
					s.Alias, s.Name, m.Infection, m.Recovery, m.Vaccination, m.Quarantine, s.Description)
			}
			return w.Flush()
		},
	}
}
