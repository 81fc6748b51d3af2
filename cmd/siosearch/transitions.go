package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"siosearch/internal/core"
)

func (a *app) transitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions",
		Short: "Print the configured transition table",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := a.cfg.Transitions.Validate(); err != nil {
				return err
			}
			t := newTable("Transition", "Rest frequency (GHz)")
			for _, tr := range a.cfg.Transitions {
				t.Row(tr.Label, core.FormatFloat(tr.FreqGHz))
			}
			fmt.Fprintln(a.stdout, t.Render())
			return nil
		},
	}
}
