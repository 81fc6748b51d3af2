package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"siosearch/internal/core"
	"siosearch/internal/results"
)

func (a *app) runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}
	cmd.AddCommand(a.runsListCmd(), a.runsShowCmd())
	return cmd
}

func (a *app) openResults(cmd *cobra.Command) (results.Store, error) {
	rc := a.cfg.ResultsStore()
	if !rc.Enabled() {
		return nil, fmt.Errorf("%w: run history is disabled; set results.driver", errUsage)
	}
	return results.Open(cmd.Context(), rc)
}

func (a *app) runsListCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openResults(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "no runs recorded")
				return nil
			}
			t := newTable("ID", "Started", "Mirror", "Targets", "SPW rows", "MOUS rows")
			for _, r := range runs {
				t.Row(r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Mirror,
					strings.Join(r.Targets, ", "), strconv.Itoa(r.SpwRows), strconv.Itoa(r.MousRows))
			}
			fmt.Fprintln(a.stdout, t.Render())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) runsShowCmd() *cobra.Command {
	var asJSON bool
	var columns []string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the MOUS summary of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openResults(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			run, err := store.GetRun(cmd.Context(), args[0])
			if errors.Is(err, core.ErrRunNotFound) {
				return fmt.Errorf("run %q: %w", args[0], err)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, run)
			}
			fmt.Fprintln(a.stdout, titleStyle.Render("run "+run.ID))
			fmt.Fprintf(a.stdout, "started %s, mirror %s, radius %s arcmin, %d archive rows\n",
				run.StartedAt.Format("2006-01-02 15:04:05"), run.Mirror, core.FormatFloat(run.RadiusArcmin), run.ObservationRows)
			cols := run.Mous.Schema
			if len(columns) > 0 {
				cols = run.Mous.Project(columns)
				if len(cols) == 0 {
					return fmt.Errorf("%w: none of %s is a summary column (have %s)", errUsage,
						strings.Join(columns, ", "), strings.Join(run.Mous.ColumnNames(), ", "))
				}
			}
			headers := make([]string, len(cols))
			for i, c := range cols {
				headers[i] = c.Name
			}
			t := newTable(headers...)
			for _, row := range run.Mous.Rows {
				cells := make([]string, 0, len(cols))
				for _, c := range cols {
					cells = append(cells, cell(row[c.Name]))
				}
				t.Row(cells...)
			}
			fmt.Fprintln(a.stdout, t.Render())
			for _, art := range run.Artifacts {
				fmt.Fprintln(a.stdout, mutedStyle.Render(art.Path+" "+art.URL))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Summary columns to show, in order (default all)")
	return cmd
}

func cell(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return core.FormatFloat(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
