package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmaojo/hexanorm/internal/hexanorm/report"
	"github.com/pmaojo/hexanorm/internal/hexanorm/store"
)

type historyOptions struct {
	*globalOptions
	limit  int
	format string
}

func newHistoryCmd(g *globalOptions) *cobra.Command {
	o := &historyOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded check runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openHistory(o.globalOptions)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), o.limit)
			if err != nil {
				return exitWith(exitError, err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(o.stdout, "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(o.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tVIOLATIONS\tRULE ERRORS\tROOT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Violations, r.RuleErrors, r.Root)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&o.limit, "limit", "n", 20, "Number of runs to list")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the report of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return exitWith(exitError, fmt.Errorf("invalid run id %q", args[0]))
			}
			format, err := report.ParseFormat(o.format)
			if err != nil {
				return exitWith(exitError, err)
			}
			st, err := openHistory(o.globalOptions)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.LoadRun(cmd.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				return exitWith(exitError, fmt.Errorf("run %d not found", id))
			}
			if err != nil {
				return exitWith(exitError, err)
			}
			return report.Render(o.stdout, run.Report, format)
		},
	}
	show.Flags().StringVarP(&o.format, "format", "f", string(report.FormatText), "Report format: text, json, yaml")
	cmd.AddCommand(show)
	return cmd
}

func openHistory(o *globalOptions) (*store.Store, error) {
	ws, err := openWorkspace(o)
	if err != nil {
		return nil, err
	}
	st, err := store.NewStore(ws.PersistenceDir())
	if err != nil {
		return nil, exitWith(exitError, err)
	}
	return st, nil
}
