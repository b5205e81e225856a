package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmaojo/hexanorm/internal/hexanorm/checker"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"github.com/pmaojo/hexanorm/internal/hexanorm/logger"
	"github.com/pmaojo/hexanorm/internal/hexanorm/report"
	"github.com/pmaojo/hexanorm/internal/hexanorm/store"
	"github.com/pmaojo/hexanorm/internal/hexanorm/workspace"
)

type checkOptions struct {
	*globalOptions
	format  string
	out     string
	record  bool
	timeout time.Duration
}

func newCheckCmd(g *globalOptions) *cobra.Command {
	o := &checkOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "check [root]",
		Short: "Run the conformance check once and print the report",
		Long: "Run the conformance check once and print the report.\n\n" +
			"Exit status: 0 when no rule reports a violation, 1 on violations or timeout,\n" +
			"2 on unreadable input, invalid configuration or a failing rule.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				o.root = args[0]
			}
			return runCheck(cmd.Context(), o)
		},
	}
	cmd.Flags().StringVarP(&o.format, "format", "f", string(report.FormatText), "Report format: text, json, yaml")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&o.record, "record", false, "Store the run in the history database")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "Give up after this long and report FAIL (0 disables)")
	return cmd
}

func runCheck(ctx context.Context, o *checkOptions) error {
	format, err := report.ParseFormat(o.format)
	if err != nil {
		return exitWith(exitError, err)
	}
	ws, err := openWorkspace(o.globalOptions)
	if err != nil {
		return err
	}
	log := logger.For(logger.ComponentCLI)

	started := time.Now()
	res, err := checkWithTimeout(ctx, ws, o.timeout)
	if errors.Is(err, context.DeadlineExceeded) {
		log.Errorw("Check timed out", "timeout", o.timeout)
		fmt.Fprintf(o.stdout, "FAIL: timed out after %s\n", o.timeout)
		return exitWith(exitFail, nil)
	}
	if err != nil {
		if !domain.IsFatal(err) {
			err = fmt.Errorf("read input: %w", err)
		}
		return exitWith(exitError, err)
	}

	if err := writeReport(o.stdout, o.out, res.Report, format); err != nil {
		return exitWith(exitError, err)
	}

	if o.record {
		if err := recordRun(ctx, ws, started, res.Report); err != nil {
			return exitWith(exitError, err)
		}
	}

	log.Infow("Check finished", "status", res.Report.Status, "violations", len(res.Report.Violations),
		"rule_errors", len(res.Report.RuleErrors), "elapsed", time.Since(started))
	return reportExit(res.Report)
}

// reportExit maps a finished report to the process exit status.
func reportExit(r *report.Report) error {
	switch {
	case r.HasRuleErrors():
		return exitWith(exitError, nil)
	case r.Failed():
		return exitWith(exitFail, nil)
	}
	return nil
}

// checkWithTimeout runs the check under a wall-clock budget. The in-memory stages cannot be
// interrupted, so on timeout the run is abandoned rather than cancelled.
func checkWithTimeout(ctx context.Context, ws *workspace.Workspace, timeout time.Duration) (*checker.Result, error) {
	if timeout <= 0 {
		return ws.Check(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *checker.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := ws.Check(ctx)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.res, out.err
	}
}

func writeReport(stdout io.Writer, path string, r *report.Report, format report.Format) error {
	if path == "" {
		return report.Render(stdout, r, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.Render(f, r, format); err != nil {
		return err
	}
	return f.Close()
}

func recordRun(ctx context.Context, ws *workspace.Workspace, started time.Time, r *report.Report) error {
	st, err := store.NewStore(ws.PersistenceDir())
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.SaveRun(ctx, ws.Root, started, r)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	logger.For(logger.ComponentStore).Infow("Run recorded", "id", id)
	return nil
}
