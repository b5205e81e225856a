package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/pmaojo/hexanorm/internal/hexanorm/checker"
	"github.com/pmaojo/hexanorm/internal/hexanorm/logger"
	"github.com/pmaojo/hexanorm/internal/hexanorm/mcp"
	"github.com/pmaojo/hexanorm/internal/hexanorm/report"
	"github.com/pmaojo/hexanorm/internal/hexanorm/store"
	"github.com/pmaojo/hexanorm/internal/hexanorm/tui"
	"github.com/pmaojo/hexanorm/internal/hexanorm/watcher"
	"github.com/pmaojo/hexanorm/internal/hexanorm/workspace"
)

func newServeCmd(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [root]",
		Short: "Serve check results over MCP on stdio, re-checking on file changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				o.root = args[0]
			}
			return runServe(cmd.Context(), o)
		},
	}
}

func runServe(ctx context.Context, o *globalOptions) error {
	ws, err := openWorkspace(o)
	if err != nil {
		return err
	}
	log := logger.For(logger.ComponentMCP)
	log.Infow("Starting Hexanorm server", "root", ws.Root)

	if _, err := ws.Check(ctx); err != nil {
		log.Warnw("Initial check failed", "error", err)
	}

	st, err := store.NewStore(ws.PersistenceDir())
	if err != nil {
		log.Warnw("Run history unavailable", "error", err)
		st = nil
	} else {
		defer st.Close()
	}

	w, err := watcher.NewWatcher(ws, nil, watcher.WithLogger(logger.For(logger.ComponentWatcher)))
	if err != nil {
		log.Warnw("Failed to start file watcher", "error", err)
	} else {
		w.Start(ctx)
		defer w.Close()
	}

	server, _ := mcp.NewServer(ws, st, log)
	if err := server.Run(ctx, &sdk.StdioTransport{}); err != nil && ctx.Err() == nil {
		return exitWith(exitError, err)
	}
	return nil
}

type watchOptions struct {
	*globalOptions
	record   bool
	debounce time.Duration
}

func newWatchCmd(g *globalOptions) *cobra.Command {
	o := &watchOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Re-run the check whenever sources, descriptor files or the config change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				o.root = args[0]
			}
			return runWatch(cmd.Context(), o)
		},
	}
	cmd.Flags().BoolVar(&o.record, "record", false, "Store every run in the history database")
	cmd.Flags().DurationVar(&o.debounce, "debounce", watcher.DefaultDebounce, "Quiet period before a re-check")
	return cmd
}

func runWatch(ctx context.Context, o *watchOptions) error {
	ws, err := openWorkspace(o.globalOptions)
	if err != nil {
		return err
	}
	log := logger.For(logger.ComponentWatcher)

	var st *store.Store
	if o.record {
		if st, err = store.NewStore(ws.PersistenceDir()); err != nil {
			return exitWith(exitError, err)
		}
		defer st.Close()
	}

	emit := func(res *checker.Result, err error) {
		now := time.Now()
		if err != nil {
			fmt.Fprintf(o.stdout, "%s ERROR: %v\n", now.Format(time.TimeOnly), err)
			return
		}
		fmt.Fprintf(o.stdout, "%s %s\n", now.Format(time.TimeOnly), report.Summary(res.Report))
		for _, v := range res.Report.Violations {
			fmt.Fprintf(o.stdout, "  %s: %s (%s)\n", v.Rule, v.Message, v.Subject)
		}
		if st != nil {
			if _, err := st.SaveRun(context.Background(), ws.Root, now, res.Report); err != nil {
				log.Warnw("Failed to record run", "error", err)
			}
		}
	}

	emit(ws.Check(ctx))

	w, err := watcher.NewWatcher(ws, emit, watcher.WithDebounce(o.debounce), watcher.WithLogger(log))
	if err != nil {
		return exitWith(exitError, err)
	}
	w.Start(ctx)
	defer w.Close()

	log.Infow("Watching for changes", "root", ws.Root)
	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	return nil
}

func newTUICmd(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [root]",
		Short: "Browse layers, units, dependencies and violations interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				o.root = args[0]
			}
			return runTUI(cmd.Context(), o)
		},
	}
}

func runTUI(ctx context.Context, o *globalOptions) error {
	ws, err := openWorkspace(o)
	if err != nil {
		return err
	}
	res, err := ws.Check(ctx)
	if err != nil {
		return exitWith(exitError, err)
	}

	p := tea.NewProgram(tui.NewModel(res), tea.WithAltScreen(), tea.WithContext(ctx))

	w, err := watcher.NewWatcher(ws, func(res *checker.Result, err error) {
		p.Send(tui.ResultMsg{Result: res, Err: err})
	}, watcher.WithLogger(logger.For(logger.ComponentWatcher)))
	if err == nil {
		w.Start(ctx)
		defer w.Close()
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return exitWith(exitError, err)
	}
	return nil
}
