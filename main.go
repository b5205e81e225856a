package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pmaojo/hexanorm/internal/hexanorm/config"
	"github.com/pmaojo/hexanorm/internal/hexanorm/logger"
	"github.com/pmaojo/hexanorm/internal/hexanorm/workspace"
)

// Process exit codes.
const (
	exitPass  = 0
	exitFail  = 1
	exitError = 2
)

// exitCodeError carries the process exit code out of a command. A nil err means the command already
// reported what happened.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitCodeError{code: code, err: err}
}

// globalOptions are the flags shared by every command.
type globalOptions struct {
	root        string
	configPath  string
	descriptors []string
	noScan      bool
	rootPackage string

	stdout io.Writer
	stderr io.Writer
}

// main is the entry point for Hexanorm. Without a subcommand it starts the MCP server over stdio.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	logger.Sync()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitPass
	}

	var ec *exitCodeError
	if errors.As(err, &ec) {
		if ec.err != nil {
			fmt.Fprintln(stderr, "Error:", ec.err)
		}
		return ec.code
	}
	// Flag and argument errors from cobra.
	fmt.Fprintln(stderr, "Error:", err)
	return exitError
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &globalOptions{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "hexanorm [root]",
		Short: "Architecture conformance checker for layered codebases",
		Long: "Hexanorm classifies the units of a codebase into architectural layers, extracts their\n" +
			"dependencies and checks them against layer dependency and encapsulation rules.\n" +
			"Without a subcommand it serves the results over MCP on stdio.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				o.root = args[0]
			}
			return runServe(cmd.Context(), o)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&o.root, "root", "r", ".", "Root directory to scan")
	flags.StringVarP(&o.configPath, "config", "c", "", "Config file (default: hexanorm.yaml|yml|json in the root, else built-in rules)")
	flags.StringSliceVar(&o.descriptors, "descriptors", nil, "Additional unit descriptor files (*.units.json, *.units.yaml)")
	flags.BoolVar(&o.noScan, "no-scan", false, "Do not scan the root; read only --descriptors")
	flags.StringVar(&o.rootPackage, "package", "", "Only check units under this package (overrides root_package)")

	rootCmd.AddCommand(
		newCheckCmd(o),
		newServeCmd(o),
		newWatchCmd(o),
		newTUICmd(o),
		newExportCmd(o),
		newHistoryCmd(o),
	)
	return rootCmd
}

// openWorkspace loads the configuration, installs the logger it asks for, and builds the
// workspace. Every failure is a configuration error.
func openWorkspace(o *globalOptions) (*workspace.Workspace, error) {
	cfg, _, err := config.Resolve(o.configPath, o.root)
	if err != nil {
		return nil, exitWith(exitError, fmt.Errorf("load config: %w", err))
	}
	logger.Initialize(cfg.Log.Level, logger.LogFormat(cfg.Log.Format))

	opts := []workspace.Option{
		workspace.WithLogger(logger.For(logger.ComponentChecker)),
		workspace.WithDescriptorFiles(o.descriptors...),
	}
	if o.noScan {
		opts = append(opts, workspace.WithoutScan())
	}
	if o.rootPackage != "" {
		pkg := o.rootPackage
		opts = append(opts, workspace.WithConfigOverride(func(c *config.Config) { c.RootPackage = pkg }))
	}

	ws, err := workspace.Open(o.root, o.configPath, opts...)
	if err != nil {
		return nil, exitWith(exitError, err)
	}
	return ws, nil
}
