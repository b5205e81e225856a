package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmaojo/hexanorm/internal/hexanorm/export"
	"github.com/pmaojo/hexanorm/internal/hexanorm/logger"
)

type exportOptions struct {
	*globalOptions
	format string
	out    string
}

func newExportCmd(g *globalOptions) *cobra.Command {
	o := &exportOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "export [root]",
		Short: "Export the layer dependency diagram",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				o.root = args[0]
			}
			if o.format != "excalidraw" {
				return exitWith(exitError, fmt.Errorf("unknown export format %q (want excalidraw)", o.format))
			}
			ws, err := openWorkspace(o.globalOptions)
			if err != nil {
				return err
			}
			res, err := ws.Check(cmd.Context())
			if err != nil {
				return exitWith(exitError, err)
			}
			if err := export.ExportExcalidraw(res, o.out); err != nil {
				return exitWith(exitError, err)
			}
			logger.For(logger.ComponentExporter).Infow("Exported layer diagram", "out", o.out, "status", res.Report.Status)
			fmt.Fprintf(o.stdout, "Exported to %s\n", o.out)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.format, "format", "excalidraw", "Export format (excalidraw)")
	cmd.Flags().StringVarP(&o.out, "out", "o", "architecture.excalidraw", "Output file path")
	return cmd
}
